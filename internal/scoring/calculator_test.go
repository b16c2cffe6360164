package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate_IncorrectAlwaysResets(t *testing.T) {
	tests := []struct {
		name   string
		timeMs int64
		timer  int
		streak int
	}{
		{"instant answer with streak", 0, 15, 4},
		{"late answer", 20000, 15, 0},
		{"huge streak", 1200, 10, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(false, tt.timeMs, tt.timer, tt.streak)
			require.Equal(t, 0, got.PointsEarned)
			require.Equal(t, 0, got.NewStreak)
			require.False(t, got.IsCorrect)
		})
	}
}

func TestCalculate_Correct(t *testing.T) {
	tests := []struct {
		name       string
		timeMs     int64
		timer      int
		streak     int
		wantPoints int
		wantStreak int
	}{
		{"instant first answer", 0, 15, 0, 1100, 1},
		{"at deadline", 15000, 15, 0, 550, 1},
		{"past deadline clamps to min", 40000, 15, 0, 550, 1},
		{"negative elapsed clamps to base", -50, 15, 0, 1100, 1},
		{"one third of timer used", 5000, 15, 0, 916, 1},
		{"streak bonus grows", 0, 10, 2, 1300, 3},
		{"streak bonus capped at five", 0, 10, 9, 1500, 10},
		{"min points with capped streak", 10000, 10, 4, 750, 5},
		{"half time with streak four", 5000, 10, 3, 1050, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(true, tt.timeMs, tt.timer, tt.streak)
			require.Equal(t, tt.wantPoints, got.PointsEarned)
			require.Equal(t, tt.wantStreak, got.NewStreak)
			require.True(t, got.IsCorrect)
		})
	}
}

func TestCalculate_BoundsForEveryStreak(t *testing.T) {
	for streak := 0; streak < 8; streak++ {
		effective := streak + 1
		if effective > MaxStreakBonus {
			effective = MaxStreakBonus
		}

		fastest := Calculate(true, 0, 20, streak)
		slowest := Calculate(true, 20000, 20, streak)

		require.Equal(t, BasePoints*(10+effective)/10, fastest.PointsEarned)
		require.Equal(t, MinPoints*(10+effective)/10, slowest.PointsEarned)
	}
}

func TestCalculate_StreakResetsAfterIncorrect(t *testing.T) {
	first := Calculate(true, 5000, 15, 0)
	second := Calculate(false, 1000, 15, first.NewStreak)

	require.Equal(t, 1, first.NewStreak)
	require.Equal(t, 0, second.PointsEarned)
	require.Equal(t, 0, second.NewStreak)
}
