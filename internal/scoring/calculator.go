// Package scoring turns an answer into points and an updated streak.
package scoring

const (
	BasePoints       = 1000
	MinPoints        = 500
	MaxStreakBonus   = 5
	streakStepTenths = 1 // STREAK_MULTIPLIER of 0.1 expressed in tenths
)

// Result is the outcome of scoring one answer.
type Result struct {
	PointsEarned int
	NewStreak    int
	IsCorrect    bool
}

// Calculate scores a single answer. Incorrect answers earn nothing and reset
// the streak. Correct answers earn between MinPoints and BasePoints depending
// on how fast they came in, multiplied by a streak bonus of 10% per
// consecutive correct answer capped at MaxStreakBonus.
//
// timerSeconds must be positive.
func Calculate(isCorrect bool, answerTimeMs int64, timerSeconds int, currentStreak int) Result {
	if !isCorrect {
		return Result{}
	}

	timerMs := int64(timerSeconds) * 1000
	remaining := timerMs - answerTimeMs
	if remaining < 0 {
		remaining = 0
	}
	if remaining > timerMs {
		remaining = timerMs
	}

	speedPoints := MinPoints + int((BasePoints-MinPoints)*remaining/timerMs)

	newStreak := currentStreak + 1
	effective := newStreak
	if effective > MaxStreakBonus {
		effective = MaxStreakBonus
	}

	// floor(speed * (1 + effective*0.1)) computed in tenths so the result is exact.
	points := speedPoints * (10 + effective*streakStepTenths) / 10

	return Result{
		PointsEarned: points,
		NewStreak:    newStreak,
		IsCorrect:    true,
	}
}
