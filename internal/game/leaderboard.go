package game

import (
	"sort"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/samber/lo"
)

const (
	questionEndTopN = 5
	podiumSize      = 3
)

// BuildLeaderboard ranks players by total score, highest first. Players with
// equal scores keep their join order.
func BuildLeaderboard(players []models.Player) []models.LeaderboardEntry {
	ranked := make([]models.Player, len(players))
	copy(ranked, players)

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].JoinOrder < ranked[j].JoinOrder })
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].TotalScore > ranked[j].TotalScore })

	return lo.Map(ranked, func(p models.Player, i int) models.LeaderboardEntry {
		return models.LeaderboardEntry{
			Rank:          i + 1,
			PlayerID:      p.ID,
			Nickname:      p.Nickname,
			TotalScore:    p.TotalScore,
			CurrentStreak: p.CurrentStreak,
			IsHost:        p.IsHost,
			IsConnected:   p.IsConnected,
		}
	})
}

// Top returns at most n leading entries.
func Top(entries []models.LeaderboardEntry, n int) []models.LeaderboardEntry {
	return lo.Slice(entries, 0, n)
}

func entryFor(entries []models.LeaderboardEntry, playerID uint) (models.LeaderboardEntry, bool) {
	return lo.Find(entries, func(e models.LeaderboardEntry) bool { return e.PlayerID == playerID })
}

// RankOf returns the 1-based rank of a player, or 0 if absent.
func RankOf(entries []models.LeaderboardEntry, playerID uint) int {
	entry, ok := entryFor(entries, playerID)
	if !ok {
		return 0
	}
	return entry.Rank
}
