package leaderboard

import (
	"math"
	"sort"

	"assessment-system/internal/models"
)

// UnknownName labels rows whose display name could not be resolved.
const UnknownName = "Unknown"

// Aggregate groups per-attempt rows by user and ranks users by total score.
// Users with equal totals keep the order in which they first appear. The
// average is rounded half away from zero.
func Aggregate(rows []models.ResultRow) []models.LeaderboardEntry {
	byUser := make(map[string]int)
	entries := make([]models.LeaderboardEntry, 0)

	for _, row := range rows {
		i, ok := byUser[row.UserID]
		if !ok {
			name := row.Name
			if name == "" {
				name = UnknownName
			}
			entries = append(entries, models.LeaderboardEntry{UserID: row.UserID, Name: name})
			i = len(entries) - 1
			byUser[row.UserID] = i
		}
		entries[i].TotalScore += row.Score
		entries[i].TestsCompleted++
	}

	for i := range entries {
		e := &entries[i]
		e.AverageScore = int(math.Round(float64(e.TotalScore) / float64(e.TestsCompleted)))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalScore > entries[j].TotalScore
	})
	return entries
}
