package session

import (
	"fmt"
	"math"
)

// Score counts the questions whose stored answer matches the correct option.
// Unanswered questions never count.
func Score(questions []Question, answers map[string]string) int {
	score := 0
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok && a == q.Correct {
			score++
		}
	}
	return score
}

// Percentage returns score/total as a whole percentage, 0 for an empty attempt.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) * 100 / float64(total)))
}

// Grade maps a percentage to the label shown on the result screen.
func Grade(percent int) string {
	switch {
	case percent >= 90:
		return "Excellent"
	case percent >= 80:
		return "Very Good"
	case percent >= 70:
		return "Good"
	case percent >= 60:
		return "Satisfactory"
	default:
		return "Needs Improvement"
	}
}

// FormatRemaining renders a countdown as minutes:seconds.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
