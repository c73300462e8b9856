package session

import (
	"context"
	"time"
)

type Kind string

const (
	KindQuiz     Kind = "quiz"
	KindMockTest Kind = "mock_test"
)

func (k Kind) Valid() bool {
	return k == KindQuiz || k == KindMockTest
}

type State string

const (
	StateNotStarted    State = "not_started"
	StateLoadFailed    State = "load_failed"
	StateAwaitingStart State = "awaiting_start"
	StateInProgress    State = "in_progress"
	StateSubmitting    State = "submitting"
	StateCompleted     State = "completed"
	StateAbandoned     State = "abandoned"
)

// OptionLabels lists the answer labels every question carries, in display order.
var OptionLabels = []string{"A", "B", "C", "D"}

func validLabel(label string) bool {
	for _, l := range OptionLabels {
		if l == label {
			return true
		}
	}
	return false
}

type Question struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	Options map[string]string `json:"options"`
	Correct string            `json:"-"`
}

// Assessment is the metadata of a quiz or mock test.
type Assessment struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Subject         string `json:"subject,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	TotalQuestions  int    `json:"total_questions"`
}

type Result struct {
	UserID       string    `json:"user_id"`
	AssessmentID string    `json:"assessment_id"`
	Kind         Kind      `json:"kind"`
	Score        int       `json:"score"`
	Total        int       `json:"total"`
	CompletedAt  time.Time `json:"completed_at"`
}

// QuestionSource loads the fixed question set of an assessment.
type QuestionSource interface {
	LoadAssessment(ctx context.Context, assessmentID string) (Assessment, error)
	LoadQuestions(ctx context.Context, assessmentID string) ([]Question, error)
}

// ResultStore persists completed attempts. It is append-only.
type ResultStore interface {
	SubmitResult(ctx context.Context, r Result) error
}
