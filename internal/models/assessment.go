// backend/internal/models/assessment.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"assessment-system/internal/session"
)

type Quiz struct {
	ID             string     `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Title          string     `json:"title" gorm:"not null"`
	Subject        string     `json:"subject" gorm:"index"`
	TotalQuestions int        `json:"total_questions"`
	Questions      []Question `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
}

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

type Question struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt     time.Time `json:"created_at"`
	QuizID        string    `json:"quiz_id" gorm:"type:uuid;index"`
	Position      int       `json:"position"`
	QuestionText  string    `json:"question_text" gorm:"not null"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectAnswer string    `json:"correct_answer" gorm:"not null"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

type MockTest struct {
	ID              string             `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Title           string             `json:"title" gorm:"not null"`
	Description     string             `json:"description"`
	Subject         string             `json:"subject" gorm:"index"`
	DurationMinutes int                `json:"duration_minutes" gorm:"not null"`
	TotalQuestions  int                `json:"total_questions"`
	Questions       []MockTestQuestion `json:"questions,omitempty" gorm:"foreignKey:MockTestID"`
}

func (m *MockTest) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type MockTestQuestion struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt     time.Time `json:"created_at"`
	MockTestID    string    `json:"mock_test_id" gorm:"type:uuid;index"`
	Position      int       `json:"position"`
	QuestionText  string    `json:"question_text" gorm:"not null"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectAnswer string    `json:"correct_answer" gorm:"not null"`
}

func (q *MockTestQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// ToSession converts a stored question into the engine's read-only form.
func (q Question) ToSession() session.Question {
	return toSessionQuestion(q.ID, q.QuestionText, q.CorrectAnswer, q.OptionA, q.OptionB, q.OptionC, q.OptionD)
}

func (q MockTestQuestion) ToSession() session.Question {
	return toSessionQuestion(q.ID, q.QuestionText, q.CorrectAnswer, q.OptionA, q.OptionB, q.OptionC, q.OptionD)
}

func toSessionQuestion(id, text, correct string, options ...string) session.Question {
	opts := make(map[string]string, len(options))
	for i, o := range options {
		opts[session.OptionLabels[i]] = o
	}
	return session.Question{ID: id, Text: text, Options: opts, Correct: correct}
}

// QuizResult and MockTestResult are append-only; they are never updated.
type QuizResult struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         string    `json:"user_id" gorm:"type:uuid;index;not null"`
	QuizID         string    `json:"quiz_id" gorm:"type:uuid;index;not null"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_at"`
}

func (r *QuizResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type MockTestResult struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         string    `json:"user_id" gorm:"type:uuid;index;not null"`
	MockTestID     string    `json:"mock_test_id" gorm:"type:uuid;index;not null"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_at"`
}

func (r *MockTestResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ResultRow is one completed attempt as read for leaderboard aggregation.
type ResultRow struct {
	UserID string
	Name   string
	Score  int
}

type LeaderboardEntry struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	TotalScore     int    `json:"total_score"`
	TestsCompleted int    `json:"tests_completed"`
	AverageScore   int    `json:"average_score"`
}

// ResultSummary is a past attempt shown in the caller's history.
type ResultSummary struct {
	AssessmentID string    `json:"assessment_id"`
	Title        string    `json:"title"`
	Score        int       `json:"score"`
	Total        int       `json:"total"`
	Percentage   int       `json:"percentage"`
	Grade        string    `json:"grade"`
	CompletedAt  time.Time `json:"completed_at"`
}
