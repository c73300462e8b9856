// Package seed loads quizzes and mock tests from a YAML question bank.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"assessment-system/internal/models"
	"assessment-system/internal/session"
)

type Bank struct {
	Quizzes   []QuizEntry     `yaml:"quizzes"`
	MockTests []MockTestEntry `yaml:"mock_tests"`
}

type QuizEntry struct {
	Title     string          `yaml:"title"`
	Subject   string          `yaml:"subject"`
	Questions []QuestionEntry `yaml:"questions"`
}

type MockTestEntry struct {
	Title           string          `yaml:"title"`
	Description     string          `yaml:"description"`
	Subject         string          `yaml:"subject"`
	DurationMinutes int             `yaml:"duration_minutes"`
	Questions       []QuestionEntry `yaml:"questions"`
}

type QuestionEntry struct {
	Text    string            `yaml:"text"`
	Options map[string]string `yaml:"options"`
	Correct string            `yaml:"correct"`
}

// Parse decodes and validates a question bank.
func Parse(r io.Reader) (*Bank, error) {
	var bank Bank
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&bank); err != nil {
		if errors.Is(err, io.EOF) {
			return &bank, nil
		}
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	return &bank, nil
}

func (b *Bank) Validate() error {
	for i, q := range b.Quizzes {
		if strings.TrimSpace(q.Title) == "" {
			return fmt.Errorf("quiz %d: title is required", i+1)
		}
		if err := validateQuestions(q.Questions); err != nil {
			return fmt.Errorf("quiz %q: %w", q.Title, err)
		}
	}
	for i, m := range b.MockTests {
		if strings.TrimSpace(m.Title) == "" {
			return fmt.Errorf("mock test %d: title is required", i+1)
		}
		if m.DurationMinutes <= 0 {
			return fmt.Errorf("mock test %q: duration_minutes must be positive", m.Title)
		}
		if err := validateQuestions(m.Questions); err != nil {
			return fmt.Errorf("mock test %q: %w", m.Title, err)
		}
	}
	return nil
}

func validateQuestions(qs []QuestionEntry) error {
	for i, q := range qs {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d: text is required", i+1)
		}
		for _, label := range session.OptionLabels {
			if strings.TrimSpace(q.Options[label]) == "" {
				return fmt.Errorf("question %d: option %s is required", i+1, label)
			}
		}
		if len(q.Options) != len(session.OptionLabels) {
			return fmt.Errorf("question %d: only options A-D are allowed", i+1)
		}
		if _, ok := q.Options[q.Correct]; !ok {
			return fmt.Errorf("question %d: correct answer %q is not an option", i+1, q.Correct)
		}
	}
	return nil
}

// Models converts the bank into rows ready to insert. Question positions
// follow file order.
func (b *Bank) Models() ([]models.Quiz, []models.MockTest) {
	quizzes := make([]models.Quiz, 0, len(b.Quizzes))
	for _, q := range b.Quizzes {
		quiz := models.Quiz{Title: q.Title, Subject: q.Subject, TotalQuestions: len(q.Questions)}
		for i, e := range q.Questions {
			quiz.Questions = append(quiz.Questions, models.Question{
				Position:      i,
				QuestionText:  e.Text,
				OptionA:       e.Options["A"],
				OptionB:       e.Options["B"],
				OptionC:       e.Options["C"],
				OptionD:       e.Options["D"],
				CorrectAnswer: e.Correct,
			})
		}
		quizzes = append(quizzes, quiz)
	}

	tests := make([]models.MockTest, 0, len(b.MockTests))
	for _, m := range b.MockTests {
		test := models.MockTest{
			Title:           m.Title,
			Description:     m.Description,
			Subject:         m.Subject,
			DurationMinutes: m.DurationMinutes,
			TotalQuestions:  len(m.Questions),
		}
		for i, e := range m.Questions {
			test.Questions = append(test.Questions, models.MockTestQuestion{
				Position:      i,
				QuestionText:  e.Text,
				OptionA:       e.Options["A"],
				OptionB:       e.Options["B"],
				OptionC:       e.Options["C"],
				OptionD:       e.Options["D"],
				CorrectAnswer: e.Correct,
			})
		}
		tests = append(tests, test)
	}
	return quizzes, tests
}

type Summary struct {
	Quizzes   int
	MockTests int
	Questions int
}

// Apply inserts the bank in one transaction.
func Apply(ctx context.Context, db *gorm.DB, b *Bank) (Summary, error) {
	quizzes, tests := b.Models()
	var sum Summary
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range quizzes {
			if err := tx.Create(&quizzes[i]).Error; err != nil {
				return fmt.Errorf("create quiz %q: %w", quizzes[i].Title, err)
			}
			sum.Quizzes++
			sum.Questions += len(quizzes[i].Questions)
		}
		for i := range tests {
			if err := tx.Create(&tests[i]).Error; err != nil {
				return fmt.Errorf("create mock test %q: %w", tests[i].Title, err)
			}
			sum.MockTests++
			sum.Questions += len(tests[i].Questions)
		}
		return nil
	})
	if err != nil {
		log.Printf("Error seeding question bank: %v", err)
		return Summary{}, err
	}
	return sum, nil
}
