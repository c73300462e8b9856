// backend/internal/assessment/repository.go
package assessment

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"assessment-system/internal/models"
	"assessment-system/internal/session"
)

type GormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) ListQuizzes(ctx context.Context, subject string) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	q := r.db.WithContext(ctx).Order("created_at desc")
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	if err := q.Find(&quizzes).Error; err != nil {
		log.Printf("Error listing quizzes: %v", err)
		return nil, err
	}
	return quizzes, nil
}

func (r *GormRepository) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&quiz).Error; err != nil {
		return nil, notFound(err, "quiz", id)
	}
	return &quiz, nil
}

func (r *GormRepository) QuizQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("position asc, created_at asc").
		Find(&questions).Error
	if err != nil {
		log.Printf("Error getting questions for quiz %s: %v", quizID, err)
		return nil, err
	}
	return questions, nil
}

func (r *GormRepository) ListMockTests(ctx context.Context) ([]models.MockTest, error) {
	var tests []models.MockTest
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&tests).Error; err != nil {
		log.Printf("Error listing mock tests: %v", err)
		return nil, err
	}
	return tests, nil
}

func (r *GormRepository) GetMockTest(ctx context.Context, id string) (*models.MockTest, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var test models.MockTest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&test).Error; err != nil {
		return nil, notFound(err, "mock test", id)
	}
	return &test, nil
}

func (r *GormRepository) MockTestQuestions(ctx context.Context, mockTestID string) ([]models.MockTestQuestion, error) {
	var questions []models.MockTestQuestion
	err := r.db.WithContext(ctx).
		Where("mock_test_id = ?", mockTestID).
		Order("position asc, created_at asc").
		Find(&questions).Error
	if err != nil {
		log.Printf("Error getting questions for mock test %s: %v", mockTestID, err)
		return nil, err
	}
	return questions, nil
}

func (r *GormRepository) CreateQuizResult(ctx context.Context, result *models.QuizResult) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		log.Printf("Error saving quiz result for user %s: %v", result.UserID, err)
		return err
	}
	return nil
}

func (r *GormRepository) CreateMockTestResult(ctx context.Context, result *models.MockTestResult) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		log.Printf("Error saving mock test result for user %s: %v", result.UserID, err)
		return err
	}
	return nil
}

// ResultRows returns every completed attempt of a kind, oldest first, with
// the member's profile name when one exists.
func (r *GormRepository) ResultRows(ctx context.Context, kind session.Kind, subject string) ([]models.ResultRow, error) {
	t, ok := tablesFor(kind)
	if !ok {
		return nil, ErrInvalidKind
	}

	var rows []models.ResultRow
	q := r.db.WithContext(ctx).
		Table(t.results+" AS r").
		Select("r.user_id AS user_id, COALESCE(p.name, '') AS name, r.score AS score").
		Joins("LEFT JOIN profiles p ON p.user_id = r.user_id").
		Joins("JOIN " + t.assessments + " a ON a.id = r." + t.foreignKey)
	if subject != "" {
		q = q.Where("a.subject = ?", subject)
	}
	if err := q.Order("r.completed_at asc").Scan(&rows).Error; err != nil {
		log.Printf("Error getting %s result rows: %v", kind, err)
		return nil, err
	}
	return rows, nil
}

func (r *GormRepository) Subjects(ctx context.Context, kind session.Kind) ([]string, error) {
	t, ok := tablesFor(kind)
	if !ok {
		return nil, ErrInvalidKind
	}

	var subjects []string
	err := r.db.WithContext(ctx).
		Table(t.assessments).
		Where("subject <> ''").
		Distinct("subject").
		Order("subject asc").
		Pluck("subject", &subjects).Error
	if err != nil {
		log.Printf("Error listing %s subjects: %v", kind, err)
		return nil, err
	}
	return subjects, nil
}

// UserResults lists one member's past attempts of a kind, newest first.
func (r *GormRepository) UserResults(ctx context.Context, userID string, kind session.Kind) ([]models.ResultSummary, error) {
	t, ok := tablesFor(kind)
	if !ok {
		return nil, ErrInvalidKind
	}

	var out []models.ResultSummary
	err := r.db.WithContext(ctx).
		Table(t.results+" AS r").
		Select("r." + t.foreignKey + " AS assessment_id, a.title AS title, r.score AS score, r.total_questions AS total, r.completed_at AS completed_at").
		Joins("JOIN "+t.assessments+" a ON a.id = r."+t.foreignKey).
		Where("r.user_id = ?", userID).
		Order("r.completed_at desc").
		Scan(&out).Error
	if err != nil {
		log.Printf("Error getting %s results for user %s: %v", kind, userID, err)
		return nil, err
	}
	return out, nil
}

type kindTables struct {
	results     string
	assessments string
	foreignKey  string
}

func tablesFor(kind session.Kind) (kindTables, bool) {
	switch kind {
	case session.KindQuiz:
		return kindTables{results: "quiz_results", assessments: "quizzes", foreignKey: "quiz_id"}, true
	case session.KindMockTest:
		return kindTables{results: "mock_test_results", assessments: "mock_tests", foreignKey: "mock_test_id"}, true
	}
	return kindTables{}, false
}

// validID reports whether id can name a row; ids are uuid columns and
// postgres rejects anything else with a syntax error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	log.Printf("Error getting %s %s: %v", what, id, err)
	return err
}
