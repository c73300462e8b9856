package assessment

import (
	"context"
	"log"

	"assessment-system/internal/models"
	"assessment-system/internal/session"
)

// questionSource feeds one assessment kind into a session. Mock-test
// metadata is read through the cache.
type questionSource struct {
	kind  session.Kind
	repo  Repository
	cache AssessmentCache
}

func (s *questionSource) LoadAssessment(ctx context.Context, id string) (session.Assessment, error) {
	if s.cache != nil {
		if a, err := s.cache.GetAssessment(ctx, string(s.kind), id); err == nil {
			return a, nil
		}
	}

	var a session.Assessment
	switch s.kind {
	case session.KindMockTest:
		m, err := s.repo.GetMockTest(ctx, id)
		if err != nil {
			return session.Assessment{}, err
		}
		a = mockTestAssessment(m)
	default:
		q, err := s.repo.GetQuiz(ctx, id)
		if err != nil {
			return session.Assessment{}, err
		}
		a = quizAssessment(q)
	}

	if s.cache != nil {
		if err := s.cache.SetAssessment(ctx, string(s.kind), a); err != nil {
			log.Printf("Error caching %s %s: %v", s.kind, id, err)
		}
	}
	return a, nil
}

func (s *questionSource) LoadQuestions(ctx context.Context, id string) ([]session.Question, error) {
	if s.kind == session.KindMockTest {
		rows, err := s.repo.MockTestQuestions(ctx, id)
		if err != nil {
			return nil, err
		}
		out := make([]session.Question, len(rows))
		for i, q := range rows {
			out[i] = q.ToSession()
		}
		return out, nil
	}

	rows, err := s.repo.QuizQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]session.Question, len(rows))
	for i, q := range rows {
		out[i] = q.ToSession()
	}
	return out, nil
}

// resultStore appends completed attempts to the kind's results table and
// drops the cached boards they affect.
type resultStore struct {
	repo   Repository
	boards ResultRecorder
}

func (s *resultStore) SubmitResult(ctx context.Context, r session.Result) error {
	var err error
	switch r.Kind {
	case session.KindMockTest:
		err = s.repo.CreateMockTestResult(ctx, &models.MockTestResult{
			UserID:         r.UserID,
			MockTestID:     r.AssessmentID,
			Score:          r.Score,
			TotalQuestions: r.Total,
			CompletedAt:    r.CompletedAt,
		})
	case session.KindQuiz:
		err = s.repo.CreateQuizResult(ctx, &models.QuizResult{
			UserID:         r.UserID,
			QuizID:         r.AssessmentID,
			Score:          r.Score,
			TotalQuestions: r.Total,
			CompletedAt:    r.CompletedAt,
		})
	default:
		return ErrInvalidKind
	}
	if err != nil {
		return err
	}
	if s.boards != nil {
		s.boards.ResultRecorded(ctx, r.Kind)
	}
	return nil
}

func quizAssessment(q *models.Quiz) session.Assessment {
	return session.Assessment{
		ID:             q.ID,
		Title:          q.Title,
		Subject:        q.Subject,
		TotalQuestions: q.TotalQuestions,
	}
}

func mockTestAssessment(m *models.MockTest) session.Assessment {
	return session.Assessment{
		ID:              m.ID,
		Title:           m.Title,
		Subject:         m.Subject,
		DurationMinutes: m.DurationMinutes,
		TotalQuestions:  m.TotalQuestions,
	}
}
