// backend/internal/assessment/service.go
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"assessment-system/internal/clock"
	"assessment-system/internal/models"
	"assessment-system/internal/session"
)

// MaxAttemptAge bounds how long an unfinished attempt is kept in memory.
const MaxAttemptAge = 24 * time.Hour

var (
	ErrNotFound        = errors.New("assessment not found")
	ErrInvalidKind     = errors.New("kind must be quiz or mock_test")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrForbidden       = errors.New("attempt belongs to another user")
	ErrUnavailable     = errors.New("assessment store unavailable")
)

type Repository interface {
	ListQuizzes(ctx context.Context, subject string) ([]models.Quiz, error)
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
	QuizQuestions(ctx context.Context, quizID string) ([]models.Question, error)
	ListMockTests(ctx context.Context) ([]models.MockTest, error)
	GetMockTest(ctx context.Context, id string) (*models.MockTest, error)
	MockTestQuestions(ctx context.Context, mockTestID string) ([]models.MockTestQuestion, error)
	CreateQuizResult(ctx context.Context, result *models.QuizResult) error
	CreateMockTestResult(ctx context.Context, result *models.MockTestResult) error
	UserResults(ctx context.Context, userID string, kind session.Kind) ([]models.ResultSummary, error)
}

type AssessmentCache interface {
	GetAssessment(ctx context.Context, kind, id string) (session.Assessment, error)
	SetAssessment(ctx context.Context, kind string, a session.Assessment) error
}

// ResultRecorder is told about every stored result.
type ResultRecorder interface {
	ResultRecorded(ctx context.Context, kind session.Kind)
}

// Publisher fans attempt events out to connected clients, one room per attempt.
type Publisher interface {
	BroadcastMessage(room, messageType string, data interface{})
	CloseRoom(room string)
}

type Options struct {
	Clock        clock.Clock
	AdvanceDelay time.Duration
	// Retention is how long a completed attempt stays readable.
	Retention time.Duration
}

// AttemptView is an attempt's current view together with its id.
type AttemptView struct {
	AttemptID string `json:"attempt_id"`
	session.View
}

type attempt struct {
	id      string
	userID  string
	session *session.Session
	evict   clock.Timer
}

type Service struct {
	repo      Repository
	cache     AssessmentCache
	boards    ResultRecorder
	publisher Publisher

	clock        clock.Clock
	advanceDelay time.Duration
	retention    time.Duration

	mu       sync.Mutex
	attempts map[string]*attempt
}

// NewService builds the attempt registry. cache, boards and publisher may be nil.
func NewService(repo Repository, cache AssessmentCache, boards ResultRecorder, publisher Publisher, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Service{
		repo:         repo,
		cache:        cache,
		boards:       boards,
		publisher:    publisher,
		clock:        opts.Clock,
		advanceDelay: opts.AdvanceDelay,
		retention:    opts.Retention,
		attempts:     make(map[string]*attempt),
	}
}

func (s *Service) ListQuizzes(ctx context.Context, subject string) ([]models.Quiz, error) {
	return s.repo.ListQuizzes(ctx, subject)
}

func (s *Service) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	return s.repo.GetQuiz(ctx, id)
}

func (s *Service) ListMockTests(ctx context.Context) ([]models.MockTest, error) {
	return s.repo.ListMockTests(ctx)
}

func (s *Service) GetMockTest(ctx context.Context, id string) (*models.MockTest, error) {
	return s.repo.GetMockTest(ctx, id)
}

// Results lists a member's past attempts of a kind with their grades.
func (s *Service) Results(ctx context.Context, userID string, kind session.Kind) ([]models.ResultSummary, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	results, err := s.repo.UserResults(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Percentage = session.Percentage(results[i].Score, results[i].Total)
		results[i].Grade = session.Grade(results[i].Percentage)
	}
	return results, nil
}

func (s *Service) source(kind session.Kind) *questionSource {
	return &questionSource{kind: kind, repo: s.repo, cache: s.cache}
}

// Start opens a new attempt for userID and loads it. The assessment must be
// readable before the attempt is registered; a later question load failure
// leaves the attempt in load_failed so the caller can retry it.
func (s *Service) Start(ctx context.Context, userID string, kind session.Kind, assessmentID string) (AttemptView, error) {
	if !kind.Valid() {
		return AttemptView{}, ErrInvalidKind
	}
	if assessmentID == "" {
		return AttemptView{}, ErrNotFound
	}

	src := s.source(kind)
	if _, err := src.LoadAssessment(ctx, assessmentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return AttemptView{}, ErrNotFound
		}
		log.Printf("Error looking up %s %s: %v", kind, assessmentID, err)
		return AttemptView{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	a := &attempt{id: uuid.NewString(), userID: userID}
	a.session = session.New(session.Config{
		Kind:         kind,
		AssessmentID: assessmentID,
		UserID:       userID,
		Source:       src,
		Store:        &resultStore{repo: s.repo, boards: s.boards},
		Clock:        s.clock,
		AdvanceDelay: s.advanceDelay,
		Notify:       func(e session.Event) { s.onEvent(a.id, e) },
	})

	s.mu.Lock()
	s.attempts[a.id] = a
	a.evict = s.clock.AfterFunc(MaxAttemptAge, func() { s.expire(a.id) })
	s.mu.Unlock()
	log.Printf("Attempt %s opened: %s %s for user %s", a.id, kind, assessmentID, userID)

	if err := a.session.Load(ctx); err != nil {
		var lerr *session.LoadError
		if !errors.As(err, &lerr) {
			return AttemptView{}, err
		}
	}
	return viewOf(a), nil
}

// Attempt returns the current view of an attempt owned by userID.
func (s *Service) Attempt(userID, attemptID string) (AttemptView, error) {
	a, err := s.lookup(userID, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	return viewOf(a), nil
}

// JoinRoom authorizes a realtime subscriber and returns the view it starts from.
func (s *Service) JoinRoom(userID, attemptID string) (interface{}, error) {
	return s.Attempt(userID, attemptID)
}

func (s *Service) RetryLoad(ctx context.Context, userID, attemptID string) (AttemptView, error) {
	return s.apply(userID, attemptID, func(sess *session.Session) error {
		return sess.RetryLoad(ctx)
	})
}

func (s *Service) Begin(userID, attemptID string) (AttemptView, error) {
	return s.apply(userID, attemptID, (*session.Session).Begin)
}

func (s *Service) Answer(userID, attemptID, questionID, option string) (AttemptView, error) {
	return s.apply(userID, attemptID, func(sess *session.Session) error {
		return sess.RecordAnswer(questionID, option)
	})
}

func (s *Service) Previous(userID, attemptID string) (AttemptView, error) {
	return s.apply(userID, attemptID, (*session.Session).GoToPrevious)
}

func (s *Service) Next(userID, attemptID string) (AttemptView, error) {
	return s.apply(userID, attemptID, (*session.Session).GoToNext)
}

func (s *Service) RequestSubmit(userID, attemptID string) (AttemptView, error) {
	return s.apply(userID, attemptID, (*session.Session).RequestSubmit)
}

func (s *Service) CancelSubmit(userID, attemptID string) (AttemptView, error) {
	return s.apply(userID, attemptID, (*session.Session).CancelSubmit)
}

func (s *Service) ConfirmSubmit(ctx context.Context, userID, attemptID string) (AttemptView, error) {
	return s.apply(userID, attemptID, func(sess *session.Session) error {
		_, err := sess.ConfirmSubmit(ctx)
		return err
	})
}

func (s *Service) RetrySubmit(ctx context.Context, userID, attemptID string) (AttemptView, error) {
	return s.apply(userID, attemptID, func(sess *session.Session) error {
		_, err := sess.RetrySubmit(ctx)
		return err
	})
}

// Abandon discards an attempt. A completed attempt is dropped from memory;
// its stored result is kept.
func (s *Service) Abandon(userID, attemptID string) error {
	a, err := s.lookup(userID, attemptID)
	if err != nil {
		return err
	}
	if err := a.session.Abandon(); err != nil {
		return err
	}
	s.remove(a.id)
	return nil
}

func (s *Service) lookup(userID, attemptID string) (*attempt, error) {
	s.mu.Lock()
	a, ok := s.attempts[attemptID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if a.userID != userID {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *Service) apply(userID, attemptID string, op func(*session.Session) error) (AttemptView, error) {
	a, err := s.lookup(userID, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	err = op(a.session)
	return viewOf(a), err
}

func (s *Service) onEvent(attemptID string, e session.Event) {
	if s.publisher != nil {
		s.publisher.BroadcastMessage(attemptID, string(e.Type), AttemptView{AttemptID: attemptID, View: e.View})
	}
	switch e.Type {
	case session.EventCompleted:
		s.retain(attemptID)
	case session.EventAbandoned:
		s.remove(attemptID)
	}
}

// retain replaces the attempt's expiry with the completed-attempt retention.
func (s *Service) retain(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return
	}
	if a.evict != nil {
		a.evict.Stop()
	}
	a.evict = s.clock.AfterFunc(s.retention, func() { s.remove(attemptID) })
}

// expire abandons an attempt that outlived MaxAttemptAge.
func (s *Service) expire(attemptID string) {
	s.mu.Lock()
	a, ok := s.attempts[attemptID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := a.session.Abandon(); errors.Is(err, session.ErrSubmitInFlight) {
		s.mu.Lock()
		a.evict = s.clock.AfterFunc(time.Minute, func() { s.expire(attemptID) })
		s.mu.Unlock()
		return
	}
	log.Printf("Attempt %s expired", attemptID)
	s.remove(attemptID)
}

func (s *Service) remove(attemptID string) {
	s.mu.Lock()
	a, ok := s.attempts[attemptID]
	if ok {
		delete(s.attempts, attemptID)
		if a.evict != nil {
			a.evict.Stop()
		}
	}
	s.mu.Unlock()
	if ok && s.publisher != nil {
		s.publisher.CloseRoom(attemptID)
	}
}

// Active reports how many attempts are held in memory.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

func viewOf(a *attempt) AttemptView {
	return AttemptView{AttemptID: a.id, View: a.session.View()}
}
