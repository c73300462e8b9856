// Package session runs a single quiz or mock-test attempt: it loads the
// question set, tracks position and answers, drives the countdown for mock
// tests and the auto-advance for quizzes, scores the attempt and hands the
// result to the result store exactly once.
//
// Every user action and every scheduled callback is applied as one
// mutex-guarded transition. Calls to the question source and result store
// are made with the lock released and guarded by in-flight flags, so a slow
// load or write never blocks the countdown or a concurrent reader.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"assessment-system/internal/clock"
)

// DefaultAdvanceDelay is how long a revealed quiz answer stays on screen
// before the next question is shown.
const DefaultAdvanceDelay = time.Second

type Config struct {
	Kind         Kind
	AssessmentID string
	UserID       string
	Source       QuestionSource
	Store        ResultStore
	Clock        clock.Clock
	AdvanceDelay time.Duration
	// Notify receives every transition. It is called without the session
	// lock held and may call back into the session.
	Notify func(Event)
}

type Session struct {
	mu sync.Mutex

	kind         Kind
	assessmentID string
	userID       string
	source       QuestionSource
	store        ResultStore
	clock        clock.Clock
	advanceDelay time.Duration
	notify       func(Event)

	ctx    context.Context
	cancel context.CancelFunc

	state      State
	assessment Assessment
	questions  []Question
	index      map[string]int
	answers    map[string]string
	position   int
	visited    int
	revealed   bool
	remaining  int

	confirmPending bool
	loading        bool
	persisting     bool

	tick    clock.Timer
	advance clock.Timer

	result  *Result
	lastErr error
	outbox  []Event
}

func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = DefaultAdvanceDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		kind:         cfg.Kind,
		assessmentID: cfg.AssessmentID,
		userID:       cfg.UserID,
		source:       cfg.Source,
		store:        cfg.Store,
		clock:        cfg.Clock,
		advanceDelay: cfg.AdvanceDelay,
		notify:       cfg.Notify,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateNotStarted,
		answers:      map[string]string{},
	}
}

func (s *Session) Kind() Kind           { return s.kind }
func (s *Session) AssessmentID() string { return s.assessmentID }
func (s *Session) UserID() string       { return s.userID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the persisted result once the session is completed.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Load fetches the assessment. Quizzes start immediately; mock tests wait
// in awaiting_start for Begin.
func (s *Session) Load(ctx context.Context) error {
	return s.load(ctx, StateNotStarted)
}

// RetryLoad re-attempts a failed load.
func (s *Session) RetryLoad(ctx context.Context) error {
	return s.load(ctx, StateLoadFailed)
}

func (s *Session) load(ctx context.Context, from State) error {
	s.mu.Lock()
	if s.state != from {
		defer s.mu.Unlock()
		return invalid("cannot load from state %s", s.state)
	}
	if s.loading {
		s.mu.Unlock()
		return invalid("load already in progress")
	}
	s.loading = true
	s.mu.Unlock()

	a, questions, err := s.fetch(ctx)

	s.mu.Lock()
	s.loading = false
	if s.state == StateAbandoned {
		s.mu.Unlock()
		return invalid("session abandoned during load")
	}
	if err != nil {
		lerr := &LoadError{AssessmentID: s.assessmentID, Err: err}
		log.Printf("Session load failed for %s %s: %v", s.kind, s.assessmentID, err)
		s.state = StateLoadFailed
		s.lastErr = lerr
		s.emit(EventLoadFailed)
		s.unlockAndFlush()
		return lerr
	}

	s.assessment = a
	s.questions = questions
	s.index = make(map[string]int, len(questions))
	for i, q := range questions {
		s.index[q.ID] = i
	}
	s.position, s.visited = 0, 0
	s.lastErr = nil
	if s.kind == KindMockTest {
		s.remaining = a.DurationMinutes * 60
		s.state = StateAwaitingStart
		s.emit(EventLoaded)
	} else {
		s.state = StateInProgress
		s.emit(EventStarted)
	}
	s.unlockAndFlush()
	return nil
}

func (s *Session) fetch(ctx context.Context) (Assessment, []Question, error) {
	var a Assessment
	if s.kind == KindMockTest {
		var err error
		a, err = s.source.LoadAssessment(ctx, s.assessmentID)
		if err != nil {
			return Assessment{}, nil, err
		}
		if a.DurationMinutes <= 0 {
			return Assessment{}, nil, fmt.Errorf("mock test %s has no duration", s.assessmentID)
		}
	} else {
		a.ID = s.assessmentID
	}

	questions, err := s.source.LoadQuestions(ctx, s.assessmentID)
	if err != nil {
		return Assessment{}, nil, err
	}
	seen := make(map[string]bool, len(questions))
	out := make([]Question, len(questions))
	for i, q := range questions {
		if seen[q.ID] {
			return Assessment{}, nil, fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true
		opts := make(map[string]string, len(q.Options))
		for k, v := range q.Options {
			opts[k] = v
		}
		q.Options = opts
		out[i] = q
	}
	a.TotalQuestions = len(out)
	return a, out, nil
}

// Begin starts a loaded mock test and its countdown.
func (s *Session) Begin() error {
	s.mu.Lock()
	if s.kind != KindMockTest || s.state != StateAwaitingStart {
		defer s.mu.Unlock()
		return invalid("cannot begin %s in state %s", s.kind, s.state)
	}
	s.state = StateInProgress
	s.tick = s.clock.AfterFunc(time.Second, s.onTick)
	s.emit(EventStarted)
	s.unlockAndFlush()
	return nil
}

// RecordAnswer stores the selected option for a question. Quizzes accept one
// answer for the current question and advance after the reveal delay; mock
// tests accept overwrites for any question already visited.
func (s *Session) RecordAnswer(questionID, label string) error {
	s.mu.Lock()
	if s.state != StateInProgress {
		defer s.mu.Unlock()
		return invalid("cannot answer in state %s", s.state)
	}
	if !validLabel(label) {
		defer s.mu.Unlock()
		return invalid("unknown option %q", label)
	}
	idx, ok := s.index[questionID]
	if !ok {
		defer s.mu.Unlock()
		return invalid("question %s is not part of this attempt", questionID)
	}

	switch s.kind {
	case KindQuiz:
		if idx != s.position {
			defer s.mu.Unlock()
			return invalid("question %s is not the current question", questionID)
		}
		if s.revealed {
			defer s.mu.Unlock()
			return invalid("question %s already answered", questionID)
		}
		s.answers[questionID] = label
		s.revealed = true
		pos := s.position
		s.advance = s.clock.AfterFunc(s.advanceDelay, func() { s.onAdvance(pos) })
		s.emit(EventRevealed)
	default:
		if idx > s.visited {
			defer s.mu.Unlock()
			return invalid("question %s has not been visited", questionID)
		}
		s.answers[questionID] = label
		s.emit(EventAnswered)
	}
	s.unlockAndFlush()
	return nil
}

// GoToPrevious moves back one question; at the first question it does nothing.
func (s *Session) GoToPrevious() error {
	s.mu.Lock()
	if err := s.checkNavigable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.position > 0 {
		s.position--
		s.emit(EventNavigated)
	}
	s.unlockAndFlush()
	return nil
}

// GoToNext moves forward one question. At the last question it requests
// submission instead.
func (s *Session) GoToNext() error {
	s.mu.Lock()
	if err := s.checkNavigable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.position < len(s.questions)-1 {
		s.position++
		if s.position > s.visited {
			s.visited = s.position
		}
		s.emit(EventNavigated)
	} else if !s.confirmPending {
		s.confirmPending = true
		s.emit(EventSubmitRequested)
	}
	s.unlockAndFlush()
	return nil
}

func (s *Session) checkNavigable() error {
	if s.kind != KindMockTest {
		return invalid("navigation is only available in mock tests")
	}
	if s.state != StateInProgress {
		return invalid("cannot navigate in state %s", s.state)
	}
	return nil
}

// RequestSubmit asks for confirmation before the attempt is committed. The
// countdown keeps running while confirmation is pending.
func (s *Session) RequestSubmit() error {
	s.mu.Lock()
	if s.state != StateInProgress {
		defer s.mu.Unlock()
		return invalid("cannot submit in state %s", s.state)
	}
	if !s.confirmPending {
		s.confirmPending = true
		s.emit(EventSubmitRequested)
	}
	s.unlockAndFlush()
	return nil
}

// CancelSubmit rejects a pending confirmation and returns to the attempt.
func (s *Session) CancelSubmit() error {
	s.mu.Lock()
	if s.state != StateInProgress || !s.confirmPending {
		defer s.mu.Unlock()
		return invalid("no submission awaiting confirmation")
	}
	s.confirmPending = false
	s.emit(EventSubmitCancelled)
	s.unlockAndFlush()
	return nil
}

// ConfirmSubmit commits a pending submission. Calling it again after the
// attempt completed returns the same result without writing a second one.
func (s *Session) ConfirmSubmit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	switch {
	case s.state == StateCompleted, s.state == StateSubmitting:
		s.mu.Unlock()
		return s.commit(ctx)
	case s.state == StateInProgress && s.confirmPending:
		s.enterSubmitting()
		s.unlockAndFlush()
		return s.commit(ctx)
	}
	defer s.mu.Unlock()
	return nil, invalid("no submission awaiting confirmation")
}

// RetrySubmit re-attempts a result write that failed.
func (s *Session) RetrySubmit(ctx context.Context) (*Result, error) {
	return s.commit(ctx)
}

// Abandon tears the attempt down. Timers stop and no result is written.
func (s *Session) Abandon() error {
	s.mu.Lock()
	if s.state == StateCompleted || s.state == StateAbandoned {
		s.mu.Unlock()
		return nil
	}
	if s.persisting {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	s.state = StateAbandoned
	s.confirmPending = false
	s.stopTimers()
	s.emit(EventAbandoned)
	s.unlockAndFlush()
	s.cancel()
	return nil
}

func (s *Session) onTick() {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.tick = nil
		s.mu.Unlock()
		return
	}
	s.remaining--
	if s.remaining > 0 {
		s.tick = s.clock.AfterFunc(time.Second, s.onTick)
		s.emit(EventTick)
		s.unlockAndFlush()
		return
	}
	s.remaining = 0
	s.tick = nil
	log.Printf("Time expired for mock test %s (user %s), submitting", s.assessmentID, s.userID)
	s.enterSubmitting()
	s.unlockAndFlush()
	s.commit(s.ctx)
}

func (s *Session) onAdvance(pos int) {
	s.mu.Lock()
	if s.state != StateInProgress || s.position != pos || !s.revealed {
		s.mu.Unlock()
		return
	}
	s.advance = nil
	if pos < len(s.questions)-1 {
		s.position++
		s.visited = s.position
		s.revealed = false
		s.emit(EventAdvanced)
		s.unlockAndFlush()
		return
	}
	s.enterSubmitting()
	s.unlockAndFlush()
	s.commit(s.ctx)
}

// enterSubmitting must be called with the lock held and state in_progress.
func (s *Session) enterSubmitting() {
	s.state = StateSubmitting
	s.confirmPending = false
	s.stopTimers()
	s.emit(EventSubmitting)
}

func (s *Session) commit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	switch {
	case s.state == StateCompleted:
		r := *s.result
		s.mu.Unlock()
		return &r, nil
	case s.state != StateSubmitting:
		defer s.mu.Unlock()
		return nil, invalid("cannot commit in state %s", s.state)
	case s.persisting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if s.userID == "" {
		serr := &SubmissionError{Err: ErrNoUser}
		s.lastErr = serr
		s.emit(EventSubmitFailed)
		s.unlockAndFlush()
		return nil, serr
	}
	r := Result{
		UserID:       s.userID,
		AssessmentID: s.assessmentID,
		Kind:         s.kind,
		Score:        Score(s.questions, s.answers),
		Total:        len(s.questions),
		CompletedAt:  s.clock.Now(),
	}
	s.persisting = true
	s.mu.Unlock()

	err := s.store.SubmitResult(ctx, r)

	s.mu.Lock()
	s.persisting = false
	if err != nil {
		log.Printf("Error saving %s result for user %s: %v", s.kind, s.userID, err)
		serr := &SubmissionError{Err: err}
		s.lastErr = serr
		s.emit(EventSubmitFailed)
		s.unlockAndFlush()
		return nil, serr
	}
	s.state = StateCompleted
	s.result = &r
	s.lastErr = nil
	s.emit(EventCompleted)
	s.unlockAndFlush()
	s.cancel()
	out := r
	return &out, nil
}

func (s *Session) stopTimers() {
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
	if s.advance != nil {
		s.advance.Stop()
		s.advance = nil
	}
}

// LastError returns the most recent load or submission failure, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsInvalidTransition reports whether err rejected an out-of-order call.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
