package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assessment-system/internal/clock"
)

type fakeSource struct {
	mu         sync.Mutex
	assessment Assessment
	questions  []Question
	err        error
	calls      int
}

func (f *fakeSource) LoadAssessment(ctx context.Context, id string) (Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Assessment{}, f.err
	}
	return f.assessment, nil
}

func (f *fakeSource) LoadQuestions(ctx context.Context, id string) ([]Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

type fakeStore struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (f *fakeStore) SubmitResult(ctx context.Context, r Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.results = append(f.results, r)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func questions(correct ...string) []Question {
	qs := make([]Question, len(correct))
	for i, c := range correct {
		id := string(rune('a' + i))
		qs[i] = Question{
			ID:      "q" + id,
			Text:    "question " + id,
			Options: map[string]string{"A": "one", "B": "two", "C": "three", "D": "four"},
			Correct: c,
		}
	}
	return qs
}

type harness struct {
	clock  *clock.Mock
	source *fakeSource
	store  *fakeStore
	events *eventLog
	s      *Session
}

func newHarness(t *testing.T, kind Kind, minutes int, qs []Question) *harness {
	t.Helper()
	h := &harness{
		clock: clock.NewMock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		source: &fakeSource{
			assessment: Assessment{ID: "t1", Title: "Mock", DurationMinutes: minutes, TotalQuestions: len(qs)},
			questions:  qs,
		},
		store:  &fakeStore{},
		events: &eventLog{},
	}
	h.s = New(Config{
		Kind:         kind,
		AssessmentID: "t1",
		UserID:       "u1",
		Source:       h.source,
		Store:        h.store,
		Clock:        h.clock,
		Notify:       h.events.record,
	})
	return h
}

func mustLoad(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestMockTestExpiresAndAutoSubmits(t *testing.T) {
	h := newHarness(t, KindMockTest, 1, questions("A", "B", "C"))
	mustLoad(t, h.s)
	if got := h.s.State(); got != StateAwaitingStart {
		t.Fatalf("state after load = %s, want %s", got, StateAwaitingStart)
	}
	if err := h.s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if err := h.s.RecordAnswer("qa", "A"); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	h.s.GoToNext()
	if err := h.s.RecordAnswer("qb", "D"); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	h.s.GoToNext()

	h.clock.Advance(59 * time.Second)
	v := h.s.View()
	if v.State != StateInProgress || *v.RemainingSeconds != 1 || v.Remaining != "0:01" {
		t.Fatalf("at 59s got state=%s remaining=%v (%s)", v.State, *v.RemainingSeconds, v.Remaining)
	}

	h.clock.Advance(time.Second)

	if got := h.s.State(); got != StateCompleted {
		t.Fatalf("state after expiry = %s, want completed", got)
	}
	if h.store.count() != 1 {
		t.Fatalf("stored %d results, want 1", h.store.count())
	}
	r := h.store.results[0]
	if r.Score != 1 || r.Total != 3 || r.UserID != "u1" || r.Kind != KindMockTest {
		t.Errorf("result = %+v, want score 1 of 3 for u1", r)
	}
	if h.events.count(EventSubmitting) != 1 {
		t.Errorf("submitting events = %d, want 1", h.events.count(EventSubmitting))
	}
	if h.clock.Pending() != 0 {
		t.Errorf("%d timers still pending after completion", h.clock.Pending())
	}
}

func TestQuizAutoAdvancesAndSubmits(t *testing.T) {
	h := newHarness(t, KindQuiz, 0, questions("A", "C"))
	mustLoad(t, h.s)
	if got := h.s.State(); got != StateInProgress {
		t.Fatalf("quiz state after load = %s", got)
	}

	if err := h.s.RecordAnswer("qa", "A"); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	v := h.s.View()
	if !v.Revealed || v.Correct == nil || !*v.Correct || v.CorrectOption != "A" {
		t.Fatalf("reveal view = %+v", v)
	}

	h.clock.Advance(999 * time.Millisecond)
	if got := h.s.View().Position; got != 0 {
		t.Fatalf("advanced before delay elapsed, position %d", got)
	}
	h.clock.Advance(time.Millisecond)
	v = h.s.View()
	if v.Position != 1 || v.Revealed || v.Selected != "" {
		t.Fatalf("after advance view = %+v", v)
	}

	if err := h.s.RecordAnswer("qb", "B"); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	if v := h.s.View(); v.Correct == nil || *v.Correct {
		t.Errorf("wrong answer revealed as correct: %+v", v)
	}
	h.clock.Advance(time.Second)

	r, ok := h.s.Result()
	if !ok {
		t.Fatalf("no result, state %s", h.s.State())
	}
	if r.Score != 1 || r.Total != 2 {
		t.Errorf("result = %d/%d, want 1/2", r.Score, r.Total)
	}
	if h.store.count() != 1 {
		t.Errorf("stored %d results, want 1", h.store.count())
	}
}

func TestQuizRejectsOutOfOrderAnswers(t *testing.T) {
	h := newHarness(t, KindQuiz, 0, questions("A", "B", "C"))
	mustLoad(t, h.s)

	tests := []struct {
		name     string
		question string
		label    string
	}{
		{"not current question", "qb", "A"},
		{"unknown question", "zz", "A"},
		{"unknown option", "qa", "E"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.s.RecordAnswer(tt.question, tt.label); !IsInvalidTransition(err) {
				t.Errorf("RecordAnswer(%s, %s) err = %v, want invalid transition", tt.question, tt.label, err)
			}
		})
	}

	if err := h.s.RecordAnswer("qa", "B"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if err := h.s.RecordAnswer("qa", "A"); !IsInvalidTransition(err) {
		t.Errorf("second answer err = %v, want invalid transition", err)
	}
	if got := h.s.View().Selected; got != "B" {
		t.Errorf("selected = %q after rejected overwrite, want B", got)
	}
	if err := h.s.GoToNext(); !IsInvalidTransition(err) {
		t.Errorf("quiz navigation err = %v, want invalid transition", err)
	}
	if err := h.s.Begin(); !IsInvalidTransition(err) {
		t.Errorf("quiz Begin err = %v, want invalid transition", err)
	}
}

func TestMockTestNavigationClamps(t *testing.T) {
	h := newHarness(t, KindMockTest, 10, questions("A", "B", "C"))
	mustLoad(t, h.s)
	h.s.Begin()

	if err := h.s.GoToPrevious(); err != nil {
		t.Fatalf("GoToPrevious at 0: %v", err)
	}
	if got := h.s.View().Position; got != 0 {
		t.Fatalf("position = %d after previous at 0", got)
	}

	h.s.GoToNext()
	h.s.GoToNext()
	if got := h.s.View().Position; got != 2 {
		t.Fatalf("position = %d, want 2", got)
	}
	if err := h.s.GoToNext(); err != nil {
		t.Fatalf("GoToNext at last: %v", err)
	}
	v := h.s.View()
	if v.Position != 2 || !v.ConfirmPending {
		t.Fatalf("next at last: position=%d confirm=%v", v.Position, v.ConfirmPending)
	}

	if err := h.s.CancelSubmit(); err != nil {
		t.Fatalf("CancelSubmit: %v", err)
	}
	v = h.s.View()
	if v.ConfirmPending || v.State != StateInProgress || v.Position != 2 {
		t.Errorf("after cancel view = %+v", v)
	}
	if h.store.count() != 0 {
		t.Errorf("cancelled submission wrote %d results", h.store.count())
	}
}

func TestMockTestAnswersOverwriteVisitedQuestions(t *testing.T) {
	h := newHarness(t, KindMockTest, 10, questions("A", "B", "C"))
	mustLoad(t, h.s)
	h.s.Begin()

	if err := h.s.RecordAnswer("qc", "C"); !IsInvalidTransition(err) {
		t.Fatalf("answer unvisited err = %v, want invalid transition", err)
	}
	h.s.RecordAnswer("qa", "B")
	h.s.GoToNext()
	h.s.GoToPrevious()
	if err := h.s.RecordAnswer("qa", "A"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	h.s.GoToNext()
	h.s.RecordAnswer("qb", "B")
	h.s.RequestSubmit()

	r, err := h.s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}
	if r.Score != 2 {
		t.Errorf("score = %d, want 2 after overwrite", r.Score)
	}
}

func TestSubmitTwiceWritesOneResult(t *testing.T) {
	h := newHarness(t, KindMockTest, 10, questions("A", "B"))
	mustLoad(t, h.s)
	h.s.Begin()
	h.s.RecordAnswer("qa", "A")
	h.s.RequestSubmit()

	first, err := h.s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := h.s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if _, err := h.s.RetrySubmit(context.Background()); err != nil {
		t.Fatalf("retry after completion: %v", err)
	}
	if h.store.count() != 1 {
		t.Fatalf("stored %d results, want 1", h.store.count())
	}
	if *first != *second {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
	if err := h.s.RecordAnswer("qb", "B"); !IsInvalidTransition(err) {
		t.Errorf("answer after completion err = %v", err)
	}
}

func TestExpiryWinsOverPendingConfirmation(t *testing.T) {
	h := newHarness(t, KindMockTest, 1, questions("A"))
	mustLoad(t, h.s)
	h.s.Begin()
	h.s.RecordAnswer("qa", "A")
	h.clock.Advance(59 * time.Second)
	h.s.RequestSubmit()

	h.clock.Advance(time.Second)
	if _, err := h.s.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("confirm after expiry: %v", err)
	}

	if h.events.count(EventSubmitting) != 1 {
		t.Errorf("submitting events = %d, want 1", h.events.count(EventSubmitting))
	}
	if h.store.count() != 1 {
		t.Errorf("stored %d results, want 1", h.store.count())
	}
}

func TestManualSubmitStopsCountdown(t *testing.T) {
	h := newHarness(t, KindMockTest, 1, questions("A"))
	mustLoad(t, h.s)
	h.s.Begin()
	h.clock.Advance(30 * time.Second)
	h.s.RequestSubmit()
	if _, err := h.s.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}

	h.clock.Advance(time.Minute)
	if h.events.count(EventSubmitting) != 1 {
		t.Errorf("submitting events = %d, want 1", h.events.count(EventSubmitting))
	}
	if got := *h.s.View().RemainingSeconds; got != 30 {
		t.Errorf("remaining = %d after submit, want frozen at 30", got)
	}
}

func TestCountdownWaitsForBegin(t *testing.T) {
	h := newHarness(t, KindMockTest, 2, questions("A"))
	mustLoad(t, h.s)
	h.clock.Advance(5 * time.Minute)

	v := h.s.View()
	if v.State != StateAwaitingStart || *v.RemainingSeconds != 120 || v.Remaining != "2:00" {
		t.Fatalf("before begin view = state %s remaining %d", v.State, *v.RemainingSeconds)
	}
	if v.Assessment == nil || v.Assessment.DurationMinutes != 2 || v.Assessment.TotalQuestions != 1 {
		t.Errorf("assessment metadata missing from start gate: %+v", v.Assessment)
	}
	if err := h.s.RecordAnswer("qa", "A"); !IsInvalidTransition(err) {
		t.Errorf("answer before begin err = %v", err)
	}
}

func TestSubmissionFailureKeepsAttempt(t *testing.T) {
	h := newHarness(t, KindMockTest, 10, questions("A", "B"))
	h.store.err = errors.New("backend unavailable")
	mustLoad(t, h.s)
	h.s.Begin()
	h.s.RecordAnswer("qa", "A")
	h.s.RequestSubmit()

	_, err := h.s.ConfirmSubmit(context.Background())
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SubmissionError", err)
	}
	if got := h.s.State(); got != StateSubmitting {
		t.Fatalf("state = %s, want submitting", got)
	}
	if v := h.s.View(); v.Error == "" || v.Answered != 1 {
		t.Errorf("failure view = %+v", v)
	}

	h.store.err = nil
	r, err := h.s.RetrySubmit(context.Background())
	if err != nil {
		t.Fatalf("RetrySubmit: %v", err)
	}
	if r.Score != 1 || h.store.count() != 1 {
		t.Errorf("score %d, stored %d", r.Score, h.store.count())
	}
	if h.s.LastError() != nil {
		t.Errorf("LastError = %v after success", h.s.LastError())
	}
}

func TestExpiryWithFailingStoreAwaitsRetry(t *testing.T) {
	h := newHarness(t, KindMockTest, 1, questions("A"))
	h.store.err = errors.New("timeout")
	mustLoad(t, h.s)
	h.s.Begin()
	h.clock.Advance(time.Minute)

	if got := h.s.State(); got != StateSubmitting {
		t.Fatalf("state = %s, want submitting", got)
	}
	if h.events.count(EventSubmitFailed) != 1 {
		t.Errorf("submit_failed events = %d", h.events.count(EventSubmitFailed))
	}
	h.store.err = nil
	if _, err := h.s.RetrySubmit(context.Background()); err != nil {
		t.Fatalf("RetrySubmit: %v", err)
	}
	if got := h.s.State(); got != StateCompleted {
		t.Errorf("state = %s, want completed", got)
	}
}

func TestLoadFailureAndRetry(t *testing.T) {
	h := newHarness(t, KindMockTest, 5, questions("A"))
	h.source.err = errors.New("network down")

	err := h.s.Load(context.Background())
	var lerr *LoadError
	if !errors.As(err, &lerr) || lerr.AssessmentID != "t1" {
		t.Fatalf("err = %v, want LoadError for t1", err)
	}
	if got := h.s.State(); got != StateLoadFailed {
		t.Fatalf("state = %s, want load_failed", got)
	}
	if err := h.s.Load(context.Background()); !IsInvalidTransition(err) {
		t.Errorf("second Load err = %v, want invalid transition", err)
	}

	h.source.err = nil
	if err := h.s.RetryLoad(context.Background()); err != nil {
		t.Fatalf("RetryLoad: %v", err)
	}
	if got := h.s.State(); got != StateAwaitingStart {
		t.Errorf("state = %s after retry", got)
	}
	if err := h.s.RetryLoad(context.Background()); !IsInvalidTransition(err) {
		t.Errorf("RetryLoad after success err = %v", err)
	}
}

func TestLoadRejectsBadQuestionSets(t *testing.T) {
	dup := questions("A", "B")
	dup[1].ID = dup[0].ID

	tests := []struct {
		name    string
		kind    Kind
		minutes int
		qs      []Question
	}{
		{"duplicate ids", KindQuiz, 0, dup},
		{"mock test without duration", KindMockTest, 0, questions("A")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.kind, tt.minutes, tt.qs)
			var lerr *LoadError
			if err := h.s.Load(context.Background()); !errors.As(err, &lerr) {
				t.Errorf("err = %v, want LoadError", err)
			}
		})
	}
}

func TestAbandonStopsEverything(t *testing.T) {
	h := newHarness(t, KindMockTest, 1, questions("A", "B"))
	mustLoad(t, h.s)
	h.s.Begin()
	h.s.RecordAnswer("qa", "A")

	if err := h.s.Abandon(); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	h.clock.Advance(5 * time.Minute)

	if got := h.s.State(); got != StateAbandoned {
		t.Errorf("state = %s", got)
	}
	if h.store.count() != 0 {
		t.Errorf("abandoned attempt wrote %d results", h.store.count())
	}
	if h.clock.Pending() != 0 {
		t.Errorf("%d timers pending after abandon", h.clock.Pending())
	}
	if err := h.s.GoToNext(); !IsInvalidTransition(err) {
		t.Errorf("navigation after abandon err = %v", err)
	}
	if err := h.s.Abandon(); err != nil {
		t.Errorf("second Abandon: %v", err)
	}
}

func TestAbandonCancelsPendingQuizAdvance(t *testing.T) {
	h := newHarness(t, KindQuiz, 0, questions("A"))
	mustLoad(t, h.s)
	h.s.RecordAnswer("qa", "A")
	h.s.Abandon()
	h.clock.Advance(time.Second)

	if h.store.count() != 0 {
		t.Errorf("abandoned quiz wrote %d results", h.store.count())
	}
}

func TestSubmitWithoutUserFails(t *testing.T) {
	h := newHarness(t, KindMockTest, 5, questions("A"))
	h.s.userID = ""
	mustLoad(t, h.s)
	h.s.Begin()
	h.s.RequestSubmit()

	_, err := h.s.ConfirmSubmit(context.Background())
	if !errors.Is(err, ErrNoUser) {
		t.Fatalf("err = %v, want ErrNoUser", err)
	}
	if h.store.count() != 0 {
		t.Errorf("wrote %d results without a user", h.store.count())
	}
}

func TestEmptyQuizSubmitsZero(t *testing.T) {
	h := newHarness(t, KindQuiz, 0, nil)
	mustLoad(t, h.s)
	if v := h.s.View(); v.Question != nil || v.Total != 0 {
		t.Fatalf("empty quiz view = %+v", v)
	}
	h.s.RequestSubmit()
	r, err := h.s.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}
	if r.Score != 0 || r.Total != 0 {
		t.Errorf("result = %+v", r)
	}
	if v := h.s.View(); v.Grade != "Needs Improvement" || *v.Percentage != 0 {
		t.Errorf("grade = %q percentage = %d", v.Grade, *v.Percentage)
	}
}

func TestConcurrentActionsDuringCountdown(t *testing.T) {
	h := newHarness(t, KindMockTest, 1, questions("A", "B", "C", "D"))
	mustLoad(t, h.s)
	h.s.Begin()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 60; i++ {
			h.clock.Advance(time.Second)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.s.GoToNext()
			h.s.RecordAnswer("qa", "A")
			h.s.GoToPrevious()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			h.s.RequestSubmit()
			h.s.ConfirmSubmit(context.Background())
		}
	}()
	wg.Wait()

	if got := h.s.State(); got != StateCompleted {
		t.Fatalf("state = %s, want completed", got)
	}
	if h.store.count() != 1 {
		t.Errorf("stored %d results, want 1", h.store.count())
	}
	if h.events.count(EventSubmitting) != 1 {
		t.Errorf("submitting events = %d, want 1", h.events.count(EventSubmitting))
	}
}
