package session

type EventType string

const (
	EventLoaded          EventType = "loaded"
	EventLoadFailed      EventType = "load_failed"
	EventStarted         EventType = "started"
	EventRevealed        EventType = "revealed"
	EventAnswered        EventType = "answered"
	EventAdvanced        EventType = "advance"
	EventNavigated       EventType = "navigated"
	EventTick            EventType = "tick"
	EventSubmitRequested EventType = "submit_requested"
	EventSubmitCancelled EventType = "submit_cancelled"
	EventSubmitting      EventType = "submitting"
	EventSubmitFailed    EventType = "submit_failed"
	EventCompleted       EventType = "completed"
	EventAbandoned       EventType = "abandoned"
)

type Event struct {
	Type EventType `json:"type"`
	View View      `json:"view"`
}

// View is what the presentation layer renders for an attempt.
type View struct {
	State      State       `json:"state"`
	Kind       Kind        `json:"kind"`
	Assessment *Assessment `json:"assessment,omitempty"`
	Position   int         `json:"position"`
	Total      int         `json:"total"`
	Question   *Question   `json:"question,omitempty"`
	Selected   string      `json:"selected,omitempty"`
	Answered   int         `json:"answered"`

	// Quiz reveal: set once the current question has been answered.
	Revealed      bool   `json:"revealed,omitempty"`
	Correct       *bool  `json:"correct,omitempty"`
	CorrectOption string `json:"correct_option,omitempty"`

	RemainingSeconds *int   `json:"remaining_seconds,omitempty"`
	Remaining        string `json:"remaining,omitempty"`

	ConfirmPending bool    `json:"confirm_pending,omitempty"`
	Result         *Result `json:"result,omitempty"`
	Percentage     *int    `json:"percentage,omitempty"`
	Grade          string  `json:"grade,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// View returns a snapshot of the attempt.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		State:          s.state,
		Kind:           s.kind,
		Position:       s.position,
		Total:          len(s.questions),
		Answered:       len(s.answers),
		ConfirmPending: s.confirmPending,
	}
	if s.state != StateNotStarted && s.state != StateLoadFailed {
		a := s.assessment
		v.Assessment = &a
	}
	if (s.state == StateInProgress || s.state == StateSubmitting) && s.position < len(s.questions) {
		q := s.questions[s.position]
		v.Question = &q
		v.Selected = s.answers[q.ID]
		if s.kind == KindQuiz && s.revealed {
			correct := v.Selected == q.Correct
			v.Revealed = true
			v.Correct = &correct
			v.CorrectOption = q.Correct
		}
	}
	if s.kind == KindMockTest && s.state != StateNotStarted && s.state != StateLoadFailed {
		r := s.remaining
		v.RemainingSeconds = &r
		v.Remaining = FormatRemaining(r)
	}
	if s.result != nil {
		r := *s.result
		p := Percentage(r.Score, r.Total)
		v.Result = &r
		v.Percentage = &p
		v.Grade = Grade(p)
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	return v
}

// emit queues an event; it is delivered by unlockAndFlush.
func (s *Session) emit(t EventType) {
	if s.notify == nil {
		return
	}
	s.outbox = append(s.outbox, Event{Type: t, View: s.viewLocked()})
}

func (s *Session) unlockAndFlush() {
	events := s.outbox
	s.outbox = nil
	s.mu.Unlock()
	for _, e := range events {
		s.notify(e)
	}
}
