// Package clock schedules cancellable callbacks. Sessions use it for the
// quiz auto-advance delay and the mock-test countdown so both can be
// stopped when the session leaves the state that armed them.
package clock

import (
	"sync"
	"time"

	benclock "github.com/benbjohnson/clock"
)

// Timer is a scheduled callback that has not necessarily fired yet.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already
	// fired or was stopped before.
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct {
	c benclock.Clock
}

// Real returns a Clock backed by the wall clock.
func Real() Clock { return wallClock{c: benclock.New()} }

func (w wallClock) Now() time.Time { return w.c.Now() }

func (w wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return w.c.AfterFunc(d, f)
}

// Mock is a manually advanced Clock. Advance returns only after every
// callback due inside the window has finished, including callbacks
// scheduled by callbacks along the way.
type Mock struct {
	mock *benclock.Mock

	mu      sync.Mutex
	pending map[*mockTimer]struct{}
}

type mockTimer struct {
	owner *Mock
	timer *benclock.Timer
	when  time.Time
	done  chan struct{}
}

func NewMock(start time.Time) *Mock {
	m := benclock.NewMock()
	m.Set(start)
	return &Mock{mock: m, pending: make(map[*mockTimer]struct{})}
}

func (m *Mock) Now() time.Time { return m.mock.Now() }

func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	t := &mockTimer{owner: m, done: make(chan struct{})}
	m.mu.Lock()
	t.when = m.mock.Now().Add(d)
	m.pending[t] = struct{}{}
	m.mu.Unlock()
	t.timer = m.mock.AfterFunc(d, func() {
		defer close(t.done)
		f()
	})
	return t
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	target := m.mock.Now().Add(d)
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		wait := next.when.Sub(m.mock.Now())
		if wait < 0 {
			wait = 0
		}
		m.mock.Add(wait)
		<-next.done
	}
	if rest := target.Sub(m.mock.Now()); rest > 0 {
		m.mock.Add(rest)
	}
}

// Pending reports how many callbacks are still scheduled.
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// nextDue removes and returns the earliest callback due by target.
func (m *Mock) nextDue(target time.Time) *mockTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *mockTimer
	for t := range m.pending {
		if t.when.After(target) {
			continue
		}
		if next == nil || t.when.Before(next.when) {
			next = t
		}
	}
	if next != nil {
		delete(m.pending, next)
	}
	return next
}

func (t *mockTimer) Stop() bool {
	m := t.owner
	m.mu.Lock()
	_, live := m.pending[t]
	delete(m.pending, t)
	m.mu.Unlock()
	if !live {
		return false
	}
	return t.timer.Stop()
}
