package table

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
)

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type fakeSource struct {
	mu       sync.Mutex
	version  int64
	expenses []core.Expense
	accounts []core.Account

	updateErr  error
	deleteErr  error
	restoreErr error
	// snapshotErrs fails that many following Snapshot calls.
	snapshotErrs int
	restored     []core.Expense
	updated      []core.Expense
	// stale, when set, is returned instead of the current snapshot once.
	stale *Snapshot
}

var errBackend = errors.New("backend unavailable")

func (s *fakeSource) Snapshot(context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshotErrs > 0 {
		s.snapshotErrs--
		return Snapshot{}, errBackend
	}
	if s.stale != nil {
		snap := *s.stale
		s.stale = nil
		return snap, nil
	}
	return Snapshot{
		Version:  s.version,
		Expenses: append([]core.Expense(nil), s.expenses...),
		Accounts: append([]core.Account(nil), s.accounts...),
	}, nil
}

func (s *fakeSource) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.expenses {
		if s.expenses[i].ID == e.ID {
			s.expenses[i] = e
			s.updated = append(s.updated, e)
			s.version++
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *fakeSource) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i := range s.expenses {
		if s.expenses[i].ID == id {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			s.version++
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *fakeSource) RestoreExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreErr != nil {
		return s.restoreErr
	}
	s.restored = append(s.restored, e)
	s.expenses = append(s.expenses, e)
	sort.Slice(s.expenses, func(i, j int) bool { return s.expenses[i].ID < s.expenses[j].ID })
	s.version++
	return nil
}

func (s *fakeSource) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return true
		}
	}
	return false
}
