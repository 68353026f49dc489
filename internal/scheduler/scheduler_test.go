package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medical-scheduler-api/internal/model"
)

// memStore mimics the reminder-window query and the conditional mark.
type memStore struct {
	mu       sync.Mutex
	appts    map[string]*model.Appointment
	queryErr error
	markErr  error
	entered  chan struct{} // closed-over signal for overlap test
	release  chan struct{}
}

func newMemStore(appts ...*model.Appointment) *memStore {
	m := &memStore{appts: make(map[string]*model.Appointment)}
	for _, a := range appts {
		m.appts[a.ID] = a
	}
	return m
}

func (m *memStore) DueForReminder(_ context.Context, now time.Time, window time.Duration) ([]model.DueReminder, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var due []model.DueReminder
	for _, a := range m.appts {
		if a.ReminderSent {
			continue
		}
		if a.StartTime.After(now) && !a.StartTime.After(now.Add(window)) {
			due = append(due, model.DueReminder{Appointment: *a, SchedulerName: "Dr. Adams"})
		}
	}
	return due, nil
}

func (m *memStore) MarkReminderSentIfUnset(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	a, ok := m.appts[id]
	if !ok || a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	return true, nil
}

func (m *memStore) reminded(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appts[id].ReminderSent
}

type memNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *memNotifier) NotifyReminder(_ context.Context, a *model.Appointment, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, a.ID)
	return nil
}

func (n *memNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func appointmentStartingIn(id string, d time.Duration, now time.Time) *model.Appointment {
	return &model.Appointment{
		ID:          id,
		Title:       "Checkup",
		SchedulerID: "doc-1",
		RecipientID: "pat-1",
		StartTime:   now.Add(d),
		EndTime:     now.Add(d + 30*time.Minute),
	}
}

func newTestScheduler(st Store, n Notifier) *Scheduler {
	return New(st, n, time.Minute, 5*time.Minute, zerolog.Nop())
}

func TestEndToEnd(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := newMemStore(appointmentStartingIn("appt-1", 4*time.Minute, now))
	n := &memNotifier{}
	s := newTestScheduler(st, n)
	s.now = func() time.Time { return now }

	s.TriggerOnce(context.Background())
	if n.count() != 1 {
		t.Fatalf("first tick: expected 1 dispatch, got %d", n.count())
	}
	if !st.reminded("appt-1") {
		t.Fatal("expected reminder_sent = true after first tick")
	}

	s.TriggerOnce(context.Background())
	if n.count() != 1 {
		t.Errorf("second tick: expected no further dispatches, got %d", n.count())
	}
}

func TestWindowBounds(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := newMemStore(
		appointmentStartingIn("inside", 6*time.Minute, now),       // == now+window, included
		appointmentStartingIn("outside", 7*time.Minute, now),      // past the window
		appointmentStartingIn("already-started", -time.Minute, now), // in the past
	)
	n := &memNotifier{}
	s := newTestScheduler(st, n)
	s.now = func() time.Time { return now }

	s.TriggerOnce(context.Background())

	if n.count() != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", n.count())
	}
	if !st.reminded("inside") {
		t.Error("in-window appointment not reminded")
	}
	if st.reminded("outside") || st.reminded("already-started") {
		t.Error("out-of-window appointment was reminded")
	}
}

func TestAlreadySentNeverSelected(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := appointmentStartingIn("appt-1", 3*time.Minute, now)
	a.ReminderSent = true
	st := newMemStore(a)
	n := &memNotifier{}
	s := newTestScheduler(st, n)
	s.now = func() time.Time { return now }

	s.TriggerOnce(context.Background())
	if n.count() != 0 {
		t.Errorf("already-sent appointment dispatched %d times", n.count())
	}
}

func TestDispatchFailureLeavesEligible(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := newMemStore(appointmentStartingIn("appt-1", 4*time.Minute, now))
	n := &memNotifier{err: errors.New("dispatch blew up")}
	s := newTestScheduler(st, n)
	s.now = func() time.Time { return now }

	s.TriggerOnce(context.Background())
	if st.reminded("appt-1") {
		t.Fatal("failed dispatch must not mark the appointment")
	}

	// dispatcher recovers, next tick delivers
	n.err = nil
	s.TriggerOnce(context.Background())
	if n.count() != 1 {
		t.Errorf("expected recovery dispatch, got %d", n.count())
	}
	if !st.reminded("appt-1") {
		t.Error("expected marked after successful retry")
	}
}

func TestOneFailureDoesNotAbortBatch(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := newMemStore(
		appointmentStartingIn("appt-1", 2*time.Minute, now),
		appointmentStartingIn("appt-2", 3*time.Minute, now),
		appointmentStartingIn("appt-3", 4*time.Minute, now),
	)
	n := &memNotifier{}
	s := newTestScheduler(st, n)
	s.now = func() time.Time { return now }

	// marking fails: every appointment is still attempted, none marked
	st.markErr = errors.New("store down")
	s.TriggerOnce(context.Background())
	if n.count() != 3 {
		t.Errorf("all appointments should be attempted, got %d", n.count())
	}
	for _, id := range []string{"appt-1", "appt-2", "appt-3"} {
		if st.reminded(id) {
			t.Errorf("%s marked despite store error", id)
		}
	}
}

func TestQueryErrorEndsTick(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := newMemStore(appointmentStartingIn("appt-1", 4*time.Minute, now))
	st.queryErr = errors.New("connection refused")
	n := &memNotifier{}
	s := newTestScheduler(st, n)
	s.now = func() time.Time { return now }

	s.TriggerOnce(context.Background())
	if n.count() != 0 {
		t.Errorf("tick must end early on query error, got %d dispatches", n.count())
	}

	// store recovers, next tick works
	st.queryErr = nil
	s.TriggerOnce(context.Background())
	if n.count() != 1 {
		t.Errorf("expected dispatch after recovery, got %d", n.count())
	}
}

func TestMarkConflictSkippedSilently(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := appointmentStartingIn("appt-1", 4*time.Minute, now)
	st := newMemStore(a)
	n := &memNotifier{}
	s := newTestScheduler(st, n)
	s.now = func() time.Time { return now }

	s.TriggerOnce(context.Background())

	// a second scheduler observing the same record: mark reports no transition
	marked, err := st.MarkReminderSentIfUnset(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if marked {
		t.Error("second mark must report no transition")
	}
}

func TestScansNeverOverlap(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := newMemStore(appointmentStartingIn("appt-1", 4*time.Minute, now))
	st.entered = make(chan struct{}, 1)
	st.release = make(chan struct{})
	n := &memNotifier{}
	s := newTestScheduler(st, n)
	s.now = func() time.Time { return now }

	go s.TriggerOnce(context.Background())
	<-st.entered // first scan is now inside the store query

	// a second trigger while scanning must be a no-op
	s.TriggerOnce(context.Background())
	if n.count() != 0 {
		t.Fatal("overlapping scan ran")
	}

	close(st.release)
	// let the first scan finish
	deadline := time.After(2 * time.Second)
	for n.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("first scan never completed")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	if n.count() != 1 {
		t.Errorf("expected exactly 1 dispatch, got %d", n.count())
	}
}

func TestStartStopIdempotent(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := newMemStore()
	n := &memNotifier{}
	s := New(st, n, time.Hour, 5*time.Minute, zerolog.Nop())
	s.now = func() time.Time { return now }

	s.Start()
	s.Start() // warns, no-op
	s.Stop()
	s.Stop() // no-op after stopped

	// restartable
	s.Start()
	s.Stop()
}
