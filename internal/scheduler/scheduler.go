package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"medical-scheduler-api/internal/model"
)

// Store is the slice of the record store the scheduler consumes.
type Store interface {
	// DueForReminder returns appointments with reminder_sent = false and
	// start time in (now, now+window].
	DueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]model.DueReminder, error)
	// MarkReminderSentIfUnset flips reminder_sent false->true atomically
	// and reports whether this call performed the transition.
	MarkReminderSentIfUnset(ctx context.Context, appointmentID string) (bool, error)
}

// Notifier delivers a reminder for one appointment.
type Notifier interface {
	NotifyReminder(ctx context.Context, a *model.Appointment, counterpartName string) error
}

// Scheduler polls the store on a fixed interval and delivers each due
// reminder exactly once. Two states: idle and scanning. Ticks never
// overlap; a tick that fires mid-scan is dropped.
type Scheduler struct {
	store    Store
	notifier Notifier
	interval time.Duration
	lead     time.Duration
	log      zerolog.Logger
	now      func() time.Time

	scanning atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(store Store, notifier Notifier, interval, lead time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		notifier: notifier,
		interval: interval,
		lead:     lead,
		log:      log.With().Str("component", "reminder-scheduler").Logger(),
		now:      time.Now,
	}
}

// Start spawns the recurring tick. Idempotent: a second Start logs a
// warning and does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.log.Warn().Msg("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Info().
		Dur("interval", s.interval).
		Dur("lead", s.lead).
		Msg("reminder scheduler started")

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	// scan once immediately, then on every tick
	s.scan(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// Stop cancels future ticks and waits for an in-flight scan to finish so
// partially processed batches are never dropped mid-way.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("reminder scheduler stopped")
}

// TriggerOnce runs the scan body synchronously, independent of the
// timer. Intended for operational and test use.
func (s *Scheduler) TriggerOnce(ctx context.Context) {
	s.scan(ctx)
}

func (s *Scheduler) scan(ctx context.Context) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.log.Debug().Msg("scan already in flight, skipping tick")
		return
	}
	defer s.scanning.Store(false)

	// one extra minute absorbs tick jitter so a slightly late tick does
	// not miss an appointment at the edge of the window
	window := s.lead + time.Minute
	now := s.now()

	due, err := s.store.DueForReminder(ctx, now, window)
	if err != nil {
		// nothing was mutated; the next tick retries naturally
		s.log.Error().Err(err).Msg("querying due reminders failed, ending tick")
		return
	}
	if len(due) == 0 {
		return
	}
	s.log.Info().Int("count", len(due)).Msg("appointments due for reminder")

	for i := range due {
		s.remind(ctx, &due[i])
	}
}

// remind handles one appointment. Failures are contained: they never
// abort the rest of the batch or the scheduler itself.
func (s *Scheduler) remind(ctx context.Context, due *model.DueReminder) {
	a := &due.Appointment

	if err := s.notifier.NotifyReminder(ctx, a, due.SchedulerName); err != nil {
		// not marked, so a future tick picks it up again
		s.log.Error().Err(err).Str("appointment_id", a.ID).Msg("reminder dispatch failed")
		return
	}

	marked, err := s.store.MarkReminderSentIfUnset(ctx, a.ID)
	if err != nil {
		// dispatched but not marked: accepted at-least-once risk, the
		// appointment may be reminded again on a later tick
		s.log.Error().Err(err).Str("appointment_id", a.ID).Msg("marking reminder sent failed")
		return
	}
	if !marked {
		s.log.Debug().Str("appointment_id", a.ID).Msg("reminder already marked by someone else")
		return
	}

	s.log.Info().Str("appointment_id", a.ID).Str("title", a.Title).Msg("reminder delivered and marked")
}
