// Package reminder periodically notifies registered attendees of events
// starting soon.
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"campushub/internal/domain"
	"campushub/internal/notify"
	"campushub/internal/registration/store"
)

// Worker sweeps upcoming events on an interval and sends one reminder per
// registration. Delivery is at-most-once per process; a restart may re-remind,
// which is acceptable for this kind of message.
type Worker struct {
	events   store.EventStore
	regs     store.RegistrationStore
	sink     notify.Sink
	horizon  time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	reminded map[uuid.UUID]time.Time // registration id -> event start
}

// New builds a worker. horizon is how far ahead an event may start and still
// get a reminder; interval is the sweep cadence.
func New(events store.EventStore, regs store.RegistrationStore, sink notify.Sink, horizon, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		events:   events,
		regs:     regs,
		sink:     sink,
		horizon:  horizon,
		interval: interval,
		logger:   logger,
		reminded: make(map[uuid.UUID]time.Time),
	}
}

// Run sweeps until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep sends reminders for every REGISTERED attendee of events starting
// within the horizon. Exported so tests can drive it without the ticker.
func (w *Worker) Sweep(ctx context.Context) {
	now := time.Now()
	events, err := w.events.ListStartingBetween(ctx, now, now.Add(w.horizon))
	if err != nil {
		w.logger.WarnContext(ctx, "reminder sweep failed", "error", err)
		return
	}

	for _, event := range events {
		attendees, err := w.regs.ListByEventAndStatus(ctx, event.ID, domain.StatusRegistered)
		if err != nil {
			w.logger.WarnContext(ctx, "reminder attendee lookup failed",
				"event_id", event.ID, "error", err)
			continue
		}
		for _, reg := range attendees {
			if !w.markReminded(reg.ID, event.StartTime) {
				continue
			}
			err := w.sink.Notify(ctx, reg.UserID, notify.Reminder{
				RegistrationID: reg.ID,
				EventID:        event.ID,
				EventTitle:     event.Title,
				Venue:          event.Venue,
				StartTime:      event.StartTime,
			})
			if err != nil {
				w.logger.WarnContext(ctx, "reminder notification failed",
					"registration_id", reg.ID, "error", err)
			}
		}
	}

	w.prune(now)
}

// markReminded records the registration, returning false if it was already
// reminded.
func (w *Worker) markReminded(regID uuid.UUID, start time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, seen := w.reminded[regID]; seen {
		return false
	}
	w.reminded[regID] = start
	return true
}

// prune drops bookkeeping for events that have already started.
func (w *Worker) prune(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for regID, start := range w.reminded {
		if start.Before(now) {
			delete(w.reminded, regID)
		}
	}
}
