// Package ledger owns the per-event seat accounting: the registered counter
// and the FIFO waitlist. It is the only writer of Event.RegisteredCount and
// of registration status transitions that enter or leave the REGISTERED
// state, and it serializes those transitions per event.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"campushub/internal/domain"
)

// ErrSoldOut reports that a force-register lost the race for the last seat:
// capacity was available at conflict-detection time but gone by the time the
// override ran. Nothing is committed when this is returned.
var ErrSoldOut = errors.New("sold out while deciding")

// Promotion records a waitlisted registration that took over a freed seat.
// The service emits the waitlist_promotion notification from it.
type Promotion struct {
	Registration domain.Registration
}

// CapacityLedger admits, releases, and transfers registrations atomically.
//
// Invariants, for every event at all times:
//   - 0 <= RegisteredCount <= Capacity
//   - the waitlist is strict FIFO by registration time
//   - a release promotes at most one waitlisted entry, and a promotion
//     leaves RegisteredCount unchanged (one left, one entered)
type CapacityLedger interface {
	// Admit persists the prepared registration with status REGISTERED when a
	// seat is free, WAITLISTED otherwise, incrementing the counter in the
	// same critical section as the row write. The input status is ignored.
	// Returns sentinel.ErrConflict when the user already holds an active
	// registration for the event.
	Admit(ctx context.Context, reg domain.Registration) (domain.Registration, error)

	// Release cancels the registration. When it held a seat, the earliest
	// waitlisted entry (if any) is promoted in its place; with an empty
	// waitlist the counter is decremented. Cancelling a waitlisted entry
	// touches neither counter nor queue order. Returns sentinel.ErrInvalidState
	// when the registration is not active.
	Release(ctx context.Context, regID uuid.UUID) (domain.Registration, *Promotion, error)

	// Transfer implements force-register: re-verify the target has a free
	// seat, cancel the user's REGISTERED entries in cancelEventIDs (each
	// possibly promoting a waitlisted user), and admit the target as
	// REGISTERED, all as one atomic operation. On ErrSoldOut no partial
	// cancellation survives.
	Transfer(ctx context.Context, target domain.Registration, cancelEventIDs []uuid.UUID) (domain.Registration, []Promotion, error)
}
