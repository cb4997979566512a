// Package store persists events, registrations, and promo codes. Stores are
// interface-driven so the service and ledger can run against in-memory
// implementations in tests and a single-binary deployment, or Postgres in
// production, without rewiring business code.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"campushub/internal/domain"
)

// EventStore reads events and exposes the one mutation the capacity ledger
// needs. Nothing outside the ledger may touch RegisteredCount.
type EventStore interface {
	Create(ctx context.Context, event domain.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Event, error)
	// SetRegisteredCount overwrites the seat counter. Callers must hold the
	// ledger's per-event lock; the store itself does not serialize.
	SetRegisteredCount(ctx context.Context, id uuid.UUID, count int) error
	// ListAlternatives returns published, not-yet-started events in the given
	// category with free capacity, excluding the listed ids, soonest first.
	ListAlternatives(ctx context.Context, categoryID uuid.UUID, exclude []uuid.UUID, after time.Time, limit int) ([]domain.Event, error)
	// ListStartingBetween returns published events whose start time falls in
	// [from, to). The reminder worker drives this.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Event, error)
}

// RegistrationWithEvent joins a registration with its event for queries where
// the caller needs both (conflict detection, listings).
type RegistrationWithEvent struct {
	Registration domain.Registration
	Event        domain.Event
}

// RegistrationStore persists registration rows. Status transitions flow
// through the capacity ledger; the store only executes them.
type RegistrationStore interface {
	Create(ctx context.Context, reg domain.Registration) (domain.Registration, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Registration, error)
	Update(ctx context.Context, reg domain.Registration) error
	// FindActiveByUserAndEvent returns the single REGISTERED or WAITLISTED
	// registration for the pair, or sentinel.ErrNotFound.
	FindActiveByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (domain.Registration, error)
	// ListActiveOverlapping returns the user's REGISTERED registrations whose
	// event window intersects [from, to), with events attached.
	ListActiveOverlapping(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]RegistrationWithEvent, error)
	// NextWaitlisted returns the earliest-registered WAITLISTED entry for the
	// event, or sentinel.ErrNotFound when the waitlist is empty.
	NextWaitlisted(ctx context.Context, eventID uuid.UUID) (domain.Registration, error)
	CountWaitlisted(ctx context.Context, eventID uuid.UUID) (int, error)
	// WaitlistPosition returns the 1-based FIFO position of a WAITLISTED
	// registration, counting itself and every entry queued before it. Later
	// admissions queue strictly after, so the result cannot be inflated by a
	// concurrent admit; promotions and cancellations only improve it. Returns
	// sentinel.ErrInvalidState when the row is not waitlisted.
	WaitlistPosition(ctx context.Context, id uuid.UUID) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]RegistrationWithEvent, error)
	ListByEventAndStatus(ctx context.Context, eventID uuid.UUID, status domain.RegistrationStatus) ([]domain.Registration, error)
	// MarkAttended stamps the check-in exactly once: it fails with
	// sentinel.ErrInvalidState unless the row is currently REGISTERED and
	// unstamped, which makes double check-in safe under concurrency.
	MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PromoStore redeems promo codes atomically: validity checks and the usage
// increment happen as one operation so a near-exhausted code cannot be
// over-redeemed by concurrent registrations.
type PromoStore interface {
	Create(ctx context.Context, promo domain.PromoCode) error
	// Redeem returns sentinel.ErrNotFound for unknown codes,
	// sentinel.ErrExpired outside the validity window or for inactive codes,
	// and sentinel.ErrAlreadyUsed for exhausted ones.
	Redeem(ctx context.Context, code string, at time.Time) (domain.PromoCode, error)
	// Release returns one redeemed use. Callers compensate with it when the
	// operation that redeemed the code aborts, so an admission that never
	// commits does not burn a use. Returns sentinel.ErrNotFound when the code
	// is unknown or has no uses to return.
	Release(ctx context.Context, code string) error
}
