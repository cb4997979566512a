package domain

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus tracks the lifecycle of a registration attempt.
//
// Transitions: REGISTERED -> CANCELLED (cancel, force-unregister),
// WAITLISTED -> REGISTERED (promotion), WAITLISTED -> CANCELLED (cancel),
// REGISTERED -> ATTENDED (check-in).
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "REGISTERED"
	StatusWaitlisted RegistrationStatus = "WAITLISTED"
	StatusCancelled  RegistrationStatus = "CANCELLED"
	StatusAttended   RegistrationStatus = "ATTENDED"
)

// Registration links a user to an event. At most one non-cancelled
// registration may exist per (UserID, EventID) pair; a user may re-register
// only after cancelling.
type Registration struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	EventID      uuid.UUID
	Status       RegistrationStatus
	Notes        string
	FinalPrice   float64
	CheckInToken string
	RegisteredAt time.Time // FIFO ordering key for the waitlist
	CheckInTime  *time.Time
}

// Active reports whether the registration still occupies a seat or a
// waitlist slot.
func (r Registration) Active() bool {
	return r.Status == StatusRegistered || r.Status == StatusWaitlisted
}
