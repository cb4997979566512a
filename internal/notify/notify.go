// Package notify defines the notification contract between the registration
// core and whatever delivers messages to users. Delivery is fire-and-forget:
// a failed notification never rolls back the registration that caused it.
package notify

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Sink

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates notification payloads.
type Kind string

const (
	KindRegistrationConfirmed Kind = "registration_confirmed"
	KindWaitlistPromotion     Kind = "waitlist_promotion"
	KindEventUpdate           Kind = "event_update"
	KindReminder              Kind = "reminder"
)

// Payload is the closed set of notification bodies. Each kind carries its own
// required fields; consumers switch on Kind() rather than probing a map.
type Payload interface {
	Kind() Kind
}

// RegistrationConfirmed is sent after a successful admission, whether the
// user got a seat or a waitlist slot.
type RegistrationConfirmed struct {
	RegistrationID   uuid.UUID `json:"registration_id"`
	EventID          uuid.UUID `json:"event_id"`
	EventTitle       string    `json:"event_title"`
	Status           string    `json:"status"`
	WaitlistPosition int       `json:"waitlist_position,omitempty"`
	FinalPrice       float64   `json:"final_price"`
	StartTime        time.Time `json:"start_time"`
}

func (RegistrationConfirmed) Kind() Kind { return KindRegistrationConfirmed }

// WaitlistPromotion is sent to the user whose waitlisted entry just took a
// freed seat.
type WaitlistPromotion struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	EventTitle     string    `json:"event_title"`
	StartTime      time.Time `json:"start_time"`
}

func (WaitlistPromotion) Kind() Kind { return KindWaitlistPromotion }

// EventUpdate is sent to attendees when an event they hold changes.
type EventUpdate struct {
	EventID    uuid.UUID `json:"event_id"`
	EventTitle string    `json:"event_title"`
	Change     string    `json:"change"`
}

func (EventUpdate) Kind() Kind { return KindEventUpdate }

// Reminder is sent shortly before an event the user is registered for.
type Reminder struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	EventTitle     string    `json:"event_title"`
	Venue          string    `json:"venue"`
	StartTime      time.Time `json:"start_time"`
}

func (Reminder) Kind() Kind { return KindReminder }

// Sink delivers notifications. Implementations must not block the caller
// beyond enqueueing; the registration transaction has already committed by
// the time Notify runs.
type Sink interface {
	Notify(ctx context.Context, userID uuid.UUID, payload Payload) error
}
