package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus tracks the publication lifecycle of an event. Only PUBLISHED
// events accept registrations.
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
	EventCompleted EventStatus = "COMPLETED"
)

// DefaultEventDuration is assumed for events that carry no explicit end time.
const DefaultEventDuration = 2 * time.Hour

// Event is the unit of admission. RegisteredCount is authoritative and is
// mutated only through the capacity ledger, inside the same critical section
// as the registration row it accounts for.
type Event struct {
	ID              uuid.UUID
	Title           string
	CategoryID      uuid.UUID
	OrganizerID     uuid.UUID
	Venue           string
	StartTime       time.Time
	EndTime         time.Time // zero value means StartTime + DefaultEventDuration
	Capacity        int
	RegisteredCount int
	Price           float64
	Status          EventStatus
}

// Window returns the half-open occupancy interval [start, end) of the event,
// substituting the default duration when no end time is set.
func (e Event) Window() (start, end time.Time) {
	start = e.StartTime
	end = e.EndTime
	if end.IsZero() {
		end = start.Add(DefaultEventDuration)
	}
	return start, end
}

// HasCapacity reports whether at least one seat is free.
func (e Event) HasCapacity() bool {
	return e.RegisteredCount < e.Capacity
}
