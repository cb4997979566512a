// Package broadcast pushes live registration state to connected clients.
// Topics are scoped per event, per user, and per organizer; a gateway
// subscribed to a topic fans the payload out to its websockets. Publishing is
// fire-and-forget from the registration core's perspective.
package broadcast

//go:generate mockgen -source=broadcast.go -destination=mocks/mocks.go -package=mocks Sink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Topic names a broadcast channel.
type Topic string

// EventTopic carries capacity changes for one event.
func EventTopic(eventID uuid.UUID) Topic {
	return Topic(fmt.Sprintf("event:%s", eventID))
}

// UserTopic carries registration status changes for one user.
func UserTopic(userID uuid.UUID) Topic {
	return Topic(fmt.Sprintf("user:%s", userID))
}

// OrganizerTopic carries attendance and capacity changes across an
// organizer's events.
func OrganizerTopic(organizerID uuid.UUID) Topic {
	return Topic(fmt.Sprintf("organizer:%s", organizerID))
}

// CapacityUpdate is published whenever an event's seat accounting changes.
type CapacityUpdate struct {
	EventID         uuid.UUID `json:"event_id"`
	RegisteredCount int       `json:"registered_count"`
	Capacity        int       `json:"capacity"`
	WaitlistCount   int       `json:"waitlist_count"`
}

// StatusChange is published to the affected user when their registration
// moves between states.
type StatusChange struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	Status         string    `json:"status"`
}

// Sink publishes payloads to a topic. Implementations serialize the payload
// themselves; failures must be swallowed upstream, never propagated into the
// registration transaction.
type Sink interface {
	Publish(ctx context.Context, topic Topic, payload any) error
}
