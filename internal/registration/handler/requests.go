package handler

import (
	"github.com/google/uuid"

	dErrors "campushub/pkg/domain-errors"
)

type registerRequest struct {
	EventID   uuid.UUID `json:"event_id"`
	Notes     string    `json:"notes,omitempty"`
	PromoCode string    `json:"promo_code,omitempty"`
}

func (r registerRequest) validate() error {
	if r.EventID == uuid.Nil {
		return dErrors.New(dErrors.CodeBadRequest, "event_id is required")
	}
	return nil
}

type forceRegisterRequest struct {
	EventID             uuid.UUID   `json:"event_id"`
	ConflictingEventIDs []uuid.UUID `json:"conflicting_event_ids"`
	Notes               string      `json:"notes,omitempty"`
	PromoCode           string      `json:"promo_code,omitempty"`
}

func (r forceRegisterRequest) validate() error {
	if r.EventID == uuid.Nil {
		return dErrors.New(dErrors.CodeBadRequest, "event_id is required")
	}
	if len(r.ConflictingEventIDs) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "conflicting_event_ids must name at least one event")
	}
	for _, id := range r.ConflictingEventIDs {
		if id == uuid.Nil {
			return dErrors.New(dErrors.CodeBadRequest, "conflicting_event_ids contains an empty id")
		}
	}
	return nil
}

// checkInRequest carries the optional scanned token; an empty body means
// manual check-in by registration id.
type checkInRequest struct {
	Token string `json:"token,omitempty"`
}
