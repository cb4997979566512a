package handler

import (
	"time"

	"github.com/google/uuid"

	"campushub/internal/domain"
	"campushub/internal/registration/service"
	"campushub/internal/registration/store"
)

type eventSummary struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Venue           string     `json:"venue"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Price           float64    `json:"price"`
	Capacity        int        `json:"capacity"`
	RegisteredCount int        `json:"registered_count"`
}

func toEventSummary(event domain.Event) eventSummary {
	summary := eventSummary{
		ID:              event.ID,
		Title:           event.Title,
		Venue:           event.Venue,
		StartTime:       event.StartTime,
		Price:           event.Price,
		Capacity:        event.Capacity,
		RegisteredCount: event.RegisteredCount,
	}
	if !event.EndTime.IsZero() {
		end := event.EndTime
		summary.EndTime = &end
	}
	return summary
}

type registrationResponse struct {
	ID               uuid.UUID  `json:"id"`
	EventID          uuid.UUID  `json:"event_id"`
	Status           string     `json:"status"`
	FinalPrice       float64    `json:"final_price"`
	CheckInToken     string     `json:"checkin_token,omitempty"`
	RegisteredAt     time.Time  `json:"registered_at"`
	CheckInTime      *time.Time `json:"check_in_time,omitempty"`
	WaitlistPosition int        `json:"waitlist_position,omitempty"`
}

func toRegistrationResponse(reg domain.Registration, waitlistPosition int) registrationResponse {
	return registrationResponse{
		ID:               reg.ID,
		EventID:          reg.EventID,
		Status:           string(reg.Status),
		FinalPrice:       reg.FinalPrice,
		CheckInToken:     reg.CheckInToken,
		RegisteredAt:     reg.RegisteredAt,
		CheckInTime:      reg.CheckInTime,
		WaitlistPosition: waitlistPosition,
	}
}

type conflictingEventView struct {
	Event             eventSummary `json:"event"`
	TravelTimeMinutes int          `json:"travel_time_minutes"`
}

type alternativeView struct {
	Event           eventSummary `json:"event"`
	SimilarityScore int          `json:"similarity_score"`
}

type conflictResponse struct {
	Error                 string                 `json:"error"`
	ConflictingEvents     []conflictingEventView `json:"conflicting_events"`
	SuggestedAlternatives []alternativeView      `json:"suggested_alternatives"`
}

func toConflictResponse(result domain.ConflictResult) conflictResponse {
	resp := conflictResponse{
		Error:                 "schedule_conflict",
		ConflictingEvents:     []conflictingEventView{},
		SuggestedAlternatives: []alternativeView{},
	}
	for _, c := range result.ConflictingEvents {
		resp.ConflictingEvents = append(resp.ConflictingEvents, conflictingEventView{
			Event:             toEventSummary(c.Event),
			TravelTimeMinutes: int(c.TravelTime.Minutes()),
		})
	}
	for _, alt := range result.SuggestedAlternatives {
		resp.SuggestedAlternatives = append(resp.SuggestedAlternatives, alternativeView{
			Event:           toEventSummary(alt.Event),
			SimilarityScore: alt.SimilarityScore,
		})
	}
	return resp
}

func toRegisterResponse(result service.RegisterResult) registrationResponse {
	return toRegistrationResponse(*result.Registration, result.WaitlistPosition)
}

type registrationWithEventView struct {
	Registration registrationResponse `json:"registration"`
	Event        eventSummary         `json:"event"`
}

func toListResponse(entries []store.RegistrationWithEvent) []registrationWithEventView {
	out := make([]registrationWithEventView, 0, len(entries))
	for _, entry := range entries {
		out = append(out, registrationWithEventView{
			Registration: toRegistrationResponse(entry.Registration, 0),
			Event:        toEventSummary(entry.Event),
		})
	}
	return out
}
