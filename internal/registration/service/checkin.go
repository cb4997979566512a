package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"campushub/internal/broadcast"
	"campushub/internal/domain"
	dErrors "campushub/pkg/domain-errors"
	"campushub/pkg/platform/sentinel"
	"campushub/pkg/requestcontext"
)

// CheckIn marks attendance. Valid only for the owning user, only from the
// REGISTERED state, only after the event has started, and only once. A
// presented token (scanned QR code) must resolve to this registration; an
// empty token skips the check for manual check-in by id.
func (s *Service) CheckIn(ctx context.Context, registrationID, userID uuid.UUID, token string) (domain.Registration, error) {
	if token != "" {
		tokenRegID, err := s.tokens.RegistrationID(token)
		if err != nil {
			return domain.Registration{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid check-in token")
		}
		if tokenRegID != registrationID {
			return domain.Registration{}, dErrors.New(dErrors.CodeUnauthorized, "check-in token does not match this registration")
		}
	}

	reg, err := s.regs.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Registration{}, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return domain.Registration{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	if reg.UserID != userID {
		return domain.Registration{}, dErrors.New(dErrors.CodeUnauthorized, "registration belongs to another user")
	}
	if reg.Status == domain.StatusAttended {
		return domain.Registration{}, dErrors.New(dErrors.CodeInvalidState, "already checked in")
	}
	if reg.Status != domain.StatusRegistered {
		return domain.Registration{}, dErrors.New(dErrors.CodeInvalidState, "only registered attendees can check in")
	}

	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return domain.Registration{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	now := requestcontext.Now(ctx)
	if now.Before(event.StartTime) {
		return domain.Registration{}, dErrors.New(dErrors.CodeInvalidState, "check-in opens at event start")
	}

	// MarkAttended is a conditional update, so two concurrent scans of the
	// same token resolve to one ATTENDED transition.
	if err := s.regs.MarkAttended(ctx, registrationID, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return domain.Registration{}, dErrors.New(dErrors.CodeInvalidState, "already checked in")
		case errors.Is(err, sentinel.ErrNotFound):
			return domain.Registration{}, dErrors.New(dErrors.CodeNotFound, "registration not found")
		default:
			return domain.Registration{}, dErrors.Wrap(err, dErrors.CodeInternal, "check-in failed")
		}
	}
	s.incrementCheckIn()

	reg.Status = domain.StatusAttended
	reg.CheckInTime = &now

	if event.OrganizerID != uuid.Nil {
		s.publish(ctx, broadcast.OrganizerTopic(event.OrganizerID), broadcast.StatusChange{
			RegistrationID: reg.ID,
			EventID:        event.ID,
			Status:         string(domain.StatusAttended),
		})
	}
	return reg, nil
}
