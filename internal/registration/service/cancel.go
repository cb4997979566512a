package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"campushub/internal/broadcast"
	"campushub/internal/domain"
	"campushub/internal/ledger"
	dErrors "campushub/pkg/domain-errors"
	"campushub/pkg/platform/sentinel"
	"campushub/pkg/requestcontext"
)

// Cancel releases a registration. Only the owning user may cancel, and only
// before the event starts. If the cancelled entry held a seat, the ledger
// promotes the waitlist head and the promoted user is notified.
func (s *Service) Cancel(ctx context.Context, registrationID, userID uuid.UUID) (domain.Registration, error) {
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

	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return domain.Registration{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	if !event.StartTime.After(requestcontext.Now(ctx)) {
		return domain.Registration{}, dErrors.New(dErrors.CodeInvalidState, "event has already started")
	}

	cancelled, promotion, err := s.ledger.Release(ctx, registrationID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return domain.Registration{}, dErrors.New(dErrors.CodeInvalidState, "registration is not active")
		case errors.Is(err, sentinel.ErrNotFound):
			return domain.Registration{}, dErrors.New(dErrors.CodeNotFound, "registration not found")
		case errors.Is(err, sentinel.ErrUnavailable):
			return domain.Registration{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "event is busy, retry shortly")
		default:
			return domain.Registration{}, dErrors.Wrap(err, dErrors.CodeInternal, "cancellation failed")
		}
	}

	s.publish(ctx, broadcast.UserTopic(userID), broadcast.StatusChange{
		RegistrationID: cancelled.ID,
		EventID:        event.ID,
		Status:         string(cancelled.Status),
	})
	if promotion != nil {
		s.emitPromotions(ctx, []ledger.Promotion{*promotion})
	}
	s.broadcastCapacity(ctx, event.ID)

	return cancelled, nil
}
