package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"campushub/internal/domain"
	"campushub/internal/ledger"
	dErrors "campushub/pkg/domain-errors"
	"campushub/pkg/platform/sentinel"
	"campushub/pkg/requestcontext"
)

// ForceRegister resolves a previously reported conflict: it cancels the
// user's REGISTERED entries on the cited events and admits them to the target
// in one atomic step. Conflict detection is not re-run; the caller's override
// is trusted. Capacity is re-verified inside the transaction because seats
// can vanish while the user decides, and a sold-out target aborts everything.
func (s *Service) ForceRegister(ctx context.Context, userID, eventID uuid.UUID, conflictingEventIDs []uuid.UUID, opts RegisterOptions) (RegisterResult, error) {
	now := requestcontext.Now(ctx)
	event, err := s.loadOpenEvent(ctx, eventID, now)
	if err != nil {
		return RegisterResult{}, err
	}

	reg, redeemedCode, err := s.prepareRegistration(ctx, userID, event, opts, now)
	if err != nil {
		return RegisterResult{}, err
	}

	created, promotions, err := s.ledger.Transfer(ctx, reg, conflictingEventIDs)
	if err != nil {
		s.releasePromo(ctx, redeemedCode)
		if errors.Is(err, ledger.ErrSoldOut) {
			s.incrementCapacityRace()
			return RegisterResult{}, dErrors.New(dErrors.CodeCapacityRace, "event sold out while resolving the conflict")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return RegisterResult{}, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return RegisterResult{}, admissionError(err)
	}
	s.incrementRegistration(string(created.Status))

	s.logger.InfoContext(ctx, "force-registered over conflicts",
		"user_id", userID,
		"event_id", eventID,
		"cancelled_events", len(conflictingEventIDs),
		"promotions", len(promotions))

	s.emitAdmission(ctx, event, created, 0)
	s.emitPromotions(ctx, promotions)
	s.broadcastCapacity(ctx, eventID)
	for _, cancelledEventID := range conflictingEventIDs {
		if cancelledEventID != eventID {
			s.broadcastCapacity(ctx, cancelledEventID)
		}
	}

	return RegisterResult{
		Outcome:      Outcome(domain.StatusRegistered),
		Registration: &created,
	}, nil
}
