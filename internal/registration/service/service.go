// Package service orchestrates the registration state machine: validation,
// conflict detection, capacity admission, and side-effect emission.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campushub/internal/broadcast"
	"campushub/internal/domain"
	"campushub/internal/ledger"
	"campushub/internal/notify"
	"campushub/internal/registration/metrics"
	"campushub/internal/registration/store"
	dErrors "campushub/pkg/domain-errors"
	"campushub/pkg/platform/sentinel"
	"campushub/pkg/requestcontext"
)

// ConflictDetector reports schedule collisions for a candidate event.
type ConflictDetector interface {
	Detect(ctx context.Context, userID uuid.UUID, candidate domain.Event) (domain.ConflictResult, error)
}

// TokenService signs check-in tokens bound to a registration and resolves
// presented tokens back to their registration at the door.
type TokenService interface {
	Issue(registrationID, userID, eventID uuid.UUID, issuedAt, expiresAt time.Time) (string, error)
	RegistrationID(token string) (uuid.UUID, error)
}

// Outcome tags the result of a registration attempt.
type Outcome string

const (
	OutcomeRegistered Outcome = "REGISTERED"
	OutcomeWaitlisted Outcome = "WAITLISTED"
	OutcomeConflict   Outcome = "CONFLICT"
)

// RegisterResult is the tagged outcome of Register and ForceRegister. On
// OutcomeConflict no registration row exists; the caller resolves the
// conflict by force-registering or picking an alternative.
type RegisterResult struct {
	Outcome          Outcome
	Registration     *domain.Registration
	WaitlistPosition int
	Conflict         *domain.ConflictResult
}

// RegisterOptions carries the optional fields of a registration attempt.
type RegisterOptions struct {
	Notes     string
	PromoCode string
}

// Service runs registration attempts end to end. The ledger owns all seat
// accounting; the service owns validation, pricing, tokens, and side effects.
type Service struct {
	events      store.EventStore
	regs        store.RegistrationStore
	promos      store.PromoStore
	ledger      ledger.CapacityLedger
	detector    ConflictDetector
	tokens      TokenService
	notifier    notify.Sink
	broadcaster broadcast.Sink
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotificationSink(sink notify.Sink) Option {
	return func(s *Service) {
		s.notifier = sink
	}
}

func WithBroadcastSink(sink broadcast.Sink) Option {
	return func(s *Service) {
		s.broadcaster = sink
	}
}

// New constructs a Service. Sinks default to in-memory implementations.
func New(
	events store.EventStore,
	regs store.RegistrationStore,
	promos store.PromoStore,
	capLedger ledger.CapacityLedger,
	detector ConflictDetector,
	tokens TokenService,
	opts ...Option,
) *Service {
	s := &Service{
		events:      events,
		regs:        regs,
		promos:      promos,
		ledger:      capLedger,
		detector:    detector,
		tokens:      tokens,
		notifier:    notify.NewMemorySink(),
		broadcaster: broadcast.NewMemorySink(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register runs the full admission state machine for one user and event.
func (s *Service) Register(ctx context.Context, userID, eventID uuid.UUID, opts RegisterOptions) (RegisterResult, error) {
	start := time.Now()
	defer s.observeRegister(start)

	now := requestcontext.Now(ctx)
	event, err := s.loadOpenEvent(ctx, eventID, now)
	if err != nil {
		return RegisterResult{}, err
	}

	if _, err := s.regs.FindActiveByUserAndEvent(ctx, userID, eventID); err == nil {
		return RegisterResult{}, dErrors.New(dErrors.CodeConflict, "already registered for this event")
	}

	conflict, err := s.detector.Detect(ctx, userID, event)
	if err != nil {
		return RegisterResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "conflict detection failed")
	}
	if conflict.HasConflict {
		s.incrementConflictDetected()
		return RegisterResult{Outcome: OutcomeConflict, Conflict: &conflict}, nil
	}

	reg, redeemedCode, err := s.prepareRegistration(ctx, userID, event, opts, now)
	if err != nil {
		return RegisterResult{}, err
	}

	created, err := s.ledger.Admit(ctx, reg)
	if err != nil {
		s.releasePromo(ctx, redeemedCode)
		return RegisterResult{}, admissionError(err)
	}
	s.incrementRegistration(string(created.Status))

	result := RegisterResult{
		Outcome:      Outcome(created.Status),
		Registration: &created,
	}
	if created.Status == domain.StatusWaitlisted {
		if position, err := s.regs.WaitlistPosition(ctx, created.ID); err == nil {
			result.WaitlistPosition = position
		}
	}

	s.emitAdmission(ctx, event, created, result.WaitlistPosition)
	s.broadcastCapacity(ctx, eventID)
	return result, nil
}

// ListRegistrations returns the user's registrations joined with their
// events, newest first.
func (s *Service) ListRegistrations(ctx context.Context, userID uuid.UUID) ([]store.RegistrationWithEvent, error) {
	out, err := s.regs.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return out, nil
}

// loadOpenEvent fetches an event and verifies it accepts registrations.
func (s *Service) loadOpenEvent(ctx context.Context, eventID uuid.UUID, now time.Time) (domain.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Event{}, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return domain.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	if event.Status != domain.EventPublished {
		return domain.Event{}, dErrors.New(dErrors.CodeInvalidState, "event is not open for registration")
	}
	if !event.StartTime.After(now) {
		return domain.Event{}, dErrors.New(dErrors.CodeInvalidState, "event has already started")
	}
	return event, nil
}

// prepareRegistration builds the row the ledger will admit: price after any
// promo discount, notes, and the signed check-in token. Invalid promo codes
// are ignored rather than failing the attempt. The returned code is non-empty
// only when a use was actually redeemed; callers must hand it back through
// releasePromo if the admission aborts.
func (s *Service) prepareRegistration(ctx context.Context, userID uuid.UUID, event domain.Event, opts RegisterOptions, now time.Time) (domain.Registration, string, error) {
	reg := domain.Registration{
		ID:         uuid.New(),
		UserID:     userID,
		EventID:    event.ID,
		Notes:      opts.Notes,
		FinalPrice: event.Price,
	}

	var redeemedCode string
	if opts.PromoCode != "" {
		promo, err := s.promos.Redeem(ctx, opts.PromoCode, now)
		if err != nil {
			s.logger.DebugContext(ctx, "promo code rejected",
				"code", opts.PromoCode, "error", err)
		} else {
			reg.FinalPrice = promo.Apply(event.Price)
			redeemedCode = promo.Code
		}
	}

	_, end := event.Window()
	token, err := s.tokens.Issue(reg.ID, userID, event.ID, now, end)
	if err != nil {
		s.releasePromo(ctx, redeemedCode)
		return domain.Registration{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue check-in token")
	}
	reg.CheckInToken = token
	return reg, redeemedCode, nil
}

// releasePromo returns a redeemed use after the admission it priced aborted.
// A failed release only logs; the books drift by one use rather than failing
// a request that already failed.
func (s *Service) releasePromo(ctx context.Context, code string) {
	if code == "" {
		return
	}
	if err := s.promos.Release(ctx, code); err != nil {
		s.logger.WarnContext(ctx, "promo release failed", "code", code, "error", err)
	}
}

// admissionError maps ledger failures onto caller-facing codes.
func admissionError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "already registered for this event")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "event not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "event is busy, retry shortly")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "admission failed")
	}
}

// emitAdmission notifies the user of the admission outcome. Failures are
// logged and swallowed; the registration has already committed.
func (s *Service) emitAdmission(ctx context.Context, event domain.Event, reg domain.Registration, waitlistPosition int) {
	err := s.notifier.Notify(ctx, reg.UserID, notify.RegistrationConfirmed{
		RegistrationID:   reg.ID,
		EventID:          event.ID,
		EventTitle:       event.Title,
		Status:           string(reg.Status),
		WaitlistPosition: waitlistPosition,
		FinalPrice:       reg.FinalPrice,
		StartTime:        event.StartTime,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "registration notification failed",
			"registration_id", reg.ID, "error", err)
	}
	s.publish(ctx, broadcast.UserTopic(reg.UserID), broadcast.StatusChange{
		RegistrationID: reg.ID,
		EventID:        event.ID,
		Status:         string(reg.Status),
	})
}

// emitPromotions notifies each user whose waitlisted entry took a freed seat.
func (s *Service) emitPromotions(ctx context.Context, promotions []ledger.Promotion) {
	for _, promotion := range promotions {
		promoted := promotion.Registration
		event, err := s.events.GetByID(ctx, promoted.EventID)
		if err != nil {
			s.logger.WarnContext(ctx, "promotion event lookup failed",
				"event_id", promoted.EventID, "error", err)
			continue
		}
		err = s.notifier.Notify(ctx, promoted.UserID, notify.WaitlistPromotion{
			RegistrationID: promoted.ID,
			EventID:        event.ID,
			EventTitle:     event.Title,
			StartTime:      event.StartTime,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "promotion notification failed",
				"registration_id", promoted.ID, "error", err)
		}
		s.incrementWaitlistPromotion()
		s.publish(ctx, broadcast.UserTopic(promoted.UserID), broadcast.StatusChange{
			RegistrationID: promoted.ID,
			EventID:        event.ID,
			Status:         string(domain.StatusRegistered),
		})
	}
}

// broadcastCapacity pushes the event's current seat accounting to its event
// and organizer topics.
func (s *Service) broadcastCapacity(ctx context.Context, eventID uuid.UUID) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "capacity broadcast lookup failed",
			"event_id", eventID, "error", err)
		return
	}
	waitlisted, err := s.regs.CountWaitlisted(ctx, eventID)
	if err != nil {
		waitlisted = 0
	}
	update := broadcast.CapacityUpdate{
		EventID:         event.ID,
		RegisteredCount: event.RegisteredCount,
		Capacity:        event.Capacity,
		WaitlistCount:   waitlisted,
	}
	s.publish(ctx, broadcast.EventTopic(event.ID), update)
	if event.OrganizerID != uuid.Nil {
		s.publish(ctx, broadcast.OrganizerTopic(event.OrganizerID), update)
	}
}

func (s *Service) publish(ctx context.Context, topic broadcast.Topic, payload any) {
	if err := s.broadcaster.Publish(ctx, topic, payload); err != nil {
		s.logger.WarnContext(ctx, "broadcast failed", "topic", topic, "error", err)
	}
}

func (s *Service) incrementRegistration(status string) {
	if s.metrics != nil {
		s.metrics.IncrementRegistration(status)
	}
}

func (s *Service) incrementWaitlistPromotion() {
	if s.metrics != nil {
		s.metrics.IncrementWaitlistPromotion()
	}
}

func (s *Service) incrementConflictDetected() {
	if s.metrics != nil {
		s.metrics.IncrementConflictDetected()
	}
}

func (s *Service) incrementCapacityRace() {
	if s.metrics != nil {
		s.metrics.IncrementCapacityRace()
	}
}

func (s *Service) incrementCheckIn() {
	if s.metrics != nil {
		s.metrics.IncrementCheckIn()
	}
}

func (s *Service) observeRegister(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRegister(start)
	}
}
