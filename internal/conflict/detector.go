// Package conflict decides whether a candidate registration collides with
// events the user already holds, and proposes alternatives when it does.
package conflict

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"campushub/internal/domain"
	"campushub/internal/registration/store"
	"campushub/internal/venue"
	"campushub/pkg/requestcontext"
)

const (
	maxAlternatives = 5
	// The store returns a wider pool than we suggest, because entries that
	// turn out to conflict are filtered after scoring candidates arrive.
	alternativePool = 25
)

// Detector finds schedule collisions between a candidate event and the
// user's REGISTERED events. Two events collide when one cannot end, travel,
// and reach the other in time, so the overlap window is inflated per pair by
// the venue model's travel estimate on top of each event's own duration.
type Detector struct {
	events   store.EventStore
	regs     store.RegistrationStore
	distance *venue.DistanceModel
	logger   *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// NewDetector builds a detector over the given stores and distance model.
func NewDetector(events store.EventStore, regs store.RegistrationStore, distance *venue.DistanceModel, opts ...Option) *Detector {
	d := &Detector{
		events:   events,
		regs:     regs,
		distance: distance,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect reports the user's collisions with the candidate event and up to
// five alternative suggestions. Reads are not serialized against concurrent
// admissions; a stale read here is settled later by the capacity ledger.
func (d *Detector) Detect(ctx context.Context, userID uuid.UUID, candidate domain.Event) (domain.ConflictResult, error) {
	candStart, candEnd := candidate.Window()

	// The coarse query widens by the largest travel time the model can
	// produce, so the per-pair refinement below only ever narrows the set.
	coarse := d.distance.MaxTravelTime()

	var held []store.RegistrationWithEvent
	var pool []domain.Event

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		held, err = d.regs.ListActiveOverlapping(gctx, userID, candStart.Add(-coarse), candEnd.Add(coarse))
		return err
	})
	g.Go(func() error {
		var err error
		pool, err = d.events.ListAlternatives(gctx, candidate.CategoryID,
			[]uuid.UUID{candidate.ID}, requestcontext.Now(ctx), alternativePool)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ConflictResult{}, err
	}

	var conflicts []domain.ConflictingEvent
	conflictIDs := make(map[uuid.UUID]bool)
	for _, entry := range held {
		if entry.Event.ID == candidate.ID {
			continue
		}
		travel := d.distance.TravelTime(entry.Event.Venue, candidate.Venue)
		start, end := entry.Event.Window()
		if start.Before(candEnd.Add(travel)) && end.After(candStart.Add(-travel)) {
			conflicts = append(conflicts, domain.ConflictingEvent{
				Event:      entry.Event,
				TravelTime: travel,
			})
			conflictIDs[entry.Event.ID] = true
		}
	}

	result := domain.ConflictResult{
		HasConflict:           len(conflicts) > 0,
		ConflictingEvents:     conflicts,
		SuggestedAlternatives: d.suggest(candidate, pool, conflictIDs),
	}
	if result.HasConflict {
		d.logger.DebugContext(ctx, "schedule conflict detected",
			"user_id", userID,
			"event_id", candidate.ID,
			"conflicts", len(conflicts),
			"alternatives", len(result.SuggestedAlternatives))
	}
	return result, nil
}

// suggest scores the candidate pool by similarity and keeps the top entries.
// Events the user conflicts with are never suggested.
func (d *Detector) suggest(candidate domain.Event, pool []domain.Event, conflictIDs map[uuid.UUID]bool) []domain.Alternative {
	var scored []domain.Alternative
	for _, alt := range pool {
		if conflictIDs[alt.ID] {
			continue
		}
		scored = append(scored, domain.Alternative{
			Event:           alt,
			SimilarityScore: similarity(candidate, alt),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].SimilarityScore != scored[j].SimilarityScore {
			return scored[i].SimilarityScore > scored[j].SimilarityScore
		}
		return scored[i].Event.StartTime.Before(scored[j].Event.StartTime)
	})
	if len(scored) > maxAlternatives {
		scored = scored[:maxAlternatives]
	}
	return scored
}

// similarity scores how closely an alternative matches the candidate,
// 0 to 100. The pool is pre-filtered to the candidate's category, so the
// category component always applies.
func similarity(candidate, alt domain.Event) int {
	score := 40

	gap := candidate.StartTime.Sub(alt.StartTime)
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap <= 7*24*time.Hour:
		score += 30
	case gap <= 30*24*time.Hour:
		score += 15
	}

	priceDiff := candidate.Price - alt.Price
	if priceDiff < 0 {
		priceDiff = -priceDiff
	}
	switch {
	case priceDiff == 0:
		score += 20
	case priceDiff <= 10:
		score += 10
	}

	capDiff := candidate.Capacity - alt.Capacity
	if capDiff < 0 {
		capDiff = -capDiff
	}
	if capDiff <= 100 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}
