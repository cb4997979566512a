package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campushub/internal/domain"
	"campushub/pkg/platform/sentinel"
)

var storeNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func publishedEvent(mutate func(*domain.Event)) domain.Event {
	event := domain.Event{
		ID:         uuid.New(),
		Title:      "Intro to Distributed Systems",
		CategoryID: uuid.New(),
		Venue:      "Main Auditorium",
		StartTime:  storeNow.Add(48 * time.Hour),
		Capacity:   100,
		Status:     domain.EventPublished,
	}
	if mutate != nil {
		mutate(&event)
	}
	return event
}

func TestMemoryEventStoreListAlternatives(t *testing.T) {
	ctx := context.Background()
	events := NewMemoryEventStore()
	category := uuid.New()

	later := publishedEvent(func(e *domain.Event) {
		e.CategoryID = category
		e.StartTime = storeNow.Add(72 * time.Hour)
	})
	sooner := publishedEvent(func(e *domain.Event) {
		e.CategoryID = category
		e.StartTime = storeNow.Add(24 * time.Hour)
	})
	full := publishedEvent(func(e *domain.Event) {
		e.CategoryID = category
		e.RegisteredCount = e.Capacity
	})
	draft := publishedEvent(func(e *domain.Event) {
		e.CategoryID = category
		e.Status = domain.EventDraft
	})
	past := publishedEvent(func(e *domain.Event) {
		e.CategoryID = category
		e.StartTime = storeNow.Add(-time.Hour)
	})
	otherCategory := publishedEvent(nil)
	excluded := publishedEvent(func(e *domain.Event) {
		e.CategoryID = category
	})
	for _, e := range []domain.Event{later, sooner, full, draft, past, otherCategory, excluded} {
		require.NoError(t, events.Create(ctx, e))
	}

	got, err := events.ListAlternatives(ctx, category, []uuid.UUID{excluded.ID}, storeNow, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sooner.ID, got[0].ID, "soonest alternative first")
	assert.Equal(t, later.ID, got[1].ID)

	limited, err := events.ListAlternatives(ctx, category, nil, storeNow, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, sooner.ID, limited[0].ID)
}

func TestMemoryEventStoreListStartingBetween(t *testing.T) {
	ctx := context.Background()
	events := NewMemoryEventStore()

	inside := publishedEvent(func(e *domain.Event) { e.StartTime = storeNow.Add(2 * time.Hour) })
	atUpperBound := publishedEvent(func(e *domain.Event) { e.StartTime = storeNow.Add(24 * time.Hour) })
	before := publishedEvent(func(e *domain.Event) { e.StartTime = storeNow.Add(-time.Minute) })
	unpublished := publishedEvent(func(e *domain.Event) {
		e.StartTime = storeNow.Add(2 * time.Hour)
		e.Status = domain.EventCancelled
	})
	for _, e := range []domain.Event{inside, atUpperBound, before, unpublished} {
		require.NoError(t, events.Create(ctx, e))
	}

	got, err := events.ListStartingBetween(ctx, storeNow, storeNow.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1, "window is half-open, only published events qualify")
	assert.Equal(t, inside.ID, got[0].ID)
}

func TestMemoryRegistrationStoreCreateAssignsMonotonicTimes(t *testing.T) {
	ctx := context.Background()
	regs := NewMemoryRegistrationStore(NewMemoryEventStore())
	eventID := uuid.New()

	var previous time.Time
	for i := 0; i < 50; i++ {
		created, err := regs.Create(ctx, domain.Registration{
			ID:      uuid.New(),
			UserID:  uuid.New(),
			EventID: eventID,
			Status:  domain.StatusWaitlisted,
		})
		require.NoError(t, err)
		require.True(t, created.RegisteredAt.After(previous),
			"registration times must strictly increase for FIFO ordering")
		previous = created.RegisteredAt
	}
}

func TestMemoryRegistrationStoreNextWaitlistedIsFIFO(t *testing.T) {
	ctx := context.Background()
	regs := NewMemoryRegistrationStore(NewMemoryEventStore())
	eventID := uuid.New()

	var queued []domain.Registration
	for i := 0; i < 3; i++ {
		created, err := regs.Create(ctx, domain.Registration{
			ID:      uuid.New(),
			UserID:  uuid.New(),
			EventID: eventID,
			Status:  domain.StatusWaitlisted,
		})
		require.NoError(t, err)
		queued = append(queued, created)
	}

	head, err := regs.NextWaitlisted(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, queued[0].ID, head.ID)

	head.Status = domain.StatusRegistered
	require.NoError(t, regs.Update(ctx, head))

	head, err = regs.NextWaitlisted(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, queued[1].ID, head.ID, "promotion moves the head to the next arrival")

	count, err := regs.CountWaitlisted(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = regs.NextWaitlisted(ctx, uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryRegistrationStoreWaitlistPosition(t *testing.T) {
	ctx := context.Background()
	regs := NewMemoryRegistrationStore(NewMemoryEventStore())
	eventID := uuid.New()

	var queued []domain.Registration
	for i := 0; i < 3; i++ {
		created, err := regs.Create(ctx, domain.Registration{
			ID:      uuid.New(),
			UserID:  uuid.New(),
			EventID: eventID,
			Status:  domain.StatusWaitlisted,
		})
		require.NoError(t, err)
		queued = append(queued, created)
	}

	for i, reg := range queued {
		position, err := regs.WaitlistPosition(ctx, reg.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, position, "position follows arrival order")
	}

	// A later arrival never moves earlier entries back.
	_, err := regs.Create(ctx, domain.Registration{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		EventID: eventID,
		Status:  domain.StatusWaitlisted,
	})
	require.NoError(t, err)
	position, err := regs.WaitlistPosition(ctx, queued[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, position)

	// Promoting the head moves everyone behind it up by one.
	head := queued[0]
	head.Status = domain.StatusRegistered
	require.NoError(t, regs.Update(ctx, head))
	position, err = regs.WaitlistPosition(ctx, queued[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, position)

	_, err = regs.WaitlistPosition(ctx, head.ID)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState, "only waitlisted rows have a position")

	_, err = regs.WaitlistPosition(ctx, uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryRegistrationStoreFindActiveByUserAndEvent(t *testing.T) {
	ctx := context.Background()
	regs := NewMemoryRegistrationStore(NewMemoryEventStore())
	userID := uuid.New()
	eventID := uuid.New()

	cancelled, err := regs.Create(ctx, domain.Registration{
		ID:      uuid.New(),
		UserID:  userID,
		EventID: eventID,
		Status:  domain.StatusCancelled,
	})
	require.NoError(t, err)

	_, err = regs.FindActiveByUserAndEvent(ctx, userID, eventID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "cancelled rows do not block re-registration")

	active, err := regs.Create(ctx, domain.Registration{
		ID:      uuid.New(),
		UserID:  userID,
		EventID: eventID,
		Status:  domain.StatusWaitlisted,
	})
	require.NoError(t, err)

	found, err := regs.FindActiveByUserAndEvent(ctx, userID, eventID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)
	assert.NotEqual(t, cancelled.ID, found.ID)
}

func TestMemoryRegistrationStoreListActiveOverlapping(t *testing.T) {
	ctx := context.Background()
	events := NewMemoryEventStore()
	regs := NewMemoryRegistrationStore(events)
	userID := uuid.New()

	overlapping := publishedEvent(func(e *domain.Event) {
		e.StartTime = storeNow
		e.EndTime = storeNow.Add(2 * time.Hour)
	})
	// Ends exactly when the query window opens; half-open semantics exclude it.
	adjacent := publishedEvent(func(e *domain.Event) {
		e.StartTime = storeNow.Add(-2 * time.Hour)
		e.EndTime = storeNow
	})
	waitlistedEvent := publishedEvent(func(e *domain.Event) {
		e.StartTime = storeNow
		e.EndTime = storeNow.Add(2 * time.Hour)
	})
	for _, e := range []domain.Event{overlapping, adjacent, waitlistedEvent} {
		require.NoError(t, events.Create(ctx, e))
	}

	for _, seed := range []struct {
		eventID uuid.UUID
		status  domain.RegistrationStatus
	}{
		{overlapping.ID, domain.StatusRegistered},
		{adjacent.ID, domain.StatusRegistered},
		{waitlistedEvent.ID, domain.StatusWaitlisted},
	} {
		_, err := regs.Create(ctx, domain.Registration{
			ID:      uuid.New(),
			UserID:  userID,
			EventID: seed.eventID,
			Status:  seed.status,
		})
		require.NoError(t, err)
	}

	got, err := regs.ListActiveOverlapping(ctx, userID, storeNow, storeNow.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1, "only held seats with intersecting windows count")
	assert.Equal(t, overlapping.ID, got[0].Event.ID)
}

func TestMemoryRegistrationStoreMarkAttended(t *testing.T) {
	ctx := context.Background()
	regs := NewMemoryRegistrationStore(NewMemoryEventStore())

	reg, err := regs.Create(ctx, domain.Registration{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		EventID: uuid.New(),
		Status:  domain.StatusRegistered,
	})
	require.NoError(t, err)

	stamp := storeNow.Add(49 * time.Hour)
	require.NoError(t, regs.MarkAttended(ctx, reg.ID, stamp))

	got, err := regs.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAttended, got.Status)
	require.NotNil(t, got.CheckInTime)
	assert.True(t, got.CheckInTime.Equal(stamp))

	err = regs.MarkAttended(ctx, reg.ID, stamp.Add(time.Minute))
	assert.ErrorIs(t, err, sentinel.ErrInvalidState, "check-in stamps exactly once")

	waitlisted, err := regs.Create(ctx, domain.Registration{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		EventID: uuid.New(),
		Status:  domain.StatusWaitlisted,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, regs.MarkAttended(ctx, waitlisted.ID, stamp), sentinel.ErrInvalidState)

	assert.ErrorIs(t, regs.MarkAttended(ctx, uuid.New(), stamp), sentinel.ErrNotFound)
}

func TestMemoryPromoStoreRedeem(t *testing.T) {
	ctx := context.Background()

	valid := domain.PromoCode{
		Code:          "SPRING25",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 25,
		MaxUses:       2,
		ValidFrom:     storeNow.Add(-time.Hour),
		ValidUntil:    storeNow.Add(24 * time.Hour),
		Active:        true,
	}

	t.Run("counts uses until exhausted", func(t *testing.T) {
		promos := NewMemoryPromoStore()
		require.NoError(t, promos.Create(ctx, valid))

		first, err := promos.Redeem(ctx, "SPRING25", storeNow)
		require.NoError(t, err)
		assert.Equal(t, 1, first.CurrentUses)

		_, err = promos.Redeem(ctx, "SPRING25", storeNow)
		require.NoError(t, err)

		_, err = promos.Redeem(ctx, "SPRING25", storeNow)
		assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	})

	t.Run("rejects outside validity window", func(t *testing.T) {
		promos := NewMemoryPromoStore()
		require.NoError(t, promos.Create(ctx, valid))

		_, err := promos.Redeem(ctx, "SPRING25", valid.ValidUntil.Add(time.Second))
		assert.ErrorIs(t, err, sentinel.ErrExpired)

		_, err = promos.Redeem(ctx, "SPRING25", valid.ValidFrom.Add(-time.Second))
		assert.ErrorIs(t, err, sentinel.ErrExpired)
	})

	t.Run("rejects inactive and unknown codes", func(t *testing.T) {
		promos := NewMemoryPromoStore()
		inactive := valid
		inactive.Active = false
		require.NoError(t, promos.Create(ctx, inactive))

		_, err := promos.Redeem(ctx, "SPRING25", storeNow)
		assert.ErrorIs(t, err, sentinel.ErrExpired)

		_, err = promos.Redeem(ctx, "NOPE", storeNow)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("single-use code survives concurrent redemption", func(t *testing.T) {
		promos := NewMemoryPromoStore()
		single := valid
		single.MaxUses = 1
		require.NoError(t, promos.Create(ctx, single))

		const attempts = 16
		var wg sync.WaitGroup
		results := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := promos.Redeem(ctx, "SPRING25", storeNow)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestMemoryPromoStoreRelease(t *testing.T) {
	ctx := context.Background()
	promos := NewMemoryPromoStore()
	require.NoError(t, promos.Create(ctx, domain.PromoCode{
		Code:          "ONEUSE",
		DiscountType:  domain.DiscountFixed,
		DiscountValue: 50,
		MaxUses:       1,
		ValidFrom:     storeNow.Add(-time.Hour),
		ValidUntil:    storeNow.Add(24 * time.Hour),
		Active:        true,
	}))

	_, err := promos.Redeem(ctx, "ONEUSE", storeNow)
	require.NoError(t, err)
	_, err = promos.Redeem(ctx, "ONEUSE", storeNow)
	require.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

	// Releasing the use makes the exhausted code redeemable again.
	require.NoError(t, promos.Release(ctx, "ONEUSE"))
	promo, err := promos.Redeem(ctx, "ONEUSE", storeNow)
	require.NoError(t, err)
	assert.Equal(t, 1, promo.CurrentUses)

	assert.ErrorIs(t, promos.Release(ctx, "NOPE"), sentinel.ErrNotFound)

	// An unredeemed code has no use to return.
	require.NoError(t, promos.Create(ctx, domain.PromoCode{
		Code:       "FRESH",
		Active:     true,
		ValidFrom:  storeNow.Add(-time.Hour),
		ValidUntil: storeNow.Add(24 * time.Hour),
	}))
	assert.ErrorIs(t, promos.Release(ctx, "FRESH"), sentinel.ErrNotFound)
}
