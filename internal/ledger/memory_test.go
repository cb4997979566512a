package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campushub/internal/domain"
	"campushub/internal/registration/store"
	"campushub/pkg/platform/sentinel"
)

type ledgerFixture struct {
	events *store.MemoryEventStore
	regs   *store.MemoryRegistrationStore
	ledger *MemoryLedger
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	events := store.NewMemoryEventStore()
	regs := store.NewMemoryRegistrationStore(events)
	return &ledgerFixture{
		events: events,
		regs:   regs,
		ledger: NewMemory(events, regs, time.Second),
	}
}

func (f *ledgerFixture) addEvent(t *testing.T, capacity int) domain.Event {
	t.Helper()
	event := domain.Event{
		ID:         uuid.New(),
		Title:      "Tech Symposium",
		CategoryID: uuid.New(),
		Venue:      "Main Auditorium",
		StartTime:  time.Now().Add(48 * time.Hour),
		Capacity:   capacity,
		Status:     domain.EventPublished,
	}
	require.NoError(t, f.events.Create(context.Background(), event))
	return event
}

func (f *ledgerFixture) admit(t *testing.T, userID, eventID uuid.UUID) domain.Registration {
	t.Helper()
	reg, err := f.ledger.Admit(context.Background(), domain.Registration{
		ID:      uuid.New(),
		UserID:  userID,
		EventID: eventID,
	})
	require.NoError(t, err)
	return reg
}

func (f *ledgerFixture) registeredCount(t *testing.T, eventID uuid.UUID) int {
	t.Helper()
	event, err := f.events.GetByID(context.Background(), eventID)
	require.NoError(t, err)
	return event.RegisteredCount
}

func TestMemoryLedgerAdmit(t *testing.T) {
	ctx := context.Background()

	t.Run("admits while seats remain", func(t *testing.T) {
		f := newLedgerFixture(t)
		event := f.addEvent(t, 2)

		reg := f.admit(t, uuid.New(), event.ID)

		assert.Equal(t, domain.StatusRegistered, reg.Status)
		assert.False(t, reg.RegisteredAt.IsZero())
		assert.Equal(t, 1, f.registeredCount(t, event.ID))
	})

	t.Run("waitlists once full", func(t *testing.T) {
		f := newLedgerFixture(t)
		event := f.addEvent(t, 1)
		f.admit(t, uuid.New(), event.ID)

		reg := f.admit(t, uuid.New(), event.ID)

		assert.Equal(t, domain.StatusWaitlisted, reg.Status)
		assert.Equal(t, 1, f.registeredCount(t, event.ID))
	})

	t.Run("rejects a second active registration", func(t *testing.T) {
		f := newLedgerFixture(t)
		event := f.addEvent(t, 10)
		userID := uuid.New()
		f.admit(t, userID, event.ID)

		_, err := f.ledger.Admit(ctx, domain.Registration{
			ID: uuid.New(), UserID: userID, EventID: event.ID,
		})

		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("rejects unknown event", func(t *testing.T) {
		f := newLedgerFixture(t)

		_, err := f.ledger.Admit(ctx, domain.Registration{
			ID: uuid.New(), UserID: uuid.New(), EventID: uuid.New(),
		})

		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

// The last seat must go to exactly one of many concurrent admits; everyone
// else lands on the waitlist and the counter never exceeds capacity.
func TestMemoryLedgerAdmitLastSeatRace(t *testing.T) {
	f := newLedgerFixture(t)
	event := f.addEvent(t, 1)
	ctx := context.Background()

	const contenders = 32
	results := make([]domain.Registration, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg, err := f.ledger.Admit(ctx, domain.Registration{
				ID: uuid.New(), UserID: uuid.New(), EventID: event.ID,
			})
			if err == nil {
				results[i] = reg
			}
		}(i)
	}
	wg.Wait()

	registered := 0
	waitlisted := 0
	for _, reg := range results {
		switch reg.Status {
		case domain.StatusRegistered:
			registered++
		case domain.StatusWaitlisted:
			waitlisted++
		}
	}
	assert.Equal(t, 1, registered)
	assert.Equal(t, contenders-1, waitlisted)
	assert.Equal(t, 1, f.registeredCount(t, event.ID))
}

func TestMemoryLedgerRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes the earliest waitlisted entry", func(t *testing.T) {
		f := newLedgerFixture(t)
		event := f.addEvent(t, 1)
		holder := f.admit(t, uuid.New(), event.ID)
		first := f.admit(t, uuid.New(), event.ID)
		second := f.admit(t, uuid.New(), event.ID)
		require.Equal(t, domain.StatusWaitlisted, first.Status)
		require.Equal(t, domain.StatusWaitlisted, second.Status)

		cancelled, promotion, err := f.ledger.Release(ctx, holder.ID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		require.NotNil(t, promotion)
		assert.Equal(t, first.ID, promotion.Registration.ID)
		assert.Equal(t, domain.StatusRegistered, promotion.Registration.Status)
		// The seat changed hands, so the counter holds.
		assert.Equal(t, 1, f.registeredCount(t, event.ID))
	})

	t.Run("frees the seat when the waitlist is empty", func(t *testing.T) {
		f := newLedgerFixture(t)
		event := f.addEvent(t, 1)
		holder := f.admit(t, uuid.New(), event.ID)

		_, promotion, err := f.ledger.Release(ctx, holder.ID)

		require.NoError(t, err)
		assert.Nil(t, promotion)
		assert.Equal(t, 0, f.registeredCount(t, event.ID))
	})

	t.Run("cancelling a waitlisted entry leaves the counter alone", func(t *testing.T) {
		f := newLedgerFixture(t)
		event := f.addEvent(t, 1)
		f.admit(t, uuid.New(), event.ID)
		waitlisted := f.admit(t, uuid.New(), event.ID)

		cancelled, promotion, err := f.ledger.Release(ctx, waitlisted.ID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Nil(t, promotion)
		assert.Equal(t, 1, f.registeredCount(t, event.ID))
	})

	t.Run("rejects a double cancel", func(t *testing.T) {
		f := newLedgerFixture(t)
		event := f.addEvent(t, 1)
		holder := f.admit(t, uuid.New(), event.ID)
		_, _, err := f.ledger.Release(ctx, holder.ID)
		require.NoError(t, err)

		_, _, err = f.ledger.Release(ctx, holder.ID)

		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("rejects an unknown registration", func(t *testing.T) {
		f := newLedgerFixture(t)

		_, _, err := f.ledger.Release(ctx, uuid.New())

		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestMemoryLedgerReleaseFIFOOrder(t *testing.T) {
	f := newLedgerFixture(t)
	event := f.addEvent(t, 1)
	ctx := context.Background()

	holder := f.admit(t, uuid.New(), event.ID)
	var waitlist []domain.Registration
	for i := 0; i < 3; i++ {
		waitlist = append(waitlist, f.admit(t, uuid.New(), event.ID))
	}

	// Each release promotes the next entry in arrival order.
	current := holder
	for _, expected := range waitlist {
		_, promotion, err := f.ledger.Release(ctx, current.ID)
		require.NoError(t, err)
		require.NotNil(t, promotion)
		assert.Equal(t, expected.ID, promotion.Registration.ID)
		current = promotion.Registration
	}
}

func TestMemoryLedgerTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels conflicts and admits the target", func(t *testing.T) {
		f := newLedgerFixture(t)
		conflictA := f.addEvent(t, 1)
		conflictB := f.addEvent(t, 5)
		target := f.addEvent(t, 5)
		userID := uuid.New()
		heldA := f.admit(t, userID, conflictA.ID)
		heldB := f.admit(t, userID, conflictB.ID)
		queued := f.admit(t, uuid.New(), conflictA.ID)
		require.Equal(t, domain.StatusWaitlisted, queued.Status)

		created, promotions, err := f.ledger.Transfer(ctx, domain.Registration{
			ID: uuid.New(), UserID: userID, EventID: target.ID,
		}, []uuid.UUID{conflictA.ID, conflictB.ID})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusRegistered, created.Status)
		assert.Equal(t, 1, f.registeredCount(t, target.ID))

		// The seat vacated on the full event passed to its waitlist head.
		require.Len(t, promotions, 1)
		assert.Equal(t, queued.ID, promotions[0].Registration.ID)
		assert.Equal(t, 1, f.registeredCount(t, conflictA.ID))
		assert.Equal(t, 0, f.registeredCount(t, conflictB.ID))

		for _, id := range []uuid.UUID{heldA.ID, heldB.ID} {
			reg, err := f.regs.GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCancelled, reg.Status)
		}
	})

	t.Run("sold-out target aborts before any cancellation", func(t *testing.T) {
		f := newLedgerFixture(t)
		conflict := f.addEvent(t, 5)
		target := f.addEvent(t, 1)
		f.admit(t, uuid.New(), target.ID)
		userID := uuid.New()
		held := f.admit(t, userID, conflict.ID)

		_, _, err := f.ledger.Transfer(ctx, domain.Registration{
			ID: uuid.New(), UserID: userID, EventID: target.ID,
		}, []uuid.UUID{conflict.ID})

		assert.ErrorIs(t, err, ErrSoldOut)
		reg, getErr := f.regs.GetByID(ctx, held.ID)
		require.NoError(t, getErr)
		assert.Equal(t, domain.StatusRegistered, reg.Status)
		assert.Equal(t, 1, f.registeredCount(t, conflict.ID))
	})

	t.Run("skips stale conflict entries", func(t *testing.T) {
		f := newLedgerFixture(t)
		stale := f.addEvent(t, 5)
		target := f.addEvent(t, 5)
		userID := uuid.New()

		created, promotions, err := f.ledger.Transfer(ctx, domain.Registration{
			ID: uuid.New(), UserID: userID, EventID: target.ID,
		}, []uuid.UUID{stale.ID})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusRegistered, created.Status)
		assert.Empty(t, promotions)
	})

	t.Run("rejects when already registered for the target", func(t *testing.T) {
		f := newLedgerFixture(t)
		target := f.addEvent(t, 5)
		userID := uuid.New()
		f.admit(t, userID, target.ID)

		_, _, err := f.ledger.Transfer(ctx, domain.Registration{
			ID: uuid.New(), UserID: userID, EventID: target.ID,
		}, nil)

		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})
}

func TestMemoryLedgerLockTimeout(t *testing.T) {
	events := store.NewMemoryEventStore()
	regs := store.NewMemoryRegistrationStore(events)
	l := NewMemory(events, regs, 20*time.Millisecond)
	ctx := context.Background()

	event := domain.Event{
		ID: uuid.New(), Title: "Hackathon", Venue: "Tech Park",
		StartTime: time.Now().Add(time.Hour), Capacity: 10,
		Status: domain.EventPublished,
	}
	require.NoError(t, events.Create(ctx, event))

	release, err := l.locks.acquire(ctx, event.ID)
	require.NoError(t, err)
	defer release()

	_, err = l.Admit(ctx, domain.Registration{
		ID: uuid.New(), UserID: uuid.New(), EventID: event.ID,
	})

	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
