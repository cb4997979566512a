package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campushub/internal/domain"
	"campushub/internal/registration/store"
	"campushub/pkg/platform/sentinel"
)

// MemoryLedger serializes seat accounting with one lock per event id. It is
// correct as long as this process is the only writer of the backing stores,
// which holds for the in-memory deployment and for tests. Multi-process
// deployments use the Postgres ledger instead.
type MemoryLedger struct {
	events store.EventStore
	regs   store.RegistrationStore
	locks  *eventLocks
}

// NewMemory builds a ledger over the given stores. lockTimeout bounds how
// long an admit or release may wait on a contended event before giving up
// with a retryable error.
func NewMemory(events store.EventStore, regs store.RegistrationStore, lockTimeout time.Duration) *MemoryLedger {
	return &MemoryLedger{
		events: events,
		regs:   regs,
		locks:  newEventLocks(lockTimeout),
	}
}

func (l *MemoryLedger) Admit(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	release, err := l.locks.acquire(ctx, reg.EventID)
	if err != nil {
		return domain.Registration{}, err
	}
	defer release()

	event, err := l.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return domain.Registration{}, err
	}
	if _, err := l.regs.FindActiveByUserAndEvent(ctx, reg.UserID, reg.EventID); err == nil {
		return domain.Registration{}, fmt.Errorf("user already registered: %w", sentinel.ErrConflict)
	}

	if event.HasCapacity() {
		reg.Status = domain.StatusRegistered
		if err := l.events.SetRegisteredCount(ctx, event.ID, event.RegisteredCount+1); err != nil {
			return domain.Registration{}, err
		}
	} else {
		reg.Status = domain.StatusWaitlisted
	}
	return l.regs.Create(ctx, reg)
}

func (l *MemoryLedger) Release(ctx context.Context, regID uuid.UUID) (domain.Registration, *Promotion, error) {
	reg, err := l.regs.GetByID(ctx, regID)
	if err != nil {
		return domain.Registration{}, nil, err
	}

	release, err := l.locks.acquire(ctx, reg.EventID)
	if err != nil {
		return domain.Registration{}, nil, err
	}
	defer release()

	// Re-read under the lock; a concurrent release may have won.
	reg, err = l.regs.GetByID(ctx, regID)
	if err != nil {
		return domain.Registration{}, nil, err
	}
	if !reg.Active() {
		return domain.Registration{}, nil, sentinel.ErrInvalidState
	}

	wasRegistered := reg.Status == domain.StatusRegistered
	reg.Status = domain.StatusCancelled
	if err := l.regs.Update(ctx, reg); err != nil {
		return domain.Registration{}, nil, err
	}
	if !wasRegistered {
		return reg, nil, nil
	}

	promotion, err := l.promoteOrDecrement(ctx, reg.EventID)
	if err != nil {
		return domain.Registration{}, nil, err
	}
	return reg, promotion, nil
}

func (l *MemoryLedger) Transfer(ctx context.Context, target domain.Registration, cancelEventIDs []uuid.UUID) (domain.Registration, []Promotion, error) {
	ids := dedupeSorted(append([]uuid.UUID{target.EventID}, cancelEventIDs...))
	release, err := l.locks.acquireAll(ctx, ids)
	if err != nil {
		return domain.Registration{}, nil, err
	}
	defer release()

	// Verify the target still has a seat before touching anything, so a
	// sold-out target aborts with zero side effects.
	event, err := l.events.GetByID(ctx, target.EventID)
	if err != nil {
		return domain.Registration{}, nil, err
	}
	if !event.HasCapacity() {
		return domain.Registration{}, nil, ErrSoldOut
	}
	if _, err := l.regs.FindActiveByUserAndEvent(ctx, target.UserID, target.EventID); err == nil {
		return domain.Registration{}, nil, fmt.Errorf("user already registered: %w", sentinel.ErrConflict)
	}

	var promotions []Promotion
	for _, eventID := range cancelEventIDs {
		if eventID == target.EventID {
			continue
		}
		existing, err := l.regs.FindActiveByUserAndEvent(ctx, target.UserID, eventID)
		if err != nil || existing.Status != domain.StatusRegistered {
			// Nothing to cancel there; the caller's conflict list is stale.
			continue
		}
		existing.Status = domain.StatusCancelled
		if err := l.regs.Update(ctx, existing); err != nil {
			return domain.Registration{}, nil, err
		}
		promotion, err := l.promoteOrDecrement(ctx, eventID)
		if err != nil {
			return domain.Registration{}, nil, err
		}
		if promotion != nil {
			promotions = append(promotions, *promotion)
		}
	}

	target.Status = domain.StatusRegistered
	if err := l.events.SetRegisteredCount(ctx, event.ID, event.RegisteredCount+1); err != nil {
		return domain.Registration{}, nil, err
	}
	created, err := l.regs.Create(ctx, target)
	if err != nil {
		return domain.Registration{}, nil, err
	}
	return created, promotions, nil
}

// promoteOrDecrement settles the books after a REGISTERED entry left the
// event: the FIFO head takes the seat, or with an empty waitlist the counter
// drops by one. Caller must hold the event lock.
func (l *MemoryLedger) promoteOrDecrement(ctx context.Context, eventID uuid.UUID) (*Promotion, error) {
	head, err := l.regs.NextWaitlisted(ctx, eventID)
	if err == nil {
		head.Status = domain.StatusRegistered
		if err := l.regs.Update(ctx, head); err != nil {
			return nil, err
		}
		return &Promotion{Registration: head}, nil
	}

	event, err := l.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	count := event.RegisteredCount - 1
	if count < 0 {
		count = 0
	}
	if err := l.events.SetRegisteredCount(ctx, eventID, count); err != nil {
		return nil, err
	}
	return nil, nil
}

// eventLocks hands out one semaphore per event id. Acquisition is bounded:
// a contended event surfaces sentinel.ErrUnavailable instead of hanging the
// request.
type eventLocks struct {
	mu      sync.Mutex
	locks   map[uuid.UUID]chan struct{}
	timeout time.Duration
}

func newEventLocks(timeout time.Duration) *eventLocks {
	return &eventLocks{
		locks:   make(map[uuid.UUID]chan struct{}),
		timeout: timeout,
	}
}

func (l *eventLocks) semaphore(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.locks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[id] = sem
	}
	return sem
}

func (l *eventLocks) acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	sem := l.semaphore(id)
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("event lock timeout: %w", sentinel.ErrUnavailable)
	}
}

// acquireAll takes locks in sorted id order so overlapping transfers cannot
// deadlock. ids must already be sorted and deduplicated.
func (l *eventLocks) acquireAll(ctx context.Context, ids []uuid.UUID) (func(), error) {
	var held []func()
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, id := range ids {
		release, err := l.acquire(ctx, id)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, release)
	}
	return releaseAll, nil
}

func dedupeSorted(ids []uuid.UUID) []uuid.UUID {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}
