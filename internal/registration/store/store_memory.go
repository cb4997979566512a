package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campushub/internal/domain"
	"campushub/pkg/platform/sentinel"
)

// In-memory stores back tests and single-binary deployments. They favor
// clarity over performance; every method takes the store lock.

type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID]domain.Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[uuid.UUID]domain.Event)}
}

func (s *MemoryEventStore) Create(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
	return nil
}

func (s *MemoryEventStore) GetByID(_ context.Context, id uuid.UUID) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if event, ok := s.events[id]; ok {
		return event, nil
	}
	return domain.Event{}, sentinel.ErrNotFound
}

func (s *MemoryEventStore) SetRegisteredCount(_ context.Context, id uuid.UUID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	event.RegisteredCount = count
	s.events[id] = event
	return nil
}

func (s *MemoryEventStore) ListAlternatives(_ context.Context, categoryID uuid.UUID, exclude []uuid.UUID, after time.Time, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	var out []domain.Event
	for _, event := range s.events {
		if event.CategoryID != categoryID || excluded[event.ID] {
			continue
		}
		if event.Status != domain.EventPublished || !event.HasCapacity() {
			continue
		}
		if !event.StartTime.After(after) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryEventStore) ListStartingBetween(_ context.Context, from, to time.Time) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Event
	for _, event := range s.events {
		if event.Status != domain.EventPublished {
			continue
		}
		if event.StartTime.Before(from) || !event.StartTime.Before(to) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

type regEntry struct {
	reg domain.Registration
	seq uint64
}

// MemoryRegistrationStore keeps registrations in a map and joins against the
// event store for queries that need event windows.
type MemoryRegistrationStore struct {
	mu     sync.RWMutex
	regs   map[uuid.UUID]regEntry
	events *MemoryEventStore

	nextSeq uint64
	lastAt  time.Time
}

func NewMemoryRegistrationStore(events *MemoryEventStore) *MemoryRegistrationStore {
	return &MemoryRegistrationStore{
		regs:   make(map[uuid.UUID]regEntry),
		events: events,
	}
}

func (s *MemoryRegistrationStore) Create(_ context.Context, reg domain.Registration) (domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reg.RegisteredAt.IsZero() {
		// Strictly monotonic so FIFO ordering never depends on clock
		// resolution under concurrent admits.
		now := time.Now().UTC()
		if !now.After(s.lastAt) {
			now = s.lastAt.Add(time.Nanosecond)
		}
		s.lastAt = now
		reg.RegisteredAt = now
	}
	s.nextSeq++
	s.regs[reg.ID] = regEntry{reg: reg, seq: s.nextSeq}
	return reg, nil
}

func (s *MemoryRegistrationStore) GetByID(_ context.Context, id uuid.UUID) (domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.regs[id]; ok {
		return entry.reg, nil
	}
	return domain.Registration{}, sentinel.ErrNotFound
}

func (s *MemoryRegistrationStore) Update(_ context.Context, reg domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.regs[reg.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	entry.reg = reg
	s.regs[reg.ID] = entry
	return nil
}

func (s *MemoryRegistrationStore) FindActiveByUserAndEvent(_ context.Context, userID, eventID uuid.UUID) (domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.regs {
		if entry.reg.UserID == userID && entry.reg.EventID == eventID && entry.reg.Active() {
			return entry.reg, nil
		}
	}
	return domain.Registration{}, sentinel.ErrNotFound
}

func (s *MemoryRegistrationStore) ListActiveOverlapping(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]RegistrationWithEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RegistrationWithEvent
	for _, entry := range s.regs {
		if entry.reg.UserID != userID || entry.reg.Status != domain.StatusRegistered {
			continue
		}
		event, err := s.events.GetByID(ctx, entry.reg.EventID)
		if err != nil {
			continue
		}
		start, end := event.Window()
		if start.Before(to) && end.After(from) {
			out = append(out, RegistrationWithEvent{Registration: entry.reg, Event: event})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Event.StartTime.Before(out[j].Event.StartTime)
	})
	return out, nil
}

func (s *MemoryRegistrationStore) NextWaitlisted(_ context.Context, eventID uuid.UUID) (domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var head regEntry
	found := false
	for _, entry := range s.regs {
		if entry.reg.EventID != eventID || entry.reg.Status != domain.StatusWaitlisted {
			continue
		}
		if !found || entry.seq < head.seq {
			head = entry
			found = true
		}
	}
	if !found {
		return domain.Registration{}, sentinel.ErrNotFound
	}
	return head.reg, nil
}

func (s *MemoryRegistrationStore) CountWaitlisted(_ context.Context, eventID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, entry := range s.regs {
		if entry.reg.EventID == eventID && entry.reg.Status == domain.StatusWaitlisted {
			count++
		}
	}
	return count, nil
}

func (s *MemoryRegistrationStore) WaitlistPosition(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.regs[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if entry.reg.Status != domain.StatusWaitlisted {
		return 0, sentinel.ErrInvalidState
	}
	position := 0
	for _, other := range s.regs {
		if other.reg.EventID == entry.reg.EventID &&
			other.reg.Status == domain.StatusWaitlisted &&
			other.seq <= entry.seq {
			position++
		}
	}
	return position, nil
}

func (s *MemoryRegistrationStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]RegistrationWithEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RegistrationWithEvent
	for _, entry := range s.regs {
		if entry.reg.UserID != userID {
			continue
		}
		event, err := s.events.GetByID(ctx, entry.reg.EventID)
		if err != nil {
			continue
		}
		out = append(out, RegistrationWithEvent{Registration: entry.reg, Event: event})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Registration.RegisteredAt.After(out[j].Registration.RegisteredAt)
	})
	return out, nil
}

func (s *MemoryRegistrationStore) ListByEventAndStatus(_ context.Context, eventID uuid.UUID, status domain.RegistrationStatus) ([]domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []regEntry
	for _, entry := range s.regs {
		if entry.reg.EventID == eventID && entry.reg.Status == status {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]domain.Registration, len(entries))
	for i, entry := range entries {
		out[i] = entry.reg
	}
	return out, nil
}

func (s *MemoryRegistrationStore) MarkAttended(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.regs[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if entry.reg.Status != domain.StatusRegistered || entry.reg.CheckInTime != nil {
		return sentinel.ErrInvalidState
	}
	entry.reg.Status = domain.StatusAttended
	stamp := at
	entry.reg.CheckInTime = &stamp
	s.regs[id] = entry
	return nil
}

// MemoryPromoStore redeems codes under a single mutex, which gives the
// atomic check-and-increment the interface requires.
type MemoryPromoStore struct {
	mu     sync.Mutex
	promos map[string]domain.PromoCode
}

func NewMemoryPromoStore() *MemoryPromoStore {
	return &MemoryPromoStore{promos: make(map[string]domain.PromoCode)}
}

func (s *MemoryPromoStore) Create(_ context.Context, promo domain.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promos[promo.Code] = promo
	return nil
}

func (s *MemoryPromoStore) Redeem(_ context.Context, code string, at time.Time) (domain.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	promo, ok := s.promos[code]
	if !ok {
		return domain.PromoCode{}, sentinel.ErrNotFound
	}
	if !promo.Active || at.Before(promo.ValidFrom) || at.After(promo.ValidUntil) {
		return domain.PromoCode{}, sentinel.ErrExpired
	}
	if promo.MaxUses > 0 && promo.CurrentUses >= promo.MaxUses {
		return domain.PromoCode{}, sentinel.ErrAlreadyUsed
	}
	promo.CurrentUses++
	s.promos[code] = promo
	return promo, nil
}

func (s *MemoryPromoStore) Release(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	promo, ok := s.promos[code]
	if !ok || promo.CurrentUses == 0 {
		return sentinel.ErrNotFound
	}
	promo.CurrentUses--
	s.promos[code] = promo
	return nil
}
