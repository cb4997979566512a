package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemorySink records notifications in memory. It backs the single-process
// deployment and lets tests assert on what was sent.
type MemorySink struct {
	mu   sync.Mutex
	sent []Sent
}

// Sent is one recorded notification.
type Sent struct {
	UserID  uuid.UUID
	Payload Payload
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Notify(_ context.Context, userID uuid.UUID, payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, Sent{UserID: userID, Payload: payload})
	return nil
}

// Sent returns a copy of everything notified so far.
func (s *MemorySink) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sent, len(s.sent))
	copy(out, s.sent)
	return out
}

// SentTo filters recorded notifications by recipient.
func (s *MemorySink) SentTo(userID uuid.UUID) []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Sent
	for _, sent := range s.sent {
		if sent.UserID == userID {
			out = append(out, sent)
		}
	}
	return out
}
