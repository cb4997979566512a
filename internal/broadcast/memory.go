package broadcast

import (
	"context"
	"sync"
)

// MemorySink records published payloads per topic. Used in tests and in the
// single-process deployment where no gateway is attached.
type MemorySink struct {
	mu        sync.Mutex
	published map[Topic][]any
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{published: make(map[Topic][]any)}
}

func (s *MemorySink) Publish(_ context.Context, topic Topic, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[topic] = append(s.published[topic], payload)
	return nil
}

// Published returns everything published to the topic so far.
func (s *MemorySink) Published(topic Topic) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.published[topic]))
	copy(out, s.published[topic])
	return out
}
