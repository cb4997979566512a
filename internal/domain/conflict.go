package domain

import "time"

// ConflictingEvent pairs an event the user already holds with the travel time
// that makes the candidate unreachable from it.
type ConflictingEvent struct {
	Event      Event
	TravelTime time.Duration
}

// Alternative is a suggested replacement event, scored 0-100 by similarity to
// the candidate.
type Alternative struct {
	Event           Event
	SimilarityScore int
}

// ConflictResult is the transient outcome of conflict detection. It is never
// persisted; the caller either picks an alternative or force-registers.
type ConflictResult struct {
	HasConflict           bool
	ConflictingEvents     []ConflictingEvent
	SuggestedAlternatives []Alternative // sorted descending by score, at most 5
}
