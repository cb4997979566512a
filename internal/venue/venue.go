// Package venue estimates travel time between campus venues. The estimate
// feeds conflict detection, so it must be deterministic: the same venue pair
// always yields the same answer, and the answer is symmetric.
package venue

import (
	"hash/fnv"
	"time"
)

// Campus venues mapped to a position on a walking-time axis, in minutes from
// the main auditorium. Venues not in the table sit at defaultPosition.
var venuePositions = map[string]int{
	"Dr. T.P. Ganesan Auditorium": 0,
	"Mini Hall 1":                 3,
	"Tech Park":                   5,
	"UB Auditorium Complex":       8,
	"Main Campus Grounds":         10,
	"Football Ground":             12,
	"SRM Cricket Ground":          15,
}

const (
	defaultPosition = 5
	maxPosition     = 15
	jitterSpread    = 5 // minutes, exclusive upper bound
)

// DistanceModel computes symmetric, deterministic travel-time estimates.
// A pair-seeded jitter stands in for real routing variance without breaking
// reproducibility: the seed is the venue pair itself, never the clock.
type DistanceModel struct{}

// NewDistanceModel returns the campus distance model.
func NewDistanceModel() *DistanceModel {
	return &DistanceModel{}
}

// TravelTime estimates how long moving from venue a to venue b takes.
// TravelTime(v, v) is always zero and TravelTime(a, b) == TravelTime(b, a).
func (m *DistanceModel) TravelTime(a, b string) time.Duration {
	if a == b {
		return 0
	}
	base := positionOf(a) - positionOf(b)
	if base < 0 {
		base = -base
	}
	return time.Duration(base+pairJitter(a, b)) * time.Minute
}

// MaxTravelTime bounds any estimate the model can produce. Conflict detection
// uses it to widen its coarse store query before refining per pair.
func (m *DistanceModel) MaxTravelTime() time.Duration {
	return time.Duration(maxPosition+jitterSpread-1) * time.Minute
}

func positionOf(venue string) int {
	if pos, ok := venuePositions[venue]; ok {
		return pos
	}
	return defaultPosition
}

// pairJitter derives 0-4 extra minutes from a hash of the unordered pair, so
// both argument orders seed identically.
func pairJitter(a, b string) int {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	h := fnv.New64a()
	h.Write([]byte(lo))
	h.Write([]byte{0})
	h.Write([]byte(hi))
	return int(h.Sum64() % jitterSpread)
}
