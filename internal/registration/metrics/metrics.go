package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration module.
// Tracks admission outcomes, waitlist movement, and the hot-path duration.
type Metrics struct {
	Registrations      *prometheus.CounterVec
	WaitlistPromotions prometheus.Counter
	ConflictsDetected  prometheus.Counter
	CapacityRaces      prometheus.Counter
	CheckIns           prometheus.Counter
	RegisterDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all registration module metrics registered.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "campushub_registrations_total",
			Help: "Total admission outcomes by resulting status",
		}, []string{"status"}),
		WaitlistPromotions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campushub_waitlist_promotions_total",
			Help: "Total waitlisted registrations promoted to a seat",
		}),
		ConflictsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campushub_conflicts_detected_total",
			Help: "Total registration attempts rejected with a schedule conflict",
		}),
		CapacityRaces: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campushub_capacity_races_total",
			Help: "Total force-registrations aborted because the seat vanished",
		}),
		CheckIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campushub_checkins_total",
			Help: "Total successful event check-ins",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "campushub_register_duration_seconds",
			Help:    "Duration of register operations (admission critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRegistration records an admission outcome by status.
func (m *Metrics) IncrementRegistration(status string) {
	m.Registrations.WithLabelValues(status).Inc()
}

// IncrementWaitlistPromotion records one promotion.
func (m *Metrics) IncrementWaitlistPromotion() {
	m.WaitlistPromotions.Inc()
}

// IncrementConflictDetected records a register attempt that hit a conflict.
func (m *Metrics) IncrementConflictDetected() {
	m.ConflictsDetected.Inc()
}

// IncrementCapacityRace records a force-register that lost the seat race.
func (m *Metrics) IncrementCapacityRace() {
	m.CapacityRaces.Inc()
}

// IncrementCheckIn records a successful check-in.
func (m *Metrics) IncrementCheckIn() {
	m.CheckIns.Inc()
}

// ObserveRegister records the duration of a register operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}
