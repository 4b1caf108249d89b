package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics counts reservation outcomes so dashboards can track
// contention on hot products.
type InventoryMetrics struct {
	reservations *prometheus.CounterVec
	releases     prometheus.Counter
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Reservation attempts by outcome.",
	}, []string{"outcome"})
	releases := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_releases_total",
		Help: "Released reservations.",
	})
	reg.MustRegister(reservations, releases)
	return &InventoryMetrics{
		reservations: reservations,
		releases:     releases,
	}
}

// IncReservation records a reservation attempt with the given outcome,
// usually "reserved" or "insufficient".
func (m *InventoryMetrics) IncReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRelease records a release.
func (m *InventoryMetrics) IncRelease() {
	if m == nil || m.releases == nil {
		return
	}
	m.releases.Inc()
}
