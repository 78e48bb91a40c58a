package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for reservation and cancellation flows.
type BookingMetrics struct {
	reservationsTotal  *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	slotQueryLatency   *prometheus.HistogramVec
	confirmationsTotal *prometheus.CounterVec
	sweptTotal         *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "reservations_total",
			Help:      "Slot reservation attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation requests by outcome",
		}, []string{"outcome"}),
		slotQueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "slot_query_seconds",
			Help:      "Latency of available slot discovery",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		confirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "confirmations_total",
			Help:      "Reservation confirmations by outcome",
		}, []string{"outcome"}),
		sweptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "reservations_swept_total",
			Help:      "Lapsed reservations marked expired by the hygiene sweep, and failed sweeps",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservationsTotal, m.cancellationsTotal, m.slotQueryLatency, m.confirmationsTotal, m.sweptTotal)
	return m
}

func (m *BookingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery(status string, seconds float64) {
	if m == nil {
		return
	}
	m.slotQueryLatency.WithLabelValues(status).Observe(seconds)
}

// ObserveSweep adds n expired rows, or counts one failed run when err is set.
func (m *BookingMetrics) ObserveSweep(n int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweptTotal.WithLabelValues("error").Inc()
		return
	}
	m.sweptTotal.WithLabelValues("expired").Add(float64(n))
}

// ChatMetrics counts conversation turns and how fields were extracted.
type ChatMetrics struct {
	extractionsTotal *prometheus.CounterVec
	commitsTotal     *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		extractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "chat",
			Name:      "extractions_total",
			Help:      "Field extraction attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "chat",
			Name:      "commits_total",
			Help:      "Booking commits from the assistant by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.extractionsTotal, m.commitsTotal)
	return m
}

func (m *ChatMetrics) ObserveExtraction(strategy, outcome string) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(strategy, outcome).Inc()
}

func (m *ChatMetrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
}
