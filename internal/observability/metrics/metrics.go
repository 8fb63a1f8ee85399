package metrics

import "github.com/prometheus/client_golang/prometheus"

// WatchMetrics exposes counters/histograms for the polling loop.
type WatchMetrics struct {
	cyclesTotal        *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	authTotal          *prometheus.CounterVec
	searchTotal        *prometheus.CounterVec
	searchResults      prometheus.Histogram
	suppressedTotal    prometheus.Counter
	notificationsTotal *prometheus.CounterVec
}

func NewWatchMetrics(reg prometheus.Registerer) *WatchMetrics {
	m := &WatchMetrics{
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "watch",
			Name:      "cycles_total",
			Help:      "Total poll cycles by outcome",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slotwatch",
			Subsystem: "watch",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one poll cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "portal",
			Name:      "auth_total",
			Help:      "Login handshakes by outcome",
		}, []string{"status"}),
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "portal",
			Name:      "search_total",
			Help:      "Slot searches by outcome",
		}, []string{"status"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slotwatch",
			Subsystem: "portal",
			Name:      "search_results",
			Help:      "Slots returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 500},
		}),
		suppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "reminders",
			Name:      "suppressed_total",
			Help:      "Slots muted after reaching the reminder threshold",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Digest deliveries by transport and outcome",
		}, []string{"transport", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.cyclesTotal, m.cycleDuration, m.authTotal, m.searchTotal, m.searchResults, m.suppressedTotal, m.notificationsTotal)
	return m
}

func (m *WatchMetrics) ObserveCycle(status string, seconds float64) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(seconds)
}

func (m *WatchMetrics) ObserveAuth(status string) {
	if m == nil {
		return
	}
	m.authTotal.WithLabelValues(status).Inc()
}

// ObserveSearch satisfies appointments.Observer.
func (m *WatchMetrics) ObserveSearch(status string, results int) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.searchResults.Observe(float64(results))
	}
}

func (m *WatchMetrics) ObserveSuppressed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.suppressedTotal.Add(float64(n))
}

// ObserveNotification satisfies notify.Observer.
func (m *WatchMetrics) ObserveNotification(transport, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(transport, status).Inc()
}
