package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the lead submission pipeline.
type LeadMetrics struct {
	submissionsTotal   *prometheus.CounterVec
	storeLatency       prometheus.Histogram
	notificationsTotal *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "primemortgage",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Lead submissions by outcome",
		}, []string{"outcome"}),
		storeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "primemortgage",
			Subsystem: "leads",
			Name:      "store_latency_seconds",
			Help:      "Latency of spreadsheet appends",
			Buckets:   prometheus.DefBuckets,
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "primemortgage",
			Subsystem: "leads",
			Name:      "notifications_total",
			Help:      "Notification email sends by channel and status",
		}, []string{"channel", "status"}),
		rateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "primemortgage",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate ceiling",
		}, []string{"scope"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.storeLatency, m.notificationsTotal, m.rateLimitedTotal)
	return m
}

// ObserveSubmission counts one submission outcome
// (accepted, rejected, store_failed, error, replayed).
func (m *LeadMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *LeadMetrics) ObserveStoreLatency(seconds float64) {
	if m == nil {
		return
	}
	m.storeLatency.Observe(seconds)
}

func (m *LeadMetrics) ObserveNotification(channel string, sent bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !sent {
		status = "failed"
	}
	m.notificationsTotal.WithLabelValues(channel, status).Inc()
}

func (m *LeadMetrics) ObserveRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(scope).Inc()
}
