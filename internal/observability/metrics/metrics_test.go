package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestLeadMetricsObserve(t *testing.T) {
	m := NewLeadMetrics(prometheus.NewRegistry())
	m.ObserveSubmission("accepted")
	m.ObserveStoreLatency(0.25)
	m.ObserveNotification("business", true)
	m.ObserveRateLimited("leads")
}

func TestLeadMetricsCountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLeadMetrics(reg)
	m.ObserveNotification("customer", false)
	m.ObserveNotification("customer", false)
	m.ObserveNotification("customer", true)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var failed float64
	for _, mf := range families {
		if mf.GetName() != "primemortgage_leads_notifications_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelValue(metric, "status") == "failed" && labelValue(metric, "channel") == "customer" {
				failed = metric.GetCounter().GetValue()
			}
		}
	}
	if failed != 2 {
		t.Fatalf("expected 2 failed customer sends, got %v", failed)
	}
}

func TestLeadMetricsNilSafe(t *testing.T) {
	var m *LeadMetrics
	m.ObserveSubmission("accepted")
	m.ObserveStoreLatency(0.1)
	m.ObserveNotification("business", false)
	m.ObserveRateLimited("api")
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
