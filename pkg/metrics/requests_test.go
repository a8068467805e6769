package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestRequestMetricsCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewRequestMetrics(reg)

	m.IncRequest("list_products", "ok")
	m.IncRequest("list_products", "ok")
	m.IncRequest("", "error")
	m.IncRefresh("rejected")
	m.ObserveDuration("list_products", 25*time.Millisecond)

	if got := counterValue(t, m.requests, "list_products", "ok"); got != 2 {
		t.Fatalf("expected 2 ok requests, got %v", got)
	}
	if got := counterValue(t, m.requests, "unknown", "error"); got != 1 {
		t.Fatalf("expected empty operation to normalize, got %v", got)
	}
	if got := counterValue(t, m.refreshes, "rejected"); got != 1 {
		t.Fatalf("expected 1 rejected refresh, got %v", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	t.Parallel()

	m := NewRequestMetrics(nil)
	m.IncRequest("x", "ok")
	m.IncRefresh("ok")
	m.ObserveDuration("x", time.Second)
}
