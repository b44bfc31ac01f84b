package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestFeeMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFeeMetrics(reg)
	m.ObserveSuccess("zone", false, 300*time.Microsecond)
	m.ObserveSuccess("zone", true, 200*time.Microsecond)
	m.ObserveFailure(100 * time.Microsecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "dropfee_fee_computations_total", "surge_source", "zone"); err != nil {
		t.Fatalf("fetch computations: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 zone computations, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "dropfee_fee_computations_total", "outcome", "error"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 failure, got %f", got)
	}
	free := findMetricFamily(mfs, "dropfee_free_delivery_total")
	if free == nil || free.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected free delivery counter of 1")
	}
	hist := findMetricFamily(mfs, "dropfee_fee_computation_seconds")
	if hist == nil || hist.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
		t.Fatal("expected 3 duration samples")
	}
}

func TestHTTPMetricsAndSnapshotGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("POST", "/delivery/fee", 200, 5*time.Millisecond)
	m.Observe("POST", "", 404, time.Millisecond)

	version := int64(7)
	RegisterSnapshotVersion(reg, "zones", func() int64 { return version })

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "dropfee_http_requests_total", "route", "/delivery/fee"); err != nil || got != 1 {
		t.Fatalf("expected one fee request, got %f (%v)", got, err)
	}
	if _, err := fetchCounterValue(mfs, "dropfee_http_requests_total", "route", "unknown"); err != nil {
		t.Fatalf("expected unmatched route to be labelled unknown: %v", err)
	}
	gauge := findMetricFamily(mfs, "dropfee_snapshot_version")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != 7 {
		t.Fatal("expected snapshot gauge of 7")
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewFeeMetrics(nil).ObserveSuccess("zone", true, time.Millisecond)
	NewHTTPMetrics(nil).Observe("GET", "/health", 200, time.Millisecond)
	var m *FeeMetrics
	m.ObserveFailure(time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	var total float64
	found := false
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			total += metric.GetCounter().GetValue()
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return total, nil
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
