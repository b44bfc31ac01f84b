package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FeeMetrics records delivery-fee computations.
type FeeMetrics struct {
	computations *prometheus.CounterVec
	duration     prometheus.Histogram
	freeDelivery prometheus.Counter
}

// NewFeeMetrics registers the fee metrics on the provided registerer.
func NewFeeMetrics(reg prometheus.Registerer) *FeeMetrics {
	if reg == nil {
		return &FeeMetrics{}
	}
	computations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dropfee_fee_computations_total",
		Help: "Delivery fee computations by outcome and surge source.",
	}, []string{"outcome", "surge_source"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dropfee_fee_computation_seconds",
		Help:    "Duration of delivery fee computations in seconds.",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
	})
	freeDelivery := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dropfee_free_delivery_total",
		Help: "Fee computations where the free-delivery threshold applied.",
	})
	reg.MustRegister(computations, duration, freeDelivery)
	return &FeeMetrics{
		computations: computations,
		duration:     duration,
		freeDelivery: freeDelivery,
	}
}

// ObserveSuccess records a completed computation.
func (m *FeeMetrics) ObserveSuccess(surgeSource string, free bool, d time.Duration) {
	if m == nil || m.computations == nil {
		return
	}
	m.computations.WithLabelValues("ok", normalizeLabel(surgeSource)).Inc()
	m.duration.Observe(d.Seconds())
	if free {
		m.freeDelivery.Inc()
	}
}

// ObserveFailure records a rejected computation.
func (m *FeeMetrics) ObserveFailure(d time.Duration) {
	if m == nil || m.computations == nil {
		return
	}
	m.computations.WithLabelValues("error", "none").Inc()
	m.duration.Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
