package server

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for successful requests. Failures use the pipeline error
// kind as their label.
const outcomeSuccess = "success"

// Metrics holds the Prometheus collectors for prediction requests
type Metrics struct {
	predictions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	emissions   prometheus.Histogram
}

// NewMetrics creates prediction metrics registered with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates prediction metrics with a custom registry.
// A nil registerer leaves the collectors unregistered.
func NewMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "co2_predictions_total",
			Help: "Total number of prediction requests by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "co2_prediction_duration_seconds",
			Help:    "Prediction request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"outcome"}),
		emissions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "co2_prediction_kg",
			Help:    "Predicted weekly emissions in kg of CO2",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}

	if registerer != nil {
		m.predictions = register(registerer, m.predictions)
		m.duration = register(registerer, m.duration)
		m.emissions = register(registerer, m.emissions)
	}

	return m
}

// register registers c, returning the collector already registered under the
// same descriptor when there is one.
func register[C prometheus.Collector](registerer prometheus.Registerer, c C) C {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// observe records a finished prediction request
func (m *Metrics) observe(outcome string, elapsed time.Duration) {
	m.predictions.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// observePrediction records a successful prediction and its value
func (m *Metrics) observePrediction(kg float64, elapsed time.Duration) {
	m.observe(outcomeSuccess, elapsed)
	m.emissions.Observe(kg)
}
