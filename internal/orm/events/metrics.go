package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsObserver records notifications as Prometheus metrics
type MetricsObserver struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	EntitiesLoaded    *prometheus.CounterVec
	ListingRows       *prometheus.HistogramVec
	ListingsInFlight  prometheus.Gauge
}

// NewMetricsObserver creates and registers the ORM metrics on reg. A nil
// registerer uses the default Prometheus registry.
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &MetricsObserver{}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omega_operations_total",
			Help: "Total number of entity manager operations",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omega_operation_duration_seconds",
			Help:    "Duration of entity manager operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.EntitiesLoaded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omega_entities_loaded_total",
			Help: "Total number of hydrated entities",
		},
		[]string{"entity", "source"},
	)

	m.ListingRows = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omega_listing_rows",
			Help:    "Number of rows hydrated per listing",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"entity"},
	)

	m.ListingsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "omega_listings_in_flight",
			Help: "Number of listings currently being hydrated",
		},
	)

	return m
}

func (m *MetricsObserver) OnOperation(e OperationEvent) {
	status := "success"
	if !e.Success {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(e.Name, status).Inc()
	m.OperationDuration.WithLabelValues(e.Name).Observe(e.Elapsed.Seconds())
}

func (m *MetricsObserver) OnEntityLoaded(e EntityLoadedEvent) {
	source := "database"
	if e.FromCache {
		source = "cache"
	}
	m.EntitiesLoaded.WithLabelValues(e.Entity, source).Inc()
}

func (m *MetricsObserver) OnListing(e ListingEvent) {
	switch e.Phase {
	case ListingBegin:
		m.ListingsInFlight.Inc()
	case ListingEnd:
		m.ListingsInFlight.Dec()
		m.ListingRows.WithLabelValues(e.Entity).Observe(float64(e.Count))
	}
}
