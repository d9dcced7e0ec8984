package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result and event label values.
const (
	FetchOK      = "ok"
	FetchMissing = "missing"
	FetchError   = "error"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheEvict = "evict"
)

// HelioCollector bundles Prometheus metrics for the dataset loader, the
// particle system, the registry and the validation checks.
type HelioCollector struct {
	gatherer prometheus.Gatherer

	EpochFetches     *prometheus.CounterVec
	CacheEvents      *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	ParticleStep     prometheus.Histogram
	RegistryEntities *prometheus.GaugeVec
	ValidationChecks *prometheus.CounterVec
}

// NewHelioCollector registers metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewHelioCollector(reg prometheus.Registerer) (*HelioCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataset_epoch_fetches_total",
		Help: "Per-epoch dataset fetches, labeled by result (ok, missing, error).",
	}, []string{"result"}), "dataset_epoch_fetches_total")
	if err != nil {
		return nil, err
	}

	cacheEvents, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataset_epoch_cache_events_total",
		Help: "Epoch LRU cache events, labeled by event (hit, miss, evict).",
	}, []string{"event"}), "dataset_epoch_cache_events_total")
	if err != nil {
		return nil, err
	}

	fetchDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dataset_fetch_duration_seconds",
		Help:    "Latency of dataset resource fetches in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}), "dataset_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	particleStep, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "particle_step_duration_seconds",
		Help:    "Duration of one particle system update in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "particle_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	entities, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "registry_entities",
		Help: "Current number of entities owned by the registry, labeled by kind.",
	}, []string{"kind"}), "registry_entities")
	if err != nil {
		return nil, err
	}

	checks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_checks_total",
		Help: "Validation assertions evaluated, labeled by check and result (pass, fail).",
	}, []string{"check", "result"}), "validation_checks_total")
	if err != nil {
		return nil, err
	}

	return &HelioCollector{
		gatherer:         gatherer,
		EpochFetches:     fetches,
		CacheEvents:      cacheEvents,
		FetchDuration:    fetchDuration,
		ParticleStep:     particleStep,
		RegistryEntities: entities,
		ValidationChecks: checks,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *HelioCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *HelioCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveEpochFetch records one per-epoch fetch and its latency.
func (c *HelioCollector) ObserveEpochFetch(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.EpochFetches.WithLabelValues(result).Inc()
	c.FetchDuration.Observe(d.Seconds())
}

// CacheEvent increments the cache event counter.
func (c *HelioCollector) CacheEvent(event string) {
	if c == nil {
		return
	}
	c.CacheEvents.WithLabelValues(event).Inc()
}

// ObserveParticleStep records a particle update duration.
func (c *HelioCollector) ObserveParticleStep(d time.Duration) {
	if c == nil {
		return
	}
	c.ParticleStep.Observe(d.Seconds())
}

// SetRegistryCounts satisfies registry.MetricsRecorder.
func (c *HelioCollector) SetRegistryCounts(surfaces, bodies, trajectories, batches int) {
	if c == nil {
		return
	}
	c.RegistryEntities.WithLabelValues("surfaces").Set(float64(surfaces))
	c.RegistryEntities.WithLabelValues("bodies").Set(float64(bodies))
	c.RegistryEntities.WithLabelValues("trajectories").Set(float64(trajectories))
	c.RegistryEntities.WithLabelValues("particle_batches").Set(float64(batches))
}

// RecordValidation counts one evaluated check.
func (c *HelioCollector) RecordValidation(check string, passed bool) {
	if c == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	c.ValidationChecks.WithLabelValues(check, result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
