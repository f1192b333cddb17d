package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes editor activity for Prometheus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	treesPlaced   prometheus.Counter
	treesDeleted  prometheus.Counter
	loads         *prometheus.CounterVec
	commits       *prometheus.CounterVec
	buildings     prometheus.Gauge
	trees         prometheus.Gauge
	lightingSkips prometheus.Counter
}

// New creates a fresh registry with the editor metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		treesPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plattrees",
			Name:      "trees_placed_total",
			Help:      "Trees placed by the generator, including legacy upgrades",
		}),
		treesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plattrees",
			Name:      "trees_deleted_total",
			Help:      "Trees removed from the scene",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plattrees",
			Name:      "loads_total",
			Help:      "GeoJSON loads by outcome",
		}, []string{"outcome"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plattrees",
			Name:      "attribute_commits_total",
			Help:      "Attribute editor commits by outcome",
		}, []string{"outcome"}),
		buildings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plattrees",
			Name:      "buildings",
			Help:      "Buildings currently in the scene",
		}),
		trees: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plattrees",
			Name:      "trees",
			Help:      "Trees currently in the scene",
		}),
		lightingSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plattrees",
			Name:      "lighting_skips_total",
			Help:      "Sun updates skipped because of invalid date input",
		}),
	}

	registry.MustRegister(
		m.treesPlaced,
		m.treesDeleted,
		m.loads,
		m.commits,
		m.buildings,
		m.trees,
		m.lightingSkips,
	)
	return m
}

// AddTreesPlaced counts n placed trees.
func (m *Metrics) AddTreesPlaced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.treesPlaced.Add(float64(n))
}

// AddTreesDeleted counts n deleted trees.
func (m *Metrics) AddTreesDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.treesDeleted.Add(float64(n))
}

// ObserveLoad records a file load outcome: "ok", "invalid" or "busy".
func (m *Metrics) ObserveLoad(outcome string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome).Inc()
}

// ObserveCommit records an attribute commit outcome: "ok" or "not_found".
func (m *Metrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
}

// SetSceneSize records the current number of buildings and trees.
func (m *Metrics) SetSceneSize(buildings, trees int) {
	if m == nil {
		return
	}
	m.buildings.Set(float64(buildings))
	m.trees.Set(float64(trees))
}

// IncLightingSkip counts a skipped sun update.
func (m *Metrics) IncLightingSkip() {
	if m == nil {
		return
	}
	m.lightingSkips.Inc()
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
