package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.AddTreesPlaced(1)
	m.AddTreesDeleted(1)
	m.ObserveLoad("ok")
	m.ObserveCommit("ok")
	m.SetSceneSize(1, 2)
	m.IncLightingSkip()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.AddTreesPlaced(3)
	m.AddTreesDeleted(1)
	m.ObserveLoad("invalid")
	m.SetSceneSize(4, 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.treesPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.treesDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("invalid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.trees))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plattrees_trees_placed_total 3")
}
