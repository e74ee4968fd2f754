package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value finds the sample of name whose labels include want.
func value(t *testing.T, r *Recorder, name string, want map[string]string) float64 {
	t.Helper()
	mfs, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m, want) {
				switch {
				case m.GetCounter() != nil:
					return m.GetCounter().GetValue()
				case m.GetGauge() != nil:
					return m.GetGauge().GetValue()
				case m.GetHistogram() != nil:
					return float64(m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	return -1
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.RunFinished(ResultPartial)
	r.SourceFetched("remoteok", false, 2*time.Second)
	r.SourceFetched("greenhouse", true, time.Second)
	r.JobsInserted("greenhouse", 3)
	r.JobsInserted("greenhouse", 0)
	r.SetCooldown("remoteok", true)

	assert.Equal(t, 1.0, value(t, r, "jhunt_crawl_runs_total", map[string]string{"result": "partial"}))
	assert.Equal(t, 1.0, value(t, r, "jhunt_source_fetch_total", map[string]string{"source": "remoteok", "result": "failed"}))
	assert.Equal(t, 1.0, value(t, r, "jhunt_source_fetch_duration_seconds", map[string]string{"source": "greenhouse"}))
	assert.Equal(t, 3.0, value(t, r, "jhunt_jobs_inserted_total", map[string]string{"source": "greenhouse"}))
	assert.Equal(t, 1.0, value(t, r, "jhunt_source_cooldown", map[string]string{"source": "remoteok"}))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := New()
	router := chi.NewRouter()
	router.Use(r.Middleware)
	router.Get("/api/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router.Handle("/metrics", r.Handler())

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 2.0, value(t, r, "jhunt_http_requests_total", map[string]string{"path": "/api/jobs/{id}", "code": "404"}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jhunt_http_requests_total")
}
