package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics(t *testing.T) {
	route := "/jobs/test-metrics"
	h := HTTPMetrics(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(route, "206"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, route, nil))

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(route, "206")))
	assert.Zero(t, testutil.ToFloat64(httpRequestsInFlight))
}

func TestHTTPMetrics_DefaultStatus(t *testing.T) {
	route := "/jobs/test-implicit-ok"
	h := HTTPMetrics(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, route, nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues(route, "200")))
}

func TestHealthChecker(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus string
		wantCode   int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]Pinger{"database": healthy, "redis": nil},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
			wantChecks: map[string]string{"database": "healthy", "redis": "not configured"},
		},
		{
			name:       "database down",
			checks:     map[string]Pinger{"database": down},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "unhealthy: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthChecker(tt.checks).HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var got HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantChecks, got.Checks)
		})
	}
}

func TestRecordJob(t *testing.T) {
	before := testutil.ToFloat64(jobRecordsTotal.WithLabelValues("test-job", "updated"))
	RecordJob("test-job", "ok", 0.2, 3, 0, 2, 1, 0)
	assert.Equal(t, before+2, testutil.ToFloat64(jobRecordsTotal.WithLabelValues("test-job", "updated")))
}
