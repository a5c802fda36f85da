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

func TestHealthChecker(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus string
		wantCode   int
		wantChecks map[string]string
	}{
		{
			name: "all healthy",
			checks: map[string]Pinger{
				"database": PingFunc(func(context.Context) error { return nil }),
				"redis":    nil,
			},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
			wantChecks: map[string]string{"database": "healthy", "redis": "not configured"},
		},
		{
			name: "failing dependency",
			checks: map[string]Pinger{
				"database": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "unhealthy: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker(tt.checks)

			w := httptest.NewRecorder()
			hc.HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			var got HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantChecks, got.Checks)
		})
	}
}

func TestHTTPMiddleware_RecordsStatus(t *testing.T) {
	h := HTTPMiddleware("test_route", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("test_route", http.MethodPost, "503"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("test_route", http.MethodPost, "503")))
}

func TestSetGatewayBreakerState(t *testing.T) {
	SetGatewayBreakerState("open", "closed", "open", "half-open")

	assert.Equal(t, float64(1), testutil.ToFloat64(gatewayBreakerState.WithLabelValues("open")))
	assert.Equal(t, float64(0), testutil.ToFloat64(gatewayBreakerState.WithLabelValues("closed")))
}
