package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOpsRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ResetMetrics()

	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/health", HealthHandler())
	router.GET("/ready", ReadinessHandler())
	router.GET("/live", LivenessHandler())
	router.GET("/metrics", MetricsHandler())
	router.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})
	return router
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestMetricsMiddleware_CountsRequests(t *testing.T) {
	router := setupOpsRouter(t)

	serve(router, "/live")
	serve(router, "/boom")
	serve(router, "/nowhere")

	metrics := GetMetrics()
	assert.Equal(t, int64(3), metrics.RequestCount)
	assert.Equal(t, int64(2), metrics.ErrorCount)
	assert.Equal(t, int64(0), metrics.ActiveRequests)
	assert.Equal(t, int64(1), metrics.Endpoints["GET /live"])
	assert.Equal(t, int64(1), metrics.Endpoints["GET unmatched"])
	assert.Equal(t, int64(2), metrics.StatusCodes[http.StatusText(http.StatusNotFound)])
}

func TestRecordTaskEvent(t *testing.T) {
	ResetMetrics()

	RecordTaskEvent(EventTaskAdded)
	RecordTaskEvent(EventTaskAdded)
	RecordTaskEvent(EventTaskDeleted)

	events := GetMetrics().TaskEvents
	assert.Equal(t, int64(2), events[EventTaskAdded])
	assert.Equal(t, int64(1), events[EventTaskDeleted])
}

func TestHealthHandler_RerunsChecks(t *testing.T) {
	router := setupOpsRouter(t)

	var calls atomic.Int32
	var failing atomic.Bool
	RegisterHealthCheck("database", func(ctx context.Context) error {
		calls.Add(1)
		if failing.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	t.Cleanup(func() { UnregisterHealthCheck("database") })

	w := serve(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	failing.Store(true)
	w = serve(router, "/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string                 `json:"status"`
		Checks map[string]HealthCheck `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["database"].Message)
	assert.Equal(t, int32(2), calls.Load())

	assert.Equal(t, "unhealthy", LastHealthChecks()["database"].Status)
}

func TestReadinessHandler(t *testing.T) {
	router := setupOpsRouter(t)

	assert.Equal(t, http.StatusOK, serve(router, "/ready").Code)

	RegisterHealthCheck("redis", func(ctx context.Context) error {
		return errors.New("down")
	})
	t.Cleanup(func() { UnregisterHealthCheck("redis") })

	assert.Equal(t, http.StatusServiceUnavailable, serve(router, "/ready").Code)
}

func TestLivenessAndMetricsHandlers(t *testing.T) {
	router := setupOpsRouter(t)

	w := serve(router, "/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alive"`)

	w = serve(router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "application")
	assert.Contains(t, body, "system")
}

func TestMetricsHandler_ComponentsAndLastHealth(t *testing.T) {
	router := setupOpsRouter(t)

	RegisterStatsSource("database", func() map[string]interface{} {
		return map[string]interface{}{"open_connections": 1}
	})
	t.Cleanup(func() { UnregisterStatsSource("database") })

	var calls atomic.Int32
	RegisterHealthCheck("database", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	t.Cleanup(func() { UnregisterHealthCheck("database") })

	require.Equal(t, http.StatusOK, serve(router, "/health").Code)

	w := serve(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Components map[string]map[string]interface{} `json:"components"`
		Health     map[string]HealthCheck            `json:"health"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body.Components["database"]["open_connections"])
	assert.Equal(t, "healthy", body.Health["database"].Status)
	assert.Equal(t, int32(1), calls.Load(), "/metrics reports the last run without re-checking")
}
