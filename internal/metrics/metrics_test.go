package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Transition("approved")
	m.Transition("approved")
	m.SideEffectFailed(ChannelEmail)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sideEffects.WithLabelValues(ChannelEmail)))
}

func TestHandlerExposesRouteLatency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	m.WatchConnections(func() int { return 3 })

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", m.Handler())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `workflow_http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, "workflow_websocket_clients 3")
}
