package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransition(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordTransition("load", "ok")
	m.RecordTransition("load", "ok")
	m.RecordTransition("load", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("load", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("load", "failed")))
}

func TestSnapshot(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.SetExtensionCounts(3, 1)
	m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond, 0, 10)
	m.RecordHTTPRequest("GET", "/x", "500", time.Millisecond, 0, 10)
	m.IncWSConnections()

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.ActiveExtensions)
	assert.Equal(t, int64(2), s.TotalRequests)
	assert.Equal(t, int64(1), s.TotalErrors)
	assert.Equal(t, int64(1), s.ActiveConnections)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtensionsFailed))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetricsWith(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ext/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ext/clock", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/ext/:id", "200")))
}

func TestTimerNilMetrics(t *testing.T) {
	timer := NewTimer(nil, "activate")
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
