package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Get request size
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		// Process request
		c.Next()

		// Route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		// Get response data
		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())

		// Record metrics
		metrics.RecordHTTPRequest(method, path, status, duration, reqSize, respSize)
	}
}

// Timer measures an extension hook
type Timer struct {
	start   time.Time
	metrics *Metrics
	hook    string
}

// NewTimer creates a new timer. A nil metrics makes Stop a no-op.
func NewTimer(metrics *Metrics, hook string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		hook:    hook,
	}
}

// Stop records the hook duration and returns it
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.ObserveHook(t.hook, duration)
	}
	return duration
}
