package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTraceRecordsErrorAndTags(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("exthost", zap.New(core))

	boom := errors.New("boom")
	err := tracer.Trace(context.Background(), "extension.load", map[string]string{"extension_id": "clock"},
		func(ctx context.Context) error {
			assert.NotEmpty(t, GetTraceID(ctx))
			return boom
		})
	assert.ErrorIs(t, err, boom)

	tracer.Close()

	entries := logs.FilterMessage("span completed with error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "clock", entries[0].ContextMap()["extension_id"])
	assert.Equal(t, "extension.load", entries[0].ContextMap()["operation"])
}

func TestNestedSpansShareTrace(t *testing.T) {
	tracer := New("exthost", zap.NewNop())
	defer tracer.Close()

	outer, ctx := tracer.StartSpan(context.Background(), "refresh")
	inner, _ := tracer.StartSpan(ctx, "extension.load")

	assert.Equal(t, outer.TraceID, inner.TraceID)
	assert.Equal(t, outer.SpanID, inner.ParentID)
}

func TestNilTracerRunsFunction(t *testing.T) {
	var tracer *Tracer
	called := false
	err := tracer.Trace(context.Background(), "x", nil, func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestSubmitAfterCloseDoesNotPanic(t *testing.T) {
	tracer := New("exthost", zap.NewNop())
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	assert.NotPanics(t, func() { tracer.Submit(span) })
}

func TestHTTPMiddlewareRecordsRoute(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("exthost", zap.New(core))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/extensions/:id", func(c *gin.Context) {
		assert.Equal(t, TraceID("trace-123"), GetTraceID(c.Request.Context()))
		c.Status(http.StatusOK)
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/extensions/acme.hello", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Span-ID"))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	tracer.Close()

	ok := logs.FilterMessage("span completed").All()
	require.Len(t, ok, 1)
	fields := ok[0].ContextMap()
	assert.Equal(t, "GET /extensions/:id", fields["operation"])
	assert.Equal(t, "acme.hello", fields["extension_id"])

	failed := logs.FilterMessage("span completed with error").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "500", failed[0].ContextMap()["http.status"])
}
