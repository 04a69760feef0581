package slots

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestRenderEmptySlotRendersNothing(t *testing.T) {
	r := NewRenderer(NewRegistry())

	html, err := r.RenderSlot(context.Background(), "nonexistent.slot")
	require.NoError(t, err)
	assert.Equal(t, "", string(html))
}

func TestRenderSlotWrapsEachView(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterView("A", "sidebar.bottom", &view{name: "one"})
	reg.RegisterView("B", "sidebar.bottom", &view{name: "two"})

	html, err := NewRenderer(reg).RenderSlot(context.Background(), "sidebar.bottom")
	require.NoError(t, err)

	doc := parse(t, string(html))
	assert.Equal(t, "sidebar.bottom", doc.Find(".ext-slot").AttrOr("data-slot", ""))

	views := doc.Find(".ext-view")
	require.Equal(t, 2, views.Length())
	assert.Equal(t, "A", views.Eq(0).AttrOr("data-extension-id", ""))
	assert.Equal(t, "one", views.Eq(0).Find("span").Text())
	assert.Equal(t, "two", views.Eq(1).Text())
}

func TestErrorBoundaryIsolatesFailingView(t *testing.T) {
	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())
	reg := NewRegistry()
	reg.RegisterView("ok1", "s", &view{name: "before"})
	reg.RegisterView("bad", "s", ui.ComponentFunc(func(context.Context, ui.Props) (ui.Node, error) {
		return nil, errors.New("boom")
	}))
	reg.RegisterView("panics", "s", ui.ComponentFunc(func(context.Context, ui.Props) (ui.Node, error) {
		panic("kaboom")
	}))
	reg.RegisterView("ok2", "s", &view{name: "after"})

	views, err := NewRenderer(reg, WithRenderMetrics(metrics)).RenderViews(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, views, 4)

	assert.False(t, views[0].Failed)
	assert.True(t, views[1].Failed)
	assert.Contains(t, views[1].Error, "boom")
	assert.True(t, views[2].Failed)
	assert.Contains(t, views[2].Error, "kaboom")
	assert.False(t, views[3].Failed)
	assert.Contains(t, string(views[3].HTML), "after")

	doc := parse(t, string(views[1].HTML))
	assert.Equal(t, 1, doc.Find(".ext-view-error").Length())

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RenderErrors.WithLabelValues("s")))
}

func TestRenderTimeoutBecomesPlaceholder(t *testing.T) {
	reg := NewRegistry()
	block := make(chan struct{})
	defer close(block)

	reg.RegisterView("slow", "s", ui.ComponentFunc(func(context.Context, ui.Props) (ui.Node, error) {
		<-block
		return nil, nil
	}))
	reg.RegisterView("fast", "s", &view{name: "fast"})

	start := time.Now()
	views, err := NewRenderer(reg, WithRenderTimeout(20*time.Millisecond)).RenderViews(context.Background(), "s")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, views[0].Failed)
	assert.False(t, views[1].Failed)
}

func TestRenderSanitizesOutput(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterView("x", "s", ui.Static{Node: ui.El("a", ui.Props{"href": "javascript:alert(1)"}, ui.Text("link"))})

	html, err := NewRenderer(reg).RenderSlot(context.Background(), "s")
	require.NoError(t, err)

	doc := parse(t, string(html))
	_, hasHref := doc.Find("a").Attr("href")
	assert.False(t, hasHref)
	assert.Equal(t, "link", doc.Find(".ext-view").Text())
}
