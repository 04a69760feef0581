package slots

import (
	"context"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
)

// DefaultRenderTimeout bounds a single view render
const DefaultRenderTimeout = time.Second

// ViewSource supplies the registrations of a slot
type ViewSource interface {
	GetViews(slot string) []ViewRegistration
}

// RenderedView is the outcome of rendering one registration
type RenderedView struct {
	ID          string        `json:"id"`
	ExtensionID string        `json:"extension_id"`
	HTML        template.HTML `json:"html"`
	Failed      bool          `json:"failed"`
	Error       string        `json:"error,omitempty"`
}

// Renderer renders slots with a per-view error boundary
type Renderer struct {
	source  ViewSource
	policy  *bluemonday.Policy
	timeout time.Duration
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// RendererOption configures a Renderer
type RendererOption func(*Renderer)

// WithRenderTimeout sets the per-view render bound
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRenderLogger sets the logger for view failures
func WithRenderLogger(l *logging.Logger) RendererOption {
	return func(r *Renderer) { r.logger = l }
}

// WithRenderMetrics records placeholder substitutions
func WithRenderMetrics(m *monitoring.Metrics) RendererOption {
	return func(r *Renderer) { r.metrics = m }
}

// NewRenderer creates a renderer reading from source
func NewRenderer(source ViewSource, opts ...RendererOption) *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	policy.AllowStyling()
	policy.AllowDataAttributes()

	r := &Renderer{
		source:  source,
		policy:  policy,
		timeout: DefaultRenderTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderSlot renders every view in slot. An empty slot yields empty HTML.
func (r *Renderer) RenderSlot(ctx context.Context, slot string) (template.HTML, error) {
	views, err := r.RenderViews(ctx, slot)
	if err != nil {
		return "", err
	}
	if len(views) == 0 {
		return "", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<div class="ext-slot" data-slot="%s">`, html.EscapeString(slot))
	for _, v := range views {
		sb.WriteString(string(v.HTML))
	}
	sb.WriteString(`</div>`)
	return template.HTML(sb.String()), nil
}

// RenderViews renders each registration of slot separately
func (r *Renderer) RenderViews(ctx context.Context, slot string) ([]RenderedView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regs := r.source.GetViews(slot)
	out := make([]RenderedView, 0, len(regs))
	for _, reg := range regs {
		out = append(out, r.renderView(ctx, reg))
	}
	return out, nil
}

type renderResult struct {
	body string
	err  error
}

// renderView is the error boundary around a single registration
func (r *Renderer) renderView(ctx context.Context, reg ViewRegistration) RenderedView {
	if reg.Component == nil {
		return r.placeholder(reg, fmt.Errorf("view has no component"))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan renderResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- renderResult{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		body, err := ui.RenderComponent(ctx, reg.Component, nil)
		done <- renderResult{body: body, err: err}
	}()

	var res renderResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("render timed out: %w", ctx.Err())
	}
	if res.err != nil {
		return r.placeholder(reg, res.err)
	}

	return RenderedView{
		ID:          reg.ID.String(),
		ExtensionID: reg.ExtensionID,
		HTML: template.HTML(fmt.Sprintf(
			`<div class="ext-view" data-extension-id="%s" data-view-id="%s">%s</div>`,
			html.EscapeString(reg.ExtensionID), html.EscapeString(reg.ID.String()), r.policy.Sanitize(res.body),
		)),
	}
}

func (r *Renderer) placeholder(reg ViewRegistration, err error) RenderedView {
	r.logger.ForExtension(reg.ExtensionID).Warn("view render failed",
		zap.String("slot", reg.Slot),
		zap.String("view_id", reg.ID.String()),
		zap.Error(err),
	)
	if r.metrics != nil {
		r.metrics.RecordRenderError(reg.Slot)
	}

	return RenderedView{
		ID:          reg.ID.String(),
		ExtensionID: reg.ExtensionID,
		Failed:      true,
		Error:       err.Error(),
		HTML: template.HTML(fmt.Sprintf(
			`<div class="ext-view ext-view-error" data-extension-id="%s" data-view-id="%s" aria-disabled="true">%s</div>`,
			html.EscapeString(reg.ExtensionID), html.EscapeString(reg.ID.String()),
			html.EscapeString("View from "+reg.ExtensionID+" failed to render"),
		)),
	}
}
