package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/extension"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/slots"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/ipc"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/launcher"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/system"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

const version = "0.3.0"

// Runtime is the extension runtime surface the API drives
type Runtime interface {
	Refresh(ctx context.Context) error
	ToggleExtension(ctx context.Context, extID string, enabled bool) error
	Reload(ctx context.Context, extID string) error
	HandleNewExtensionFile(ctx context.Context, path string) error
	RemoveExtension(ctx context.Context, extID string) error
	InstalledExtensions() []types.ExtensionDescriptor
	Status(extID string) (types.ExtensionStatus, bool)
	Statuses() []types.ExtensionStatus
	Stats() types.Stats
	Loading() bool
	GetViews(slot string) []slots.ViewRegistration
	Views() *slots.Registry
}

// SlotRenderer renders a slot's views
type SlotRenderer interface {
	RenderSlot(ctx context.Context, slot string) (template.HTML, error)
	RenderViews(ctx context.Context, slot string) ([]slots.RenderedView, error)
}

// ToastHistory lists recent toasts
type ToastHistory interface {
	Recent(limit int) []types.Toast
}

// Operations lists and invokes host operations
type Operations interface {
	Operations() []ipc.Operation
	InvokeHostOperation(ctx context.Context, name string, args ...interface{}) (interface{}, error)
}

// Processes is the host process table
type Processes interface {
	GetActiveProcesses(ctx context.Context) ([]types.ProcessInfo, error)
	GetProcessStats(ctx context.Context, pid int) (*types.ProcessStats, error)
}

// Dependencies wires the handlers; optional fields may be nil
type Dependencies struct {
	Runtime    Runtime
	Renderer   SlotRenderer
	Toasts     ToastHistory
	Operations Operations
	Processes  Processes
	Logs       *system.CircularLogBuffer
	Metrics    *monitoring.Metrics
	Breakers   []*resilience.Breaker
}

// Handlers contains all HTTP handlers
type Handlers struct {
	deps    Dependencies
	logger  *logging.Logger
	started time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(deps Dependencies, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{deps: deps, logger: logger.Named("http"), started: time.Now()}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	ext := r.Group("/extensions")
	ext.GET("", h.ListExtensions)
	ext.POST("/refresh", h.RefreshExtensions)
	ext.POST("/install", h.InstallExtension)
	ext.GET("/:id", h.GetExtension)
	ext.POST("/:id/toggle", h.ToggleExtension)
	ext.POST("/:id/reload", h.ReloadExtension)
	ext.DELETE("/:id", h.RemoveExtension)

	r.GET("/slots", h.ListSlots)
	r.GET("/slots/:slot", h.GetSlotViews)
	r.GET("/slots/:slot/render", h.RenderSlot)

	r.GET("/toasts", h.ListToasts)
	r.GET("/processes", h.ListProcesses)
	r.GET("/processes/:pid", h.GetProcess)
	r.GET("/operations", h.ListOperations)
	r.POST("/operations/:name", h.InvokeOperation)
	r.GET("/logs", h.GetLogs)
	r.POST("/logs", h.StreamLogs)
	r.GET("/metrics/summary", h.MetricsSummary)
}

// Root identifies the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Extension Host (Go)",
		"version": version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	breakers := make(map[string]string, len(h.deps.Breakers))
	status := "healthy"
	for _, b := range h.deps.Breakers {
		state := b.State()
		breakers[b.Name()] = state.String()
		if state == resilience.StateOpen {
			status = "degraded"
		}
	}
	if h.deps.Runtime.Loading() {
		status = "starting"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"extensions":     h.deps.Runtime.Stats(),
		"breakers":       breakers,
		"uptime_seconds": time.Since(h.started).Seconds(),
	})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, types.Success(data))
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, types.Failure(err))
}

func failf(c *gin.Context, status int, msg string) {
	c.JSON(status, types.Failuref(msg))
}

// statusFor maps host-side errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, extension.ErrNotInstalled), errors.Is(err, launcher.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ipc.ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, extension.ErrInstallDeclined), errors.Is(err, ipc.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, extension.ErrShutdown), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// extensionID reads and validates the :id parameter
func extensionID(c *gin.Context) (string, bool) {
	extID := c.Param("id")
	if err := paths.ValidateExtensionID(extID); err != nil {
		fail(c, http.StatusBadRequest, err)
		return "", false
	}
	return extID, true
}

// queryLimit parses ?limit= with a default and an upper bound
func queryLimit(c *gin.Context, def, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
