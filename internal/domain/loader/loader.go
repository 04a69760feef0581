package loader

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
)

var (
	ErrClosed  = errors.New("module closed")
	ErrTimeout = errors.New("execution timed out")
)

// LifecycleKind is how an extension is started, decided once at evaluation
type LifecycleKind int

const (
	LifecycleNone LifecycleKind = iota
	LifecycleModern
	LifecycleLegacy
)

// String returns the string representation of the kind
func (k LifecycleKind) String() string {
	switch k {
	case LifecycleModern:
		return "activate"
	case LifecycleLegacy:
		return "register"
	default:
		return "none"
	}
}

// Source is an extension entry file ready for evaluation
type Source struct {
	ExtensionID string
	Filename    string
	Text        string
}

// ModuleLoader evaluates extension sources
type ModuleLoader interface {
	Evaluate(ctx context.Context, src Source) (Module, error)
}

// Module is an evaluated extension
type Module interface {
	Kind() LifecycleKind
	Activate(ctx context.Context, api *capability.API) error
	HasDeactivate() bool
	Deactivate(ctx context.Context) error
	Exports() []string
	Close() error
}

// Config defines loader limits
type Config struct {
	EvaluationTimeout   time.Duration // Top-level evaluation bound
	ActivationTimeout   time.Duration // activate/register bound, including awaited promises
	DeactivationTimeout time.Duration // deactivate bound
	CallbackTimeout     time.Duration // Timer and IPC callback bound
	MaxCallStackSize    int
	MaxTimers           int // Live timers per module
	Logger              *logging.Logger
}

// DefaultConfig returns the default loader limits
func DefaultConfig() Config {
	return Config{
		EvaluationTimeout:   5 * time.Second,
		ActivationTimeout:   5 * time.Second,
		DeactivationTimeout: 5 * time.Second,
		CallbackTimeout:     5 * time.Second,
		MaxCallStackSize:    1024,
		MaxTimers:           256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.EvaluationTimeout <= 0 {
		c.EvaluationTimeout = def.EvaluationTimeout
	}
	if c.ActivationTimeout <= 0 {
		c.ActivationTimeout = def.ActivationTimeout
	}
	if c.DeactivationTimeout <= 0 {
		c.DeactivationTimeout = def.DeactivationTimeout
	}
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = c.EvaluationTimeout
	}
	if c.MaxCallStackSize <= 0 {
		c.MaxCallStackSize = def.MaxCallStackSize
	}
	if c.MaxTimers <= 0 {
		c.MaxTimers = def.MaxTimers
	}
	if c.Logger == nil {
		c.Logger = logging.NewNop()
	}
	return c
}
