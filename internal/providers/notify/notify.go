// Package notify delivers extension toasts to the user.
//
// Each extension gets its own token bucket so one noisy extension cannot
// flood the stream. Accepted toasts are kept in a bounded history and fanned
// out to subscribers (the websocket hub).
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

// Config controls toast throttling and history
type Config struct {
	Rate    float64 // toasts per second per extension
	Burst   int
	History int
}

// DefaultConfig returns sensible toast limits
func DefaultConfig() Config {
	return Config{Rate: 2, Burst: 5, History: 100}
}

// Service is the host toast sink
type Service struct {
	cfg      Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
	enabled  func() bool
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	history  []types.Toast
	next     int
	full     bool
	subs     map[int]func(types.Toast)
	subSeq   int
}

// New creates a toast service
func New(cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.History <= 0 {
		cfg.History = DefaultConfig().History
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Service{
		cfg:      cfg,
		logger:   logger.Named("notify"),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
		history:  make([]types.Toast, cfg.History),
		subs:     make(map[int]func(types.Toast)),
	}
}

// WithMetrics enables toast counters
func (s *Service) WithMetrics(m *monitoring.Metrics) *Service {
	s.metrics = m
	return s
}

// WithEnabled mutes every toast while fn reports false
func (s *Service) WithEnabled(fn func() bool) *Service {
	s.enabled = fn
	return s
}

// Toast accepts a toast from extensionID, dropping it when the extension is
// over its rate
func (s *Service) Toast(extensionID, message string, toastType types.ToastType) {
	toast := types.Toast{
		ExtensionID: extensionID,
		Message:     message,
		Type:        toastType,
		Timestamp:   s.now(),
	}

	if s.enabled != nil && !s.enabled() {
		s.record(toastType, "muted")
		return
	}

	s.mu.Lock()
	if !s.limiter(extensionID).AllowN(toast.Timestamp, 1) {
		s.mu.Unlock()
		s.record(toastType, "throttled")
		s.logger.Debug("toast throttled", zap.String(logging.FieldExtensionID, extensionID))
		return
	}
	s.history[s.next] = toast
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
	subs := make([]func(types.Toast), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.record(toastType, "delivered")
	for _, fn := range subs {
		fn(toast)
	}
}

// Recent returns up to limit accepted toasts, newest first
func (s *Service) Recent(limit int) []types.Toast {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.full {
		size = len(s.history)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]types.Toast, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.next - 1 - i + len(s.history)) % len(s.history)
		out = append(out, s.history[idx])
	}
	return out
}

// Subscribe registers fn for every accepted toast
func (s *Service) Subscribe(fn func(types.Toast)) func() {
	s.mu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Forget drops the rate limiter state for extensionID
func (s *Service) Forget(extensionID string) {
	s.mu.Lock()
	delete(s.limiters, extensionID)
	s.mu.Unlock()
}

func (s *Service) limiter(extensionID string) *rate.Limiter {
	l, ok := s.limiters[extensionID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.Rate), s.cfg.Burst)
		s.limiters[extensionID] = l
	}
	return l
}

func (s *Service) record(toastType types.ToastType, result string) {
	if s.metrics != nil {
		s.metrics.RecordToast(string(toastType), result)
	}
}
