package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/exthost/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/extension"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/slots"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/content"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/ipc"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/launcher"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/notify"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/packaging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/settings"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/system"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/watcher"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/ws"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	router  *gin.Engine
	http    *http.Server
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	runtime  *extension.Runtime
	hub      *ws.Hub
	watcher  *watcher.DropWatcher
	launcher *launcher.Launcher
	unsubs   []func()

	closeOnce sync.Once
	closeErr  error
}

// Option customizes a Server
type Option func(*options)

type options struct {
	metrics *monitoring.Metrics
	watch   bool
}

// WithMetrics uses m instead of a collector on the default registry
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithoutWatcher disables the inbox watcher
func WithoutWatcher() Option {
	return func(o *options) { o.watch = false }
}

// New builds every component. Nothing is loaded until Run.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{watch: true}
	for _, opt := range opts {
		opt(&o)
	}
	metrics := o.metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	layout := paths.New(cfg.Extensions.Root)
	for _, dir := range layout.StandardDirectories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	storageDir := cfg.Storage.Dir
	if storageDir == "" {
		storageDir = layout.Storage()
	}
	store, err := storage.New(storageDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	fetcher, breakers, err := newFetcher(cfg, layout)
	if err != nil {
		return nil, err
	}

	tracer := tracing.New("exthost", logger.Logger)

	// Host services
	sys := system.NewProvider()
	procs := launcher.New(logger)
	prefs, err := settings.NewProvider(store)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	bridge := ipc.NewBridge(logger)
	bridge.Register(sys)
	bridge.Register(procs)
	bridge.Register(prefs)

	notifier := notify.New(notify.Config{
		Rate:    cfg.Extensions.ToastRate,
		Burst:   cfg.Extensions.ToastBurst,
		History: notify.DefaultConfig().History,
	}, logger).
		WithMetrics(metrics).
		WithEnabled(func() bool { return prefs.Bool("general.notifications", true) })

	hub := ws.NewHub(logger).
		WithMetrics(metrics).
		WithPublisher(bridge).
		WithConfirmTimeout(cfg.Install.ConfirmTimeout)

	views := slots.NewRegistry()
	runtime := extension.New(extension.Dependencies{
		Packages: packaging.NewManager(layout, store, logger),
		Content:  fetcher,
		Loader: loader.NewGojaLoader(loader.Config{
			EvaluationTimeout:   cfg.Extensions.EvaluationTimeout,
			ActivationTimeout:   cfg.Extensions.ActivationTimeout,
			DeactivationTimeout: cfg.Extensions.DeactivationTimeout,
			Logger:              logger,
		}),
		Services: capability.Services{
			Notifier:  notifier,
			Bridge:    bridge,
			Store:     store,
			Processes: procs,
		},
		Views:     views,
		Confirmer: confirmer(cfg.Install.Confirm, hub),
	}, logger).WithMetrics(metrics).WithTracer(tracer)

	// Only loaded extensions may call into each other
	bridge.SetAuthorizer(func(extID, _ string) bool {
		return runtime.IsActive(extID)
	})

	renderer := slots.NewRenderer(views,
		slots.WithRenderTimeout(cfg.Extensions.RenderTimeout),
		slots.WithRenderLogger(logger),
		slots.WithRenderMetrics(metrics),
	)

	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		metrics:  metrics,
		tracer:   tracer,
		runtime:  runtime,
		hub:      hub,
		launcher: procs,
	}
	s.unsubs = append(s.unsubs,
		notifier.Subscribe(hub.NotifyToast),
		views.Subscribe(hub.NotifySlotChange),
	)

	if o.watch {
		inbox := cfg.Install.WatchDir
		if inbox == "" {
			inbox = layout.Inbox()
		}
		w, err := watcher.New(watcher.Config{Dir: inbox, Patterns: cfg.Install.Patterns}, logger)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("watch %s: %w", inbox, err)
		}
		s.watcher = w
	}

	s.router = s.newRouter(apihttp.NewHandlers(apihttp.Dependencies{
		Runtime:    runtime,
		Renderer:   renderer,
		Toasts:     notifier,
		Operations: bridge,
		Processes:  procs,
		Logs:       sys.Logs(),
		Metrics:    metrics,
		Breakers:   breakers,
	}, logger))

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) newRouter(handlers *apihttp.Handlers) *gin.Engine {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(tracing.HTTPMiddleware(s.tracer))
	if s.cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitFromConfig(s.cfg.RateLimit)))
	}

	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/stream", s.hub.HandleConnection)
	return router
}

// Handler exposes the router, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Runtime returns the extension runtime
func (s *Server) Runtime() *extension.Runtime {
	return s.runtime
}

// Run serves until ctx is cancelled, then shuts down
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	s.logger.Info("extension host listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go s.start()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			s.Close()
			return err
		}
	}
	return s.Close()
}

// start performs the initial reconcile and picks up waiting packages
func (s *Server) start() {
	if err := s.runtime.Refresh(context.Background()); err != nil {
		if !errors.Is(err, extension.ErrShutdown) {
			s.logger.Error("initial refresh failed", zap.Error(err))
		}
		return
	}
	stats := s.runtime.Stats()
	s.logger.Info("extensions loaded",
		zap.Int("installed", stats.Installed),
		zap.Int("active", stats.Active),
		zap.Int("failed", stats.Failed),
	)

	if s.watcher == nil {
		return
	}
	s.runtime.WatchInstallEvents(s.watcher)
	if n, err := s.watcher.Rescan(); err != nil {
		s.logger.Warn("inbox rescan failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("found waiting packages", zap.Int("count", n), zap.String("dir", s.watcher.Dir()))
	}
}

// Close stops accepting requests and unloads every extension
func (s *Server) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.close() })
	return s.closeErr
}

func (s *Server) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("watcher: %w", err))
		}
	}
	if err := s.runtime.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("runtime shutdown: %w", err))
	}
	for _, unsubscribe := range s.unsubs {
		unsubscribe()
	}
	s.hub.Close()
	s.launcher.StopAll(ctx)
	s.tracer.Close()

	s.logger.Info("extension host stopped")
	return errors.Join(errs...)
}

func newFetcher(cfg *config.Config, layout paths.Layout) (extension.ContentFetcher, []*resilience.Breaker, error) {
	if cfg.Content.BaseURL == "" {
		return content.NewFileFetcher(layout.Extensions()), nil, nil
	}
	f, err := content.NewHTTPFetcher(cfg.Content.BaseURL, cfg.Content.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("content fetcher: %w", err)
	}
	return f, []*resilience.Breaker{f.Breaker()}, nil
}

func confirmer(mode string, hub *ws.Hub) extension.Confirmer {
	switch strings.ToLower(mode) {
	case config.ConfirmAuto:
		return extension.AutoConfirm
	case config.ConfirmDeny:
		return extension.DenyConfirm
	default:
		return hub
	}
}
