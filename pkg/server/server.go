package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"mercator-hq/throttle/pkg/audit"
	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/security/auth"
	"mercator-hq/throttle/pkg/server/middleware"
	"mercator-hq/throttle/pkg/telemetry/health"
	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/telemetry/metrics"
)

// LimiterService is the limits manager as seen by the HTTP layer.
type LimiterService interface {
	middleware.Admitter
	Reset(ctx context.Context, name string) error
	Status(name string) (limits.Status, error)
	Snapshot() []limits.Status
}

// Dependencies are the components served over HTTP. Only Limiters and
// Logger are required; nil optional components disable their routes.
type Dependencies struct {
	Limiters  LimiterService
	Audit     audit.Storage
	Collector *metrics.Collector
	Health    *health.Checker
	Logger    *logging.Logger
	Version   health.VersionInfo
}

// Server is the throttle HTTP server.
type Server struct {
	config     config.ServerConfig
	middleware config.MiddlewareConfig
	telemetry  config.TelemetryConfig
	deps       Dependencies
	admin      *auth.Middleware

	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	stopped      bool
}

// New creates a server. cfg must already have defaults applied.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Limiters == nil {
		return nil, errors.New("server: limiter service is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("server: logger is required")
	}

	s := &Server{
		config:     cfg.Server,
		middleware: cfg.Middleware,
		telemetry:  cfg.Telemetry,
		deps:       deps,
	}

	if len(cfg.Server.AdminKeys) > 0 {
		keys := make([]*auth.Key, 0, len(cfg.Server.AdminKeys))
		for _, k := range cfg.Server.AdminKeys {
			keys = append(keys, &auth.Key{Name: k.Name, Secret: k.Key, Enabled: true})
		}
		s.admin = auth.NewMiddleware(auth.NewKeyValidator(keys), auth.DefaultSources(), deps.Logger.Slog())
	}

	return s, nil
}

// Start listens on the configured address and serves until ctx is done or
// the listener fails. Cancelling ctx triggers a graceful shutdown bounded
// by the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	if s.stopped {
		s.mu.Unlock()
		return errors.New("server has been shut down")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("starting throttle server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.deps.Logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			// Shutdown was called directly.
			return nil
		}
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully stops the server. Only the first call has effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		running := s.isRunning
		httpServer := s.httpServer
		s.mu.Unlock()
		if !running {
			return
		}

		s.deps.Logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.deps.Logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.deps.Logger.Info("throttle server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	api := &apiHandler{
		limiters: s.deps.Limiters,
		audit:    s.deps.Audit,
		logger:   s.deps.Logger,
	}

	s.route(mux, "GET /v1/limiters", http.HandlerFunc(api.listLimiters))
	s.route(mux, "GET /v1/limiters/{name}", http.HandlerFunc(api.getLimiter))
	s.route(mux, "POST /v1/limiters/{name}/try", http.HandlerFunc(api.tryAcquire))
	s.route(mux, "POST /v1/limiters/{name}/acquire", http.HandlerFunc(api.acquire))
	s.route(mux, "POST /v1/limiters/{name}/reset", s.adminOnly(http.HandlerFunc(api.reset)))
	if s.deps.Audit != nil {
		s.route(mux, "GET /v1/audit", s.adminOnly(http.HandlerFunc(api.queryAudit)))
	}

	if s.middleware.Enabled {
		admit := middleware.RateLimit(s.deps.Limiters, middleware.RateLimitOptions{
			Limiter:         s.middleware.Limiter,
			Mode:            s.middleware.Mode,
			WaitTimeout:     s.middleware.WaitTimeout,
			ClientKeyHeader: s.middleware.ClientKeyHeader,
			Logger:          s.deps.Logger,
			Collector:       s.deps.Collector,
		})(http.HandlerFunc(admitted))
		s.route(mux, "/v1/admit", admit)
	}

	if s.deps.Collector != nil && s.telemetry.Metrics.IsEnabled() {
		mux.Handle("GET "+s.telemetry.Metrics.Path, s.deps.Collector.Handler())
	}

	if s.deps.Health != nil && s.telemetry.Health.IsEnabled() {
		health.Register(mux, s.deps.Health,
			s.telemetry.Health.LivenessPath,
			s.telemetry.Health.ReadinessPath,
			s.deps.Version,
		)
	}

	var handler http.Handler = mux
	handler = middleware.Logging(s.deps.Logger)(handler)
	handler = middleware.Recovery(s.deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, middleware.Metrics(s.deps.Collector, pattern)(h))
}

// adminOnly requires an admin key when any are configured.
func (s *Server) adminOnly(h http.Handler) http.Handler {
	if s.admin == nil {
		return h
	}
	return s.admin.Handle(h)
}

// admitted answers requests that passed admission control. It carries no
// body so it can back a reverse proxy's subrequest authorization.
func admitted(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

var _ LimiterService = (*limits.Manager)(nil)
