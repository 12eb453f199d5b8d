// Package server exposes the intake core to the page chrome over HTTP.
//
// The chrome never mutates session state directly: it renders the snapshot
// view-model and forwards user intents (edit identity, edit draft, submit,
// pick demo identity) back as API calls.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/securehome/intake/internal/config"
	"github.com/securehome/intake/internal/geo"
	"github.com/securehome/intake/internal/idgen"
	"github.com/securehome/intake/internal/intake"
	"github.com/securehome/intake/internal/logging"
	"github.com/securehome/intake/internal/metrics"
	"github.com/securehome/intake/internal/realtime"
	"github.com/securehome/intake/internal/security"
	"github.com/securehome/intake/internal/transport"
)

// sessionCookie names the cookie carrying the opaque session ID.
const sessionCookie = "intake_session"

// maxRequestSize limits request bodies (the draft is the largest field).
const maxRequestSize = 1 << 20 // 1MB

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	checker     intake.Checker
	geoProvider geo.Provider
	hub         *realtime.Hub
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger

	sessions   sync.Map // session ID → *intake.Session
	sessionCtx context.Context

	cancelRunCtx context.CancelFunc

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithChecker sets a custom detector client (for testing)
func WithChecker(c intake.Checker) Option {
	return func(s *Server) {
		s.checker = c
	}
}

// WithGeoProvider sets a custom geolocation provider (for testing)
func WithGeoProvider(p geo.Provider) Option {
	return func(s *Server) {
		s.geoProvider = p
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		sessionCtx: context.Background(),
	}

	// Apply options first (may set checker/logger/provider)
	for _, opt := range opts {
		opt(s)
	}

	// The detector endpoint is a deployment constant; in production it must
	// not point inside our own network.
	if cfg.IsProduction() {
		if err := security.ValidateEndpointURL(cfg.DetectorURL); err != nil {
			return nil, fmt.Errorf("invalid detector endpoint: %w", err)
		}
	}

	if s.checker == nil {
		s.checker = transport.NewClient(cfg.DetectorURL)
	}

	if s.geoProvider == nil && cfg.GeoEndpoint != "" {
		s.geoProvider = geo.NewHTTPProvider(cfg.GeoEndpoint)
	}

	s.hub = realtime.NewHub(s.logger)

	mode := intake.ModeLatest
	if cfg.HistoryMode {
		mode = intake.ModeHistory
	}
	s.logger.Info("intake configured",
		"detector_url", cfg.DetectorURL,
		"mode", string(mode),
		"geolocation", s.geoProvider != nil,
	)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// mode returns the deployment-time retention mode.
func (s *Server) mode() intake.Mode {
	if s.cfg.HistoryMode {
		return intake.ModeHistory
	}
	return intake.ModeLatest
}

// session returns the caller's session, creating one (and starting its
// geolocation probe) on first contact.
func (s *Server) session(c *gin.Context) (string, *intake.Session) {
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		if v, ok := s.sessions.Load(id); ok {
			return id, v.(*intake.Session)
		}
	}

	id := idgen.WithPrefix("sess_")
	probe := geo.NewProbe(s.geoProvider, s.cfg.GeoTimeout)
	sess := intake.NewSession(s.checker, probe,
		intake.WithMode(s.mode()),
		intake.WithDemoIdentities(s.cfg.DemoIdentities),
	)
	s.sessions.Store(id, sess)
	metrics.ActiveSessions.Inc()

	// The probe runs once per session, detached from any request lifetime.
	probeCtx := logging.WithSessionID(s.sessionCtx, id)
	probe.Start(logging.WithLogger(probeCtx, s.logger))

	c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
	logging.L(c.Request.Context()).Info("session created", "session_id", id)
	return id, sess
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (the chrome may be served from a separate dev host)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit
	s.router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
		c.Next()
	})

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		// Attach logger (and session ID when the cookie is present)
		ctx := logging.WithLogger(c.Request.Context(), s.logger)
		if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
			ctx = logging.WithSessionID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/healthz", s.livenessHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket push of settled snapshots
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	api := s.router.Group("/api")
	api.GET("/session", s.getSessionHandler)
	api.PUT("/session/identity", s.setIdentityHandler)
	api.PUT("/session/draft", s.setDraftHandler)
	api.POST("/session/demo-identity", s.demoIdentityHandler)
	api.POST("/session/submit", s.submitHandler)
	api.GET("/identities", s.identitiesHandler)
}

// -----------------------------------------------------------------------------
// Run / Shutdown
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines (hub, probes)
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel
	s.sessionCtx = runCtx

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel background goroutines (hub, in-flight probes)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.logger.Info("server stopped")
	return nil
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
