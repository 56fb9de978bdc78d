package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	wmcqrs "github.com/ThreeDotsLabs/watermill/components/cqrs"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/api/handlers"
	"github.com/danghamo/satwatch/internal/api/jsonrpcx"
	"github.com/danghamo/satwatch/internal/api/middleware"
	"github.com/danghamo/satwatch/internal/cqrs"
	"github.com/danghamo/satwatch/internal/domain/satellite"
	cqrshandlers "github.com/danghamo/satwatch/internal/cqrs/handlers"
	"github.com/danghamo/satwatch/internal/observability"
	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/internal/view"
	"github.com/danghamo/satwatch/pkg/autorouter"
	"github.com/danghamo/satwatch/pkg/config"
	"github.com/danghamo/satwatch/pkg/httpx"
	"github.com/danghamo/satwatch/pkg/logger"
	"github.com/danghamo/satwatch/pkg/redisx"
	"github.com/danghamo/satwatch/pkg/sse"
	"github.com/danghamo/satwatch/pkg/wsx"
)

//go:embed web/index.html
var indexHTML []byte

// Version is reported by server.Info
const Version = "0.1.0"

// Dependencies are the long-lived components the server exposes
type Dependencies struct {
	Controller *tracking.Controller
	Adapter    *view.Adapter
	Bus        *cqrs.Bus
	Metrics    *observability.TrackingCollector // nil disables /metrics
	Redis      *redisx.Client                   // nil when events stay in process
	Sinks      []cqrshandlers.PanelSink
	Track      satellite.TrackRepository // nil disables tracking.GroundTrack
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	logger          *logger.Logger
	cfg             *config.Config
	mux             *http.ServeMux
	deps            Dependencies
	trackingHandler *handlers.TrackingHandler
	serverHandler   *handlers.ServerHandler
	proxyHandler    *handlers.ProxyHandler
	sseBroadcaster  *sse.SSEBroadcaster
	wsHub           *wsx.Hub

	// background scopes goroutines owned by middleware, cancelled on Shutdown
	background     context.Context
	stopBackground context.CancelFunc
}

// NewServer creates the HTTP server and registers the bus handlers that feed
// its streams. Call before Bus.Run.
func NewServer(cfg *config.Config, deps Dependencies, log *logger.Logger) (*Server, error) {
	if deps.Controller == nil || deps.Adapter == nil || deps.Bus == nil {
		return nil, errors.New("controller, adapter and bus are required")
	}

	mux := http.NewServeMux()
	apiLogger := log.WithComponent("api")

	current := func() (jsonrpcx.Notification, bool) {
		return cqrshandlers.CurrentNotification(deps.Adapter.Panel()), true
	}

	sseBroadcaster := sse.NewSSEBroadcaster(apiLogger, sse.WithInitialMessage(current))
	trackingHandler := handlers.NewTrackingHandler(apiLogger, deps.Adapter, deps.Controller, cqrs.NewNotificationHelper(deps.Bus))
	wsHub := wsx.NewHub(apiLogger,
		wsx.WithInitialMessage(current),
		wsx.WithActionHandler(trackingHandler.WSAction))

	viewEventHandler := cqrshandlers.NewViewEventHandler(
		[]cqrshandlers.Broadcaster{sseBroadcaster, wsHub},
		deps.Sinks,
		apiLogger,
	)
	err := deps.Bus.AddHandlers(
		wmcqrs.NewEventHandler(cqrs.ViewUpdatedEventName, viewEventHandler.HandleViewUpdatedEvent),
		wmcqrs.NewEventHandler(cqrs.NotificationEventName, viewEventHandler.HandleNotificationEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register event handlers: %w", err)
	}

	proxyClient := httpx.NewClient("proxy", log,
		httpx.WithTimeout(cfg.Proxy.Timeout),
		httpx.WithRateLimit(cfg.Proxy.RateLimit, cfg.Proxy.Burst))

	background, stopBackground := context.WithCancel(context.Background())
	server := &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:     mux,
			ReadTimeout: cfg.Server.ReadTimeout,
			IdleTimeout: cfg.Server.IdleTimeout,
			// no WriteTimeout: SSE and websocket responses are long-lived
		},
		logger:          apiLogger,
		cfg:             cfg,
		mux:             mux,
		deps:            deps,
		trackingHandler: trackingHandler,
		serverHandler: handlers.NewServerHandler(cfg.Server.Host, cfg.Server.Port, Version,
			cfg.Position.Source, cfg.Tracking.Interval),
		proxyHandler:   handlers.NewProxyHandler(apiLogger, proxyClient, cfg.Proxy.UpstreamURL),
		sseBroadcaster: sseBroadcaster,
		wsHub:          wsHub,
		background:     background,
		stopBackground: stopBackground,
	}

	if err := server.setupRoutes(); err != nil {
		stopBackground()
		return nil, err
	}
	server.setupMiddleware()

	return server, nil
}

// handlerRoute mounts a handler's methods under /api/v1/<methodPrefix><Method>
type handlerRoute struct {
	methodPrefix string
	handler      any
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes() error {
	// Health check endpoint (pure REST)
	s.mux.HandleFunc(s.cfg.Server.HealthCheckPath, s.healthCheckHandler)

	// Swagger documentation endpoint
	s.mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	routes := []handlerRoute{
		{methodPrefix: "tracking.", handler: s.trackingHandler},
		{methodPrefix: "server.", handler: s.serverHandler},
	}
	if s.deps.Track != nil {
		routes = append(routes, handlerRoute{methodPrefix: "tracking.", handler: handlers.NewTrackHandler(s.logger, s.deps.Track)})
	}
	for _, route := range routes {
		router := autorouter.NewAutoRouter(s.mux, autorouter.RegistrationOptions{
			Prefix:       "/api/v1/",
			MethodPrefix: route.methodPrefix,
			Logger:       s.logger,
		})
		if _, err := router.RegisterHandlers(route.handler); err != nil {
			return fmt.Errorf("register %s handlers: %w", route.methodPrefix, err)
		}
	}

	// Position pass-through, rate limited per client on top of upstream pacing
	if s.cfg.Proxy.Enabled {
		limit := middleware.RateLimit(s.background, s.logger, s.cfg.Proxy.RateLimit, s.cfg.Proxy.Burst)
		s.mux.Handle(s.cfg.Proxy.Path, limit(http.HandlerFunc(s.proxyHandler.HandleProxy)))
	}

	// Real-time streams
	s.mux.HandleFunc("/api/v1/stream", s.sseBroadcaster.HandleSSE)
	s.mux.HandleFunc("/api/v1/ws", s.wsHub.HandleWS)

	if s.cfg.Server.MetricsEnabled && s.deps.Metrics != nil {
		s.mux.Handle("/metrics", s.deps.Metrics.Handler())
	}

	// Static page
	s.mux.HandleFunc("/", s.handleIndex)
	return nil
}

// setupMiddleware applies middleware to all routes
func (s *Server) setupMiddleware() {
	middlewareChain := middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.ErrorAdapter(s.logger),
		middleware.CORS(s.cfg.CORS),
		middleware.Logging(s.logger),
	)

	s.httpServer.Handler = middlewareChain(s.mux)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = s.Shutdown()
		return err
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	// Close streams first so long-lived connections do not hold shutdown
	s.sseBroadcaster.Close()
	s.wsHub.Close()
	s.stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// GetAddr returns the server address
func (s *Server) GetAddr() string {
	return s.httpServer.Addr
}

type healthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]healthCheck `json:"checks"`
}

// healthCheckHandler reports the controller and, when configured, Redis
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "healthy",
		Checks: map[string]healthCheck{
			"tracking": {Status: s.deps.Controller.State().String()},
		},
	}

	select {
	case <-s.deps.Bus.Running():
		resp.Checks["event_bus"] = healthCheck{Status: "up"}
	default:
		resp.Status = "unhealthy"
		resp.Checks["event_bus"] = healthCheck{Status: "down", Error: "router not running"}
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.HealthCheck(r.Context()); err != nil {
			s.logger.Error("Redis health check failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Checks["redis"] = healthCheck{Status: "down", Error: err.Error()}
		} else {
			resp.Checks["redis"] = healthCheck{Status: "up"}
		}
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

// handleIndex serves the embedded tracker page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}
