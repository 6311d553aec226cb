// Package api provides the HTTP REST API and WebSocket server for NEXA Core.
//
// It exposes automation rule management, rule execution, device registry
// operations, alerts, and realtime state updates to user interfaces
// (mobile apps, web dashboard).
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sskr2000us/nexa-core/internal/alert"
	"github.com/Sskr2000us/nexa-core/internal/automation"
	"github.com/Sskr2000us/nexa-core/internal/device"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/config"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/influxdb"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/logging"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/mqtt"
	"github.com/Sskr2000us/nexa-core/internal/realtime"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Commander *device.Commander
	MQTT      *mqtt.Client
	Engine    *automation.Engine
	Rules     automation.Repository
	Alerts    *alert.Service
	Hub       *realtime.Hub
	Telemetry *influxdb.Client // optional: nil disables metric writes
	Version   string
}

// Server is the HTTP API server for NEXA Core.
//
// It manages the HTTP listener, routes, middleware, and the MQTT state
// relay. The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	registry  *device.Registry
	commander *device.Commander
	mqtt      *mqtt.Client
	engine    *automation.Engine
	rules     automation.Repository
	alerts    *alert.Service
	hub       *realtime.Hub
	telemetry *influxdb.Client
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry, rules, hub)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("rule repository is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("realtime hub is required")
	}
	// MQTT is optional: commands won't flow without it but reads and
	// WebSocket subscriptions still function.

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		registry:  deps.Registry,
		commander: deps.Commander,
		mqtt:      deps.MQTT,
		engine:    deps.Engine,
		rules:     deps.Rules,
		alerts:    deps.Alerts,
		hub:       deps.Hub,
		telemetry: deps.Telemetry,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It subscribes to MQTT state topics for the realtime relay and
// launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	// Subscribe to device state changes from bridges for realtime relay
	if err := s.subscribeStateUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to state updates", "error", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
