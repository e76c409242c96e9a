package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/auth"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/command"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/device"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/config"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/logging"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/location"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Auth      config.AuthConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Locations *location.Ingestor
	Commands  *command.Dispatcher
	Users     auth.UserRepository
	Relay     *relay.Hub
	Version   string
}

// Server is the HTTP API server for the tracker hub.
//
// It manages the HTTP listener, routes, and middleware, and exposes the
// relay hub's websocket endpoint. The server is created with New() and
// started with Start().
type Server struct {
	cfg       config.APIConfig
	authCfg   config.AuthConfig
	logger    *logging.Logger
	registry  *device.Registry
	locations *location.Ingestor
	commands  *command.Dispatcher
	users     auth.UserRepository
	relay     *relay.Hub
	version   string
	server    *http.Server
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Locations == nil {
		return nil, fmt.Errorf("location ingestor is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	// Commands and Relay are optional — device reads and auth still
	// function without a bus or audio path.

	return &Server{
		cfg:       deps.Config,
		authCfg:   deps.Auth,
		logger:    deps.Logger,
		registry:  deps.Registry,
		locations: deps.Locations,
		commands:  deps.Commands,
		users:     deps.Users,
		relay:     deps.Relay,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the relay hub's lifecycle goroutine, and
// launches the HTTP listener in the background. The server is stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.relay != nil {
		go s.relay.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
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
