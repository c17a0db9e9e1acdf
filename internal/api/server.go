package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hublink/internal/ingest"
	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// defaultRestartDelay is how long /restartService waits before asking the
// process to exit.
const defaultRestartDelay = 10 * time.Second

// Ingestor applies pushed attribute changes to the cache.
type Ingestor interface {
	Apply(ctx context.Context, ev ingest.Event) bool
}

// Refresher starts an out-of-band reconciliation cycle.
type Refresher interface {
	Trigger(source string)
}

// HealthChecker is implemented by optional infrastructure (database, MQTT,
// InfluxDB) reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the push listener.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig

	// Hub supplies the app_id and access_token that push requests must
	// carry when ValidateTokenID is set.
	Hub config.HubConfig

	Logger   *logging.Logger
	Cache    *device.Cache
	Ingestor Ingestor
	Settings *transport.Settings
	Tracker  *transport.Tracker
	Poller   Refresher

	// Checks are reported on /health by name. Optional.
	Checks map[string]HealthChecker

	// ExternalHub is used instead of creating a WebSocket hub, so the
	// accessory presenter can broadcast before the listener starts.
	ExternalHub *Hub

	// Restart is called RestartDelay after a /restartService request.
	Restart      func()
	RestartDelay time.Duration

	Version string
}

// Server is the HubLink push listener: the hub's direct-connect endpoint
// plus the WebSocket event stream.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	hubCfg   config.HubConfig
	logger   *logging.Logger
	cache    *device.Cache
	ingestor Ingestor
	settings *transport.Settings
	tracker  *transport.Tracker
	poller   Refresher
	checks   map[string]HealthChecker
	version  string

	restart      func()
	restartDelay time.Duration
	restartMu    sync.Mutex
	restartTimer *time.Timer

	server    *http.Server
	listener  net.Listener
	hub       *Hub
	cancel    context.CancelFunc
	startTime time.Time
}

// New creates a push listener. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("device cache is required")
	}
	if deps.Ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("transport settings are required")
	}

	delay := deps.RestartDelay
	if delay <= 0 {
		delay = defaultRestartDelay
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		hubCfg:       deps.Hub,
		logger:       deps.Logger,
		cache:        deps.Cache,
		ingestor:     deps.Ingestor,
		settings:     deps.Settings,
		tracker:      deps.Tracker,
		poller:       deps.Poller,
		checks:       deps.Checks,
		version:      deps.Version,
		restart:      deps.Restart,
		restartDelay: delay,
		hub:          deps.ExternalHub,
		startTime:    time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background. The listener is
// bound before Start returns, so Addr is valid and the hub can be told
// where to push immediately afterwards.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("push listener started", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("push listener error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or the configured port before Start.
func (s *Server) Port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return s.cfg.Port
}

// Close stops a pending restart, disconnects WebSocket clients and shuts
// the listener down gracefully.
func (s *Server) Close() error {
	s.restartMu.Lock()
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	s.restartMu.Unlock()

	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("push listener shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down push listener: %w", err)
	}
	return nil
}

// HealthCheck reports whether the listener is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("push listener not started")
	}
	return nil
}

// scheduleRestart arranges for the restart hook to run once after the
// configured delay. Repeated requests while one is pending are ignored.
func (s *Server) scheduleRestart() bool {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()
	if s.restartTimer != nil || s.restart == nil {
		return false
	}
	s.restartTimer = time.AfterFunc(s.restartDelay, s.restart)
	return true
}
