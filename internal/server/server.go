// Package server runs the launcher as a long-lived bridge host: it answers
// IPC requests from the plugin and the CLI, exposes status over HTTP, runs the
// watchdog and reloads its configuration when the file changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"mlauncher/internal/bridge"
	"mlauncher/internal/config"
	"mlauncher/internal/console"
	"mlauncher/internal/ipc"
	"mlauncher/internal/metrics"
	"mlauncher/internal/supervisor"
)

// SupervisorFactory builds a supervisor for a configuration.
type SupervisorFactory func(cfg *config.Config, con console.Console, m *metrics.Metrics, log *zerolog.Logger) *supervisor.Supervisor

// Config holds what the host is built from.
type Config struct {
	// ConfigPath is watched for changes when set.
	ConfigPath string
	Config     *config.Config

	// NewSupervisor defaults to supervisor.NewFromConfig.
	NewSupervisor SupervisorFactory
	Console       console.Console
	Logger        zerolog.Logger
}

// Server is the bridge host.
type Server struct {
	configPath string
	cfg        atomic.Pointer[config.Config]
	newSup     SupervisorFactory
	console    console.Console
	logger     zerolog.Logger

	sup      atomic.Pointer[supervisor.Supervisor]
	bridge   *bridge.Bridge
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	health   healthcheck.Handler

	ipc        *ipc.Server
	httpServer *http.Server
	httpAddr   string
	watchdog   *Watchdog
	watcher    *Watcher

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	errChan   chan error
}

// NewServer creates a host. Nothing listens until Start.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("server: nil config")
	}
	if err := cfg.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.NewSupervisor == nil {
		cfg.NewSupervisor = supervisor.NewFromConfig
	}
	if cfg.Console == nil {
		cfg.Console = console.NewLog(&cfg.Logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		configPath: cfg.ConfigPath,
		newSup:     cfg.NewSupervisor,
		console:    cfg.Console,
		logger:     cfg.Logger,
		registry:   registry,
		metrics:    metrics.New(registry),
		health:     healthcheck.NewMetricsHandler(registry, "mlauncher"),
		errChan:    make(chan error, 1),
	}
	s.cfg.Store(cfg.Config)

	sup := s.buildSupervisor(cfg.Config)
	s.sup.Store(sup)
	s.bridge = bridge.New(sup, &s.logger)

	s.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(1000))
	s.health.AddReadinessCheck("companion", s.companionRunning)

	s.watchdog = NewWatchdog(s.watchdogTick, s.logger)
	return s, nil
}

func (s *Server) buildSupervisor(cfg *config.Config) *supervisor.Supervisor {
	log := s.logger.With().Str("component", "supervisor").Logger()
	return s.newSup(cfg, s.console, s.metrics, &log)
}

// Bridge returns the event bridge.
func (s *Server) Bridge() *bridge.Bridge {
	return s.bridge
}

// Config returns the active configuration.
func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}

// ErrorChan reports errors from background listeners.
func (s *Server) ErrorChan() <-chan error {
	return s.errChan
}

// Start opens the IPC endpoint, the status listener, the watchdog and the
// config watcher.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cfg := s.cfg.Load()

	endpoint := cfg.Bridge.Endpoint
	if endpoint == "" {
		endpoint = ipc.DefaultEndpoint(cfg.Companion.Product)
	}
	s.ipc = ipc.NewServer(endpoint)
	s.bridge.Register(s.ipc)
	if err := s.ipc.Start(); err != nil {
		return err
	}

	if cfg.Status.Listen != "" {
		if err := s.startStatus(cfg.Status.Listen); err != nil {
			_ = s.ipc.Stop()
			return err
		}
	}

	if err := s.watchdog.Schedule(cfg.Watchdog.Schedule); err != nil {
		s.logger.Warn().Err(err).Str("schedule", cfg.Watchdog.Schedule).Msg("invalid watchdog schedule, watchdog disabled")
	}
	s.watchdog.Start()

	if s.configPath != "" {
		w, err := NewWatcher(s.configPath, s.onConfigChange, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", s.configPath).Msg("config watcher unavailable")
		} else if err := w.Start(); err != nil {
			s.logger.Warn().Err(err).Str("path", s.configPath).Msg("config watcher unavailable")
		} else {
			s.watcher = w
		}
	}

	s.running = true
	s.startedAt = time.Now()
	s.logger.Info().Str("endpoint", endpoint).Str("status", s.httpAddr).Msg("bridge host started")
	return nil
}

func (s *Server) startStatus(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status listener on %s: %w", addr, err)
	}
	s.httpAddr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("status listener failed")
			select {
			case s.errChan <- err:
			default:
			}
		}
	}()
	return nil
}

// StatusAddr returns the bound status address, empty when disabled.
func (s *Server) StatusAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// Endpoint returns the IPC endpoint, empty before Start.
func (s *Server) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ipc == nil {
		return ""
	}
	return s.ipc.Endpoint()
}

// Stop shuts everything down.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	watcher, httpServer, ipcServer := s.watcher, s.httpServer, s.ipc
	s.watcher, s.httpServer = nil, nil
	startedAt := s.startedAt
	s.mu.Unlock()

	var errs []error
	if watcher != nil {
		watcher.Stop()
	}
	<-s.watchdog.Stop().Done()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if err := ipcServer.Stop(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}

	s.logger.Info().Dur("uptime", time.Since(startedAt)).Msg("bridge host stopped")
	return errors.Join(errs...)
}

// Reload re-reads the configuration file and swaps the supervisor. The IPC
// endpoint and status listener keep their addresses until restart.
func (s *Server) Reload() error {
	if s.configPath == "" {
		return errors.New("no config file to reload")
	}
	cfg, err := config.Reload(s.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	s.apply(cfg)
	return nil
}

func (s *Server) apply(cfg *config.Config) {
	old := s.cfg.Swap(cfg)

	sup := s.buildSupervisor(cfg)
	s.sup.Store(sup)
	s.bridge.Swap(sup)

	if old == nil || old.Watchdog.Schedule != cfg.Watchdog.Schedule {
		if err := s.watchdog.Schedule(cfg.Watchdog.Schedule); err != nil {
			s.logger.Warn().Err(err).Str("schedule", cfg.Watchdog.Schedule).Msg("invalid watchdog schedule, watchdog disabled")
		}
	}
	s.logger.Info().Str("exe", cfg.Companion.Executable).Msg("configuration reloaded")
}

func (s *Server) onConfigChange(path string) {
	if err := s.Reload(); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("config reload failed, keeping previous config")
	}
}

func (s *Server) watchdogTick() {
	res := s.bridge.GameDataReady(context.Background())
	s.logger.Debug().Stringer("state", res.State).Bool("spawned", res.Spawned()).Msg("watchdog check")
}

// companionRunning is the readiness check.
func (s *Server) companionRunning() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sup := s.sup.Load()
	m, err := sup.Discover(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	if m.Len() == 0 {
		return fmt.Errorf("%s is not running", sup.Executable())
	}
	return nil
}
