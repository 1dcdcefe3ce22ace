package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/textscan/internal/api"
	"github.com/jackzampolin/textscan/internal/config"
	"github.com/jackzampolin/textscan/internal/home"
	"github.com/jackzampolin/textscan/internal/ocr"
	"github.com/jackzampolin/textscan/internal/pdftext"
	"github.com/jackzampolin/textscan/internal/preview"
	"github.com/jackzampolin/textscan/internal/results"
	"github.com/jackzampolin/textscan/internal/server/endpoints"
	"github.com/jackzampolin/textscan/internal/session"
	"github.com/jackzampolin/textscan/internal/svcctx"
)

// Server is the main textscan HTTP server.
// It owns the OCR engines, the detection session manager and the preview
// hub, and stops every running session on shutdown.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	engines    *ocr.Registry
	hub        *preview.Hub
	openers    session.Openers
	configMgr  *config.Manager
	logger     *slog.Logger

	// Created by Start.
	sessions *session.Manager

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the textscan home directory (default: ~/.textscan)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support.
	// Without one the built-in defaults are used.
	ConfigManager *config.Manager
	// Openers adds or replaces session source openers. The replay
	// opener is always registered.
	Openers session.Openers
	// SwaggerSpecPath serves swagger.json from disk instead of the
	// embedded copy.
	SwaggerSpecPath string
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.Home = h
	}

	openers := session.Openers{session.SourceReplay: session.OpenReplay}
	for kind, open := range cfg.Openers {
		openers[kind] = open
	}

	// Create OCR engine registry
	engines := ocr.NewRegistry()
	engines.SetLogger(cfg.Logger)

	s := &Server{
		home:      cfg.Home,
		engines:   engines,
		hub:       preview.NewHub(cfg.Logger),
		openers:   openers,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}
	engines.Reload(s.currentConfig().ToOCRRegistryConfig())

	// If config manager provided, reload engines and session defaults on change
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(s.applyConfig)
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: cfg.SwaggerSpecPath}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// PDF OCR fallback can take minutes on long scans
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) currentConfig() *config.Config {
	if s.configMgr != nil {
		return s.configMgr.Get()
	}
	return config.DefaultConfig()
}

// applyConfig is the hot-reload hook. Running sessions keep the settings
// they started with.
func (s *Server) applyConfig(c *config.Config) {
	s.engines.Reload(c.ToOCRRegistryConfig())

	s.mu.RLock()
	sessions := s.sessions
	s.mu.RUnlock()
	if sessions != nil {
		sessions.SetDefaults(c.Detection)
	}
	s.logger.Info("configuration reloaded", "engine", c.OCR.Engine, "policy", c.Detection.Policy)
}

// Start prepares the working directory, starts the preview hub and the
// HTTP server. It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.home.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to prepare home directory: %w", err)
	}
	store, err := results.NewStore(s.home.UploadsDir())
	if err != nil {
		s.setNotRunning()
		return err
	}

	cfg := s.currentConfig()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go s.hub.Run(hubCtx)

	sessions := session.NewManager(session.Config{
		Engines:    s.engines,
		Results:    store,
		Openers:    s.openers,
		Defaults:   cfg.Detection,
		Hub:        s.hub,
		PreviewFPS: cfg.Preview.MaxFPS,
		Logger:     s.logger,
	})

	// Create services struct for context enrichment
	services := &svcctx.Services{
		Engines:  s.engines,
		Sessions: sessions,
		Pipeline: pdftext.New(ocr.DefaultEngine{Registry: s.engines}, cfg.PDF, s.logger),
		Results:  store,
		Hub:      s.hub,
		Config:   s.configMgr,
		Logger:   s.logger,
		Home:     s.home,
	}

	s.mu.Lock()
	s.sessions = sessions
	s.services = services
	s.mu.Unlock()
	s.logger.Info("services ready", "work_dir", store.Dir(), "engines", s.engines.List())

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown(stopHub)
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown(stopHub)
}

// shutdown stops the HTTP server, then every session, then the hub.
func (s *Server) shutdown(stopHub context.CancelFunc) error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop detection loops so cameras are released
	s.mu.RLock()
	sessions := s.sessions
	s.mu.RUnlock()
	if sessions != nil {
		s.logger.Info("stopping sessions", "running", sessions.Running())
		if err := sessions.Close(); err != nil {
			s.logger.Error("session manager close error", "error", err)
		}
	}

	stopHub()
	select {
	case <-s.hub.Done():
	case <-shutdownCtx.Done():
		s.logger.Warn("preview hub did not stop in time")
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Sessions returns the session manager.
// Returns nil if the server hasn't started yet.
func (s *Server) Sessions() *session.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Engines returns the OCR engine registry.
func (s *Server) Engines() *ocr.Registry {
	return s.engines
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()
		if services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the session manager isn't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Sessions() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
