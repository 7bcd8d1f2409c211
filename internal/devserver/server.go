// Package devserver serves the output directory with live reload during development.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/livereload"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
	"git.home.luguber.info/inful/sitebuild/internal/version"
)

// State is the server lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Server serves the destination root, the live reload endpoints, metrics and health.
type Server struct {
	hub      *livereload.Hub
	registry *prometheus.Registry

	mu        sync.Mutex
	state     State
	srv       *http.Server
	addr      net.Addr
	startedAt time.Time
}

// New creates a stopped server. registry may be nil to disable /metrics.
func New(hub *livereload.Hub, registry *prometheus.Registry) *Server {
	return &Server{hub: hub, registry: registry}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address once Running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler builds the request router for cfg.
func (s *Server) Handler(cfg config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(livereload.EventsPath, s.hub)
	mux.Handle(livereload.ScriptPath, livereload.ScriptHandler())
	mux.HandleFunc("/health", s.handleHealth)
	if s.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}
	files := http.FileServer(http.Dir(cfg.Abs(cfg.Paths.Dist)))
	mux.Handle("/", noCache(livereload.Inject(files)))
	return mux
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	started := s.startedAt
	state := s.state
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  state.String(),
		"version": version.Version,
		"uptime":  time.Since(started).Round(time.Second).String(),
		"clients": s.hub.Clients(),
	})
}

// Start binds cfg.DefaultPort and serves in the background. The bind happens before Start
// returns so a port conflict surfaces as an error. Starting a running server is an error.
func (s *Server) Start(cfg config.Config) error {
	return s.start(cfg, fmt.Sprintf(":%d", cfg.DefaultPort))
}

func (s *Server) start(cfg config.Config, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return ferrors.ServerError("dev server already running").Build()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "bind dev server").
			Fatal().
			WithContext("addr", addr).
			Build()
	}

	// No write timeout: SSE connections are long-lived.
	srv := &http.Server{Handler: s.Handler(cfg), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 120 * time.Second}
	s.srv = srv
	s.addr = ln.Addr()
	s.state = Running
	s.startedAt = time.Now()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Dev server error", logfields.Error(err))
		}
	}()
	port := 0
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	slog.Info("Dev server listening", logfields.Port(port), slog.String("url", fmt.Sprintf("http://localhost:%d", port)))
	return nil
}

// Shutdown disconnects live reload clients and stops serving. It exists for process exit
// and tests; the server otherwise runs until the process ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	running := s.state == Running
	s.mu.Unlock()
	if !running {
		return nil
	}
	s.hub.Shutdown()
	err := srv.Shutdown(ctx)
	s.mu.Lock()
	s.state = Stopped
	s.srv = nil
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("dev server shutdown: %w", err)
	}
	slog.Info("Dev server stopped")
	return nil
}
