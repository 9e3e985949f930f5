package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
)

// Config holds HTTP server settings.
type Config struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// KeepAlive is the interval between SSE keep-alive comments.
	KeepAlive time.Duration `mapstructure:"keep_alive" yaml:"keep_alive"`
	// StreamBuffer is how many undelivered events an SSE client may lag
	// behind before its stream is closed.
	StreamBuffer      int           `mapstructure:"stream_buffer" yaml:"stream_buffer"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:              "127.0.0.1:8080",
		KeepAlive:         30 * time.Second,
		StreamBuffer:      256,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Server serves the engine's control surface and event streams.
type Server struct {
	engine *engine.Engine
	config Config
	logger *logging.Logger
	mux    *http.ServeMux
}

// New returns a server with routes bound.
func New(eng *engine.Engine, cfg Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	defaults := DefaultConfig()
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaults.KeepAlive
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = defaults.StreamBuffer
	}
	s := &Server{
		engine: eng,
		config: cfg,
		logger: logger.WithPhase("server"),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /sessions", s.handleCreate)
	s.mux.HandleFunc("GET /sessions", s.handleList)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleGet)
	s.mux.HandleFunc("GET /sessions/{id}/turn", s.handleTurn)
	s.mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)
	s.mux.HandleFunc("POST /sessions/{id}/start", s.handleStart)
	s.mux.HandleFunc("POST /sessions/{id}/pause", s.handlePause)
	s.mux.HandleFunc("POST /sessions/{id}/resume", s.handleResume)
	s.mux.HandleFunc("POST /sessions/{id}/end", s.handleEnd)
	s.mux.HandleFunc("GET /stats", s.handleStats)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
