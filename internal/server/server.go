// Package server is the HTTP surface of tablegate: a chi router binding
// the table routes to the paged cursor and the schema catalog, behind the
// session gate.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koustreak/tablegate/internal/auth"
	"github.com/koustreak/tablegate/internal/cursor"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/metrics"
	"github.com/koustreak/tablegate/internal/schema"
)

// Config configures the HTTP listener.
type Config struct {
	Addr            string
	StaticDir       string // empty: no static files
	MetricsPath     string // empty: metrics not exposed
	Version         string
	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Only set it behind a proxy that overwrites those headers;
	// the login rate limit is keyed on the client address.
	TrustProxy      bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the listener defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":3000",
		StaticDir:       "public",
		MetricsPath:     "/metrics",
		Version:         "dev",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Database is what the server needs from the connection manager.
// *database.Manager implements it.
type Database interface {
	cursor.Sessions
	Ping(ctx context.Context) error
}

// Server owns the router and its collaborators.
type Server struct {
	cfg     *Config
	db      Database
	catalog schema.Reader
	cursor  *cursor.Facade
	gate    *auth.Gate
	log     *logger.Logger
	login   *loginPage
}

// New wires a server over db. Table names are resolved through catalog
// and every data route is gated by gate.
func New(cfg *Config, db Database, catalog schema.Reader, gate *auth.Gate, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		cfg:     cfg,
		db:      db,
		catalog: catalog,
		cursor:  cursor.New(db, catalog),
		gate:    gate,
		log:     log,
		login:   newLoginPage(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(logger.Middleware(s.log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	routes := s.routes()

	r.Group(func(r chi.Router) {
		for _, rt := range routes {
			if rt.Public {
				r.Method(rt.Method, rt.Pattern, rt.Handler)
			}
		}
		if s.cfg.MetricsPath != "" {
			r.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.Handler())
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(s.gate.RequireSession)
		for _, rt := range routes {
			if !rt.Public {
				r.Method(rt.Method, rt.Pattern, rt.Handler)
			}
		}
	})

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests for
// up to ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", s.cfg.Addr).Logger().Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
