package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/driftwatch/pkg/cache"
	"github.com/malbeclabs/driftwatch/pkg/metrics"
	"github.com/malbeclabs/driftwatch/pkg/reconcile"
	"github.com/malbeclabs/driftwatch/pkg/topology"
)

const (
	// DefaultSessionTTL is how long an ad-hoc reconciliation session stays
	// fetchable after it is created.
	DefaultSessionTTL = 30 * time.Minute

	DefaultShutdownTimeout = 5 * time.Second
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	ListenAddr string
	View       *topology.View

	// Reconcile holds the defaults applied to ad-hoc reconciliation
	// requests that don't override them.
	Reconcile  reconcile.Options
	SessionTTL time.Duration

	Version string
	Commit  string
	Date    string

	CORSOrigins     []string
	SentryDSN       string
	ShutdownTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.View == nil {
		return errors.New("topology view is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Server serves the reconciled topology and ad-hoc reconciliation sessions
// over HTTP.
type Server struct {
	log      *slog.Logger
	cfg      Config
	view     *topology.View
	sessions *cache.Memory[*Session]

	// shuttingDown is set when the run context is cancelled. The readiness
	// probe checks this to immediately return 503.
	shuttingDown atomic.Bool
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sessions, err := cache.NewMemory[*Session](cache.Config{
		Logger: cfg.Logger,
		Clock:  cfg.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Server{
		log:      cfg.Logger,
		cfg:      cfg,
		view:     cfg.View,
		sessions: sessions,
	}, nil
}

// Router builds the chi router with the full middleware chain and routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)

	// Sentry before Recoverer so panics are captured and re-raised for the
	// recoverer to turn into a 500.
	if s.cfg.SentryDSN != "" {
		sentryHandler := sentryhttp.New(sentryhttp.Options{
			Repanic: true,
		})
		r.Use(sentryHandler.Handle)
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if txn := sentry.TransactionFromContext(r.Context()); txn != nil {
					if rctx := chi.RouteContext(r.Context()); rctx != nil {
						if pattern := rctx.RoutePattern(); pattern != "" {
							txn.Name = r.Method + " " + pattern
						} else {
							txn.Name = r.Method + " " + r.URL.Path
						}
					}
				}
				next.ServeHTTP(w, r)
			})
		})
	}

	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	corsOrigins := s.cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Get("/api/version", s.handleVersion)
	r.Get("/api/topology", s.handleTopology)
	r.Get("/api/links", s.handleLinks)
	r.Get("/api/locations", s.handleLocations)
	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/epochs", s.handleEpochs)

	r.Post("/api/reconcile", s.handleReconcile)
	r.Get("/api/sessions/{id}", s.handleGetSession)
	r.Delete("/api/sessions/{id}", s.handleDeleteSession)
	r.Get("/api/sessions/{id}/links", s.handleSessionLinks)

	return r
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}

	server := &http.Server{
		Handler:     s.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down api server")
	s.shuttingDown.Store(true)
	s.sessions.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Stop releases server-owned background resources. Run does this itself on
// context cancellation; Stop exists for callers that only used Router.
func (s *Server) Stop() {
	s.sessions.Stop()
}
