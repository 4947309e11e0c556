// Package server exposes the platform's HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/labelforge/labelforge/internal/auth"
	"github.com/labelforge/labelforge/internal/store"
	"github.com/labelforge/labelforge/internal/telemetry"
	"github.com/labelforge/labelforge/pkg/artifact"
	"github.com/labelforge/labelforge/pkg/batch"
	"github.com/labelforge/labelforge/pkg/label/labelexpress"
	"github.com/labelforge/labelforge/pkg/ledger"
	"github.com/labelforge/labelforge/pkg/pricing"
)

// Config holds server configuration.
type Config struct {
	Port int
}

// Deps are the collaborators the handlers dispatch into.
type Deps struct {
	Users        store.Users
	Orders       store.Orders
	Batches      store.Batches
	Ledger       ledger.Ledger
	Orchestrator *batch.Orchestrator
	Pricer       *pricing.Resolver
	Provider     *labelexpress.Client
	Writer       *artifact.Writer
	Auth         *auth.Manager
}

// Server is the HTTP server for the label platform.
type Server struct {
	port    int
	deps    Deps
	logger  *otelzap.Logger
	metrics *telemetry.Metrics
}

// New creates a new server instance.
func New(cfg Config, deps Deps, logger *otelzap.Logger) *Server {
	return &Server{
		port:    cfg.Port,
		deps:    deps,
		logger:  logger,
		metrics: telemetry.NewMetrics(),
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.deps.Auth.Middleware).Get("/api/balance", s.handleProviderBalance)

			r.With(s.deps.Auth.Middleware).Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Post("/role/{userId}", s.handleUpdateUserRole)
				r.Post("/activation/{userId}", s.handleUpdateUserActivation)
				r.Post("/balance/{userId}", s.handleSetUserBalance)
				r.Delete("/{userId}", s.handleDeleteUser)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(s.deps.Auth.Middleware)
			r.Post("/", s.handleCreateOrder)
			r.Post("/price/single", s.handlePriceSingle)
			r.Post("/price/bulk", s.handlePriceBulk)
			r.Post("/service-price/{userId}", s.handleUpdateServicePrice)
			r.Post("/bulk/{userId}", s.handleSubmitBatch)
			r.Get("/bulk/{userId}", s.handleListBatches)
			r.Get("/download/{filename}", s.handleDownload)
			r.Get("/{userId}", s.handleListOrders)
		})

		r.Route("/payment", func(r chi.Router) {
			r.Use(s.deps.Auth.Middleware)
			r.Post("/top-up/{userId}", s.handleTopUp)
			r.Get("/balance/{userId}", s.handleBalance)
		})
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
