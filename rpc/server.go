// Package rpc exposes the governance node over a JSON HTTP API.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"govchain/core"
	"govchain/storage/audit"
)

// AuditSource lists persisted audit records.
type AuditSource interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Record, error)
}

// Config captures the HTTP server settings.
type Config struct {
	ListenAddress      string
	RequireAuth        bool
	JWTSecret          string
	JWTIssuer          string
	RateLimitPerSecond float64
	RateLimitBurst     int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	Logger             *slog.Logger
}

// Server serves the governance API.
type Server struct {
	node    *core.Node
	audit   AuditSource
	cfg     Config
	logger  *slog.Logger
	auth    *authenticator
	limiter *rateLimiter
	hub     *Hub
	router  http.Handler
}

// NewServer builds the router and subscribes the event stream to node. A nil
// audit source disables the audit endpoint.
func NewServer(node *core.Node, cfg Config, auditLog AuditSource) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	s := &Server{
		node:    node,
		audit:   auditLog,
		cfg:     cfg,
		logger:  logger,
		auth:    newAuthenticator(cfg.RequireAuth, cfg.JWTSecret, cfg.JWTIssuer),
		limiter: newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		hub:     NewHub(eventBuffer),
	}
	node.Subscribe(s.hub)
	s.router = otelhttp.NewHandler(s.buildRouter(), "govchain.api")
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.limiter.Middleware)
		api.Get("/events/stream", s.handleEventStream)

		api.Post("/delegate-by-sig", s.handleDelegateBySig)
		api.Get("/accounts/{addr}", s.handleGetAccount)
		api.Get("/accounts/{addr}/prior-votes", s.handlePriorVotes)
		api.Get("/accounts/{addr}/checkpoints", s.handleCheckpoints)
		api.Get("/token/supply", s.handleTotalSupply)

		api.Get("/governance", s.handleGovernanceInfo)
		api.Get("/proposals/{id}", s.handleGetProposal)
		api.Get("/proposals/{id}/state", s.handleProposalState)
		api.Get("/proposals/{id}/receipts/{voter}", s.handleGetReceipt)
		api.Post("/proposals/{id}/votes-by-sig", s.handleCastVoteBySig)
		api.Post("/proposals/{id}/queue", s.handleQueueProposal)
		api.Post("/proposals/{id}/execute", s.handleExecuteProposal)

		api.Get("/timelock", s.handleTimelockInfo)
		api.Get("/timelock/queued/{hash}", s.handleTimelockQueued)
		api.Get("/params/fee-to", s.handleFeeTo)
		api.Get("/params/*", s.handleGetParam)
		api.Get("/audit", s.handleAudit)

		api.Group(func(protected chi.Router) {
			protected.Use(s.auth.Middleware)
			protected.Post("/delegate", s.handleDelegate)
			protected.Post("/transfer", s.handleTransfer)
			protected.Post("/mint", s.handleMint)
			protected.Post("/proposals", s.handlePropose)
			protected.Post("/proposals/{id}/votes", s.handleCastVote)
			protected.Post("/proposals/{id}/cancel", s.handleCancelProposal)
			protected.Post("/governance/accept-admin", s.handleGovernanceAcceptAdmin)
			protected.Post("/timelock/queue", s.handleTimelockQueue)
			protected.Post("/timelock/cancel", s.handleTimelockCancel)
			protected.Post("/timelock/execute", s.handleTimelockExecute)
			protected.Post("/timelock/accept-admin", s.handleTimelockAcceptAdmin)
			protected.Post("/params/fee-to", s.handleSetFeeTo)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("address", s.cfg.ListenAddress))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
