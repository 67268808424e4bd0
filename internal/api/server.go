package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/better-wallet/walletd/internal/config"
	"github.com/better-wallet/walletd/internal/logger"
	"github.com/better-wallet/walletd/internal/middleware"
)

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	manager     SessionManager
	journal     TransferJournal
	rateLimiter *middleware.RateLimiter
	metrics     http.Handler
	httpServer  *http.Server

	// background transfers outlive their request
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewServer creates a new API server. journal and metricsHandler may be nil.
func NewServer(
	cfg *config.Config,
	manager SessionManager,
	journal TransferJournal,
	rateLimiter *middleware.RateLimiter,
	metricsHandler http.Handler,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:      cfg,
		manager:     manager,
		journal:     journal,
		rateLimiter: rateLimiter,
		metrics:     metricsHandler,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Handler returns the routed handler with the middleware chain applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	mux.HandleFunc("/v1/session", s.handleSession)
	mux.HandleFunc("/v1/session/", s.handleSessionOperations)
	mux.HandleFunc("/v1/token", s.handleToken)
	mux.HandleFunc("/v1/transfers", s.handleTransfers)
	mux.HandleFunc("/v1/transfers/", s.handleTransferOperations)

	// Chain: Recover -> RequestID -> ClientContext -> Logging -> RateLimit -> LimitBody -> Routes
	var h http.Handler = middleware.LimitBody(middleware.MaxBodySize)(mux)
	if s.rateLimiter != nil {
		h = s.rateLimiter.Limit(h)
	}
	return middleware.Recover(middleware.RequestID(middleware.ClientContext(middleware.Logging(h))))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Connect and wait=true transfers block on the user and the chain
		WriteTimeout: s.config.ConfirmationTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(context.Background(), "starting server", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cancels background transfers
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.cancel()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
