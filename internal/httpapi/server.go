// Package httpapi implements the core-facing HTTP surface (spec.md §6).
// It is explicitly out of scope for deep implementation (spec.md §1): the
// handlers here are thin, wiring requests directly to the Instance Pool,
// Config Store, and Strategy Registry without a router framework, the way
// the teacher's internal/api serves its dashboard on a bare net/http.ServeMux.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/grid"
	"gridbot/internal/pool"
	"gridbot/internal/store"
)

// Server is the JSON HTTP surface described by spec.md §6, versioned
// under /api/v1.
type Server struct {
	cfg      config.DashboardConfig
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer wires the registry/pool/store dependencies into a ServeMux
// under the /api/v1 prefix (spec.md §6 "Versioned under /api/v1").
func NewServer(cfg config.DashboardConfig, p *pool.Pool, cfgStore *store.Store, registry *grid.Registry, strategyDefaults config.StrategyDefaults, logger *slog.Logger) *Server {
	h := NewHandlers(p, cfgStore, registry, strategyDefaults, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandleHealth)

	mux.HandleFunc("/api/v1/config/exchanges", h.HandleListExchanges)
	mux.HandleFunc("/api/v1/config/exchange", h.HandleSaveExchange)
	mux.HandleFunc("/api/v1/config/exchange/", h.HandleExchangeByKey)
	mux.HandleFunc("/api/v1/config/exchange/test", h.HandleTestExchange)

	mux.HandleFunc("/api/v1/exchange/balance", h.HandleBalance)
	mux.HandleFunc("/api/v1/exchange/balances", h.HandleBalances)
	mux.HandleFunc("/api/v1/exchange/ticker/", h.HandleTicker)

	mux.HandleFunc("/api/v1/order/place", h.HandlePlaceOrder)
	mux.HandleFunc("/api/v1/order/cancel/", h.HandleCancelOrder)
	mux.HandleFunc("/api/v1/order/open/", h.HandleOpenOrders)
	mux.HandleFunc("/api/v1/order/", h.HandleGetOrder)

	mux.HandleFunc("/api/v1/strategy/sliding-window-grid/start", h.HandleStrategyStart)
	mux.HandleFunc("/api/v1/strategy/sliding-window-grid/", h.HandleStrategyLifecycle)
	mux.HandleFunc("/api/v1/strategy/list", h.HandleStrategyList)
	mux.HandleFunc("/api/v1/strategy/types", h.HandleStrategyTypes)
	mux.HandleFunc("/api/v1/strategy/", h.HandleStrategyDelete)

	mux.HandleFunc("/ws/strategy/", h.HandleStrategyWebSocket)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		handlers: h,
		server:   srv,
		logger:   logger.With("component", "http_api"),
	}
}

// Start blocks serving the HTTP surface until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http api starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("http api stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
