// Package api serves the AMM over HTTP: read-only round and user views,
// trade and redemption endpoints, and a WebSocket stream of engine events
// (enter, exit, redeem, resolve).
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"roundpool/internal/amm"
	"roundpool/internal/config"
	"roundpool/internal/vault"
)

// Server runs the HTTP/WebSocket API.
type Server struct {
	cfg      config.APIConfig
	engine   *amm.Engine
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg config.APIConfig, engine *amm.Engine, v *vault.Vault, dryRun bool, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(engine, v, hub, dryRun, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.HandleFunc("GET /api/status", handlers.HandleStatus)
	mux.HandleFunc("GET /api/markets", handlers.HandleMarkets)
	mux.HandleFunc("GET /api/markets/{id}/round", handlers.HandleCurrentRound)
	mux.HandleFunc("GET /api/markets/{id}/rounds/{round}", handlers.HandleRound)
	mux.HandleFunc("GET /api/markets/{id}/amount-out", handlers.HandleAmountOut)
	mux.HandleFunc("POST /api/markets/{id}/enter", handlers.HandleEnter)
	mux.HandleFunc("POST /api/markets/{id}/exit", handlers.HandleExit)
	mux.HandleFunc("POST /api/markets/{id}/redeem", handlers.HandleRedeem)
	mux.HandleFunc("POST /api/resolve", handlers.HandleResolve)
	mux.HandleFunc("GET /api/users/{addr}/markets/{id}/position", handlers.HandleUserPosition)
	mux.HandleFunc("GET /api/users/{addr}/markets/{id}/unclaimed", handlers.HandleUserUnclaimed)
	mux.HandleFunc("GET /api/users/{addr}/balance", handlers.HandleUserBalance)
	mux.HandleFunc("POST /api/vault/deposit", handlers.HandleDeposit)
	mux.HandleFunc("GET /ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		engine:   engine,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the API server and hub.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.consumeEvents()

	s.logger.Info("api server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// consumeEvents reads events from the engine and broadcasts them.
func (s *Server) consumeEvents() {
	for evt := range s.engine.Events() {
		s.hub.BroadcastEvent(streamEventFrom(evt))
	}
}
