// Package api provides the HTTP intake and query surface consumed by the
// order-entry UI, plus a websocket feed of lifecycle events.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"bracket-trader/internal/broker"
	"bracket-trader/internal/store"
	"bracket-trader/internal/stream"
	"bracket-trader/internal/symbols"
	"bracket-trader/internal/trading"
)

// Server hosts the JSON API and the event feed.
type Server struct {
	store    store.OrderStore
	gateway  broker.Gateway
	actions  *trading.Actions
	resolver *symbols.Resolver
	hub      *stream.Hub
	logger   zerolog.Logger

	httpServer *http.Server
}

// NewServer creates a new API server.
func NewServer(addr string, s store.OrderStore, g broker.Gateway, a *trading.Actions, r *symbols.Resolver, hub *stream.Hub, logger zerolog.Logger) *Server {
	srv := &Server{
		store:    s,
		gateway:  g,
		actions:  a,
		resolver: r,
		hub:      hub,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", srv.handleCreateOrder)
	mux.HandleFunc("GET /api/orders", srv.handleListOrders)
	mux.HandleFunc("GET /api/orders/{id}", srv.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", srv.handleCancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/exit", srv.handleForceExit)
	mux.HandleFunc("GET /api/instruments", srv.handleSearchInstruments)
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/events", srv.handleEvents)

	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.logRequests(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// ListenAndServe starts the HTTP listener and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown performs a graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
