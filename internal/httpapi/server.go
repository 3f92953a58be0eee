// Package httpapi exposes the scanner's request/response contract over
// HTTP: GET /spreads/top, GET /spreads/history, GET /healthz.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server runs the HTTP facade in front of a scanner command channel.
type Server struct {
	addr     string
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer wires the mux and the underlying http.Server, matching the
// teacher's timeout conventions.
func NewServer(addr string, handlers *Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handlers.HandleHealth)
	mux.HandleFunc("/spreads/top", handlers.HandleTopSpreads)
	mux.HandleFunc("/spreads/history", handlers.HandleSpreadHistory)

	return &Server{
		addr:     addr,
		handlers: handlers,
		logger:   logger.With("component", "http-api"),
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start blocks serving until the listener closes. Use with a goroutine
// and a paired Stop call on shutdown.
func (s *Server) Start() error {
	s.logger.Info("http facade starting", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http facade error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down within a bounded timeout.
func (s *Server) Stop() error {
	s.logger.Info("stopping http facade")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
