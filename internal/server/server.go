// Package server is the development host's HTTP surface: the join/leave feed, a
// read-only view of the player registry, registered modules and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zot/ezbridge/internal/logging"
	"github.com/zot/ezbridge/internal/metrics"
	"github.com/zot/ezbridge/internal/playerdb"
)

// Players is what the HTTP views read from the registry.
type Players interface {
	GetData() []playerdb.PlayerEntry
	Find(xuid uint64) (playerdb.PlayerEntry, bool)
	FindOffline(xuid uint64) (playerdb.OfflinePlayerEntry, bool, error)
}

// Options configures a Server. Feed and Metrics are optional.
type Options struct {
	Addr      string
	Players   Players
	Peers     *playerdb.PeerBook
	Feed      http.Handler
	Metrics   *metrics.Bridge
	Logger    *zap.Logger
	Verbosity int
}

// Server is the development host's HTTP server.
type Server struct {
	opts       Options
	handler    http.Handler
	httpServer *http.Server
}

// New creates a server; nothing listens until Start.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{opts: opts}
	s.handler = s.routes()
	return s
}

// Log logs a verbosity-gated message.
func (s *Server) Log(level int, format string, args ...any) {
	logging.Logf(s.opts.Logger, s.opts.Verbosity, level, format, args...)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background. It returns the
// address actually bound, which differs from the configured one for port 0.
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	addr := listener.Addr().String()

	go func() {
		s.Log(0, "HTTP server listening on %s", addr)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log(0, "HTTP server error: %v", err)
		}
	}()
	return addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
