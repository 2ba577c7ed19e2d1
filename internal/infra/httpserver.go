package infra

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server with graceful shutdown that also reaches
// hijacked websocket connections, which http.Server.Shutdown ignores.
type HTTPServer struct {
	server  *http.Server
	streams context.Context
	stop    context.CancelFunc
}

// NewHTTPServer creates a configured HTTP server instance.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	streams, stop := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
	srv.RegisterOnShutdown(stop)
	return &HTTPServer{server: srv, streams: streams, stop: stop}
}

// StreamContext is canceled as soon as Shutdown begins.
func (s *HTTPServer) StreamContext() context.Context {
	return s.streams
}

// Start runs the HTTP server in the current goroutine. A server closed by
// Shutdown returns nil.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *HTTPServer) Serve(ln net.Listener) error {
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// Shutdown ends open streams, then waits for in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.stop()
	return s.server.Shutdown(ctx)
}
