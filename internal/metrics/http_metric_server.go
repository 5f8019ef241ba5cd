package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const baseURLV1 = "/api/v1"

// Server exposes the analyzer's Prometheus metrics over HTTP. It
// implements graceful shutdown and early address validation so a
// misconfigured bind address fails fast instead of at first scrape.
type Server struct {
	addr   string
	server *http.Server
}

// NewServer creates a metrics HTTP server listening on addr, in
// "host:port" form (e.g. "127.0.0.1:8000" or ":8000").
//
// The server exposes two endpoints:
//   - GET /api/v1/metrics - Prometheus metrics endpoint (uses DefaultGatherer)
//   - GET /api/v1/health - Simple health check
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle(baseURLV1+"/metrics", promhttp.Handler())
	mux.HandleFunc(baseURLV1+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Printf("metrics: health handler write error: %v", err)
		}
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start begins serving HTTP requests on the configured address. It blocks
// until the server is shut down or encounters a fatal error. A graceful
// shutdown via Shutdown is not reported as an error.
func (s *Server) Start() error {
	if s.server == nil {
		return errors.New("metrics server not initialized")
	}

	log.Printf("metrics: starting HTTP server on %s", s.addr)

	if err := validateAddress(s.addr); err != nil {
		return fmt.Errorf("metrics: invalid address %q: %w", s.addr, err)
	}

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: HTTP server error: %w", err)
	}

	log.Println("metrics: HTTP server stopped")
	return nil
}

// Shutdown gracefully stops the HTTP server, allowing active connections
// to complete. The provided context bounds the shutdown wait.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("metrics: shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown error: %w", err)
	}

	log.Println("metrics: HTTP server shutdown complete")
	return nil
}

// validateAddress checks that addr is a resolvable host:port before the
// server attempts to bind it.
func validateAddress(addr string) error {
	if addr == "" {
		return errors.New("empty address")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid host:port format: %w", err)
	}

	if port == "" {
		return errors.New("port is required")
	}

	// Empty and wildcard hosts listen on all interfaces.
	if host == "" || host == "0.0.0.0" || host == "::" {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		return nil
	}

	// Hostnames (including "localhost") must resolve.
	if _, err := net.LookupHost(host); err != nil {
		return fmt.Errorf("cannot resolve host %q: %w", host, err)
	}

	return nil
}
