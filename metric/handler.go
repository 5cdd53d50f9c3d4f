package metric

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/datahub/errors"
)

// Server exposes the registry over HTTP for Prometheus scraping
type Server struct {
	addr     string
	path     string
	server   *http.Server
	listener net.Listener
	registry *MetricsRegistry
	health   http.Handler
	mu       sync.Mutex // protects server, listener and health
}

// NewServer creates a metrics server. addr defaults to ":9090" and path to "/metrics".
func NewServer(addr, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if addr == "" {
		addr = ":9090"
	}

	return &Server{
		addr:     addr,
		path:     path,
		registry: registry,
	}
}

// SetHealthHandler replaces the static "OK" answer on /health. It takes
// effect on the next Start or Handler call.
func (s *Server) SetHealthHandler(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = h
}

// Handler returns the mux served by Start
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	health := s.health
	s.mu.Unlock()
	return s.handler(health)
}

func (s *Server) handler(health http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
	}
	mux.Handle("/health", health)
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.WrapInvalid(
			fmt.Errorf("server already running"),
			"Server", "Start", "cannot start server that is already running")
	}
	if s.registry == nil {
		return errors.WrapFatal(
			fmt.Errorf("nil registry"),
			"Server", "Start", "metrics registry not provided")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to listen on %s", s.addr))
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler(s.health),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := s.server
	go func() { _ = srv.Serve(ln) }()
	return nil
}

// Stop closes the server; it may be started again afterwards
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	s.listener = nil
	if err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "failed to stop HTTP server")
	}
	return nil
}

// Address returns the metrics URL, resolving the bound port when addr used port 0
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := s.addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + s.path
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, port), s.path)
}
