package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/lacquerai/co2/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	EnableMetrics   bool
	EnableCORS      bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5000,
		EnableMetrics:   true,
		EnableCORS:      true,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server serves CO2 predictions over HTTP
type Server struct {
	config   *Config
	pipeline *pipeline.Pipeline
	metrics  *Metrics
	gatherer prometheus.Gatherer
	server   *http.Server
	addr     string
}

// New creates a new prediction server
func New(config *Config, pl *pipeline.Pipeline) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if pl == nil {
		return nil, errors.New("a prediction pipeline is required")
	}

	return &Server{
		config:   config,
		pipeline: pl,
	}, nil
}

// initializeMetrics registers the default metrics if none were set
func (s *Server) initializeMetrics() {
	if s.metrics == nil {
		s.metrics = NewMetrics()
		s.gatherer = prometheus.DefaultGatherer
	}
}

// Handler builds the HTTP handler with all routes and middleware
func (s *Server) Handler() http.Handler {
	s.initializeMetrics()

	router := mux.NewRouter()

	router.HandleFunc("/", s.home).Methods("GET")
	router.HandleFunc("/health", s.healthCheck).Methods("GET")
	router.HandleFunc("/predict", s.predict).Methods("POST")

	if s.config.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	router.NotFoundHandler = http.HandlerFunc(s.notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	// mux only runs router middleware on matched routes, so CORS preflight,
	// request ids and access logs wrap the whole router.
	var handler http.Handler = router
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}
	return requestIDMiddleware(s.loggingMiddleware(handler))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.addr = listener.Addr().String()

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	log.Info().
		Str("addr", s.addr).
		Bool("metrics", s.config.EnableMetrics).
		Bool("cors", s.config.EnableCORS).
		Msg("Starting CO2 prediction server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully and releases the model
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Info().Msg("Shutting down server...")
	err := s.server.Shutdown(ctx)
	s.server = nil

	if closeErr := s.pipeline.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("Failed to release model")
		if err == nil {
			err = closeErr
		}
	}
	return err
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT or
// SIGTERM, then shuts down.
func (s *Server) StartWithGracefulShutdown() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	<-sigChan
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}

// GetAddr returns the server address. Once started it reports the bound
// address, which resolves port 0 to the assigned port.
func (s *Server) GetAddr() string {
	if s.addr != "" {
		return s.addr
	}
	return net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
}
