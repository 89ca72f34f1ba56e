// Package server implements the HTTP server that exposes the knowledge base
// via a REST API: document ingestion, vector search, retrieval-grounded
// question answering, and chatbot administration.
// The server is started by the `chatkb serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatkb/chatkb/internal/logging"
)

// New constructs a Server from the knowledge-base engine, the relational
// store, and the config.
func New(engine knowledgeBase, db relational, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: knowledge base must not be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("server: relational store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover ingestion of large uploads plus embedding.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "data/documents"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		kb:      engine,
		db:      db,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		s.log.Warn("server: CHATKB_API_KEY not set — API authentication is disabled")
	}

	// Protected API routes: rate-limited and (when configured) authenticated.
	api := http.NewServeMux()
	api.HandleFunc("POST /api/chatbots", s.handleCreateChatbot)
	api.HandleFunc("GET /api/chatbots", s.handleListChatbots)
	api.HandleFunc("GET /api/chatbots/{id}", s.handleGetChatbot)
	api.HandleFunc("POST /api/sessions", s.handleCreateSession)
	api.HandleFunc("GET /api/sessions/{id}/messages", s.handleListMessages)
	api.HandleFunc("POST /api/knowledge-base/upload", s.handleUpload)
	api.HandleFunc("GET /api/knowledge-base/uploads", s.handleListUploads)
	api.HandleFunc("POST /api/knowledge-base/documents", s.handleIngestText)
	api.HandleFunc("GET /api/knowledge-base/documents", s.handleListDocuments)
	api.HandleFunc("POST /api/knowledge-base/search", s.handleSearch)
	api.HandleFunc("POST /api/knowledge-base/query", s.handleQuery)
	protected := authMiddleware(cfg.APIKey, rl.middleware(api))

	// Probes and metrics stay reachable without credentials so orchestrators
	// can scrape them.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	mux.Handle("/api/", protected)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.httpMetrics(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", "addr", "http://"+s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
