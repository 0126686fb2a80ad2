// Package api exposes the detection engine over HTTP: submit content for
// scanning, look up scan history by hash, and trigger allow-list reloads.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"argus/core"
	"argus/detect"
	"argus/ingest"
	"argus/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxScanBodyBytes caps a scan request body. Scripts arriving over the API
// are the same population as fetched ones; anything larger is abuse.
const maxScanBodyBytes = 10 * 1024 * 1024

// Reloader triggers a rebuild of the allow-list rule tables. Rule loading is
// degraded-not-fatal, so a reload always completes.
type Reloader interface {
	Reload()
}

// Config holds configuration for a Server.
type Config struct {
	Host      string
	Port      int
	Engine    *detect.Engine
	History   *storage.HistoryStore
	Whitelist Reloader
	Fetcher   *ingest.Fetcher
	Logger    *zap.SugaredLogger
}

// Server is the Argus HTTP API.
type Server struct {
	engine   *detect.Engine
	history  *storage.HistoryStore
	reloader Reloader
	fetcher  *ingest.Fetcher
	validate *validator.Validate
	router   *mux.Router
	server   *http.Server
	logger   *zap.SugaredLogger
}

// ScanRequest is the body of POST /api/v1/scan. Exactly one of Content or
// URL supplies the script; Model optionally overrides the engine default.
type ScanRequest struct {
	Source  string `json:"source" validate:"max=1024"`
	Content string `json:"content" validate:"required_without=URL"`
	URL     string `json:"url" validate:"omitempty,url"`
	Model   string `json:"model" validate:"omitempty,max=64"`
}

// NewServer creates a Server with all routes registered.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("api server requires a detection engine")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = ingest.NewFetcher(&ingest.FetcherConfig{Logger: cfg.Logger})
	}

	s := &Server{
		engine:   cfg.Engine,
		history:  cfg.History,
		reloader: cfg.Whitelist,
		fetcher:  cfg.Fetcher,
		validate: validator.New(),
		router:   mux.NewRouter(),
		logger:   cfg.Logger,
	}
	s.routes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/scan", s.handleScan).Methods("POST")
	s.router.HandleFunc("/api/v1/scans/{hash}", s.handleGetScan).Methods("GET")
	s.router.HandleFunc("/api/v1/scans", s.handleRecentScans).Methods("GET")
	s.router.HandleFunc("/api/v1/whitelist/reload", s.handleReload).Methods("POST")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Infow("API server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	body := http.MaxBytesReader(w, r.Body, maxScanBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err, s.logger)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan request", err, s.logger)
		return
	}
	item := core.InputItem{Source: req.Source, Content: req.Content}
	if item.Content == "" && req.URL != "" {
		fetched, err := s.fetcher.FetchURL(r.Context(), req.URL)
		if err != nil {
			// Fetch failure is a per-item error, reported on the result.
			failed := core.NewAnalysisResult(core.InputItem{Source: req.URL})
			failed.Error = fmt.Errorf("%w: %v", detect.ErrContentUnavailable, err).Error()
			s.recordHistory(r.Context(), failed)
			writeJSON(w, http.StatusUnprocessableEntity, sanitizeResult(failed), s.logger)
			return
		}
		item = fetched
	}
	if item.Source == "" {
		item.Source = "api"
	}

	result, err := s.engine.AnalyzeWithModel(r.Context(), item, req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown classifier model", err, s.logger)
		return
	}
	s.recordHistory(r.Context(), result)

	status := http.StatusOK
	if result.Failed() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, sanitizeResult(result), s.logger)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "scan history is not enabled", nil, s.logger)
		return
	}

	hash := mux.Vars(r)["hash"]
	if !core.IsValidHash(hash) {
		writeError(w, http.StatusBadRequest, "invalid content hash", nil, s.logger)
		return
	}

	result, err := s.history.GetLatestByHash(r.Context(), hash)
	if err == storage.ErrScanNotFound {
		writeError(w, http.StatusNotFound, "no scan recorded for hash", nil, s.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query scan history", err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, sanitizeResult(result), s.logger)
}

func (s *Server) handleRecentScans(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "scan history is not enabled", nil, s.logger)
		return
	}

	results, err := s.history.RecentScans(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query scan history", err, s.logger)
		return
	}
	sanitized := make([]*core.AnalysisResult, len(results))
	for i, result := range results {
		sanitized[i] = sanitizeResult(result)
	}
	writeJSON(w, http.StatusOK, sanitized, s.logger)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeError(w, http.StatusNotFound, "whitelist reload is not enabled", nil, s.logger)
		return
	}
	s.reloader.Reload()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  s.engine.Model(),
	}, s.logger)
}

// sanitizeResult strips raw script content from API responses; callers get
// the hash and can fetch content from the result store if authorized.
func sanitizeResult(result *core.AnalysisResult) *core.AnalysisResult {
	copied := *result
	copied.Content = ""
	return &copied
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Errorw("Failed to encode response", "error", err)
	}
}

// writeError logs the full error internally and sends the client only the
// generic message.
func writeError(w http.ResponseWriter, status int, message string, err error, logger *zap.SugaredLogger) {
	if logger != nil {
		if err != nil {
			logger.Errorw(message, "error", err.Error(), "status_code", status)
		} else {
			logger.Warnw(message, "status_code", status)
		}
	}
	writeJSON(w, status, map[string]string{"error": message}, logger)
}

func (s *Server) recordHistory(ctx context.Context, result *core.AnalysisResult) {
	if s.history == nil {
		return
	}
	if err := s.history.InsertResult(ctx, result); err != nil {
		s.logger.Errorw("Failed to record scan history", "scan_id", result.ScanID, "error", err)
	}
}
