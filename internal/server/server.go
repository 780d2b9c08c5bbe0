package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"transcriptor/internal/config"
	"transcriptor/internal/jobs"
	"transcriptor/internal/logging"
	"transcriptor/internal/pipeline"
)

// Server exposes the job submission, progress streaming, and download
// endpoints over HTTP.
type Server struct {
	bind         string
	logger       *slog.Logger
	store        *jobs.Store
	runner       *pipeline.Runner
	uploadDir    string
	resultsDir   string
	pollInterval time.Duration

	listener net.Listener
	server   *http.Server
}

// New constructs the HTTP server from configuration and wiring.
func New(cfg *config.Config, store *jobs.Store, runner *pipeline.Runner, logger *slog.Logger) *Server {
	srv := &Server{
		bind:         cfg.Paths.APIBind,
		logger:       logging.NewComponentLogger(logger, "server"),
		store:        store,
		runner:       runner,
		uploadDir:    cfg.UploadDir(),
		resultsDir:   cfg.ResultsDir(),
		pollInterval: time.Duration(cfg.Workflow.ProgressPollInterval) * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleIndex)
	mux.HandleFunc("/upload", srv.handleUpload)
	mux.HandleFunc("/progress/", srv.handleProgress)
	mux.HandleFunc("/download/", srv.handleDownload)
	mux.HandleFunc("/api/jobs", srv.handleJobs)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the server's route multiplexer (used in tests).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving and arranges shutdown when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
