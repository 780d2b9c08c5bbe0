package server

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transcriptor/internal/jobs"
	"transcriptor/internal/logging"
)

//go:embed index.html
var indexPage []byte

// maxUploadBytes bounds the accepted batch file size.
const maxUploadBytes = 32 << 20

// progressEvent is the wire payload of one progress stream event. Keys and
// null handling follow the frontend contract.
type progressEvent struct {
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	Log         *string `json:"log"`
	Done        bool    `json:"done"`
	DownloadURL *string `json:"download_url"`
	Error       *string `json:"error"`
}

func eventFromSnapshot(snap jobs.Snapshot) progressEvent {
	event := progressEvent{
		Status:   snap.StatusLine,
		Progress: snap.Progress,
		Done:     snap.Done,
	}
	if snap.LatestLog != "" {
		event.Log = &snap.LatestLog
	}
	if snap.DownloadURL != "" {
		event.DownloadURL = &snap.DownloadURL
	}
	if snap.Error != "" {
		event.Error = &snap.Error
	}
	return event
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		s.writeError(w, http.StatusBadRequest, "No selected file")
		return
	}

	job, err := s.store.Create(r.Context(), s.resultsDir)
	if err != nil {
		s.logger.Error("create job", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	batchPath := filepath.Join(s.uploadDir, fmt.Sprintf("%s_%s", job.ID, filepath.Base(header.Filename)))
	if err := saveUpload(file, batchPath); err != nil {
		s.logger.Error("save upload", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	if err := s.runner.Submit(job.ID, batchPath); err != nil {
		s.logger.Error("submit job", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
		s.writeError(w, http.StatusServiceUnavailable, "processing unavailable")
		return
	}

	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("batch_file", filepath.Base(batchPath)),
	)
	s.writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/progress/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for snap := range s.store.Watch(r.Context(), jobID, s.pollInterval) {
		var payload []byte
		var err error
		if snap.Error == jobs.NotFoundSnapshot().Error && snap.Status == "" {
			payload, err = json.Marshal(map[string]string{"error": snap.Error})
		} else {
			payload, err = json.Marshal(eventFromSnapshot(snap))
		}
		if err != nil {
			s.logger.Warn("marshal progress event", logging.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/download/")
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.resultsDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

type jobView struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	StatusLine  string `json:"status_line,omitempty"`
	Progress    int    `json:"progress"`
	Error       string `json:"error,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	list, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]jobView, 0, len(list))
	for _, job := range list {
		view := jobView{
			ID:         job.ID,
			Status:     string(job.Status),
			StatusLine: job.StatusLine,
			Progress:   job.Progress,
			Error:      job.ErrorMessage,
			CreatedAt:  job.CreatedAt.UTC().Format(time.RFC3339),
		}
		if job.Status == jobs.StatusDone && job.ArchivePath != "" {
			view.DownloadURL = "/download/" + filepath.Base(job.ArchivePath)
		}
		views = append(views, view)
	}
	s.writeJSON(w, http.StatusOK, map[string][]jobView{"jobs": views})
}

func saveUpload(src io.Reader, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("ensure upload dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("flush upload file: %w", err)
	}
	return nil
}
