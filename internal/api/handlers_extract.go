package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rkotari/qbank/internal/pdfinfo"
	"github.com/rkotari/qbank/internal/pipeline"
	"github.com/rkotari/qbank/internal/ulid"
)

// handleExtract accepts a PDF upload and queues an extraction run.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Limit total request size, with headroom for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, "only PDF files are accepted", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	pages, err := pdfinfo.PageCount(data)
	if err != nil {
		jsonError(w, "unreadable PDF: "+err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	run := &pipeline.Run{
		ID:        ulid.New(),
		Filename:  filename,
		Status:    pipeline.StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	run.SetPDFData(data)

	if err := s.orchestrator.Submit(run); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":    run.ID,
		"status":    run.Status,
		"pdf_pages": pages,
		"poll_url":  fmt.Sprintf("/api/extract/%s/status", run.ID),
	})
}

func (s *Server) handleExtractStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.orchestrator.GetRun(runID)
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	snap := run.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":   snap.ID,
		"filename": snap.Filename,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"progress": snap.Progress,
	})
}

// handleExtractResult returns the merged document and diagnostics for a
// finished run. The document is not persisted yet; the caller reviews
// it and saves via the documents endpoint.
func (s *Server) handleExtractResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.orchestrator.GetRun(runID)
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	result := run.Result()
	if result == nil {
		snap := run.Snapshot()
		if snap.Status == pipeline.StatusFailed {
			jsonError(w, "run failed", http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "run not finished",
			"status": snap.Status,
		})
		return
	}

	questions := result.Document.Questions
	answered, diagrams := 0, 0
	for _, q := range questions {
		if q.Answer != "" {
			answered++
		}
		if q.DiagramRef != "" {
			diagrams++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":      runID,
		"filename":    run.Snapshot().Filename,
		"questions":   questions,
		"diagnostics": result.Diagnostics,
		"metadata": map[string]any{
			"total_questions":         len(questions),
			"questions_with_answers":  answered,
			"questions_with_diagrams": diagrams,
			"total_pages":             result.TotalPages,
			"failed_pages":            result.FailedPages,
		},
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
