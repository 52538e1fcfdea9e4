package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rkotari/qbank/internal/export"
	"github.com/rkotari/qbank/internal/model"
)

// saveDocumentRequest carries the reviewed (possibly user-edited)
// questions to persist.
type saveDocumentRequest struct {
	Filename  string           `json:"filename"`
	Questions []model.Question `json:"questions"`
}

func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req saveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		jsonError(w, "filename is required", http.StatusBadRequest)
		return
	}
	if len(req.Questions) == 0 {
		jsonError(w, "at least one question is required", http.StatusBadRequest)
		return
	}

	uploadID, err := s.store.SaveDocument(r.Context(), sanitizeFilename(req.Filename), req.Questions)
	if err != nil {
		s.log.Error("save document failed", "error", err)
		jsonError(w, "failed to save document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"upload_id": uploadID,
		"saved":     len(req.Questions),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.store.ListUploads(r.Context())
	if err != nil {
		s.log.Error("list uploads failed", "error", err)
		jsonError(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"uploads": uploads,
		"total":   len(uploads),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	upload, err := s.store.GetUpload(r.Context(), uploadID)
	if err != nil {
		s.log.Error("get upload failed", "error", err)
		jsonError(w, "failed to read document", http.StatusInternalServerError)
		return
	}
	if upload == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(upload)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	questions, err := s.store.Questions(r.Context(), uploadID)
	if err != nil {
		s.log.Error("list questions failed", "error", err)
		jsonError(w, "failed to read questions", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"questions": questions,
		"total":     len(questions),
	})
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	qno, err := strconv.Atoi(chi.URLParam(r, "qno"))
	if err != nil || qno <= 0 {
		jsonError(w, "invalid question number", http.StatusBadRequest)
		return
	}

	q, err := s.store.QuestionByNumber(r.Context(), uploadID, qno)
	if err != nil {
		s.log.Error("get question failed", "error", err)
		jsonError(w, "failed to read question", http.StatusInternalServerError)
		return
	}
	if q == nil {
		jsonError(w, "question not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(q)
}

// handleExportDocument renders a saved document as markdown (default)
// or HTML.
func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	upload, err := s.store.GetUpload(r.Context(), uploadID)
	if err != nil {
		s.log.Error("get upload failed", "error", err)
		jsonError(w, "failed to read document", http.StatusInternalServerError)
		return
	}
	if upload == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	questions, err := s.store.Questions(r.Context(), uploadID)
	if err != nil {
		s.log.Error("list questions failed", "error", err)
		jsonError(w, "failed to read questions", http.StatusInternalServerError)
		return
	}

	title := strings.TrimSuffix(upload.Filename, ".pdf")
	switch r.URL.Query().Get("format") {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(export.Markdown(title, questions)))
	case "html":
		html, err := export.HTML(title, questions)
		if err != nil {
			s.log.Error("html export failed", "error", err)
			jsonError(w, "failed to render html", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(html)
	default:
		jsonError(w, "unsupported format (use markdown or html)", http.StatusBadRequest)
	}
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	deleted, err := s.store.DeleteUpload(r.Context(), uploadID)
	if err != nil {
		s.log.Error("delete upload failed", "error", err)
		jsonError(w, "failed to delete document", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"upload_id": uploadID,
		"deleted":   deleted,
	})
}
