package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rkotari/qbank/internal/config"
	"github.com/rkotari/qbank/internal/interp"
	"github.com/rkotari/qbank/internal/pipeline"
	"github.com/rkotari/qbank/internal/store"
)

// Server is the HTTP API server for qbank.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	interp       *interp.Client
	store        *store.Store
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, ic *interp.Client, st *store.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		interp:       ic,
		store:        st,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)
		r.Get("/api/extract/{runID}/status", s.handleExtractStatus)
		r.Get("/api/extract/{runID}/result", s.handleExtractResult)

		r.Post("/api/documents", s.handleSaveDocument)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{uploadID}", s.handleGetDocument)
		r.Get("/api/documents/{uploadID}/questions", s.handleListQuestions)
		r.Get("/api/documents/{uploadID}/questions/{qno}", s.handleGetQuestion)
		r.Get("/api/documents/{uploadID}/export", s.handleExportDocument)
		r.Delete("/api/documents/{uploadID}", s.handleDeleteDocument)

		r.Get("/api/stats/interp", s.handleInterpStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
