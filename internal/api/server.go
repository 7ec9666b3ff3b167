package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/okrsync/internal/calllog"
	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
	"github.com/MikeSquared-Agency/okrsync/internal/pipeline"
)

// Pipeline is the subset of the synchronization pipeline the API exposes.
type Pipeline interface {
	Ingest(ctx context.Context, csv string) ([]initiative.Initiative, error)
	Converse(ctx context.Context, utterance string) (string, error)
	Clear(ctx context.Context) error
	Reload(ctx context.Context) ([]initiative.Initiative, error)
	Snapshot() []initiative.Initiative
	Find(identity string) (initiative.Initiative, bool)
	Transcript() []pipeline.ChatTurn
	Progress() pipeline.IngestState
	ChatEnabled() bool
	Calls() []calllog.Entry
	Export() (string, error)
}

// CallHistory reads durable call logs.
type CallHistory interface {
	ListCallLogs(ctx context.Context, limit int) ([]calllog.Entry, error)
	CountCallLogs(ctx context.Context, method, endpoint string) (int, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	pipeline Pipeline
	history  CallHistory
	version  string
	http     *http.Server
}

func NewServer(port int, apiToken, version string, p Pipeline, history CallHistory) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		pipeline: p,
		history:  history,
		version:  version,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/okrsync/status", s.status)

	router.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))

		r.Route("/api/v1/initiatives", func(r chi.Router) {
			r.Get("/", s.listInitiatives)
			r.Post("/upload", s.uploadCSV)
			r.Post("/refresh", s.refresh)
			r.Get("/export", s.export)
			r.Get("/{identity}", s.getInitiative)
		})
		r.Get("/api/v1/ingest/progress", s.progress)
		r.Post("/api/v1/chat", s.chat)
		r.Get("/api/v1/chat/transcript", s.transcript)
		r.Delete("/api/v1/data", s.clear)
		r.Get("/api/v1/calls", s.calls)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	progress := s.pipeline.Progress()
	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "okrsync",
		"version":      s.version,
		"chat_enabled": s.pipeline.ChatEnabled(),
		"initiatives":  len(s.pipeline.Snapshot()),
		"step":         progress.StepName,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writePipelineError maps pipeline failures onto HTTP status codes.
func writePipelineError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrEmptyCSV), errors.Is(err, pipeline.ErrEmptyUtterance):
		code = http.StatusBadRequest
	case errors.Is(err, pipeline.ErrChatDisabled):
		code = http.StatusServiceUnavailable
	default:
		switch pipeline.KindOf(err) {
		case pipeline.DefectDecode:
			code = http.StatusUnprocessableEntity
		case pipeline.DefectNotFound:
			code = http.StatusNotFound
		case pipeline.DefectTransport:
			code = http.StatusBadGateway
		}
	}

	body := map[string]string{"error": err.Error()}
	if kind := pipeline.KindOf(err); kind != "" {
		body["defect"] = string(kind)
	}
	writeJSON(w, code, body)
}
