package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
)

const maxUploadBytes = 10 << 20

func (s *Server) listInitiatives(w http.ResponseWriter, r *http.Request) {
	items := s.pipeline.Snapshot()
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := items[:0]
		for _, it := range items {
			if string(it.Status) == status {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	if items == nil {
		items = []initiative.Initiative{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"initiatives": items,
		"count":       len(items),
	})
}

func (s *Server) getInitiative(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	it, ok := s.pipeline.Find(identity)
	if !ok {
		writeError(w, http.StatusNotFound, "initiative not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"initiative":   it,
		"has_blockers": it.HasBlockers(),
	})
}

// uploadCSV accepts either a multipart form with a "file" field or the raw
// CSV as the request body.
func (s *Server) uploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var content []byte
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "missing file field: "+ferr.Error())
			return
		}
		defer file.Close()
		content, err = io.ReadAll(file)
	} else {
		content, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	items, err := s.pipeline.Ingest(r.Context(), string(content))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	slog.Info("csv uploaded", "bytes", len(content), "initiatives", len(items))
	writeJSON(w, http.StatusOK, map[string]any{
		"initiatives": items,
		"count":       len(items),
		"progress":    s.pipeline.Progress(),
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	items, err := s.pipeline.Reload(r.Context())
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"initiatives": items,
		"count":       len(items),
	})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	out, err := s.pipeline.Export()
	if err != nil {
		writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="initiatives.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Progress())
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	reply, err := s.pipeline.Converse(r.Context(), req.Message)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"response":    reply,
		"initiatives": s.pipeline.Snapshot(),
	})
}

func (s *Server) transcript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"turns": s.pipeline.Transcript(),
	})
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"cleared": true}
	// Deletion failures are informational; state is reset regardless.
	if err := s.pipeline.Clear(r.Context()); err != nil {
		resp["warnings"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// calls serves the in-memory call log, or the durable one with ?source=db.
// With ?method=&endpoint= the durable response also carries the total number
// of persisted calls to that endpoint.
func (s *Server) calls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	if q.Get("source") == "db" {
		if s.history == nil {
			writeError(w, http.StatusNotFound, "durable call log not configured")
			return
		}
		entries, err := s.history.ListCallLogs(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list call logs: "+err.Error())
			return
		}
		resp := map[string]any{"calls": entries, "count": len(entries)}
		if method, endpoint := q.Get("method"), q.Get("endpoint"); method != "" && endpoint != "" {
			total, err := s.history.CountCallLogs(r.Context(), method, endpoint)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "count call logs: "+err.Error())
				return
			}
			resp["total"] = total
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	entries := s.pipeline.Calls()
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": entries, "count": len(entries)})
}
