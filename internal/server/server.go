// Package server exposes the annotation pipeline over HTTP.
//
// Pipeline endpoints:
//
//   - POST /api/annotate  — start a new annotation session (cancels the old one)
//   - GET  /api/progress  — live session progress snapshot
//   - GET  /api/events    — WebSocket stream of session output
//   - GET  /api/html      — rendered HTML snapshot of the active session
//
// Collaborator endpoints (fire-and-forget):
//
//   - POST /api/speak     — speak a chunk aloud
//   - GET  /api/images    — look up an illustrative image for a translation
//
// Vocabulary endpoints:
//
//   - POST   /api/vocab         — save an entry
//   - GET    /api/vocab         — list entries
//   - DELETE /api/vocab/{id}    — delete an entry
//   - GET    /api/vocab/lookup  — fuzzy-find an entry by approximate text
//
// Plus the operational surface: /healthz, /readyz, /metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pageglot/pageglot/internal/annotate"
	"github.com/pageglot/pageglot/internal/health"
	"github.com/pageglot/pageglot/internal/observe"
	"github.com/pageglot/pageglot/internal/render"
	"github.com/pageglot/pageglot/internal/translate"
	"github.com/pageglot/pageglot/internal/vocab"
	"github.com/pageglot/pageglot/pkg/lang"
)

// Config holds the server's dependencies.
type Config struct {
	Manager *annotate.Manager
	Hub     *Hub

	// Renderer serves HTML snapshots of the active session. Its endpoint
	// answers 501 when nil.
	Renderer *render.Tracker

	// Vocab persistence and lookup. Store must be non-nil; Matcher defaults
	// to a matcher with standard thresholds.
	Store   vocab.Store
	Matcher *vocab.Matcher

	// Speaker and Images are optional external collaborators. Their endpoints
	// answer 501 when unconfigured.
	Speaker annotate.Speaker
	Images  annotate.ImageLookup

	Health  *health.Handler
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Server is the Pageglot HTTP server.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New assembles the route table and wraps it with the observability
// middleware.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Matcher == nil {
		cfg.Matcher = vocab.NewMatcher()
	}
	if cfg.Store == nil {
		cfg.Store = vocab.NewMemoryStore()
	}

	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/annotate", s.handleAnnotate)
	mux.HandleFunc("GET /api/progress", s.handleProgress)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/html", s.handleHTML)
	mux.HandleFunc("POST /api/speak", s.handleSpeak)
	mux.HandleFunc("GET /api/images", s.handleImages)
	mux.HandleFunc("POST /api/vocab", s.handleVocabSave)
	mux.HandleFunc("GET /api/vocab", s.handleVocabList)
	mux.HandleFunc("DELETE /api/vocab/{id}", s.handleVocabDelete)
	mux.HandleFunc("GET /api/vocab/lookup", s.handleVocabLookup)

	if cfg.Health != nil {
		cfg.Health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// Handler returns the fully wrapped route table, ready for http.Server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// annotateRequest is the POST /api/annotate body.
type annotateRequest struct {
	Title          string `json:"title"`
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`

	Tone   string `json:"tone,omitempty"`
	Format string `json:"format,omitempty"`
	Length string `json:"length,omitempty"`
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	var target lang.Tag
	if req.TargetLanguage != "" {
		target = lang.Canonicalize(req.TargetLanguage)
	}

	id := s.cfg.Manager.Annotate(r.Context(), annotate.Request{
		Title:  req.Title,
		Text:   req.Text,
		Target: target,
		Options: translate.Options{
			Tone:   req.Tone,
			Format: req.Format,
			Length: req.Length,
		},
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"sessionId": id})
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Manager.Progress())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Hub.Subscribe(w, r); err != nil && !errors.Is(err, context.Canceled) {
		s.cfg.Logger.Debug("event stream closed", "err", err)
	}
}

func (s *Server) handleHTML(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Renderer == nil {
		writeError(w, http.StatusNotImplemented, "rendering is not configured")
		return
	}
	sessionID, html, ok := s.cfg.Renderer.Snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no session has been annotated yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": sessionID,
		"html":      html,
	})
}

// speakRequest is the POST /api/speak body.
type speakRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Speaker == nil {
		writeError(w, http.StatusNotImplemented, "speech synthesis is not configured")
		return
	}
	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.cfg.Speaker.Speak(r.Context(), req.Text, lang.Canonicalize(req.Language))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Images == nil {
		writeError(w, http.StatusNotImplemented, "image lookup is not configured")
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.cfg.Images.Lookup(r.Context(), query, lang.Canonicalize(r.URL.Query().Get("language")))
	w.WriteHeader(http.StatusAccepted)
}

// vocabEntry is the wire form of a vocabulary entry.
type vocabEntry struct {
	ID         int64  `json:"id,omitempty"`
	Text       string `json:"text"`
	Literal    string `json:"literal,omitempty"`
	Contextual string `json:"contextual,omitempty"`
	Language   string `json:"language"`
	Type       string `json:"type,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

func (s *Server) handleVocabSave(w http.ResponseWriter, r *http.Request) {
	var req vocabEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	saved, err := s.cfg.Store.Save(r.Context(), vocab.Entry{
		Text:       req.Text,
		Literal:    req.Literal,
		Contextual: req.Contextual,
		Language:   lang.Canonicalize(req.Language),
	})
	if err != nil {
		s.cfg.Logger.Error("vocab save failed", "text", req.Text, "err", err)
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, http.StatusCreated, toWireEntry(saved))
}

func (s *Server) handleVocabList(w http.ResponseWriter, r *http.Request) {
	var language lang.Tag
	if raw := r.URL.Query().Get("language"); raw != "" {
		language = lang.Canonicalize(raw)
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.cfg.Store.List(r.Context(), language, limit)
	if err != nil {
		s.cfg.Logger.Error("vocab list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	out := make([]vocabEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toWireEntry(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVocabDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	if err := s.cfg.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, vocab.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		s.cfg.Logger.Error("vocab delete failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVocabLookup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	var language lang.Tag
	if raw := r.URL.Query().Get("language"); raw != "" {
		language = lang.Canonicalize(raw)
	}

	entries, err := s.cfg.Store.List(r.Context(), language, 0)
	if err != nil {
		s.cfg.Logger.Error("vocab lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	match, ok := s.cfg.Matcher.Lookup(query, entries)
	if !ok {
		writeError(w, http.StatusNotFound, "no matching entry")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Entry    vocabEntry `json:"entry"`
		Score    float64    `json:"score"`
		Phonetic bool       `json:"phonetic"`
	}{toWireEntry(match.Entry), match.Score, match.Phonetic})
}

func toWireEntry(e vocab.Entry) vocabEntry {
	out := vocabEntry{
		ID:         e.ID,
		Text:       e.Text,
		Literal:    e.Literal,
		Contextual: e.Contextual,
		Language:   e.Language.String(),
		Type:       string(e.Type),
	}
	if !e.CreatedAt.IsZero() {
		out.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
