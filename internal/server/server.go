package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phume/amlwatch/internal/domain"
	"github.com/phume/amlwatch/internal/ports"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Trigger starts one ingestion run; the server exposes it for manual kicks.
type Trigger interface {
	Run(ctx context.Context) domain.RunReport
}

// Server exposes the read API consumed by the dashboard plus a manual
// fetch trigger.
type Server struct {
	store   ports.ArticleStore
	trigger Trigger
	logger  *slog.Logger
}

// New wires handlers to the store and the ingestion trigger.
func New(store ports.ArticleStore, trigger Trigger, logger *slog.Logger) *Server {
	return &Server{store: store, trigger: trigger, logger: logger}
}

// Router builds the chi router for all endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/articles", s.handleArticles)
	r.Get("/api/entities", s.handleEntities)
	r.Post("/api/trigger-fetch", s.handleTriggerFetch)
	r.Get("/health", s.handleHealth)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type articleResponse struct {
	ID         int64  `json:"id"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Date       string `json:"date"`
	Content    string `json:"content"`
	IngestedAt string `json:"ingested_at"`
}

type entityResponse struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Source       string `json:"source"`
	ArticleDate  string `json:"article_date"`
	ArticleTitle string `json:"article_title"`
	ArticleURL   string `json:"article_url"`
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := clampLimit(r.URL.Query().Get("limit"))
	articles, err := s.store.RecentArticles(ctx, limit)
	if err != nil {
		s.logger.Error("query articles", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	out := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		out = append(out, articleResponse{
			ID:         a.ID,
			Source:     a.Source,
			Title:      a.Title,
			URL:        a.URL,
			Date:       a.Date,
			Content:    a.Content,
			IngestedAt: a.IngestedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := clampLimit(r.URL.Query().Get("limit"))
	records, err := s.store.RecentEntities(ctx, limit)
	if err != nil {
		s.logger.Error("query entities", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	sourceFilter := r.URL.Query().Get("source")
	typeFilter := r.URL.Query().Get("type")

	out := make([]entityResponse, 0, len(records))
	for _, rec := range records {
		if sourceFilter != "" && rec.Source != sourceFilter {
			continue
		}
		if typeFilter != "" && !strings.Contains(rec.Type, typeFilter) {
			continue
		}
		out = append(out, entityResponse{
			Name:         rec.Name,
			Type:         rec.Type,
			Source:       rec.Source,
			ArticleDate:  rec.Date,
			ArticleTitle: rec.Title,
			ArticleURL:   rec.URL,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTriggerFetch(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "ingestion not configured"})
		return
	}

	// Detach from the request context: the run outlives the response.
	go s.trigger.Run(context.Background())

	s.logger.Info("manual fetch triggered")
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "fetch job started"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func clampLimit(raw string) int {
	if raw == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
