package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bouquin/internal/config"
	"bouquin/internal/embedding"
	"bouquin/internal/export"
	"bouquin/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count books failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"books":     count,
		"recommend": s.engine.Status(),
	}
	if s.search != nil {
		if docs, err := s.search.DocCount(); err == nil {
			resp["search_docs"] = docs
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// parseBrowseQuery maps query parameters onto a BrowseQuery.
func parseBrowseQuery(r *http.Request) (*models.BrowseQuery, error) {
	q := &models.BrowseQuery{
		Search:   r.URL.Query().Get("search"),
		Author:   r.URL.Query().Get("author"),
		Language: r.URL.Query().Get("language"),
		SortBy:   r.URL.Query().Get("sort_by"),
		Desc:     r.URL.Query().Get("desc") == "true",
	}
	if v := r.URL.Query().Get("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid min_rating: %s", v)
		}
		q.MinRating = f
	}
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid page: %s", v)
		}
		q.Page = n
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid page_size: %s", v)
		}
		q.PageSize = n
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	q, err := parseBrowseQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.store.Browse(r.Context(), q)
	if err != nil {
		s.logger.Error("browse failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	book, err := s.store.GetBook(r.Context(), id)
	if err != nil {
		s.logger.Error("get book failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if book == nil {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}
	s.respondJSON(w, http.StatusOK, book)
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	if s.covers == nil {
		s.respondError(w, http.StatusNotImplemented, "covers not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	book, err := s.store.GetBook(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if book == nil {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}
	path, err := s.covers.Fetch(r.Context(), id, book.CoverURL)
	if err != nil {
		s.logger.Debug("cover fetch failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusNotFound, "cover not available")
		return
	}
	http.ServeFile(w, r, path)
}

type searchResponse struct {
	Results    []*models.Book `json:"results"`
	Total      int            `json:"total"`
	Query      string         `json:"query"`
	Suggestion string         `json:"suggestion,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	hits, err := s.search.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	books, err := s.store.GetBooks(r.Context(), ids)
	if err != nil {
		s.logger.Error("search join failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := searchResponse{Results: make([]*models.Book, 0, len(hits)), Query: query}
	for _, h := range hits {
		if b, ok := books[h.ID]; ok {
			resp.Results = append(resp.Results, b)
		}
	}
	resp.Total = len(resp.Results)
	if resp.Total == 0 && s.suggester != nil {
		resp.Suggestion = s.suggester.Suggest(query)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	var (
		entries []models.StatEntry
		err     error
	)
	switch kind := chi.URLParam(r, "kind"); kind {
	case "publishers":
		entries, err = s.store.CountByPublisher(r.Context(), limit)
	case "years":
		entries, err = s.store.CountByYear(r.Context(), limit)
	case "authors":
		entries, err = s.store.CountByAuthor(r.Context(), limit)
	default:
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown stat: %s", kind))
		return
	}
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleRecommendText(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	resp, err := s.engine.RecommendByText(r.Context(), req.Text, req.Count)
	if err != nil {
		s.logger.Error("recommend by text failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecommendByBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count := 0
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}
	resp, err := s.engine.RecommendByBookID(r.Context(), id, count)
	if err != nil {
		s.logger.Error("recommend by book failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseBrowseQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Export ignores pagination: walk every page of the filtered set.
	q.Page = 1
	q.PageSize = 200
	var books []*models.Book
	for {
		page, err := s.store.Browse(r.Context(), q)
		if err != nil {
			s.logger.Error("export browse failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		books = append(books, page.Books...)
		if len(books) >= int(page.Total) || len(page.Books) == 0 {
			break
		}
		q.Page++
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=books-%s.xlsx", time.Now().Format("2006-01-02")))
	if err := export.WriteXLSX(w, books); err != nil {
		s.logger.Error("export failed", zap.Error(err))
	}
}

func (s *Server) handleGetEmbeddingConfig(w http.ResponseWriter, r *http.Request) {
	s.configMu.Lock()
	cfg := s.cfg.Embedding
	s.configMu.Unlock()
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutEmbeddingConfig(w http.ResponseWriter, r *http.Request) {
	var embCfg config.EmbeddingConfig
	if err := json.NewDecoder(r.Body).Decode(&embCfg); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if embCfg.Provider == "" {
		s.respondError(w, http.StatusBadRequest, "provider is required")
		return
	}
	// A minimal body like {"provider":"openai"} gets the same defaults as a
	// config file would, so the switch never leaves dimensions at zero.
	defaulted := config.Config{Embedding: embCfg}
	config.ApplyDefaults(&defaulted)
	embCfg = defaulted.Embedding
	if err := s.engine.Reconfigure(embCfg); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.configMu.Lock()
	s.cfg.Embedding = embCfg
	var saveErr error
	if s.configPath != "" {
		saveErr = config.Save(s.configPath, s.cfg)
	}
	s.configMu.Unlock()
	if saveErr != nil {
		s.logger.Warn("failed to persist embedding config", zap.Error(saveErr))
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":   "switched",
		"provider": embedding.IdentityFor(&embCfg).String(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
