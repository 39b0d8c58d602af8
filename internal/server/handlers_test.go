package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"bouquin/internal/catalog"
	"bouquin/internal/config"
	"bouquin/internal/keyword"
	"bouquin/internal/models"
	"bouquin/internal/recommend"
)

var serverBooks = []*models.Book{
	{ID: "b1", Title: "Dune", Author: "Frank Herbert", AuthorNormalized: "frank herbert", Rating: 4.25, Language: "English",
		Publisher: "Chilton", PublishDate: "08/01/1965", Description: "Spice and sandworms on Arrakis.", CoverURL: "http://example.invalid/b1.jpg"},
	{ID: "b2", Title: "The Hobbit", Author: "J.R.R. Tolkien", AuthorNormalized: "j.r.r. tolkien", Rating: 4.28, Language: "English",
		Publisher: "Allen & Unwin", PublishDate: "09/21/1937", Description: "A hobbit walks to a mountain."},
	{ID: "b3", Title: "Blank Book", Author: "Nobody", AuthorNormalized: "nobody", Language: "English"},
}

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Catalog: config.CatalogConfig{TextColumn: "description"},
		Storage: config.StorageConfig{CacheRoot: filepath.Join(dir, "caches")},
		Embedding: config.EmbeddingConfig{
			Provider:   "mock",
			Dimensions: 8,
		},
		Recommend: config.RecommendConfig{
			BatchSize:    64,
			DefaultCount: 5,
			MaxCount:     50,
		},
	}

	store, err := catalog.NewSQLiteStore(filepath.Join(dir, "books.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Sync(context.Background(), serverBooks); err != nil {
		t.Fatal(err)
	}

	engine, err := recommend.NewEngine(store, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })

	search, err := keyword.NewIndex(filepath.Join(dir, "books.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { search.Close() })
	if err := search.SyncBooks(context.Background(), serverBooks); err != nil {
		t.Fatal(err)
	}

	s := NewServer(store, engine, search, keyword.NewSuggester(search), nil, cfg, "", zap.NewNop())
	return s, cfg
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestBrowse(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/books?sort_by=rating&desc=true&page_size=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.BrowseResponse
	decode(t, rec, &resp)
	if resp.Total != 3 {
		t.Errorf("total = %d", resp.Total)
	}
	if len(resp.Books) != 2 {
		t.Fatalf("got %d books", len(resp.Books))
	}
	if resp.Books[0].ID != "b2" {
		t.Errorf("top rated = %s, want b2", resp.Books[0].ID)
	}
}

func TestBrowseInvalidSort(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/books?sort_by=id;drop", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetBook(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/books/b1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var book models.Book
	decode(t, rec, &book)
	if book.Title != "Dune" {
		t.Errorf("title = %q", book.Title)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/books/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing book status = %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/search?q=hobbit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp searchResponse
	decode(t, rec, &resp)
	if resp.Total == 0 || resp.Results[0].ID != "b2" {
		t.Errorf("results = %+v", resp.Results)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/stats/publishers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Entries []models.StatEntry `json:"entries"`
	}
	decode(t, rec, &resp)
	if len(resp.Entries) == 0 {
		t.Error("no publisher stats")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/stats/bogus", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("bogus stat status = %d", rec.Code)
	}
}

func TestRecommendTextEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/recommendations/text",
		models.RecommendRequest{Text: "Spice and sandworms on Arrakis.", Count: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.RecommendResponse
	decode(t, rec, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results", len(resp.Results))
	}
	if resp.Results[0].BookID != "b1" {
		t.Errorf("nearest = %s, want b1", resp.Results[0].BookID)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/recommendations/text", models.RecommendRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d", rec.Code)
	}
}

func TestRecommendByBookEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/recommendations/books/b1?count=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.RecommendResponse
	decode(t, rec, &resp)
	if len(resp.Results) != 2 || resp.Results[0].BookID != "b1" {
		t.Errorf("results = %+v", resp.Results)
	}

	// Unknown book id is an empty result set, not an error.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/recommendations/books/missing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("missing id status = %d", rec.Code)
	}
	decode(t, rec, &resp)
	if len(resp.Results) != 0 {
		t.Errorf("missing id results = %+v", resp.Results)
	}
}

func TestExportEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/export?author=Herbert", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty export body")
	}
}

func TestEmbeddingConfigRoundTrip(t *testing.T) {
	s, cfg := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/config/embedding", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got config.EmbeddingConfig
	decode(t, rec, &got)
	if got.Provider != "mock" {
		t.Errorf("provider = %q", got.Provider)
	}

	update := cfg.Embedding
	update.Provider = "lmstudio"
	update.Model = "nomic-embed"
	rec = doRequest(t, s, http.MethodPut, "/api/v1/config/embedding", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/config/embedding", nil)
	decode(t, rec, &got)
	if got.Provider != "lmstudio" || got.Model != "nomic-embed" {
		t.Errorf("config after switch = %+v", got)
	}

	rec = doRequest(t, s, http.MethodPut, "/api/v1/config/embedding", config.EmbeddingConfig{Provider: "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus provider status = %d", rec.Code)
	}
}

func TestEmbeddingConfigMinimalBodyGetsDefaults(t *testing.T) {
	s, _ := newTestServer(t)

	// A bare provider switch must not leave dimensions at zero.
	rec := doRequest(t, s, http.MethodPut, "/api/v1/config/embedding", map[string]string{"provider": "mock"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/config/embedding", nil)
	var got config.EmbeddingConfig
	decode(t, rec, &got)
	if got.Dimensions != 384 {
		t.Errorf("dimensions after minimal switch = %d, want default 384", got.Dimensions)
	}

	// The engine stays usable after the switch.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/recommendations/text",
		models.RecommendRequest{Text: "Spice and sandworms on Arrakis.", Count: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("recommend after switch status = %d: %s", rec.Code, rec.Body.String())
	}
}
