// Package main is the bouquin CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bouquin/internal/catalog"
	"bouquin/internal/cli"
	"bouquin/internal/config"
	"bouquin/internal/covers"
	"bouquin/internal/export"
	"bouquin/internal/keyword"
	"bouquin/internal/models"
	"bouquin/internal/recommend"
	"bouquin/internal/server"
	"bouquin/internal/watcher"
	"bouquin/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/bouquin/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config. Returns the config and the path actually
// loaded (for saving provider switches).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch command := os.Args[1]; command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "embed":
		runEmbed()
	case "status":
		runStatus()
	case "export":
		runExport()
	case "version", "--version", "-v":
		fmt.Printf("bouquin version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store     catalog.Store
	Engine    *recommend.Engine
	Search    *keyword.Index
	Suggester *keyword.Suggester
	Covers    *covers.Store
}

func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Search != nil {
		_ = c.Search.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := catalog.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog store: %w", err)
	}

	engine, err := recommend.NewEngine(store, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	search, err := keyword.NewIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = engine.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}

	var coverStore *covers.Store
	if cfg.Storage.CoversPath != "" {
		coverStore, err = covers.NewStore(cfg.Storage.CoversPath)
		if err != nil {
			logger.Warn("covers disabled", zap.Error(err))
		}
	}

	return &Components{
		Store:     store,
		Engine:    engine,
		Search:    search,
		Suggester: keyword.NewSuggester(search),
		Covers:    coverStore,
	}, nil
}

// syncCatalog imports the CSV into the store and search index, then marks the
// recommendation engine stale so new rows get embedded on the next query.
func syncCatalog(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) error {
	start := time.Now()
	books, err := catalog.ReadBooks(cfg.Catalog.CSVPath)
	if err != nil {
		return fmt.Errorf("read catalog CSV: %w", err)
	}
	if err := c.Store.Sync(ctx, books); err != nil {
		return fmt.Errorf("sync catalog store: %w", err)
	}
	if err := c.Search.SyncBooks(ctx, books); err != nil {
		return fmt.Errorf("sync search index: %w", err)
	}
	if err := c.Suggester.Refresh(); err != nil {
		logger.Debug("suggester refresh failed", zap.Error(err))
	}
	c.Engine.Invalidate()
	logger.Info("catalog synced",
		zap.Int("books", len(books)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := syncCatalog(ctx, cfg, components, logger); err != nil {
		logger.Fatal("Catalog sync failed", zap.Error(err))
	}

	var watchSvc *watcher.Watcher
	if cfg.Catalog.Watch {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(cfg.Catalog.CSVPath, func(path string) {
			logger.Info("catalog CSV changed", zap.String("path", path))
			if err := syncCatalog(context.Background(), cfg, components, logger); err != nil {
				logger.Warn("catalog re-sync failed", zap.Error(err))
			}
		}, watchOpts...)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Store,
		components.Engine,
		components.Search,
		components.Suggester,
		components.Covers,
		cfg,
		resolvedConfigPath,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = direct component access when server is not running)`)
	bookID := fs.String("book", "", "recommend by book id instead of query text")
	count := fs.Int("count", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *bookID == "" && query == "" {
		fmt.Println("Usage: bouquin recommend [flags] <query text>")
		fmt.Println("       bouquin recommend --book <id> [flags]")
		os.Exit(1)
	}
	format := cli.ParseFormat(*outputFormat)

	if *serverURL != "" {
		resp, err := recommendViaHTTP(*serverURL, *bookID, query, *count)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	var resp *models.RecommendResponse
	if *bookID != "" {
		resp, err = components.Engine.RecommendByBookID(ctx, *bookID, *count)
	} else {
		resp, err = components.Engine.RecommendByText(ctx, query, *count)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func recommendViaHTTP(serverURL, bookID, query string, count int) (*models.RecommendResponse, error) {
	var resp *http.Response
	var err error
	if bookID != "" {
		u := fmt.Sprintf("%s/api/v1/recommendations/books/%s", serverURL, url.PathEscape(bookID))
		if count > 0 {
			u += fmt.Sprintf("?count=%d", count)
		}
		resp, err = http.Get(u)
	} else {
		body, merr := json.Marshal(models.RecommendRequest{Text: query, Count: count})
		if merr != nil {
			return nil, merr
		}
		resp, err = http.Post(serverURL+"/api/v1/recommendations/text", "application/json", bytes.NewReader(body))
	}
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out models.RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runEmbed() {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sync := fs.Bool("sync", true, "re-import the CSV before embedding")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if *sync {
		if err := syncCatalog(ctx, cfg, components, logger); err != nil {
			logger.Fatal("Catalog sync failed", zap.Error(err))
		}
	}
	if err := components.Engine.EnsureReady(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Embedding failed: %v\n", err)
		os.Exit(1)
	}
	st := components.Engine.Status()
	fmt.Printf("Embeddings ready: provider=%s model=%s cached=%d indexed=%d\n",
		st.Provider, st.Model, st.CachedVectors, st.IndexedBooks)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct component access)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		count, err := components.Store.Count(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
			os.Exit(1)
		}
		status = map[string]interface{}{
			"books":     count,
			"recommend": components.Engine.Status(),
		}
		if docs, err := components.Search.DocCount(); err == nil {
			status["search_docs"] = docs
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	default:
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(data))
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct component access)")
	out := fs.String("out", "books.xlsx", "output file path")
	author := fs.String("author", "", "filter by author")
	language := fs.String("language", "", "filter by language")
	minRating := fs.Float64("min-rating", 0, "filter by minimum rating")
	_ = fs.Parse(os.Args[2:])

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *out, err)
		os.Exit(1)
	}
	defer f.Close()

	if *serverURL != "" {
		params := url.Values{}
		if *author != "" {
			params.Set("author", *author)
		}
		if *language != "" {
			params.Set("language", *language)
		}
		if *minRating > 0 {
			params.Set("min_rating", fmt.Sprintf("%g", *minRating))
		}
		resp, err := http.Get(*serverURL + "/api/v1/export?" + params.Encode())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported to %s\n", *out)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	q := &models.BrowseQuery{Author: *author, Language: *language, MinRating: *minRating, Page: 1, PageSize: 200}
	var books []*models.Book
	for {
		page, err := components.Store.Browse(ctx, q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Browse failed: %v\n", err)
			os.Exit(1)
		}
		books = append(books, page.Books...)
		if len(books) >= int(page.Total) || len(page.Books) == 0 {
			break
		}
		q.Page++
	}
	if err := export.WriteXLSX(f, books); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d books to %s\n", len(books), *out)
}

func printUsage() {
	fmt.Println(`bouquin - book catalog browser with semantic recommendations

Usage:
  bouquin server [flags]              Start the HTTP server
  bouquin recommend [flags] <query>   Recommend books for a text query
  bouquin recommend --book <id>       Recommend books similar to a book
  bouquin embed [flags]               Pre-compute embeddings and build the index
  bouquin status [flags]              Show catalog/engine status
  bouquin export [flags]              Export the catalog as .xlsx
  bouquin version                     Show version
  bouquin help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/bouquin/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct component access.
  --book string      Recommend by book id instead of query text
  --count int        Number of results
  --output string    Output format: text, compact, or json

Embed Flags:
  --config string    Config file path
  --sync             Re-import the CSV before embedding (default: true)

Export Flags:
  --out string       Output file (default: books.xlsx)
  --author string    Filter by author
  --language string  Filter by language
  --min-rating float Filter by minimum rating

Examples:
  bouquin server
  bouquin recommend dark fantasy with dragons
  bouquin recommend --book 2767052-the-hunger-games --count 10
  bouquin recommend --output json "space opera"
  bouquin embed
  bouquin status --output json
  bouquin export --author tolkien --out tolkien.xlsx`)
}
