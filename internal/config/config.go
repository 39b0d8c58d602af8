// Package config provides configuration loading and structs for the bouquin server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CatalogConfig holds the source CSV and derived catalog settings.
type CatalogConfig struct {
	CSVPath    string `yaml:"csv_path"`
	TextColumn string `yaml:"text_column"`
	Watch      bool   `yaml:"watch"`
}

// StorageConfig holds paths for the catalog database, caches, and indices.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	CacheRoot      string `yaml:"cache_root"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	CoversPath     string `yaml:"covers_path"`
}

// EmbeddingConfig selects the embedding provider and its parameters.
// Provider is one of "lmstudio", "openai", "gemini", "local", "mock".
// LocalModel names the ONNX model for the "local" provider; Model names the
// remote model for API providers.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	LocalModel string `yaml:"local_model"`
	BaseURL    string `yaml:"base_url"`
	APIKeyFile string `yaml:"api_key_file"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// RecommendConfig holds embedding-pipeline and query settings.
type RecommendConfig struct {
	BatchSize         int     `yaml:"batch_size"`
	BatchDelaySeconds float64 `yaml:"batch_delay_seconds"`
	LowerEmbeddings   *bool   `yaml:"lower_embeddings"`
	DefaultCount      int     `yaml:"default_count"`
	MaxCount          int     `yaml:"max_count"`
}

// Lower reports whether texts are lowercased before embedding; defaults to true when unset.
func (r *RecommendConfig) Lower() bool {
	if r.LowerEmbeddings != nil {
		return *r.LowerEmbeddings
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.CSVPath = expandPath(cfg.Catalog.CSVPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.CacheRoot = expandPath(cfg.Storage.CacheRoot, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.CoversPath = expandPath(cfg.Storage.CoversPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Embedding.APIKeyFile != "" {
		cfg.Embedding.APIKeyFile = expandPath(cfg.Embedding.APIKeyFile, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting provider switches.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
