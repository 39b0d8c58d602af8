package embedding

import (
	"fmt"
	"os"
	"strings"

	"bouquin/internal/config"
)

// Provider kinds recognized by New.
const (
	KindLMStudio = "lmstudio"
	KindOpenAI   = "openai"
	KindGemini   = "gemini"
	KindLocal    = "local"
	KindMock     = "mock"
)

const (
	lmStudioBaseURL = "http://localhost:1234/v1"
	geminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// Default remote embedding models per kind, used when the config leaves Model empty.
var defaultModels = map[string]string{
	KindLMStudio: "text-embedding-nomic-embed-text-v1.5",
	KindOpenAI:   "text-embedding-3-small",
	KindGemini:   "gemini-embedding-001",
}

// IdentityFor derives the cache identity from the embedding configuration.
func IdentityFor(cfg *config.EmbeddingConfig) Identity {
	switch cfg.Provider {
	case KindLocal:
		return Identity{Kind: KindLocal, Model: cfg.LocalModel}
	case KindMock:
		return Identity{Kind: KindMock}
	default:
		model := cfg.Model
		if model == "" {
			model = defaultModels[cfg.Provider]
		}
		return Identity{Kind: cfg.Provider, Model: model}
	}
}

// New constructs the provider selected by cfg.Provider.
// Exactly one implementation exists per kind; the choice is made once at
// construction time, never re-dispatched per call.
func New(cfg *config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case KindLMStudio:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = lmStudioBaseURL
		}
		// LM Studio ignores the key but the client requires one.
		return NewOpenAIProvider(baseURL, "lm-studio", modelOrDefault(cfg), cfg.Dimensions)
	case KindOpenAI:
		key, err := apiKey(cfg, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(cfg.BaseURL, key, modelOrDefault(cfg), cfg.Dimensions)
	case KindGemini:
		key, err := apiKey(cfg, "GOOGLE_API_KEY")
		if err != nil {
			return nil, err
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = geminiBaseURL
		}
		return NewOpenAIProvider(baseURL, key, modelOrDefault(cfg), cfg.Dimensions)
	case KindLocal:
		return NewONNXProvider(cfg.ModelPath, cfg.LocalModel, cfg.Dimensions, cfg.MaxTokens)
	case KindMock:
		return NewMockProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func modelOrDefault(cfg *config.EmbeddingConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return defaultModels[cfg.Provider]
}

// apiKey resolves the API key from the configured key file, falling back to envVar.
func apiKey(cfg *config.EmbeddingConfig, envVar string) (string, error) {
	if cfg.APIKeyFile != "" {
		data, err := os.ReadFile(cfg.APIKeyFile)
		if err != nil {
			return "", fmt.Errorf("read api key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no API key: set %s or api_key_file in config", envVar)
}
