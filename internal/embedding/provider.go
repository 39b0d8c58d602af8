// Package embedding provides interchangeable text-embedding providers.
package embedding

import (
	"context"
	"regexp"
	"strings"
)

// Provider maps text to fixed-length float32 vectors.
// All vectors from one Provider instance share the same dimensionality;
// vectors from different providers must never be mixed in one similarity
// computation.
type Provider interface {
	// Embed computes the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch computes embeddings for texts in one call. The result has
	// the same length as texts and the i-th vector corresponds to texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the fixed vector length of this provider.
	Dimensions() int
	// ModelID returns the model identifier, used for logging and cache identity.
	ModelID() string
	Close() error
}

// Identity is the (provider kind, model name) tuple that scopes an on-disk
// cache/index pair. Vectors computed under different identities live in
// disjoint directories and are never mixed.
type Identity struct {
	Kind  string
	Model string
}

var identitySanitizeRe = regexp.MustCompile(`[^a-z0-9.-]+`)

// Dir returns the cache directory name for this identity, e.g.
// "cache-lmstudio" or "cache-local-minilm".
func (id Identity) Dir() string {
	name := strings.ToLower(id.Kind)
	if id.Model != "" {
		name += "-" + strings.ToLower(id.Model)
	}
	return "cache-" + identitySanitizeRe.ReplaceAllString(name, "_")
}

// String returns kind/model for logging.
func (id Identity) String() string {
	if id.Model == "" {
		return id.Kind
	}
	return id.Kind + "/" + id.Model
}
