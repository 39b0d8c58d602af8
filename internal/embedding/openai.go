package embedding

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// OpenAIProvider implements Provider against any OpenAI-compatible
// embeddings endpoint: the hosted OpenAI API, a local LM Studio server,
// or Gemini's OpenAI-compatibility endpoint.
type OpenAIProvider struct {
	client     oai.Client
	model      string
	dimensions int
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
// baseURL may be empty for the hosted OpenAI API. dimensions is the expected
// vector length; it is validated against the first response.
func NewOpenAIProvider(baseURL, apiKey, model string, dimensions int) (*OpenAIProvider, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model must not be empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client:     oai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed computes the embedding for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: empty response")
	}
	vec := float64ToFloat32(resp.Data[0].Embedding)
	p.noteDimensions(len(vec))
	return vec, nil
}

// EmbedBatch computes embeddings for texts in a single API call.
// The response is reassembled by index so output order always matches input order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed batch: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("embed batch: unexpected index %d", e.Index)
		}
		out[e.Index] = float64ToFloat32(e.Embedding)
	}
	p.noteDimensions(len(out[0]))
	return out, nil
}

// noteDimensions records the dimension observed in a response when none was configured.
func (p *OpenAIProvider) noteDimensions(n int) {
	if p.dimensions == 0 {
		p.dimensions = n
	}
}

// Dimensions returns the vector length (0 until configured or first observed).
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// ModelID returns the remote model identifier.
func (p *OpenAIProvider) ModelID() string {
	return p.model
}

// Close is a no-op; the HTTP client holds no resources needing cleanup.
func (p *OpenAIProvider) Close() error {
	return nil
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
