package embedding

import (
	"context"
	"math"
	"sync"
)

// MockProvider is a deterministic provider for tests. The same text always
// maps to the same unit-length vector, and call counts are recorded so tests
// can assert that cached rows are never re-embedded.
type MockProvider struct {
	dimensions int

	mu         sync.Mutex
	embedCalls int
	batchCalls int
	seenTexts  []string
	failNext   error
	failBatch  int
	failErr    error
}

// NewMockProvider returns a provider producing deterministic embeddings of
// the given dimensions (384 when non-positive).
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockProvider{dimensions: dimensions}
}

// FailNext makes the next Embed or EmbedBatch call return err once.
func (p *MockProvider) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// FailOnBatch makes the nth EmbedBatch call (1-based, counted from now)
// return err once.
func (p *MockProvider) FailOnBatch(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failBatch = p.batchCalls + n
	p.failErr = err
}

// EmbedCalls returns how many single-text Embed calls were made.
func (p *MockProvider) EmbedCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embedCalls
}

// BatchCalls returns how many EmbedBatch calls were made.
func (p *MockProvider) BatchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batchCalls
}

// SeenTexts returns every text submitted for embedding, in order.
func (p *MockProvider) SeenTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.seenTexts))
	copy(out, p.seenTexts)
	return out
}

// Vector returns the deterministic embedding for text without recording a call.
func (p *MockProvider) Vector(text string) []float32 {
	h := hashString(text)
	emb := make([]float32, p.dimensions)
	for i := 0; i < p.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= float32(norm)
		}
	}
	return emb
}

// Embed returns a deterministic embedding based on the text hash.
func (p *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		p.mu.Unlock()
		return nil, err
	}
	p.embedCalls++
	p.seenTexts = append(p.seenTexts, text)
	p.mu.Unlock()
	return p.Vector(text), nil
}

// EmbedBatch returns deterministic embeddings for texts, in order.
func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		p.mu.Unlock()
		return nil, err
	}
	p.batchCalls++
	if p.failBatch > 0 && p.batchCalls == p.failBatch {
		err := p.failErr
		p.failBatch, p.failErr = 0, nil
		p.mu.Unlock()
		return nil, err
	}
	p.seenTexts = append(p.seenTexts, texts...)
	p.mu.Unlock()

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = p.Vector(text)
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// ModelID identifies the mock model.
func (p *MockProvider) ModelID() string {
	return "mock"
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}
