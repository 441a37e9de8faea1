package embedding

import (
	"context"
	"math"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// yields the same unit-norm vector of the configured dimension.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a deterministic embedder with the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding derived from the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed, err := cleanText(text)
	if err != nil {
		return nil, err
	}
	h := hashText(trimmed)
	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	// Unit length so cosine and inner product agree.
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range vec {
			vec[i] *= float32(norm)
		}
	}
	return vec, nil
}

// EmbedBatch embeds each surviving non-empty text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	clean, err := cleanBatch(texts)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(clean))
	for i, t := range clean {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error { return nil }

// hashText returns a deterministic non-negative hash of s.
func hashText(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
