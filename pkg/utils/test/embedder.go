package testutils

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/papercomputeco/mnemo/pkg/embeddings/hashing"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	calls atomic.Int64
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

// Calls returns how many times Embed was invoked.
func (m *MockEmbedder) Calls() int {
	return int(m.calls.Load())
}

func (m *MockEmbedder) Close() error {
	return nil
}

// HashEmbedder is a deterministic bag-of-words embedder of width Dims
// (default 64). Texts sharing words get a positive cosine similarity.
type HashEmbedder struct {
	Dims int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dims: 64}
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dims := h.Dims
	if dims <= 0 {
		dims = 64
	}
	e, err := hashing.New(dims)
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, text)
}

func (h *HashEmbedder) Close() error {
	return nil
}
