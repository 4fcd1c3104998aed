// Package ollama implements embeddings.Embedder against Ollama's /api/embed.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/mnemo/pkg/embeddings"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Embedder wraps Ollama's embedding API.
type Embedder struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	logger     *slog.Logger
}

var _ embeddings.Embedder = (*Embedder)(nil)

// Config holds configuration for the Ollama embedder.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions, when set, is checked against every returned vector.
	Dimensions int

	// Timeout bounds one request. Defaults to two minutes.
	Timeout time.Duration

	Logger *slog.Logger
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbedder creates a new embedder using Ollama's embedding API.
func NewEmbedder(c Config) (*Embedder, error) {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultEmbeddingModel
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Dimensions < 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", c.Dimensions)
	}

	return &Embedder{
		baseURL:    c.BaseURL,
		model:      c.Model,
		dimensions: c.Dimensions,
		httpClient: &http.Client{Timeout: c.Timeout},
		logger:     logger.OrNop(c.Logger),
	}, nil
}

// Version names the model, for tagging stored embeddings.
func (e *Embedder) Version() string {
	return "ollama/" + e.model
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %w", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %w", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", vector.ErrEmbedding, resp.StatusCode, string(msg))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", vector.ErrEmbedding, err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}

	emb := out.Embeddings[0]
	if e.dimensions > 0 && len(emb) != e.dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, configured %d",
			vector.ErrEmbedding, e.model, len(emb), e.dimensions)
	}

	e.logger.Debug("embedded text",
		"model", e.model,
		"chars", len(text),
		"dimensions", len(emb),
		"duration", time.Since(start),
	)
	return emb, nil
}

// Close is a no-op; the HTTP client holds no resources.
func (e *Embedder) Close() error {
	return nil
}
