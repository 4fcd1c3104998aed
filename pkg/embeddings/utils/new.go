// Package embeddingutils builds the configured embedder.
package embeddingutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/mnemo/pkg/embeddings"
	"github.com/papercomputeco/mnemo/pkg/embeddings/hashing"
	"github.com/papercomputeco/mnemo/pkg/embeddings/ollama"
)

const (
	ProviderHashing = "hashing"
	ProviderOllama  = "ollama"
)

// Versioned is implemented by embedders that name the model behind their
// vectors.
type Versioned interface {
	Version() string
}

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   int
	Logger       *slog.Logger
}

// NewEmbedder returns the embedder for o.ProviderType and the version string
// stored alongside its vectors.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, string, error) {
	var (
		e   embeddings.Embedder
		err error
	)
	switch o.ProviderType {
	case ProviderHashing, "":
		e, err = hashing.New(o.Dimensions)
	case ProviderOllama:
		e, err = ollama.NewEmbedder(ollama.Config{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
			Logger:     o.Logger,
		})
	default:
		return nil, "", fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, "", err
	}

	version := o.ProviderType
	if v, ok := e.(Versioned); ok {
		version = v.Version()
	}
	return e, version, nil
}
