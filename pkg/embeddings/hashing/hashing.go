// Package hashing provides an offline embedder: a hashed bag of words. It
// needs no model server and gives lexical, not semantic, similarity.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/papercomputeco/mnemo/pkg/embeddings"
)

// DefaultDimensions is the vector width when none is configured.
const DefaultDimensions = 256

// Embedder hashes lowercase letter/digit tokens into a fixed number of
// buckets and L2-normalizes the counts.
type Embedder struct {
	dims int
}

var _ embeddings.Embedder = (*Embedder)(nil)

// New returns an embedder of the given width; zero means DefaultDimensions.
func New(dims int) (*Embedder, error) {
	if dims < 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", dims)
	}
	if dims == 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}, nil
}

// Version names the embedding scheme and width.
func (e *Embedder) Version() string {
	return fmt.Sprintf("hashing/%d", e.dims)
}

// Dimensions returns the vector width.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Embed never fails; empty text embeds to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, tok := range Tokens(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

// Tokens splits text into lowercase runs of letters and digits.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
