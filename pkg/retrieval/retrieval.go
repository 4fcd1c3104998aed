// Package retrieval ranks candidate records for a free-text query by fusing
// embedding similarity with structural metadata matches.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/cache"
	"github.com/papercomputeco/mnemo/pkg/embeddings"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	DefaultHybridWeight    = 0.7
	DefaultLimit           = 20
	DefaultResultTTL       = 5 * time.Minute
	DefaultCacheSize       = 1000
	DefaultApproxThreshold = 1024
	DefaultApproxStride    = 4
	DefaultBatchWorkers    = 5
)

// ErrEmptyQuery is returned when Search is called without a query.
var ErrEmptyQuery = errors.New("query is required")

// Config configures an Engine.
type Config struct {
	// Embedder produces query and candidate embeddings. Required unless
	// DisableSemantic is set.
	Embedder embeddings.Embedder

	// EmbeddingVersion names the embedding model. Record embeddings of a
	// different version are recomputed.
	EmbeddingVersion string

	// Store persists candidate embeddings across restarts. Optional.
	Store vector.Driver

	DisableSemantic bool

	// HybridWeight is the share of the vector score in the combined score.
	// Nil means DefaultHybridWeight; zero ranks on metadata alone.
	HybridWeight *float64

	SimilarityThreshold float64
	Limit               int
	ResultTTL           time.Duration
	CacheSize           int
	ApproxThreshold     int
	ApproxStride        int
	BatchWorkers        int

	Logger *slog.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Params narrows and shapes one search.
type Params struct {
	Limit     int      `json:"limit,omitempty"`
	ProjectID string   `json:"project_id,omitempty"`
	FilePath  string   `json:"file_path,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	// DisableSemantic skips scoring and returns candidates unchanged.
	DisableSemantic bool `json:"disable_semantic,omitempty"`
}

// Result is one ranked record. Scored is false when the engine fell back to
// candidate order.
type Result struct {
	Record        record.Record `json:"record"`
	Score         float64       `json:"score"`
	VectorScore   float64       `json:"vector_score"`
	MetadataScore float64       `json:"metadata_score"`
	Scored        bool          `json:"scored"`
}

// CacheStats reports the engine's caches.
type CacheStats struct {
	Queries    cache.Stats `json:"queries"`
	Candidates cache.Stats `json:"candidates"`
	Results    cache.Stats `json:"results"`
}

// Engine runs hybrid searches. It is safe for concurrent use.
type Engine struct {
	embedder  embeddings.Embedder
	version   string
	store     vector.Driver
	disabled  bool
	weight    float64
	threshold float64
	limit     int
	approxMin int
	stride    int
	workers   int
	logger    *slog.Logger
	now       func() time.Time

	queries    *cache.Cache[string, []float32]
	candidates *cache.Cache[string, []float32]
	results    *cache.Cache[string, []Result]
}

// NewEngine creates an Engine.
func NewEngine(c Config) (*Engine, error) {
	if c.Embedder == nil && !c.DisableSemantic {
		return nil, errors.New("embedder is required when semantic search is enabled")
	}
	weight := DefaultHybridWeight
	if c.HybridWeight != nil {
		weight = *c.HybridWeight
	}
	if weight < 0 || weight > 1 {
		return nil, fmt.Errorf("hybrid weight %v is outside [0,1]", weight)
	}

	e := &Engine{
		embedder:  c.Embedder,
		version:   c.EmbeddingVersion,
		store:     c.Store,
		disabled:  c.DisableSemantic,
		weight:    weight,
		threshold: c.SimilarityThreshold,
		limit:     c.Limit,
		approxMin: c.ApproxThreshold,
		stride:    c.ApproxStride,
		workers:   c.BatchWorkers,
		logger:    logger.OrNop(c.Logger),
		now:       c.Now,
	}
	if e.limit <= 0 {
		e.limit = DefaultLimit
	}
	if e.approxMin <= 0 {
		e.approxMin = DefaultApproxThreshold
	}
	if e.stride <= 0 {
		e.stride = DefaultApproxStride
	}
	if e.workers <= 0 {
		e.workers = DefaultBatchWorkers
	}
	if e.now == nil {
		e.now = time.Now
	}

	size := c.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := c.ResultTTL
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	e.queries = cache.New[string, []float32](cache.Config{Capacity: size, Now: e.now})
	e.candidates = cache.New[string, []float32](cache.Config{Capacity: size, Now: e.now})
	e.results = cache.New[string, []Result](cache.Config{Capacity: size, TTL: ttl, Now: e.now})

	return e, nil
}

// Search ranks candidates for query. Without semantic search, or without
// candidates, the candidates are returned unscored in their given order;
// the same happens when the query cannot be embedded.
func (e *Engine) Search(ctx context.Context, query string, candidates []record.Record, p Params) ([]Result, error) {
	norm := normalizeQuery(query)
	if norm == "" {
		return nil, ErrEmptyQuery
	}
	if e.disabled || p.DisableSemantic || len(candidates) == 0 {
		return unscored(candidates), nil
	}

	key := resultKey(norm, p, candidates)
	if cached, ok := e.results.Get(key); ok {
		return hydrate(cached, candidates), nil
	}

	qvec, err := e.queryEmbedding(ctx, norm)
	if err != nil {
		e.logger.Warn("query embedding failed, returning unscored candidates", "error", err)
		return unscored(candidates), nil
	}

	now := e.now()
	scored := make([]Result, 0, len(candidates))
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &candidates[i]

		vec := e.similarity(qvec, e.candidateEmbedding(ctx, rec))
		if e.threshold > 0 && vec < e.threshold {
			continue
		}

		meta := MetadataScore(rec, p, now)
		scored = append(scored, Result{
			Record:        *rec,
			Score:         CombineWeighted(vec, meta, e.weight),
			VectorScore:   vec,
			MetadataScore: meta,
			Scored:        true,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	limit := p.Limit
	if limit <= 0 {
		limit = e.limit
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}

	e.results.Set(key, cloneResults(scored))
	return scored, nil
}

func (e *Engine) similarity(q, c []float32) float64 {
	if len(q) > e.approxMin {
		return ApproxCosine(q, c, e.stride)
	}
	return Cosine(q, c)
}

func (e *Engine) queryEmbedding(ctx context.Context, norm string) ([]float32, error) {
	key := e.version + "\x00" + norm
	if v, ok := e.queries.Get(key); ok {
		return v, nil
	}
	v, err := e.embedder.Embed(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", vector.ErrEmbedding)
	}
	e.queries.Set(key, v)
	return v, nil
}

// candidateEmbedding resolves a record embedding from the record itself,
// the in-process cache, the vector store, or the embedder, in that order.
// Failures yield nil, which scores a zero similarity.
func (e *Engine) candidateEmbedding(ctx context.Context, rec *record.Record) []float32 {
	if len(rec.Embedding) > 0 && rec.EmbeddingVersion == e.version {
		return rec.Embedding
	}

	key := e.version + "\x00" + rec.ID
	if v, ok := e.candidates.Get(key); ok {
		return v
	}

	if e.store != nil && rec.ID != "" {
		docs, err := e.store.Get(ctx, []string{rec.ID})
		if err != nil {
			e.logger.Debug("vector store lookup failed", "record_id", rec.ID, "error", err)
		}
		for _, d := range docs {
			if d.ID == rec.ID && d.Version == e.version && len(d.Embedding) > 0 {
				e.candidates.Set(key, d.Embedding)
				return d.Embedding
			}
		}
	}

	v, err := e.embedder.Embed(ctx, rec.Content)
	if err != nil || len(v) == 0 {
		e.logger.Warn("candidate embedding failed", "record_id", rec.ID, "error", err)
		return nil
	}
	e.candidates.Set(key, v)

	if e.store != nil && rec.ID != "" {
		doc := vector.Document{ID: rec.ID, ProjectID: rec.ProjectID, Version: e.version, Embedding: v}
		if err := e.store.Add(ctx, []vector.Document{doc}); err != nil {
			e.logger.Warn("could not persist candidate embedding", "record_id", rec.ID, "error", err)
		}
	}
	return v
}

// Invalidate drops cached state for a record, typically after its usage
// counters changed.
func (e *Engine) Invalidate(recordID string) {
	e.candidates.Delete(e.version + "\x00" + recordID)
	e.results.Clear()
}

// Stats reports cache counters.
func (e *Engine) Stats() CacheStats {
	return CacheStats{
		Queries:    e.queries.Stats(),
		Candidates: e.candidates.Stats(),
		Results:    e.results.Stats(),
	}
}

// Clear empties every cache.
func (e *Engine) Clear() {
	e.queries.Clear()
	e.candidates.Clear()
	e.results.Clear()
}

func unscored(candidates []record.Record) []Result {
	out := make([]Result, len(candidates))
	for i := range candidates {
		out[i] = Result{Record: candidates[i]}
	}
	return out
}

// hydrate copies cached rankings and swaps in the given candidates, so the
// records handed out are never older than the caller's candidate set.
func hydrate(cached []Result, candidates []record.Record) []Result {
	byID := make(map[string]int, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = i
	}
	out := cloneResults(cached)
	for i := range out {
		if j, ok := byID[out[i].Record.ID]; ok {
			out[i].Record = candidates[j]
		}
	}
	return out
}

func cloneResults(in []Result) []Result {
	out := make([]Result, len(in))
	copy(out, in)
	return out
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// resultKey identifies a search by query, filters and candidate set.
func resultKey(norm string, p Params, candidates []record.Record) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s\x00%s\x00", norm, p.Limit, p.ProjectID, p.FilePath, strings.Join(p.Tags, ","))
	for i := range candidates {
		h.Write([]byte(candidates[i].ID))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
