// Package local provides the in-process implementation of memory.Driver.
//
// The driver wires the capture engine, the hybrid retrieval engine and a
// storage backend together. Embeddings are written to the vector store and
// capture decisions are published to the event stream on a best-effort
// basis: their failures are logged and never fail a capture.
package local

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/mnemo/pkg/cache"
	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/embeddings"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/eventstream/nop"
	"github.com/papercomputeco/mnemo/pkg/identity"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	// DefaultCandidateLimit caps the records pulled from the store per
	// recall.
	DefaultCandidateLimit = 500

	projectCacheSize = 64
	projectCacheTTL  = 5 * time.Minute
)

// Config holds configuration for the local memory driver.
type Config struct {
	// Store persists projects, sessions and records. Required.
	Store storage.Driver

	// Retrieval ranks recall candidates. Required.
	Retrieval *retrieval.Engine

	// Classifier defaults to classify.Default().
	Classifier *classify.Classifier

	// Capture configures the capture engine. OnTimeout is owned by the
	// driver and overwritten.
	Capture capture.Config

	// Identity defaults to a resolver without a remote provider.
	Identity *identity.Resolver

	// Ranges attaches changed line ranges to records with a file path.
	// Optional.
	Ranges *diffrange.Extractor

	// Embedder computes record embeddings at capture time. Optional.
	Embedder            embeddings.Embedder
	EmbeddingVersion    string
	EmbeddingDimensions int

	// Vectors receives record embeddings. Optional.
	Vectors vector.Driver

	// Publisher receives capture decisions. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	CandidateLimit int

	Logger *slog.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Driver implements memory.Driver using in-process engines over a storage
// backend.
type Driver struct {
	store      storage.Driver
	retrieval  *retrieval.Engine
	classifier *classify.Classifier
	engine     *capture.Engine
	identity   *identity.Resolver
	ranges     *diffrange.Extractor
	embedder   embeddings.Embedder
	version    string
	dims       int
	vectors    vector.Driver
	publisher  eventstream.Publisher
	limit      int
	logger     *slog.Logger
	now        func() time.Time

	// projectMu serializes project and session creation.
	projectMu sync.Mutex
	projects  *cache.Cache[string, *record.Project]

	// usageMu serializes read-modify-write of record usage counters.
	usageMu sync.Mutex
}

var _ memory.Driver = (*Driver)(nil)

// NewDriver creates a local memory driver.
func NewDriver(c Config) (*Driver, error) {
	if c.Store == nil {
		return nil, errors.New("storage driver is required")
	}
	if c.Retrieval == nil {
		return nil, errors.New("retrieval engine is required")
	}

	d := &Driver{
		store:      c.Store,
		retrieval:  c.Retrieval,
		classifier: c.Classifier,
		identity:   c.Identity,
		ranges:     c.Ranges,
		embedder:   c.Embedder,
		version:    c.EmbeddingVersion,
		dims:       c.EmbeddingDimensions,
		vectors:    c.Vectors,
		publisher:  c.Publisher,
		limit:      c.CandidateLimit,
		logger:     logger.OrNop(c.Logger),
		now:        c.Now,
	}
	if d.classifier == nil {
		d.classifier = classify.Default()
	}
	if d.identity == nil {
		d.identity = identity.NewResolver(identity.Config{})
	}
	if d.publisher == nil {
		d.publisher = nop.NewPublisher()
	}
	if d.limit <= 0 {
		d.limit = DefaultCandidateLimit
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.projects = cache.New[string, *record.Project](cache.Config{
		Capacity: projectCacheSize,
		TTL:      projectCacheTTL,
		Now:      d.now,
	})

	cc := c.Capture
	cc.OnTimeout = d.onTimeout
	if cc.Logger == nil {
		cc.Logger = d.logger
	}
	engine, err := capture.NewEngine(cc)
	if err != nil {
		return nil, err
	}
	d.engine = engine

	return d, nil
}

// Close stops pending confirmations and closes every collaborator the
// driver was given.
func (d *Driver) Close() error {
	d.engine.Close()

	var errs []error
	if err := d.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.vectors != nil {
		if err := d.vectors.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.embedder != nil {
		if err := d.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
