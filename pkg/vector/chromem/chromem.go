// Package chromem provides an embedded vector driver using chromem-go. The
// collection lives in process and is optionally persisted to a directory.
package chromem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/philippgille/chromem-go"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

// DefaultCollectionName is the collection record embeddings are stored in.
const DefaultCollectionName = "mnemo"

const (
	metaProjectID = "project_id"
	metaVersion   = "version"
)

// Config holds configuration for the chromem driver.
type Config struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string

	// Compress gzips persisted documents.
	Compress bool

	CollectionName string
	Logger         *slog.Logger
}

// Driver implements vector.Driver on a chromem-go collection. Similarity is
// cosine; stored embeddings are normalized by chromem.
type Driver struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// NewDriver opens or creates the collection.
func NewDriver(c Config) (*Driver, error) {
	name := c.CollectionName
	if name == "" {
		name = DefaultCollectionName
	}
	log := logger.OrNop(c.Logger)

	db := chromem.NewDB()
	if c.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(c.Path, c.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem database: %w", err)
		}
	}

	// Embeddings are always computed by the caller.
	noEmbed := func(context.Context, string) ([]float32, error) {
		return nil, vector.ErrEmbedding
	}
	collection, err := db.GetOrCreateCollection(name, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", name, err)
	}

	log.Info("chromem vector driver initialized",
		"path", c.Path,
		"collection", name,
		"documents", collection.Count(),
	)

	return &Driver{db: db, collection: collection, logger: log}, nil
}

// Add stores documents; an existing ID is overwritten.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	cdocs := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("doc %s: %w: empty embedding", doc.ID, vector.ErrEmbedding)
		}
		cdocs = append(cdocs, chromem.Document{
			ID:        doc.ID,
			Embedding: doc.Embedding,
			Metadata: map[string]string{
				metaProjectID: doc.ProjectID,
				metaVersion:   doc.Version,
			},
		})
	}
	if err := d.collection.AddDocuments(ctx, cdocs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to chromem", "count", len(docs))
	return nil
}

// Get retrieves documents by their IDs. Unknown IDs are skipped.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var docs []vector.Document
	for _, id := range ids {
		doc, err := d.collection.GetByID(ctx, id)
		if err != nil {
			continue
		}
		docs = append(docs, toDocument(doc.ID, doc.Metadata, doc.Embedding))
	}
	return docs, nil
}

// Close is a no-op; persistent collections are written on every change.
func (d *Driver) Close() error {
	return nil
}

func toDocument(id string, meta map[string]string, emb []float32) vector.Document {
	return vector.Document{
		ID:        id,
		ProjectID: meta[metaProjectID],
		Version:   meta[metaVersion],
		Embedding: emb,
	}
}

