// Package chroma provides a vector driver backed by a remote Chroma server.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	// DefaultCollectionName is the collection record embeddings are stored in.
	DefaultCollectionName = "mnemo"

	DefaultMaxRetries    = 5
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 5 * time.Second

	apiPrefix = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// MaxRetries bounds the attempts to reach the server at startup.
	MaxRetries int

	// RetryDelay is the first backoff delay; it doubles up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewDriver connects to Chroma and resolves the collection, retrying with
// exponential backoff while the server comes up.
func NewDriver(c Config, log *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	if c.CollectionName == "" {
		c.CollectionName = DefaultCollectionName
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = DefaultMaxRetryDelay
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: c.CollectionName,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		logger:         logger.OrNop(log),
	}

	var (
		lastErr error
		delay   = c.RetryDelay
	)
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		id, err := d.getOrCreateCollection(context.Background())
		if err == nil {
			d.collectionID = id
			d.logger.Info("connected to Chroma",
				"url", c.URL,
				"collection", c.CollectionName,
				"collection_id", id,
			)
			return d, nil
		}
		lastErr = err
		d.logger.Warn("chroma not ready", "attempt", attempt, "error", err)

		if attempt < c.MaxRetries {
			time.Sleep(delay)
			delay = min(delay*2, c.MaxRetryDelay)
		}
	}
	return nil, fmt.Errorf("connecting to chroma collection %q after %d attempts: %w",
		c.CollectionName, c.MaxRetries, lastErr)
}

func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection chromaCollection
	err := d.do(ctx, http.MethodGet, apiPrefix+"/"+d.collectionName, nil, &collection)
	if err == nil {
		return collection.ID, nil
	}

	if err := d.do(ctx, http.MethodPost, apiPrefix, map[string]string{"name": d.collectionName}, &collection); err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}
	return collection.ID, nil
}

func (d *Driver) collectionPath(op string) string {
	return apiPrefix + "/" + d.collectionID + "/" + op
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Add upserts documents with their embeddings.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]string, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = metadataOf(doc.ProjectID, doc.Version)
	}

	if err := d.do(ctx, http.MethodPost, d.collectionPath("upsert"), req, nil); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "count", len(docs))
	return nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	req := chromaGetRequest{IDs: ids, Include: []string{"metadatas", "embeddings"}}
	var resp chromaGetResponse
	if err := d.do(ctx, http.MethodPost, d.collectionPath("get"), req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	docs := make([]vector.Document, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		docs = append(docs, documentAt(id, i, resp.Metadatas, resp.Embeddings))
	}
	return docs, nil
}

func documentAt(id string, i int, metadatas []map[string]string, embeddings [][]float32) vector.Document {
	doc := vector.Document{ID: id}
	if i < len(metadatas) && metadatas[i] != nil {
		doc.ProjectID = metadatas[i][metaProjectID]
		doc.Version = metadatas[i][metaVersion]
	}
	if i < len(embeddings) {
		doc.Embedding = embeddings[i]
	}
	return doc
}

// Close is a no-op; the HTTP client holds no resources.
func (d *Driver) Close() error {
	return nil
}
