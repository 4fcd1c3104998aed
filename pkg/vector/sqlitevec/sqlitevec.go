// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Must match the configured embedding model.
	Dimensions uint

	Logger *slog.Logger
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	log := logger.OrNop(c.Logger)

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if c.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so record ids are mapped to
	// rowids in a side table that also carries the project and version.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			project_id TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	log.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:         db,
		dimensions: c.Dimensions,
		logger:     log,
	}, nil
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func (d *Driver) checkWidth(emb []float32) error {
	if uint(len(emb)) != d.dimensions {
		return fmt.Errorf("%w: got %d dimensions, want %d", vector.ErrEmbedding, len(emb), d.dimensions)
	}
	return nil
}

// Add stores documents with their embeddings.
// If a document with the same ID already exists, it is updated.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if err := d.checkWidth(doc.Embedding); err != nil {
			return fmt.Errorf("doc %s: %w", doc.ID, err)
		}
		embBlob, err := sqlite_vec.SerializeFloat32(doc.Embedding)
		if err != nil {
			return fmt.Errorf("serializing embedding for doc %s: %w", doc.ID, err)
		}

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_documents WHERE doc_id = ?`, doc.ID,
		).Scan(&existingRowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_documents SET project_id = ?, version = ? WHERE rowid = ?`,
				doc.ProjectID, doc.Version, existingRowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for doc %s: %w", doc.ID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_documents(doc_id, project_id, version) VALUES (?, ?, ?)`,
				doc.ID, doc.ProjectID, doc.Version,
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec", "count", len(docs))
	return nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.doc_id, d.project_id, d.version, d.rowid
		FROM vec_documents d
		WHERE d.doc_id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	// Collect results first so we can close the rows cursor before
	// issuing additional queries.
	type docRow struct {
		doc   vector.Document
		rowID int64
	}
	var docRows []docRow
	for rows.Next() {
		var dr docRow
		if err := rows.Scan(&dr.doc.ID, &dr.doc.ProjectID, &dr.doc.Version, &dr.rowID); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docRows = append(docRows, dr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	rows.Close()

	docs := make([]vector.Document, 0, len(docRows))
	for _, dr := range docRows {
		var embBlob []byte
		if err := d.db.QueryRowContext(ctx,
			`SELECT embedding FROM vec_embeddings WHERE rowid = ?`, dr.rowID,
		).Scan(&embBlob); err != nil {
			return nil, fmt.Errorf("reading embedding for doc %s: %w", dr.doc.ID, err)
		}
		if dr.doc.Embedding, err = deserializeFloat32(embBlob); err != nil {
			return nil, fmt.Errorf("document %s: %w", dr.doc.ID, err)
		}
		docs = append(docs, dr.doc)
	}
	return docs, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

func inClause(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}
