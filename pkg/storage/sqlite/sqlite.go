// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/mattn/go-sqlite3"

	entdriver "github.com/papercomputeco/mnemo/pkg/storage/ent/driver"
)

// Driver implements storage.Driver using SQLite via the ent driver.
type Driver struct {
	*entdriver.EntDriver
}

// NewDriver creates a new SQLite-backed store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string, log *slog.Logger) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// SQLite-specific pragmas
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	ed, err := entdriver.New(entdriver.Config{
		DB:                entsql.OpenDB(dialect.SQLite, db),
		IsUniqueViolation: isUniqueViolation,
		Logger:            log,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := ed.Migrate(ctx); err != nil {
		ed.Close()
		return nil, err
	}

	return &Driver{EntDriver: ed}, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
