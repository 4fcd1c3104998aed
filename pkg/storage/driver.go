// Package storage defines the persistent store for projects, sessions and
// records.
package storage

import (
	"context"

	"github.com/papercomputeco/mnemo/pkg/record"
)

// RecordFilter narrows ListRecords. Zero fields do not filter.
type RecordFilter struct {
	ProjectID string
	SessionID string
	Type      record.ActivityType

	// Limit caps the number of records returned. Zero means no limit.
	Limit int
}

// SessionFilter narrows ListSessions. Zero fields do not filter.
type SessionFilter struct {
	ProjectID string
	Status    record.SessionStatus
}

// ProjectStore persists projects.
type ProjectStore interface {
	// PutProject inserts or replaces a project by id. Root paths are
	// unique; a write that would duplicate one returns ErrProjectConflict.
	PutProject(ctx context.Context, p *record.Project) error

	// GetProject retrieves a project by id.
	GetProject(ctx context.Context, id string) (*record.Project, error)

	// FindProjectByFingerprint retrieves the most recently updated project
	// with the given fingerprint. Clones of one repository share it.
	FindProjectByFingerprint(ctx context.Context, fingerprint string) (*record.Project, error)

	// FindProjectByRoot retrieves the project whose normalized root path is
	// root.
	FindProjectByRoot(ctx context.Context, root string) (*record.Project, error)

	// ListProjects returns every project, most recently updated first.
	ListProjects(ctx context.Context) ([]*record.Project, error)
}

// SessionStore persists sessions. At most one session per project is
// active; CreateSession and UpdateSession return ErrActiveSessionExists
// when a write would break that.
type SessionStore interface {
	CreateSession(ctx context.Context, s *record.Session) error
	UpdateSession(ctx context.Context, s *record.Session) error
	GetSession(ctx context.Context, id string) (*record.Session, error)

	// ActiveSession returns the active session of a project.
	ActiveSession(ctx context.Context, projectID string) (*record.Session, error)

	// ListSessions returns sessions, most recently started first.
	ListSessions(ctx context.Context, f SessionFilter) ([]*record.Session, error)
}

// RecordStore persists records. Record content is immutable: UpdateRecord
// only writes the quality score, metadata and embedding.
type RecordStore interface {
	CreateRecord(ctx context.Context, r *record.Record) error
	UpdateRecord(ctx context.Context, r *record.Record) error
	GetRecord(ctx context.Context, id string) (*record.Record, error)

	// ListRecords returns records, newest first.
	ListRecords(ctx context.Context, f RecordFilter) ([]*record.Record, error)
}

// Driver is a complete storage backend.
type Driver interface {
	ProjectStore
	SessionStore
	RecordStore

	// Close closes the store and releases any resources.
	Close() error
}
