// Package inmemory provides a map-backed storage driver for tests and
// ephemeral runs.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps. Every read returns
// a copy.
type Driver struct {
	// mu guards all three maps
	mu sync.RWMutex

	projects map[string]*record.Project
	sessions map[string]*record.Session
	records  map[string]*record.Record
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		projects: make(map[string]*record.Project),
		sessions: make(map[string]*record.Session),
		records:  make(map[string]*record.Record),
	}
}

// PutProject inserts or replaces a project.
func (s *Driver) PutProject(_ context.Context, p *record.Project) error {
	if p == nil || p.ID == "" {
		return errors.New("cannot store project without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.projects {
		if id == p.ID {
			continue
		}
		if other.RootPath == p.RootPath {
			return fmt.Errorf("could not store project %s: %w", p.ID, storage.ErrProjectConflict)
		}
	}

	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

// GetProject retrieves a project by id.
func (s *Driver) GetProject(_ context.Context, id string) (*record.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "project", ID: id}
	}
	cp := *p
	return &cp, nil
}

// FindProjectByFingerprint retrieves the most recently updated project with
// the given fingerprint.
func (s *Driver) FindProjectByFingerprint(_ context.Context, fingerprint string) (*record.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *record.Project
	for _, p := range s.projects {
		if p.Fingerprint == fingerprint && (found == nil || p.UpdatedAt.After(found.UpdatedAt)) {
			found = p
		}
	}
	if found == nil {
		return nil, storage.NotFoundError{Kind: "project", ID: fingerprint}
	}
	cp := *found
	return &cp, nil
}

// FindProjectByRoot retrieves a project by its normalized root path.
func (s *Driver) FindProjectByRoot(_ context.Context, root string) (*record.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.RootPath == root {
			cp := *p
			return &cp, nil
		}
	}
	return nil, storage.NotFoundError{Kind: "project", ID: root}
}

// ListProjects returns every project, most recently updated first.
func (s *Driver) ListProjects(_ context.Context) ([]*record.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*record.Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// CreateSession stores a new session.
func (s *Driver) CreateSession(_ context.Context, sess *record.Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("cannot store session without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return errors.New("session already exists: " + sess.ID)
	}
	if sess.Status == record.SessionActive && s.hasOtherActive(sess) {
		return storage.ErrActiveSessionExists
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

// UpdateSession replaces an existing session.
func (s *Driver) UpdateSession(_ context.Context, sess *record.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return storage.NotFoundError{Kind: "session", ID: sess.ID}
	}
	if sess.Status == record.SessionActive && s.hasOtherActive(sess) {
		return storage.ErrActiveSessionExists
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

// hasOtherActive reports whether the project of sess has a different active
// session. Callers hold s.mu.
func (s *Driver) hasOtherActive(sess *record.Session) bool {
	for _, other := range s.sessions {
		if other.ID != sess.ID && other.ProjectID == sess.ProjectID && other.Status == record.SessionActive {
			return true
		}
	}
	return false
}

// GetSession retrieves a session by id.
func (s *Driver) GetSession(_ context.Context, id string) (*record.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "session", ID: id}
	}
	return cloneSession(sess), nil
}

// ActiveSession returns the active session of a project.
func (s *Driver) ActiveSession(_ context.Context, projectID string) (*record.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.ProjectID == projectID && sess.Status == record.SessionActive {
			return cloneSession(sess), nil
		}
	}
	return nil, storage.NotFoundError{Kind: "active session", ID: projectID}
}

// ListSessions returns matching sessions, most recently started first.
func (s *Driver) ListSessions(_ context.Context, f storage.SessionFilter) ([]*record.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.Session
	for _, sess := range s.sessions {
		if f.ProjectID != "" && sess.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && sess.Status != f.Status {
			continue
		}
		out = append(out, cloneSession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// CreateRecord stores a new record.
func (s *Driver) CreateRecord(_ context.Context, r *record.Record) error {
	if r == nil || r.ID == "" {
		return errors.New("cannot store record without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.ID]; ok {
		return errors.New("record already exists: " + r.ID)
	}
	s.records[r.ID] = r.Clone()
	return nil
}

// UpdateRecord writes the mutable fields of an existing record.
func (s *Driver) UpdateRecord(_ context.Context, r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[r.ID]
	if !ok {
		return storage.NotFoundError{Kind: "record", ID: r.ID}
	}
	updated := r.Clone()
	existing.QualityScore = updated.QualityScore
	existing.Metadata = updated.Metadata
	existing.Embedding = updated.Embedding
	existing.EmbeddingVersion = updated.EmbeddingVersion
	return nil
}

// GetRecord retrieves a record by id.
func (s *Driver) GetRecord(_ context.Context, id string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "record", ID: id}
	}
	return r.Clone(), nil
}

// ListRecords returns matching records, newest first.
func (s *Driver) ListRecords(_ context.Context, f storage.RecordFilter) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.Record
	for _, r := range s.records {
		if f.ProjectID != "" && r.ProjectID != f.ProjectID {
			continue
		}
		if f.SessionID != "" && r.SessionID != f.SessionID {
			continue
		}
		if f.Type != record.Unknown && r.Type != f.Type {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}

func cloneSession(sess *record.Session) *record.Session {
	cp := *sess
	if sess.EndedAt != nil {
		t := *sess.EndedAt
		cp.EndedAt = &t
	}
	cp.Metadata.Tools = append([]string(nil), sess.Metadata.Tools...)
	return &cp
}
