package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/papercomputeco/mnemo/pkg/identity"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// resolveProject finds or creates the project that owns dir. The normalized
// root is the primary key, so any sub-path resolves to the same project.
// The fingerprint follows a project that moved: when nothing is registered
// at the root and a project with the same fingerprint has lost its old root,
// that project is relocated. Otherwise a new project is registered.
func (d *Driver) resolveProject(ctx context.Context, dir string) (*record.Project, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		dir = wd
	}

	root := d.identity.Normalize(d.identity.ResolveRoot(dir))
	if p, ok := d.projects.Get(root); ok {
		return p, nil
	}

	d.projectMu.Lock()
	defer d.projectMu.Unlock()

	id := d.identity.Identify(ctx, dir)
	p, err := d.store.FindProjectByRoot(ctx, id.Root)
	switch {
	case err == nil:
		err = d.refreshProject(ctx, p, id)
	case storage.IsNotFound(err):
		p, err = d.store.FindProjectByFingerprint(ctx, id.Fingerprint)
		switch {
		case err == nil && !exists(p.RootPath):
			d.logger.Info("project moved", "project_id", p.ID, "from", p.RootPath, "to", id.Root)
			err = d.refreshProject(ctx, p, id)
		case err == nil, storage.IsNotFound(err):
			p, err = d.createProject(ctx, id)
		default:
			err = fmt.Errorf("finding project: %w", err)
		}
	default:
		err = fmt.Errorf("finding project: %w", err)
	}
	if err != nil {
		return nil, err
	}

	d.projects.Set(root, p)
	return p, nil
}

// refreshProject writes the current root, remote and fingerprint of id onto
// p when any of them drifted. Manifest edits change the fingerprint of a
// project without a remote, so it is updated in place.
func (d *Driver) refreshProject(ctx context.Context, p *record.Project, id identity.Identity) error {
	if p.RootPath == id.Root && p.RemoteURL == id.RemoteURL && p.Fingerprint == id.Fingerprint {
		return nil
	}

	p.RootPath = id.Root
	p.RemoteURL = id.RemoteURL
	p.Fingerprint = id.Fingerprint
	p.UpdatedAt = d.now()
	if err := d.store.PutProject(ctx, p); err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(filepath.FromSlash(path))
	return err == nil
}

func (d *Driver) createProject(ctx context.Context, id identity.Identity) (*record.Project, error) {
	now := d.now()
	p := &record.Project{
		ID:          uuid.NewString(),
		Name:        id.Name,
		RootPath:    id.Root,
		RemoteURL:   id.RemoteURL,
		Language:    id.Language,
		Framework:   id.Framework,
		Fingerprint: id.Fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.store.PutProject(ctx, p); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	d.logger.Info("registered project", "project_id", p.ID, "name", p.Name, "root", p.RootPath)
	return p, nil
}

// ensureSession returns the active session of a project, starting one when
// there is none, and records source among the session's tools.
func (d *Driver) ensureSession(ctx context.Context, p *record.Project, source string) (*record.Session, error) {
	d.projectMu.Lock()
	defer d.projectMu.Unlock()

	s, err := d.store.ActiveSession(ctx, p.ID)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("finding active session: %w", err)
	}

	if s == nil {
		now := d.now()
		s = &record.Session{
			ID:        uuid.NewString(),
			ProjectID: p.ID,
			Name:      p.Name + " " + now.Format("2006-01-02 15:04"),
			Status:    record.SessionActive,
			StartedAt: now,
		}
		s.Metadata.AddTool(source)
		if err := d.store.CreateSession(ctx, s); err != nil {
			if !errors.Is(err, storage.ErrActiveSessionExists) {
				return nil, fmt.Errorf("starting session: %w", err)
			}
			return d.store.ActiveSession(ctx, p.ID)
		}
		d.logger.Debug("started session", "session_id", s.ID, "project_id", p.ID)
		return s, nil
	}

	if source != "" && !slices.Contains(s.Metadata.Tools, source) {
		s.Metadata.AddTool(source)
		if err := d.store.UpdateSession(ctx, s); err != nil {
			d.logger.Warn("could not record session tool", "session_id", s.ID, "error", err)
		}
	}
	return s, nil
}

// history returns the activity types recorded in a session, oldest first.
func (d *Driver) history(ctx context.Context, sessionID string) []record.ActivityType {
	recs, err := d.store.ListRecords(ctx, storage.RecordFilter{SessionID: sessionID, Limit: historySize})
	if err != nil {
		d.logger.Warn("could not load session history", "session_id", sessionID, "error", err)
		return nil
	}
	out := make([]record.ActivityType, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = r.Type
	}
	return out
}

// Status reports the project at path with its active session.
func (d *Driver) Status(ctx context.Context, path string) (*memory.ProjectStatus, error) {
	p, err := d.resolveProject(ctx, path)
	if err != nil {
		return nil, err
	}

	st := &memory.ProjectStatus{Project: p}
	s, err := d.store.ActiveSession(ctx, p.ID)
	switch {
	case err == nil:
		st.ActiveSession = s
	case !storage.IsNotFound(err):
		return nil, err
	}

	recs, err := d.store.ListRecords(ctx, storage.RecordFilter{ProjectID: p.ID})
	if err != nil {
		return nil, err
	}
	st.Records = len(recs)

	for _, pending := range d.engine.ListPending() {
		if pl, ok := pending.Candidate.Payload.(payload); ok && pl.projectID == p.ID {
			st.Pending++
		}
	}
	return st, nil
}

// EndSession completes the active session of a project. Completion is
// one-way; the next capture starts a new session.
func (d *Driver) EndSession(ctx context.Context, projectID string) (*record.Session, error) {
	d.projectMu.Lock()
	defer d.projectMu.Unlock()

	s, err := d.store.ActiveSession(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.Transition(record.SessionCompleted, d.now()); err != nil {
		return nil, err
	}
	if err := d.store.UpdateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("completing session: %w", err)
	}
	d.logger.Info("ended session", "session_id", s.ID, "project_id", projectID)
	return s, nil
}
