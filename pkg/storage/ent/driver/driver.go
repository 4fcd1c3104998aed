// Package entdriver implements storage.Driver on top of ent's SQL dialect
// layer. It is database-agnostic and is embedded by the sqlite and postgres
// drivers.
package entdriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

const (
	tableProjects = "projects"
	tableSessions = "sessions"
	tableRecords  = "records"
)

var (
	projectColumns = []string{
		"id", "name", "root_path", "remote_url", "language", "framework",
		"fingerprint", "created_at", "updated_at",
	}
	sessionColumns = []string{
		"id", "project_id", "name", "status", "started_at", "ended_at", "metadata",
	}
	recordColumns = []string{
		"id", "session_id", "project_id", "type", "content", "file_path",
		"line_ranges", "language", "tags", "quality_score", "metadata",
		"created_at", "embedding", "embedding_version",
	}
)

// schema is portable across SQLite and PostgreSQL. Timestamps are unix
// nanoseconds; structured fields are JSON text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		root_path TEXT NOT NULL,
		remote_url TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		framework TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS projects_root_path ON projects(root_path)`,
	`CREATE INDEX IF NOT EXISTS projects_fingerprint ON projects(fingerprint)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		ended_at BIGINT,
		metadata TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active ON sessions(project_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		line_ranges TEXT NOT NULL DEFAULT '[]',
		language TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at BIGINT NOT NULL,
		embedding TEXT NOT NULL DEFAULT '[]',
		embedding_version TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS records_project_created ON records(project_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS records_session ON records(session_id)`,
}

// Config configures an EntDriver.
type Config struct {
	// DB is the wrapped database connection.
	DB *entsql.Driver

	// IsUniqueViolation reports whether err is a unique constraint failure
	// from the underlying database. Optional.
	IsUniqueViolation func(error) bool

	Logger *slog.Logger
}

// EntDriver provides storage operations using ent's SQL builders.
type EntDriver struct {
	drv      *entsql.Driver
	isUnique func(error) bool
	logger   *slog.Logger
}

var _ storage.Driver = (*EntDriver)(nil)

// New wraps an opened connection. Call Migrate before use.
func New(c Config) (*EntDriver, error) {
	if c.DB == nil {
		return nil, errors.New("ent driver requires a database connection")
	}
	isUnique := c.IsUniqueViolation
	if isUnique == nil {
		isUnique = func(error) bool { return false }
	}
	return &EntDriver{
		drv:      c.DB,
		isUnique: isUnique,
		logger:   logger.OrNop(c.Logger),
	}, nil
}

// Migrate creates the tables and indexes if they don't exist.
func (ed *EntDriver) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := ed.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.drv.Dialect())
}

type projectRow struct {
	ID          string `sql:"id"`
	Name        string `sql:"name"`
	RootPath    string `sql:"root_path"`
	RemoteURL   string `sql:"remote_url"`
	Language    string `sql:"language"`
	Framework   string `sql:"framework"`
	Fingerprint string `sql:"fingerprint"`
	CreatedAt   int64  `sql:"created_at"`
	UpdatedAt   int64  `sql:"updated_at"`
}

func (r projectRow) project() *record.Project {
	return &record.Project{
		ID:          r.ID,
		Name:        r.Name,
		RootPath:    r.RootPath,
		RemoteURL:   r.RemoteURL,
		Language:    r.Language,
		Framework:   r.Framework,
		Fingerprint: r.Fingerprint,
		CreatedAt:   fromNanos(r.CreatedAt),
		UpdatedAt:   fromNanos(r.UpdatedAt),
	}
}

type sessionRow struct {
	ID        string `sql:"id"`
	ProjectID string `sql:"project_id"`
	Name      string `sql:"name"`
	Status    string `sql:"status"`
	StartedAt int64  `sql:"started_at"`
	EndedAt   *int64 `sql:"ended_at"`
	Metadata  string `sql:"metadata"`
}

func (r sessionRow) session() (*record.Session, error) {
	s := &record.Session{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Name:      r.Name,
		Status:    record.SessionStatus(r.Status),
		StartedAt: fromNanos(r.StartedAt),
	}
	if r.EndedAt != nil {
		t := fromNanos(*r.EndedAt)
		s.EndedAt = &t
	}
	if err := unmarshalText(r.Metadata, &s.Metadata); err != nil {
		return nil, fmt.Errorf("session %s metadata: %w", r.ID, err)
	}
	return s, nil
}

type recordRow struct {
	ID               string  `sql:"id"`
	SessionID        string  `sql:"session_id"`
	ProjectID        string  `sql:"project_id"`
	Type             string  `sql:"type"`
	Content          string  `sql:"content"`
	FilePath         string  `sql:"file_path"`
	LineRanges       string  `sql:"line_ranges"`
	Language         string  `sql:"language"`
	Tags             string  `sql:"tags"`
	QualityScore     float64 `sql:"quality_score"`
	Metadata         string  `sql:"metadata"`
	CreatedAt        int64   `sql:"created_at"`
	Embedding        string  `sql:"embedding"`
	EmbeddingVersion string  `sql:"embedding_version"`
}

func (r recordRow) record() (*record.Record, error) {
	t, err := record.ParseActivityType(r.Type)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", r.ID, err)
	}
	meta, err := record.DecodeMetadata([]byte(r.Metadata))
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", r.ID, err)
	}
	rec := &record.Record{
		ID:               r.ID,
		SessionID:        r.SessionID,
		ProjectID:        r.ProjectID,
		Type:             t,
		Content:          r.Content,
		FilePath:         r.FilePath,
		Language:         r.Language,
		QualityScore:     r.QualityScore,
		Metadata:         meta,
		CreatedAt:        fromNanos(r.CreatedAt),
		EmbeddingVersion: r.EmbeddingVersion,
	}
	if err := unmarshalText(r.LineRanges, &rec.LineRanges); err != nil {
		return nil, fmt.Errorf("record %s line ranges: %w", r.ID, err)
	}
	if err := unmarshalText(r.Tags, &rec.Tags); err != nil {
		return nil, fmt.Errorf("record %s tags: %w", r.ID, err)
	}
	if err := unmarshalText(r.Embedding, &rec.Embedding); err != nil {
		return nil, fmt.Errorf("record %s embedding: %w", r.ID, err)
	}
	return rec, nil
}

// PutProject inserts a project or replaces the existing row with the same id.
func (ed *EntDriver) PutProject(ctx context.Context, p *record.Project) error {
	if p == nil || p.ID == "" {
		return errors.New("cannot store project without id")
	}

	q, args := ed.builder().Insert(tableProjects).
		Columns(projectColumns...).
		Values(p.ID, p.Name, p.RootPath, p.RemoteURL, p.Language, p.Framework,
			p.Fingerprint, toNanos(p.CreatedAt), toNanos(p.UpdatedAt)).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err := ed.drv.Exec(ctx, q, args, nil); err != nil {
		if ed.isUnique(err) {
			return fmt.Errorf("could not store project %s: %w", p.ID, storage.ErrProjectConflict)
		}
		return fmt.Errorf("could not store project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id.
func (ed *EntDriver) GetProject(ctx context.Context, id string) (*record.Project, error) {
	return ed.oneProject(ctx, entsql.EQ("id", id), id)
}

// FindProjectByFingerprint retrieves the most recently updated project with a
// fingerprint.
func (ed *EntDriver) FindProjectByFingerprint(ctx context.Context, fingerprint string) (*record.Project, error) {
	return ed.oneProject(ctx, entsql.EQ("fingerprint", fingerprint), fingerprint)
}

// FindProjectByRoot retrieves a project by its normalized root path.
func (ed *EntDriver) FindProjectByRoot(ctx context.Context, root string) (*record.Project, error) {
	return ed.oneProject(ctx, entsql.EQ("root_path", root), root)
}

func (ed *EntDriver) oneProject(ctx context.Context, where *entsql.Predicate, key string) (*record.Project, error) {
	q, args := ed.builder().Select(projectColumns...).
		From(entsql.Table(tableProjects)).
		Where(where).
		OrderBy(entsql.Desc("updated_at")).
		Limit(1).
		Query()
	var rows []projectRow
	if err := ed.scan(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if len(rows) == 0 {
		return nil, storage.NotFoundError{Kind: "project", ID: key}
	}
	return rows[0].project(), nil
}

// ListProjects returns every project, most recently updated first.
func (ed *EntDriver) ListProjects(ctx context.Context) ([]*record.Project, error) {
	q, args := ed.builder().Select(projectColumns...).
		From(entsql.Table(tableProjects)).
		OrderBy(entsql.Desc("updated_at")).
		Query()
	var rows []projectRow
	if err := ed.scan(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]*record.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.project())
	}
	return out, nil
}

// CreateSession stores a new session.
func (ed *EntDriver) CreateSession(ctx context.Context, s *record.Session) error {
	if s == nil || s.ID == "" {
		return errors.New("cannot store session without id")
	}
	if err := ed.checkActive(ctx, s); err != nil {
		return err
	}
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	q, args := ed.builder().Insert(tableSessions).
		Columns(sessionColumns...).
		Values(s.ID, s.ProjectID, s.Name, string(s.Status), toNanos(s.StartedAt), nanosPtr(s.EndedAt), string(meta)).
		Query()
	if err := ed.drv.Exec(ctx, q, args, nil); err != nil {
		if ed.isUnique(err) && s.Status == record.SessionActive {
			return storage.ErrActiveSessionExists
		}
		return fmt.Errorf("could not create session: %w", err)
	}
	return nil
}

// UpdateSession replaces an existing session.
func (ed *EntDriver) UpdateSession(ctx context.Context, s *record.Session) error {
	if err := ed.checkActive(ctx, s); err != nil {
		return err
	}
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	upd := ed.builder().Update(tableSessions).
		Set("project_id", s.ProjectID).
		Set("name", s.Name).
		Set("status", string(s.Status)).
		Set("started_at", toNanos(s.StartedAt)).
		Set("metadata", string(meta)).
		Where(entsql.EQ("id", s.ID))
	if s.EndedAt != nil {
		upd.Set("ended_at", s.EndedAt.UnixNano())
	} else {
		upd.SetNull("ended_at")
	}
	q, args := upd.Query()
	n, err := ed.exec(ctx, q, args)
	if err != nil {
		if ed.isUnique(err) && s.Status == record.SessionActive {
			return storage.ErrActiveSessionExists
		}
		return fmt.Errorf("could not update session: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Kind: "session", ID: s.ID}
	}
	return nil
}

// checkActive returns ErrActiveSessionExists when s is active and its
// project already has a different active session. The partial unique index
// backs this check under concurrent writers.
func (ed *EntDriver) checkActive(ctx context.Context, s *record.Session) error {
	if s.Status != record.SessionActive {
		return nil
	}
	active, err := ed.ActiveSession(ctx, s.ProjectID)
	switch {
	case storage.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case active.ID != s.ID:
		return storage.ErrActiveSessionExists
	}
	return nil
}

// GetSession retrieves a session by id.
func (ed *EntDriver) GetSession(ctx context.Context, id string) (*record.Session, error) {
	sessions, err := ed.selectSessions(ctx, entsql.EQ("id", id), 1)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, storage.NotFoundError{Kind: "session", ID: id}
	}
	return sessions[0], nil
}

// ActiveSession returns the active session of a project.
func (ed *EntDriver) ActiveSession(ctx context.Context, projectID string) (*record.Session, error) {
	sessions, err := ed.selectSessions(ctx, entsql.And(
		entsql.EQ("project_id", projectID),
		entsql.EQ("status", string(record.SessionActive)),
	), 1)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, storage.NotFoundError{Kind: "active session", ID: projectID}
	}
	return sessions[0], nil
}

// ListSessions returns matching sessions, most recently started first.
func (ed *EntDriver) ListSessions(ctx context.Context, f storage.SessionFilter) ([]*record.Session, error) {
	var preds []*entsql.Predicate
	if f.ProjectID != "" {
		preds = append(preds, entsql.EQ("project_id", f.ProjectID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	return ed.selectSessions(ctx, and(preds), 0)
}

func (ed *EntDriver) selectSessions(ctx context.Context, where *entsql.Predicate, limit int) ([]*record.Session, error) {
	sel := ed.builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		OrderBy(entsql.Desc("started_at"))
	if where != nil {
		sel.Where(where)
	}
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()

	var rows []sessionRow
	if err := ed.scan(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	out := make([]*record.Session, 0, len(rows))
	for _, r := range rows {
		s, err := r.session()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// CreateRecord stores a new record.
func (ed *EntDriver) CreateRecord(ctx context.Context, r *record.Record) error {
	if r == nil || r.ID == "" {
		return errors.New("cannot store record without id")
	}

	ranges, err := marshalText(r.LineRanges)
	if err != nil {
		return fmt.Errorf("failed to marshal line ranges: %w", err)
	}
	tags, err := marshalText(r.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	meta, err := record.EncodeMetadata(r.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	emb, err := marshalText(r.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	q, args := ed.builder().Insert(tableRecords).
		Columns(recordColumns...).
		Values(r.ID, r.SessionID, r.ProjectID, r.Type.String(), r.Content, r.FilePath,
			ranges, r.Language, tags, r.QualityScore, string(meta),
			toNanos(r.CreatedAt), emb, r.EmbeddingVersion).
		Query()
	if err := ed.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("could not create record: %w", err)
	}
	ed.logger.Debug("stored record", "id", r.ID, "type", r.Type.String(), "project", r.ProjectID)
	return nil
}

// UpdateRecord writes the quality score, metadata and embedding of an
// existing record.
func (ed *EntDriver) UpdateRecord(ctx context.Context, r *record.Record) error {
	meta, err := record.EncodeMetadata(r.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	emb, err := marshalText(r.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	q, args := ed.builder().Update(tableRecords).
		Set("quality_score", r.QualityScore).
		Set("metadata", string(meta)).
		Set("embedding", emb).
		Set("embedding_version", r.EmbeddingVersion).
		Where(entsql.EQ("id", r.ID)).
		Query()
	n, err := ed.exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("could not update record: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Kind: "record", ID: r.ID}
	}
	return nil
}

// GetRecord retrieves a record by id.
func (ed *EntDriver) GetRecord(ctx context.Context, id string) (*record.Record, error) {
	recs, err := ed.selectRecords(ctx, entsql.EQ("id", id), 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, storage.NotFoundError{Kind: "record", ID: id}
	}
	return recs[0], nil
}

// ListRecords returns matching records, newest first.
func (ed *EntDriver) ListRecords(ctx context.Context, f storage.RecordFilter) ([]*record.Record, error) {
	var preds []*entsql.Predicate
	if f.ProjectID != "" {
		preds = append(preds, entsql.EQ("project_id", f.ProjectID))
	}
	if f.SessionID != "" {
		preds = append(preds, entsql.EQ("session_id", f.SessionID))
	}
	if f.Type != record.Unknown {
		preds = append(preds, entsql.EQ("type", f.Type.String()))
	}
	return ed.selectRecords(ctx, and(preds), f.Limit)
}

func (ed *EntDriver) selectRecords(ctx context.Context, where *entsql.Predicate, limit int) ([]*record.Record, error) {
	sel := ed.builder().Select(recordColumns...).
		From(entsql.Table(tableRecords)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if where != nil {
		sel.Where(where)
	}
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()

	var rows []recordRow
	if err := ed.scan(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	out := make([]*record.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DB returns the underlying database handle.
func (ed *EntDriver) DB() *sql.DB {
	return ed.drv.DB()
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.drv.Close()
}

func (ed *EntDriver) scan(ctx context.Context, q string, args []any, v any) error {
	var rows entsql.Rows
	if err := ed.drv.Query(ctx, q, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	return entsql.ScanSlice(rows, v)
}

func (ed *EntDriver) exec(ctx context.Context, q string, args []any) (int64, error) {
	var res entsql.Result
	if err := ed.drv.Exec(ctx, q, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func and(preds []*entsql.Predicate) *entsql.Predicate {
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return entsql.And(preds...)
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nanosPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func marshalText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalText(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
