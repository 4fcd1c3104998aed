package local

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/quality"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/value"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const historySize = classify.DefaultHistoryWindow

// payload travels with a candidate through a pending confirmation.
type payload struct {
	projectID string
	sessionID string
	root      string
	filePath  string
	source    string
}

// Capture classifies, scores and decides one activity.
func (d *Driver) Capture(ctx context.Context, a memory.Activity) (*memory.CaptureOutcome, error) {
	if strings.TrimSpace(a.Content) == "" {
		return nil, capture.ErrEmptyContent
	}

	cand, err := d.prepare(ctx, a)
	if err != nil {
		return nil, err
	}
	res, err := d.engine.Decide(cand)
	if err != nil {
		return nil, err
	}
	return d.settle(ctx, res), nil
}

// CaptureBatch decides many activities at once. Nothing is decided when any
// activity has no content.
func (d *Driver) CaptureBatch(ctx context.Context, activities []memory.Activity) ([]*memory.CaptureOutcome, error) {
	for i, a := range activities {
		if strings.TrimSpace(a.Content) == "" {
			return nil, fmt.Errorf("activity %d: %w", i, capture.ErrEmptyContent)
		}
	}

	cands := make([]capture.Candidate, len(activities))
	for i, a := range activities {
		c, err := d.prepare(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("activity %d: %w", i, err)
		}
		cands[i] = c
	}

	results, err := d.engine.Batch(cands)
	if err != nil {
		return nil, err
	}
	out := make([]*memory.CaptureOutcome, len(results))
	for i, res := range results {
		out[i] = d.settle(ctx, res)
	}
	return out, nil
}

// prepare resolves the project and session of an activity and scores it.
func (d *Driver) prepare(ctx context.Context, a memory.Activity) (capture.Candidate, error) {
	dir := a.Dir
	if dir == "" && filepath.IsAbs(a.FilePath) {
		dir = filepath.Dir(a.FilePath)
	}

	p, err := d.resolveProject(ctx, dir)
	if err != nil {
		return capture.Candidate{}, err
	}
	s, err := d.ensureSession(ctx, p, a.Source)
	if err != nil {
		return capture.Candidate{}, err
	}

	content := strings.TrimSpace(a.Content)
	cls := d.classifier.Classify(content, d.history(ctx, s.ID))
	return capture.Candidate{
		Content:        content,
		Classification: cls,
		Value:          value.Evaluate(content, cls.Type),
		Payload: payload{
			projectID: p.ID,
			sessionID: s.ID,
			root:      p.RootPath,
			filePath:  relativeTo(p.RootPath, dir, a.FilePath),
			source:    a.Source,
		},
	}, nil
}

// settle acts on a capture decision: auto-recorded candidates are persisted
// and terminal decisions are published.
func (d *Driver) settle(ctx context.Context, res capture.Result) *memory.CaptureOutcome {
	pl, _ := res.Candidate.Payload.(payload)
	cls := res.Candidate.Classification
	val := res.Candidate.Value

	out := &memory.CaptureOutcome{
		Decision:       res.Decision,
		Confidence:     res.Confidence,
		PendingID:      res.PendingID,
		Reason:         res.Reason,
		ProjectID:      pl.projectID,
		SessionID:      pl.sessionID,
		Classification: &cls,
		Value:          &val,
	}

	switch res.Decision {
	case capture.DecisionAutoRecord:
		out.State = capture.StateRecorded
		rec, err := d.persist(ctx, res.Candidate, res.Confidence, false)
		if err != nil {
			d.logger.Warn("capture not recorded", "error", err)
			out.State = capture.StateDiscarded
			out.Reason = fmt.Sprintf("not recorded: %v", err)
			break
		}
		out.Recorded = true
		out.RecordID = rec.ID
	case capture.DecisionDiscard:
		out.State = capture.StateDiscarded
	case capture.DecisionPending:
		out.State = capture.StatePending
		return out
	}

	d.publish(ctx, res.Candidate, string(res.Decision), res.Confidence, out.RecordID)
	return out
}

// Resolve answers a pending confirmation.
func (d *Driver) Resolve(ctx context.Context, id string, choice capture.Choice) (*memory.CaptureOutcome, error) {
	if _, err := capture.ParseChoice(string(choice)); err != nil {
		return nil, err
	}

	res := d.engine.Resolve(id, choice)
	out := &memory.CaptureOutcome{
		State:      res.State,
		PendingID:  id,
		Confidence: res.Confidence,
	}
	if !res.Found {
		out.Reason = "unknown or expired confirmation"
		return out, nil
	}
	if res.Candidate == nil {
		out.Reason = "still pending"
		return out, nil
	}

	pl, _ := res.Candidate.Payload.(payload)
	out.ProjectID = pl.projectID
	out.SessionID = pl.sessionID
	cls := res.Candidate.Classification
	val := res.Candidate.Value
	out.Classification = &cls
	out.Value = &val

	if res.State == capture.StateRecorded {
		rec, err := d.persist(ctx, *res.Candidate, res.Confidence, true)
		if err != nil {
			d.logger.Warn("confirmed capture not recorded", "pending_id", id, "error", err)
			out.State = capture.StateDiscarded
			out.Reason = fmt.Sprintf("not recorded: %v", err)
		} else {
			out.Recorded = true
			out.RecordID = rec.ID
			out.Reason = "confirmed"
		}
	} else {
		out.Reason = "rejected"
	}

	d.publish(ctx, *res.Candidate, string(out.State), out.Confidence, out.RecordID)
	return out, nil
}

// Pending lists the outstanding confirmations, oldest first.
func (d *Driver) Pending() []capture.Pending {
	return d.engine.ListPending()
}

func (d *Driver) onTimeout(p capture.Pending) {
	d.publish(context.Background(), p.Candidate, string(capture.StateTimedOut), 0, "")
}

// persist builds a record from a candidate, enriches it and writes it to the
// store. Range extraction, embedding and the vector store write degrade
// silently.
func (d *Driver) persist(ctx context.Context, c capture.Candidate, confidence float64, confirmed bool) (*record.Record, error) {
	pl, _ := c.Payload.(payload)
	now := d.now()

	rec := &record.Record{
		ID:        ulid.Make().String(),
		SessionID: pl.sessionID,
		ProjectID: pl.projectID,
		Type:      c.Type(),
		Content:   c.Content,
		FilePath:  pl.filePath,
		Language:  record.LanguageFromPath(pl.filePath),
		Tags:      tags(c.Classification),
		Metadata:  record.NewMetadata(),
		CreatedAt: now,
	}
	rec.Metadata.Source = pl.source
	rec.Metadata.Confidence = &confidence
	score := c.Value.TotalScore
	rec.Metadata.ValueScore = &score
	rec.Metadata.Functions = c.Classification.KeyElements.Functions
	rec.Metadata.Classes = c.Classification.KeyElements.Classes
	rec.Metadata.ConfirmedByUser = confirmed

	if rec.FilePath != "" && d.ranges != nil {
		path := rec.FilePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(pl.root, filepath.FromSlash(path))
		}
		ranges := d.ranges.Extract(ctx, path)
		rec.LineRanges = ranges.Ranges
		rec.Metadata.ChangeType = string(ranges.ChangeType)
		changed := ranges.TotalChangedLines
		rec.Metadata.ChangedLines = &changed
	}

	quality.Apply(rec, now)
	d.embed(ctx, rec)

	if err := d.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing record: %w", err)
	}

	if d.vectors != nil && len(rec.Embedding) > 0 {
		doc := vector.Document{
			ID:        rec.ID,
			ProjectID: rec.ProjectID,
			Version:   rec.EmbeddingVersion,
			Embedding: rec.Embedding,
		}
		if err := d.vectors.Add(ctx, []vector.Document{doc}); err != nil {
			d.logger.Warn("could not store record embedding", "record_id", rec.ID, "error", err)
		}
	}

	d.logger.Info("recorded memory",
		"record_id", rec.ID,
		"type", rec.Type.String(),
		"project_id", rec.ProjectID,
		"quality", rec.QualityScore,
	)
	return rec, nil
}

func (d *Driver) embed(ctx context.Context, rec *record.Record) {
	if d.embedder == nil {
		return
	}
	emb, err := d.embedder.Embed(ctx, rec.Content)
	if err != nil {
		d.logger.Warn("could not embed record", "record_id", rec.ID, "error", err)
		return
	}
	rec.Embedding = emb
	rec.EmbeddingVersion = d.version
	if d.dims > 0 && d.version != "" {
		if err := rec.ValidateEmbedding(map[string]int{d.version: d.dims}); err != nil {
			d.logger.Warn("dropping record embedding", "error", err)
			rec.Embedding = nil
			rec.EmbeddingVersion = ""
		}
	}
}

func (d *Driver) publish(ctx context.Context, c capture.Candidate, decision string, confidence float64, recordID string) {
	pl, _ := c.Payload.(payload)

	event := eventstream.NewCaptureDecidedEvent(d.now())
	event.Project = pl.projectID
	event.Source = pl.source
	event.Decision = decision
	event.ActivityType = c.Type().String()
	event.Score = c.Value.TotalScore
	event.Confidence = confidence
	event.RecordID = recordID

	if err := d.publisher.PublishCapture(ctx, event); err != nil {
		d.logger.Warn("could not publish capture event", "decision", decision, "error", err)
	}
}

// tags are the matched classifier keywords, deduplicated.
func tags(c classify.Classification) []string {
	seen := make(map[string]bool, len(c.KeyElements.Keywords))
	var out []string
	for _, kw := range c.KeyElements.Keywords {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// relativeTo expresses file relative to root with forward slashes. file may
// be absolute or relative to dir. Files outside root keep their absolute
// path.
func relativeTo(root, dir, file string) string {
	if file == "" {
		return ""
	}
	abs := file
	if !filepath.IsAbs(abs) {
		if dir == "" {
			dir = "."
		}
		if a, err := filepath.Abs(filepath.Join(dir, file)); err == nil {
			abs = a
		}
	}
	rel, err := filepath.Rel(filepath.FromSlash(root), abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
