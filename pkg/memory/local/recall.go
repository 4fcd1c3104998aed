package local

import (
	"context"
	"fmt"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/quality"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Recall runs a hybrid search and counts a search hit on every returned
// record.
func (d *Driver) Recall(ctx context.Context, q memory.Query) ([]retrieval.Result, error) {
	if q.Text == "" {
		return nil, retrieval.ErrEmptyQuery
	}

	bq, err := d.batchQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	results, err := d.retrieval.Search(ctx, bq.Query, bq.Candidates, bq.Params)
	if err != nil {
		return nil, err
	}
	d.touch(ctx, results)
	return results, nil
}

// BatchRecall runs many recalls on the retrieval engine's worker pool.
func (d *Driver) BatchRecall(ctx context.Context, queries []memory.Query) []memory.BatchRecallResult {
	out := make([]memory.BatchRecallResult, len(queries))

	batch := make([]retrieval.BatchQuery, 0, len(queries))
	index := make([]int, 0, len(queries))
	for i, q := range queries {
		if q.Text == "" {
			out[i].Err = retrieval.ErrEmptyQuery
			continue
		}
		bq, err := d.batchQuery(ctx, q)
		if err != nil {
			out[i].Err = err
			continue
		}
		batch = append(batch, bq)
		index = append(index, i)
	}

	for j, res := range d.retrieval.BatchSearch(ctx, batch) {
		i := index[j]
		out[i] = memory.BatchRecallResult{Results: res.Results, Err: res.Err}
		if res.Err == nil {
			d.touch(ctx, res.Results)
		}
	}
	return out
}

func (d *Driver) batchQuery(ctx context.Context, q memory.Query) (retrieval.BatchQuery, error) {
	projectID := q.ProjectID
	if projectID == "" && q.Dir != "" {
		p, err := d.resolveProject(ctx, q.Dir)
		if err != nil {
			return retrieval.BatchQuery{}, err
		}
		projectID = p.ID
	}

	recs, err := d.store.ListRecords(ctx, storage.RecordFilter{ProjectID: projectID, Limit: d.limit})
	if err != nil {
		return retrieval.BatchQuery{}, fmt.Errorf("listing candidates: %w", err)
	}
	candidates := make([]record.Record, len(recs))
	for i, r := range recs {
		candidates[i] = *r
	}

	return retrieval.BatchQuery{
		Query:      q.Text,
		Candidates: candidates,
		Params: retrieval.Params{
			Limit:           q.Limit,
			ProjectID:       projectID,
			FilePath:        q.FilePath,
			Tags:            q.Tags,
			DisableSemantic: q.DisableSemantic,
		},
	}, nil
}

// touch counts a search hit on each result and rescores it from the stored
// record, then hands the updated record back in the result. Failures are
// logged; the ranking is already computed.
func (d *Driver) touch(ctx context.Context, results []retrieval.Result) {
	d.usageMu.Lock()
	defer d.usageMu.Unlock()

	now := d.now()
	for i := range results {
		rec, err := d.store.GetRecord(ctx, results[i].Record.ID)
		if err != nil {
			d.logger.Warn("could not load record for search hit", "record_id", results[i].Record.ID, "error", err)
			continue
		}
		usage := usageOf(rec)
		usage.Searches++
		usage.LastAccessedAt = &now
		rec.Metadata.Usage = usage
		quality.Apply(rec, now)

		if err := d.store.UpdateRecord(ctx, rec); err != nil {
			d.logger.Warn("could not record search hit", "record_id", rec.ID, "error", err)
			continue
		}
		results[i].Record = *rec
	}
}

// Record returns a stored record.
func (d *Driver) Record(ctx context.Context, id string) (*record.Record, error) {
	return d.store.GetRecord(ctx, id)
}

// Quality recomputes the quality metrics of a record.
func (d *Driver) Quality(ctx context.Context, id string) (record.QualityMetrics, error) {
	rec, err := d.store.GetRecord(ctx, id)
	if err != nil {
		return record.QualityMetrics{}, err
	}
	return quality.Score(rec, *usageOf(rec), d.now()), nil
}

// Feedback records a reference or a user rating and rescores the record.
func (d *Driver) Feedback(ctx context.Context, id string, kind memory.FeedbackKind, rating float64) (*record.Record, error) {
	switch kind {
	case memory.FeedbackReference:
	case memory.FeedbackRating:
		if rating < 0 || rating > 1 {
			return nil, fmt.Errorf("%w: rating %v is outside [0,1]", memory.ErrInvalidFeedback, rating)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", memory.ErrInvalidFeedback, kind)
	}

	d.usageMu.Lock()
	defer d.usageMu.Unlock()

	rec, err := d.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	now := d.now()
	usage := usageOf(rec)
	usage.LastAccessedAt = &now
	switch kind {
	case memory.FeedbackReference:
		usage.References++
	case memory.FeedbackRating:
		rec.Metadata.UserRating = &rating
	}
	rec.Metadata.Usage = usage
	quality.Apply(rec, now)

	if err := d.store.UpdateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing feedback: %w", err)
	}
	d.retrieval.Invalidate(rec.ID)
	return rec, nil
}

func usageOf(rec *record.Record) *record.Usage {
	if rec.Metadata.Usage == nil {
		return &record.Usage{}
	}
	u := *rec.Metadata.Usage
	return &u
}
