package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// MockMemoryDriver is a test memory driver that records calls and returns
// configurable results.
type MockMemoryDriver struct {
	mu sync.Mutex

	// Captured accumulates every activity passed to Capture.
	Captured []memory.Activity

	// Outcome is returned by Capture and Resolve. Defaults to a recorded
	// outcome.
	Outcome *memory.CaptureOutcome

	// RecallResults is returned by Recall for any query.
	RecallResults []retrieval.Result

	// Records is served by Record, Quality and Feedback.
	Records map[string]*record.Record

	// PendingItems is returned by Pending.
	PendingItems []capture.Pending

	// FailCapture causes Capture to return an error.
	FailCapture bool

	// FailRecall causes Recall to return an error.
	FailRecall bool

	Closed bool
}

// NewMockMemoryDriver creates a new mock memory driver.
func NewMockMemoryDriver() *MockMemoryDriver {
	return &MockMemoryDriver{
		Captured:      make([]memory.Activity, 0),
		RecallResults: make([]retrieval.Result, 0),
		Records:       make(map[string]*record.Record),
	}
}

var _ memory.Driver = (*MockMemoryDriver)(nil)

func (m *MockMemoryDriver) Capture(_ context.Context, a memory.Activity) (*memory.CaptureOutcome, error) {
	if a.Content == "" {
		return nil, capture.ErrEmptyContent
	}
	if m.FailCapture {
		return nil, errors.New("mock capture failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Captured = append(m.Captured, a)
	return m.outcome(), nil
}

// CapturedActivities returns a snapshot of the captured activities.
func (m *MockMemoryDriver) CapturedActivities() []memory.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]memory.Activity(nil), m.Captured...)
}

func (m *MockMemoryDriver) CaptureBatch(ctx context.Context, activities []memory.Activity) ([]*memory.CaptureOutcome, error) {
	out := make([]*memory.CaptureOutcome, 0, len(activities))
	for _, a := range activities {
		o, err := m.Capture(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MockMemoryDriver) Resolve(_ context.Context, id string, choice capture.Choice) (*memory.CaptureOutcome, error) {
	if _, err := capture.ParseChoice(string(choice)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *m.outcome()
	out.PendingID = id
	return &out, nil
}

func (m *MockMemoryDriver) outcome() *memory.CaptureOutcome {
	if m.Outcome != nil {
		return m.Outcome
	}
	return &memory.CaptureOutcome{
		Decision:   capture.DecisionAutoRecord,
		State:      capture.StateRecorded,
		Recorded:   true,
		RecordID:   "mock-record",
		Confidence: 1,
	}
}

func (m *MockMemoryDriver) Pending() []capture.Pending {
	return m.PendingItems
}

func (m *MockMemoryDriver) Recall(_ context.Context, q memory.Query) ([]retrieval.Result, error) {
	if q.Text == "" {
		return nil, retrieval.ErrEmptyQuery
	}
	if m.FailRecall {
		return nil, errors.New("mock recall failure")
	}
	return m.RecallResults, nil
}

func (m *MockMemoryDriver) BatchRecall(ctx context.Context, queries []memory.Query) []memory.BatchRecallResult {
	out := make([]memory.BatchRecallResult, len(queries))
	for i, q := range queries {
		out[i].Results, out[i].Err = m.Recall(ctx, q)
	}
	return out
}

func (m *MockMemoryDriver) Record(_ context.Context, id string) (*record.Record, error) {
	rec, ok := m.Records[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "record", ID: id}
	}
	return rec, nil
}

func (m *MockMemoryDriver) Quality(ctx context.Context, id string) (record.QualityMetrics, error) {
	rec, err := m.Record(ctx, id)
	if err != nil {
		return record.QualityMetrics{}, err
	}
	if rec.Metadata.Quality == nil {
		return record.QualityMetrics{}, nil
	}
	return *rec.Metadata.Quality, nil
}

func (m *MockMemoryDriver) Feedback(ctx context.Context, id string, kind memory.FeedbackKind, rating float64) (*record.Record, error) {
	if kind != memory.FeedbackReference && kind != memory.FeedbackRating {
		return nil, memory.ErrInvalidFeedback
	}
	rec, err := m.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	if kind == memory.FeedbackRating {
		rec.Metadata.UserRating = &rating
	}
	return rec, nil
}

func (m *MockMemoryDriver) Status(_ context.Context, path string) (*memory.ProjectStatus, error) {
	return &memory.ProjectStatus{
		Project: &record.Project{ID: "mock-project", Name: "mock", RootPath: path},
		Pending: len(m.PendingItems),
	}, nil
}

func (m *MockMemoryDriver) EndSession(_ context.Context, projectID string) (*record.Session, error) {
	return nil, storage.NotFoundError{Kind: "active session", ID: projectID}
}

func (m *MockMemoryDriver) Close() error {
	m.Closed = true
	return nil
}
