// Package memory is the capture and recall layer on top of the storage,
// classification and retrieval packages.
//
// A Driver turns free-text development activity into durable records and
// recalls the records most relevant to a query:
//
//	activity -> classify + evaluate -> capture decision -> record
//	query    -> candidate records   -> hybrid search    -> results
//
// Recall and Feedback feed usage back into each record's quality score.
//
// Drivers are pluggable via configuration:
//
//	[storage]
//	provider = "sqlite"   # or "postgres", "memory"
package memory

import (
	"context"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/value"
)

// Driver handles capture and recall of development memory.
type Driver interface {
	// Capture classifies, scores and decides one activity. Auto-recorded
	// activity is persisted before Capture returns; ambiguous activity is
	// parked as a pending confirmation.
	Capture(ctx context.Context, a Activity) (*CaptureOutcome, error)

	// CaptureBatch decides many activities at once, grouping candidates of
	// the same activity type. Outcomes are in input order.
	CaptureBatch(ctx context.Context, activities []Activity) ([]*CaptureOutcome, error)

	// Resolve answers a pending confirmation and persists the record on yes.
	// Unknown or expired ids resolve as a discard, not an error.
	Resolve(ctx context.Context, id string, choice capture.Choice) (*CaptureOutcome, error)

	// Pending lists the outstanding confirmations, oldest first.
	Pending() []capture.Pending

	// Recall runs a hybrid search over the candidate records of a project,
	// or of every project when the query names none.
	Recall(ctx context.Context, q Query) ([]retrieval.Result, error)

	// BatchRecall runs many recalls concurrently. Results line up with
	// queries.
	BatchRecall(ctx context.Context, queries []Query) []BatchRecallResult

	// Record returns a stored record.
	Record(ctx context.Context, id string) (*record.Record, error)

	// Quality recomputes the quality metrics of a record without persisting
	// them.
	Quality(ctx context.Context, id string) (record.QualityMetrics, error)

	// Feedback records a reference or a user rating and rescores the record.
	Feedback(ctx context.Context, id string, kind FeedbackKind, rating float64) (*record.Record, error)

	// Status reports the project at path with its active session.
	Status(ctx context.Context, path string) (*ProjectStatus, error)

	// EndSession completes the active session of a project.
	EndSession(ctx context.Context, projectID string) (*record.Session, error)

	// Close releases driver resources.
	Close() error
}

// Activity is one piece of development activity offered for capture.
type Activity struct {
	// Content is the activity text.
	Content string `json:"content"`

	// Dir is a directory inside the project. Defaults to the working
	// directory.
	Dir string `json:"dir,omitempty"`

	// FilePath is the changed file, absolute or relative to Dir.
	FilePath string `json:"file_path,omitempty"`

	// Source names the tool that reported the activity: cli, api, mcp, watch.
	Source string `json:"source,omitempty"`
}

// CaptureOutcome is the result of Capture or Resolve.
type CaptureOutcome struct {
	Decision   capture.Decision `json:"decision,omitempty"`
	State      capture.State    `json:"state"`
	Recorded   bool             `json:"recorded"`
	RecordID   string           `json:"record_id,omitempty"`
	PendingID  string           `json:"pending_id,omitempty"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason,omitempty"`

	ProjectID string `json:"project_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Classification *classify.Classification `json:"classification,omitempty"`
	Value          *value.Score             `json:"value,omitempty"`
}

// Query is a recall request.
type Query struct {
	Text string `json:"query"`

	// ProjectID scopes the candidates. When empty and Dir is set, the
	// project is resolved from Dir; when both are empty every project is
	// searched.
	ProjectID string `json:"project_id,omitempty"`
	Dir       string `json:"dir,omitempty"`

	FilePath        string   `json:"file_path,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Limit           int      `json:"limit,omitempty"`
	DisableSemantic bool     `json:"disable_semantic,omitempty"`
}

// BatchRecallResult holds the outcome of the query at the same index.
type BatchRecallResult struct {
	Results []retrieval.Result `json:"results"`
	Err     error              `json:"-"`
}

// FeedbackKind selects what Feedback records.
type FeedbackKind string

const (
	// FeedbackReference counts the record as referenced by the user.
	FeedbackReference FeedbackKind = "reference"

	// FeedbackRating sets the user rating in [0,1].
	FeedbackRating FeedbackKind = "rating"
)

// ProjectStatus summarizes a project.
type ProjectStatus struct {
	Project       *record.Project `json:"project"`
	ActiveSession *record.Session `json:"active_session,omitempty"`
	Records       int             `json:"records"`
	Pending       int             `json:"pending"`
}
