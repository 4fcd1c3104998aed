package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCaptureDecided is emitted when a capture reaches a terminal
	// decision.
	EventTypeCaptureDecided = "mnemo.capture.decided"
)

// CaptureDecidedEvent is a transport-neutral event payload for a capture
// decision.
type CaptureDecidedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	Project      string  `json:"project"`
	Source       string  `json:"source,omitempty"`
	Decision     string  `json:"decision"`
	ActivityType string  `json:"activity_type"`
	Score        int     `json:"score"`
	Confidence   float64 `json:"confidence"`

	// RecordID is set when the decision persisted a record.
	RecordID string `json:"record_id,omitempty"`
}

// NewCaptureDecidedEvent stamps the schema, type, id and time of a new event.
func NewCaptureDecidedEvent(now time.Time) *CaptureDecidedEvent {
	return &CaptureDecidedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCaptureDecided,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
	}
}
