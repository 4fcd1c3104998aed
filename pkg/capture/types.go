package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/value"
)

// ErrEmptyContent is returned when a candidate has no content.
var ErrEmptyContent = errors.New("capture content is required")

// Decision is the outcome of scoring a candidate.
type Decision string

const (
	DecisionAutoRecord Decision = "auto_record"
	DecisionDiscard    Decision = "discard"
	DecisionPending    Decision = "pending_confirmation"
)

// State is the state of a pending confirmation after a resolution attempt.
type State string

const (
	StatePending   State = "pending"
	StateRecorded  State = "recorded"
	StateDiscarded State = "discarded"
	StateTimedOut  State = "timed_out"
)

// Choice is a user's answer to a pending confirmation.
type Choice string

const (
	ChoiceYes   Choice = "yes"
	ChoiceNo    Choice = "no"
	ChoiceMaybe Choice = "maybe"
)

// ParseChoice accepts yes/no/maybe and their single-letter forms.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return ChoiceYes, nil
	case "no", "n":
		return ChoiceNo, nil
	case "maybe", "m":
		return ChoiceMaybe, nil
	}
	return "", fmt.Errorf("invalid choice %q: expected yes, no or maybe", s)
}

// Candidate is scored activity awaiting a capture decision.
type Candidate struct {
	Content        string                  `json:"content"`
	Classification classify.Classification `json:"classification"`
	Value          value.Score             `json:"value"`

	// Payload is opaque caller data carried through a pending confirmation.
	Payload any `json:"-"`
}

// Type is the classified activity type.
func (c Candidate) Type() record.ActivityType {
	return c.Classification.Type
}

// Result is the decision for one candidate.
type Result struct {
	Decision   Decision  `json:"decision"`
	Confidence float64   `json:"confidence"`
	PendingID  string    `json:"pending_id,omitempty"`
	Reason     string    `json:"reason"`
	Candidate  Candidate `json:"candidate"`
}

// Pending is a confirmation awaiting resolution.
type Pending struct {
	ID         string    `json:"id"`
	Candidate  Candidate `json:"candidate"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Resolution is the outcome of Resolve. Found is false for unknown or
// expired ids, which resolve as a zero-confidence discard.
type Resolution struct {
	ID         string     `json:"id"`
	State      State      `json:"state"`
	Confidence float64    `json:"confidence"`
	Found      bool       `json:"found"`
	Candidate  *Candidate `json:"candidate,omitempty"`
}
