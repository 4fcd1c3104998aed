// Package record defines the persisted data model of the memory layer:
// projects, sessions, records and their quality metrics.
package record

import (
	"encoding/json"
	"fmt"
)

// ActivityType is the closed set of activity categories a record can carry.
type ActivityType int

const (
	// Unknown is the zero value. It never wins classification.
	Unknown ActivityType = iota
	BugFix
	FeatureAdd
	CodeChange
	Refactor
	SolutionDesign
	Test
	Documentation
)

// ActivityTypes lists every classifiable type in declaration order. Ties in
// classification are broken by this order.
var ActivityTypes = []ActivityType{
	BugFix,
	FeatureAdd,
	CodeChange,
	Refactor,
	SolutionDesign,
	Test,
	Documentation,
}

// String returns the wire name of the activity type.
func (t ActivityType) String() string {
	switch t {
	case BugFix:
		return "bug_fix"
	case FeatureAdd:
		return "feature_add"
	case CodeChange:
		return "code_change"
	case Refactor:
		return "refactor"
	case SolutionDesign:
		return "solution_design"
	case Test:
		return "test"
	case Documentation:
		return "documentation"
	case Unknown:
		return "unknown"
	}
	return "unknown"
}

// ParseActivityType parses a wire name. Unknown names return an error.
func ParseActivityType(s string) (ActivityType, error) {
	switch s {
	case "bug_fix":
		return BugFix, nil
	case "feature_add":
		return FeatureAdd, nil
	case "code_change":
		return CodeChange, nil
	case "refactor":
		return Refactor, nil
	case "solution_design":
		return SolutionDesign, nil
	case "test":
		return Test, nil
	case "documentation":
		return Documentation, nil
	}
	return Unknown, fmt.Errorf("unknown activity type: %q", s)
}

// ParseActivityTypes parses a list of wire names, failing on the first
// unknown entry.
func ParseActivityTypes(names []string) ([]ActivityType, error) {
	out := make([]ActivityType, 0, len(names))
	for _, n := range names {
		t, err := ParseActivityType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (t ActivityType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ActivityType) UnmarshalText(b []byte) error {
	parsed, err := ParseActivityType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON encodes the type as its wire name.
func (t ActivityType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a wire name.
func (t *ActivityType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}
