package record

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// LineRange is an inclusive, 1-based span of changed lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of lines covered by the range.
func (r LineRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Record is one captured unit of development memory. Content is immutable
// after creation; Metadata and QualityScore are updated by usage.
type Record struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	ProjectID    string       `json:"project_id"`
	Type         ActivityType `json:"type"`
	Content      string       `json:"content"`
	FilePath     string       `json:"file_path,omitempty"`
	LineRanges   []LineRange  `json:"line_ranges,omitempty"`
	Language     string       `json:"language,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	QualityScore float64      `json:"quality_score"`
	Metadata     Metadata     `json:"metadata"`
	CreatedAt    time.Time    `json:"created_at"`

	// Embedding is optional. When set, EmbeddingVersion names the model that
	// produced it and len(Embedding) matches that model's configured width.
	Embedding        []float32 `json:"embedding,omitempty"`
	EmbeddingVersion string    `json:"embedding_version,omitempty"`
}

// ValidateEmbedding checks the embedding width against the width configured
// for the record's embedding version.
func (r *Record) ValidateEmbedding(widths map[string]int) error {
	if len(r.Embedding) == 0 {
		return nil
	}
	if r.EmbeddingVersion == "" {
		return fmt.Errorf("record %s: embedding without version", r.ID)
	}
	want, ok := widths[r.EmbeddingVersion]
	if !ok {
		return nil
	}
	if len(r.Embedding) != want {
		return fmt.Errorf("record %s: embedding has %d dimensions, version %q expects %d",
			r.ID, len(r.Embedding), r.EmbeddingVersion, want)
	}
	return nil
}

// MetadataVersion is the current metadata envelope version.
const MetadataVersion = 1

// Metadata is the versioned envelope for structured record metadata. Every
// field past Version is optional.
type Metadata struct {
	Version int `json:"version"`

	Quality *QualityMetrics `json:"quality,omitempty"`
	Usage   *Usage          `json:"usage,omitempty"`

	// Enrichment fields set at capture time.
	Source          string   `json:"source,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	ValueScore      *int     `json:"value_score,omitempty"`
	ChangeType      string   `json:"change_type,omitempty"`
	ChangedLines    *int     `json:"changed_lines,omitempty"`
	Functions       []string `json:"functions,omitempty"`
	Classes         []string `json:"classes,omitempty"`
	UserRating      *float64 `json:"user_rating,omitempty"`
	ConfirmedByUser bool     `json:"confirmed_by_user,omitempty"`
}

// NewMetadata returns an empty envelope at the current version.
func NewMetadata() Metadata {
	return Metadata{Version: MetadataVersion}
}

// EncodeMetadata serializes the envelope, stamping the current version when
// unset.
func EncodeMetadata(m Metadata) ([]byte, error) {
	if m.Version == 0 {
		m.Version = MetadataVersion
	}
	return json.Marshal(m)
}

// DecodeMetadata parses an envelope. Empty input yields an empty envelope;
// versions newer than MetadataVersion are rejected.
func DecodeMetadata(b []byte) (Metadata, error) {
	if len(b) == 0 {
		return NewMetadata(), nil
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return Metadata{}, fmt.Errorf("decoding metadata: %w", err)
	}
	if m.Version > MetadataVersion {
		return Metadata{}, fmt.Errorf("unsupported metadata version %d (max %d)", m.Version, MetadataVersion)
	}
	if m.Version == 0 {
		m.Version = MetadataVersion
	}
	return m, nil
}

// Usage holds the usage counters that feed quality scoring.
type Usage struct {
	References     int        `json:"references"`
	Searches       int        `json:"searches"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// QualityMetrics is the five-dimension quality vector of a record. All
// values are in [0,1].
type QualityMetrics struct {
	Relevance    float64 `json:"relevance"`
	Freshness    float64 `json:"freshness"`
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Usefulness   float64 `json:"usefulness"`
	Overall      float64 `json:"overall"`

	References int `json:"references"`
	Searches   int `json:"searches"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.LineRanges = slices.Clone(r.LineRanges)
	c.Tags = slices.Clone(r.Tags)
	c.Embedding = slices.Clone(r.Embedding)
	c.Metadata = r.Metadata.Clone()
	return &c
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	c := m
	if m.Quality != nil {
		q := *m.Quality
		c.Quality = &q
	}
	if m.Usage != nil {
		u := *m.Usage
		if m.Usage.LastAccessedAt != nil {
			t := *m.Usage.LastAccessedAt
			u.LastAccessedAt = &t
		}
		c.Usage = &u
	}
	if m.Confidence != nil {
		v := *m.Confidence
		c.Confidence = &v
	}
	if m.ValueScore != nil {
		v := *m.ValueScore
		c.ValueScore = &v
	}
	if m.ChangedLines != nil {
		v := *m.ChangedLines
		c.ChangedLines = &v
	}
	if m.UserRating != nil {
		v := *m.UserRating
		c.UserRating = &v
	}
	c.Functions = slices.Clone(m.Functions)
	c.Classes = slices.Clone(m.Classes)
	return c
}
