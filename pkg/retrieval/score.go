package retrieval

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/record"
)

const (
	fileMatchScore    = 5.0
	projectMatchScore = 3.0
	tagMatchScore     = 2.0
	recencyWindowDays = 10.0

	// MetadataScale is the metadata score that maps to a full structural
	// contribution in Combine.
	MetadataScale = 20.0
)

// Combine fuses a vector similarity and a metadata score with the default
// hybrid weight.
func Combine(vectorScore, metadataScore float64) float64 {
	return CombineWeighted(vectorScore, metadataScore, DefaultHybridWeight)
}

// CombineWeighted fuses a vector similarity and a metadata score:
// vector*w + min(metadata/20, 1)*(1-w).
func CombineWeighted(vectorScore, metadataScore, w float64) float64 {
	structural := math.Max(0, math.Min(metadataScore/MetadataScale, 1))
	return vectorScore*w + structural*(1-w)
}

// Cosine returns the cosine similarity of a and b, or 0 when they differ in
// length or either is a zero vector.
func Cosine(a, b []float32) float64 {
	return sampledCosine(a, b, 1)
}

// ApproxCosine estimates the cosine similarity from every stride-th
// dimension.
func ApproxCosine(a, b []float32, stride int) float64 {
	return sampledCosine(a, b, max(stride, 1))
}

func sampledCosine(a, b []float32, stride int) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i += stride {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MetadataScore scores the structural fit of rec against the search filters
// plus a recency bonus that fades over ten days.
func MetadataScore(rec *record.Record, p Params, now time.Time) float64 {
	score := 0.0

	if fileMatches(rec.FilePath, p.FilePath) {
		score += fileMatchScore
	}
	if p.ProjectID != "" && rec.ProjectID == p.ProjectID {
		score += projectMatchScore
	}
	for _, want := range p.Tags {
		if tagMatches(rec.Tags, want) {
			score += tagMatchScore
		}
	}

	days := now.Sub(rec.CreatedAt).Hours() / 24
	score += math.Max(0, recencyWindowDays-math.Max(days, 0))
	return score
}

func fileMatches(have, want string) bool {
	if have == "" || want == "" {
		return false
	}
	have, want = filepath.ToSlash(have), filepath.ToSlash(want)
	return have == want ||
		filepath.Base(have) == filepath.Base(want) ||
		strings.Contains(have, want) ||
		strings.Contains(want, have)
}

func tagMatches(tags []string, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return false
	}
	for _, t := range tags {
		t = strings.ToLower(t)
		if t == "" {
			continue
		}
		if strings.Contains(t, want) || strings.Contains(want, t) {
			return true
		}
	}
	return false
}
