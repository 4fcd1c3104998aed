// Package quality derives the five-dimension quality vector of a record
// from its content, metadata and usage counters.
package quality

import (
	"math"
	"time"

	"github.com/papercomputeco/mnemo/pkg/record"
)

const (
	DefaultAccuracy = 0.6
	unusedRelevance = 0.5
)

// Score computes the quality metrics of r given its usage counters at now.
// Every value is clamped to [0,1].
func Score(r *record.Record, usage record.Usage, now time.Time) record.QualityMetrics {
	m := record.QualityMetrics{
		Relevance:    Relevance(usage.References, usage.Searches),
		Freshness:    Freshness(lastTouched(r, usage), now),
		Completeness: Completeness(r),
		Accuracy:     Accuracy(r),
		References:   usage.References,
		Searches:     usage.Searches,
	}
	m.Usefulness = clamp(0.4*m.Relevance + 0.3*m.Freshness + 0.3*m.Accuracy)
	m.Overall = clamp(0.30*m.Relevance +
		0.25*m.Freshness +
		0.20*m.Accuracy +
		0.15*m.Usefulness +
		0.10*m.Completeness)
	return m
}

// Apply scores r from the usage held in its metadata and stores the result
// on the record.
func Apply(r *record.Record, now time.Time) record.QualityMetrics {
	var usage record.Usage
	if r.Metadata.Usage != nil {
		usage = *r.Metadata.Usage
	}
	m := Score(r, usage, now)
	r.Metadata.Quality = &m
	r.QualityScore = m.Overall
	return m
}

func lastTouched(r *record.Record, usage record.Usage) time.Time {
	if usage.LastAccessedAt != nil {
		return *usage.LastAccessedAt
	}
	return r.CreatedAt
}

// Freshness is a step function of the days, fractional, since the record was
// last touched. Each step includes its upper bound, so 7.5 days is past the
// first step.
func Freshness(last, now time.Time) float64 {
	days := now.Sub(last).Hours() / 24
	switch {
	case days <= 7:
		return 1.0
	case days <= 30:
		return 0.8
	case days <= 90:
		return 0.5
	case days <= 180:
		return 0.3
	}
	return 0.1
}

// Relevance grows logarithmically with use. References count twice.
func Relevance(references, searches int) float64 {
	uses := 2*max(references, 0) + max(searches, 0)
	if uses == 0 {
		return unusedRelevance
	}
	return clamp(math.Min(unusedRelevance+0.5*math.Log(1+float64(uses))/math.Log(100), 1.0))
}

// Completeness rewards longer content and filled-in optional fields.
func Completeness(r *record.Record) float64 {
	c := 0.5
	n := len([]rune(r.Content))
	for _, threshold := range []int{100, 300, 1000} {
		if n >= threshold {
			c += 0.1
		}
	}
	if r.FilePath != "" {
		c += 0.1
	}
	if len(r.LineRanges) > 0 {
		c += 0.05
	}
	if len(r.Tags) > 0 {
		c += 0.05
	}
	if r.Language != "" {
		c += 0.05
	}
	return clamp(c)
}

// Accuracy is the user rating when present, else the existing quality
// score, else DefaultAccuracy.
func Accuracy(r *record.Record) float64 {
	if r.Metadata.UserRating != nil {
		return clamp(*r.Metadata.UserRating)
	}
	if r.QualityScore > 0 {
		return clamp(r.QualityScore)
	}
	return DefaultAccuracy
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(v, 1))
}
