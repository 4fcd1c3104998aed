// Package value scores how worth keeping a piece of activity is.
package value

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/record"
)

const (
	SignificanceWeight = 0.30
	ComplexityWeight   = 0.25
	ImportanceWeight   = 0.25
	ReusabilityWeight  = 0.20
)

// Score is the value assessment of one activity. Every dimension is in
// [0,100].
type Score struct {
	CodeSignificance   int      `json:"code_significance"`
	ProblemComplexity  int      `json:"problem_complexity"`
	SolutionImportance int      `json:"solution_importance"`
	Reusability        int      `json:"reusability"`
	TotalScore         int      `json:"total_score"`
	Breakdown          []string `json:"breakdown"`
}

var (
	fileRefRe    = regexp.MustCompile(`[A-Za-z0-9_]\.(?:go|ts|tsx|js|jsx|py|rs|java|kt|rb|php|c|cc|cpp|h|hpp|cs|swift|sql|proto)\b`)
	codeMarkerRe = regexp.MustCompile("```|\\bfunc |\\bdef |\\bclass |=>|\\w+\\(\\)|\\{\\s*$|;\\s*$")
)

var complexityKeywords = []string{
	"concurren", "race", "deadlock", "performance", "memory leak", "timeout", "async",
	"distributed", "migration", "security", "transaction", "cache", "algorithm", "edge case",
	"并发", "性能", "死锁", "内存泄漏", "安全",
}

var reuseKeywords = []string{
	"pattern", "reusable", "generic", "utility", "helper", "library", "best practice",
	"template", "abstraction", "shared", "common",
	"通用", "复用", "模式", "工具",
}

var resolutionKeywords = []string{
	"fix", "solve", "resolve", "workaround", "root cause",
	"修复", "解决",
}

// Evaluate scores text for the given activity type. It is pure and total.
func Evaluate(text string, t record.ActivityType) Score {
	lower := strings.ToLower(text)
	var s Score

	sig := 30
	s.Breakdown = append(s.Breakdown, "significance: base 30")
	if fileRefRe.MatchString(text) {
		sig += 20
		s.Breakdown = append(s.Breakdown, "significance: +20 file reference")
	}
	if codeMarkerRe.MatchString(text) {
		sig += 15
		s.Breakdown = append(s.Breakdown, "significance: +15 code content")
	}
	if len(text) > 200 {
		sig += 10
		s.Breakdown = append(s.Breakdown, "significance: +10 length over 200")
	}
	if len(text) > 500 {
		sig += 10
		s.Breakdown = append(s.Breakdown, "significance: +10 length over 500")
	}
	if b := significanceBonus(t); b > 0 {
		sig += b
		s.Breakdown = append(s.Breakdown, fmt.Sprintf("significance: +%d %s", b, t))
	}
	s.CodeSignificance = clamp(sig)

	complexity := 30
	s.Breakdown = append(s.Breakdown, "complexity: base 30")
	if n := countHits(lower, complexityKeywords); n > 0 {
		add := min(10*n, 40)
		complexity += add
		s.Breakdown = append(s.Breakdown, fmt.Sprintf("complexity: +%d from %d keyword(s)", add, n))
	}
	if b := complexityBonus(t); b > 0 {
		complexity += b
		s.Breakdown = append(s.Breakdown, fmt.Sprintf("complexity: +%d %s", b, t))
	}
	s.ProblemComplexity = clamp(complexity)

	importance := importanceBase(t)
	s.Breakdown = append(s.Breakdown, fmt.Sprintf("importance: base %d for %s", importance, t))
	if countHits(lower, resolutionKeywords) > 0 {
		importance += 10
		s.Breakdown = append(s.Breakdown, "importance: +10 resolves a problem")
	}
	s.SolutionImportance = clamp(importance)

	reuse := 30
	s.Breakdown = append(s.Breakdown, "reusability: base 30")
	if n := countHits(lower, reuseKeywords); n > 0 {
		add := min(10*n, 40)
		reuse += add
		s.Breakdown = append(s.Breakdown, fmt.Sprintf("reusability: +%d from %d keyword(s)", add, n))
	}
	if b := reuseBonus(t); b > 0 {
		reuse += b
		s.Breakdown = append(s.Breakdown, fmt.Sprintf("reusability: +%d %s", b, t))
	}
	s.Reusability = clamp(reuse)

	s.TotalScore = Total(s.CodeSignificance, s.ProblemComplexity, s.SolutionImportance, s.Reusability)
	return s
}

// Total is the weighted, rounded sum of the four dimensions.
func Total(significance, complexity, importance, reusability int) int {
	return int(math.Round(
		SignificanceWeight*float64(significance) +
			ComplexityWeight*float64(complexity) +
			ImportanceWeight*float64(importance) +
			ReusabilityWeight*float64(reusability),
	))
}

func significanceBonus(t record.ActivityType) int {
	switch t {
	case record.BugFix, record.FeatureAdd:
		return 20
	case record.CodeChange, record.Refactor:
		return 15
	case record.SolutionDesign, record.Test:
		return 10
	case record.Documentation, record.Unknown:
		return 0
	}
	return 0
}

func complexityBonus(t record.ActivityType) int {
	switch t {
	case record.SolutionDesign:
		return 25
	case record.BugFix:
		return 20
	case record.Refactor, record.FeatureAdd:
		return 15
	case record.CodeChange, record.Test:
		return 5
	case record.Documentation, record.Unknown:
		return 0
	}
	return 0
}

func importanceBase(t record.ActivityType) int {
	switch t {
	case record.BugFix:
		return 80
	case record.SolutionDesign:
		return 75
	case record.FeatureAdd:
		return 70
	case record.Refactor:
		return 60
	case record.CodeChange, record.Test:
		return 50
	case record.Documentation:
		return 40
	case record.Unknown:
		return 30
	}
	return 30
}

func reuseBonus(t record.ActivityType) int {
	switch t {
	case record.SolutionDesign:
		return 30
	case record.Refactor, record.Documentation:
		return 20
	case record.Test, record.BugFix:
		return 10
	case record.FeatureAdd, record.CodeChange, record.Unknown:
		return 0
	}
	return 0
}

func countHits(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func clamp(v int) int {
	return max(0, min(v, 100))
}
