// Package classify assigns an activity type to free-text development
// activity using keyword and pattern tables.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/record"
)

// KeyElements are the salient tokens found in the text.
type KeyElements struct {
	Files     []string `json:"files"`
	Functions []string `json:"functions"`
	Classes   []string `json:"classes"`
	Keywords  []string `json:"keywords"`
}

// FamilyScore is the raw score one family reached.
type FamilyScore struct {
	Type         record.ActivityType `json:"type"`
	Score        int                 `json:"score"`
	KeywordHits  int                 `json:"keyword_hits"`
	PatternHits  int                 `json:"pattern_hits"`
	HistoryBoost int                 `json:"history_boost"`
}

// Classification is the result of Classify.
type Classification struct {
	Type        record.ActivityType `json:"type"`
	Confidence  int                 `json:"confidence"`
	KeyElements KeyElements         `json:"key_elements"`
	Reasoning   string              `json:"reasoning"`
	Scores      []FamilyScore       `json:"scores"`
}

type family struct {
	typ       record.ActivityType
	keywords  []string
	patterns  []*regexp.Regexp
	baseBoost int
}

// Classifier scores text against a fixed rule set. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	families      []family
	historyWindow int
	historyWeight int
	maxElements   int
}

// New compiles rules into a Classifier. Families are evaluated in
// record.ActivityTypes order regardless of their order in rules.
func New(rules Rules) (*Classifier, error) {
	c := &Classifier{
		historyWindow: rules.HistoryWindow,
		historyWeight: rules.HistoryWeight,
		maxElements:   rules.MaxElements,
	}
	if c.historyWindow <= 0 {
		c.historyWindow = DefaultHistoryWindow
	}
	if c.historyWeight < 0 {
		c.historyWeight = 0
	}
	if c.maxElements <= 0 {
		c.maxElements = DefaultMaxElements
	}

	byType := make(map[record.ActivityType]FamilyRules, len(rules.Families))
	for _, f := range rules.Families {
		byType[f.Type] = f
	}

	for _, t := range record.ActivityTypes {
		fr, ok := byType[t]
		if !ok {
			continue
		}
		f := family{typ: t, baseBoost: fr.BaseBoost}
		for _, kw := range fr.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				f.keywords = append(f.keywords, kw)
			}
		}
		for _, p := range fr.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("compiling %s pattern %q: %w", t, p, err)
			}
			f.patterns = append(f.patterns, re)
		}
		c.families = append(c.families, f)
	}

	return c, nil
}

// Default returns a Classifier over DefaultRules.
func Default() *Classifier {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify scores text for every family, adds the history adjustment and
// picks the highest score. A family's base boost counts only when at least
// one of its keywords or patterns hit, so history alone never carries it. Ties go to the earlier family. When nothing
// scores the result is code_change with zero confidence.
func (c *Classifier) Classify(text string, history []record.ActivityType) Classification {
	lower := strings.ToLower(text)

	if len(history) > c.historyWindow {
		history = history[len(history)-c.historyWindow:]
	}
	recent := make(map[record.ActivityType]int, len(history))
	for _, t := range history {
		recent[t]++
	}

	scores := make([]FamilyScore, 0, len(c.families))
	matched := make([][]string, 0, len(c.families))
	best := -1

	for _, f := range c.families {
		fs := FamilyScore{Type: f.typ}
		var hits []string
		for _, kw := range f.keywords {
			if strings.Contains(lower, kw) {
				fs.KeywordHits++
				hits = append(hits, kw)
			}
		}
		for _, re := range f.patterns {
			if re.MatchString(text) {
				fs.PatternHits++
			}
		}

		fs.Score = 10*fs.KeywordHits + 15*fs.PatternHits
		if fs.KeywordHits+fs.PatternHits > 0 {
			fs.Score += f.baseBoost
		}
		fs.HistoryBoost = c.historyWeight * recent[f.typ]
		fs.Score += fs.HistoryBoost

		scores = append(scores, fs)
		matched = append(matched, hits)
		if best < 0 || fs.Score > scores[best].Score {
			best = len(scores) - 1
		}
	}

	out := Classification{
		Type:   record.CodeChange,
		Scores: scores,
	}

	var keywords []string
	if best >= 0 && scores[best].Score > 0 {
		win := scores[best]
		out.Type = win.Type
		out.Confidence = clamp(win.Score, 0, 100)
		keywords = append(keywords, matched[best]...)
		out.Reasoning = reasoning(win, matched[best])
	} else {
		out.Reasoning = "no keyword, pattern or history signal matched; defaulting to code_change"
	}
	for i, hits := range matched {
		if i != best {
			keywords = append(keywords, hits...)
		}
	}

	out.KeyElements = c.extractElements(text, keywords)
	return out
}

func reasoning(win FamilyScore, hits []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s scored %d", win.Type, win.Score)
	if win.KeywordHits > 0 {
		fmt.Fprintf(&b, "; keywords: %s", strings.Join(hits, ", "))
	}
	if win.PatternHits > 0 {
		fmt.Fprintf(&b, "; %d pattern match(es)", win.PatternHits)
	}
	if win.HistoryBoost > 0 {
		fmt.Fprintf(&b, "; +%d from recent %s activity", win.HistoryBoost, win.Type)
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
