package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/papercomputeco/mnemo/pkg/record"
)

const (
	DefaultHistoryWindow = 5
	DefaultHistoryWeight = 5
	DefaultMaxElements   = 5
)

// FamilyRules holds the signals for one activity family.
type FamilyRules struct {
	Type      record.ActivityType `yaml:"type"`
	Keywords  []string            `yaml:"keywords"`
	Patterns  []string            `yaml:"patterns"`
	BaseBoost int                 `yaml:"base_boost"`
}

// Rules is the immutable table set a Classifier is built from.
type Rules struct {
	Families []FamilyRules `yaml:"families"`

	// HistoryWindow is how many trailing history entries are considered.
	HistoryWindow int `yaml:"history_window"`

	// HistoryWeight is added to a family per same-type history entry.
	HistoryWeight int `yaml:"history_weight"`

	// MaxElements caps each key element list.
	MaxElements int `yaml:"max_elements"`
}

// DefaultRules returns the built-in keyword and pattern tables. Keywords are
// English and Chinese.
func DefaultRules() Rules {
	return Rules{
		HistoryWindow: DefaultHistoryWindow,
		HistoryWeight: DefaultHistoryWeight,
		MaxElements:   DefaultMaxElements,
		Families: []FamilyRules{
			{
				Type: record.BugFix,
				Keywords: []string{
					"fix", "bug", "error", "issue", "crash", "broken", "patch", "resolve", "hotfix", "regression",
					"修复", "错误", "问题", "崩溃", "异常",
				},
				Patterns: []string{
					`(?i)\bfix(ed|es|ing)?\b`,
					`(?i)\bbugs?\b`,
					`(?i)\b(exception|panic|stack ?trace|segfault|nil pointer|null pointer)\b`,
					`(?i)\b(does not|doesn't|didn't|fails?|failing) work`,
				},
				BaseBoost: 10,
			},
			{
				Type: record.FeatureAdd,
				Keywords: []string{
					"add", "implement", "new feature", "introduce", "create", "support for", "enable",
					"新增", "添加", "实现", "功能",
				},
				Patterns: []string{
					`(?i)\b(add(ed|s|ing)?|implement(ed|s|ing)?)\b`,
					`(?i)\bnew (feature|endpoint|command|option|api)\b`,
				},
				BaseBoost: 5,
			},
			{
				Type: record.CodeChange,
				Keywords: []string{
					"change", "update", "modify", "edit", "tweak", "adjust", "bump",
					"修改", "更新", "调整",
				},
				Patterns: []string{
					`(?i)\b(chang|updat|modifi|adjust)(e|ed|es|ing)\b`,
				},
				BaseBoost: 0,
			},
			{
				Type: record.Refactor,
				Keywords: []string{
					"refactor", "rename", "cleanup", "clean up", "extract", "simplify", "restructure", "reorganize", "dedupe",
					"重构", "优化", "整理",
				},
				Patterns: []string{
					`(?i)\brefactor(ed|s|ing)?\b`,
					`(?i)\b(move[sd]?|split|extract(ed)?) .* (into|to|from) `,
				},
				BaseBoost: 5,
			},
			{
				Type: record.SolutionDesign,
				Keywords: []string{
					"design", "architecture", "approach", "strategy", "trade-off", "tradeoff", "proposal", "decided", "decision",
					"方案", "设计", "架构", "决策",
				},
				Patterns: []string{
					`(?i)\b(we|i) (decided|chose|will use)\b`,
					`(?i)\b(instead of|rather than|pros and cons)\b`,
				},
				BaseBoost: 5,
			},
			{
				Type: record.Test,
				Keywords: []string{
					"test", "spec", "assert", "mock", "coverage", "fixture", "e2e",
					"测试", "单元测试", "覆盖率",
				},
				Patterns: []string{
					`(?i)\b(unit|integration|e2e|regression) tests?\b`,
					`(?i)_test\.go\b|\.(test|spec)\.[jt]sx?\b`,
				},
				BaseBoost: 5,
			},
			{
				Type: record.Documentation,
				Keywords: []string{
					"doc", "readme", "comment", "changelog", "guide", "tutorial",
					"文档", "注释", "说明",
				},
				Patterns: []string{
					`(?i)\breadme\b`,
					`(?i)\bdocs?\b|\bdocumentation\b`,
					`(?i)\.(md|rst|adoc)\b`,
				},
				BaseBoost: 5,
			},
		},
	}
}

// LoadRules reads a YAML override file on top of DefaultRules. Families in
// the file replace the default family of the same type; other fields
// replace the defaults when set.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("reading classifier rules: %w", err)
	}

	var file Rules
	if err := yaml.Unmarshal(data, &file); err != nil {
		return rules, fmt.Errorf("parsing classifier rules %s: %w", path, err)
	}

	if file.HistoryWindow > 0 {
		rules.HistoryWindow = file.HistoryWindow
	}
	if file.HistoryWeight > 0 {
		rules.HistoryWeight = file.HistoryWeight
	}
	if file.MaxElements > 0 {
		rules.MaxElements = file.MaxElements
	}

	for _, override := range file.Families {
		if override.Type == record.Unknown {
			return rules, fmt.Errorf("classifier rules %s: family without a valid type", path)
		}
		for i := range rules.Families {
			if rules.Families[i].Type == override.Type {
				rules.Families[i] = override
			}
		}
	}

	return rules, nil
}
