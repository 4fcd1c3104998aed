package classify

import (
	"regexp"
	"strings"
)

var (
	fileRe = regexp.MustCompile(`[A-Za-z0-9_./\-]*[A-Za-z0-9_]\.(?:go|ts|tsx|js|jsx|mjs|py|rs|java|kt|rb|php|c|cc|cpp|h|hpp|cs|swift|scala|vue|svelte|md|json|ya?ml|toml|sql|sh|proto|html|css)\b`)
	funcRe = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?)\s*\(`)

	// Declared types and CamelCase identifiers.
	classDeclRe = regexp.MustCompile(`\b(?:class|struct|interface|type|enum|trait)\s+([A-Z][A-Za-z0-9_]*)`)
	camelRe     = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+\b`)
)

var callStopwords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"func": true, "function": true, "def": true, "catch": true, "select": true,
}

func (c *Classifier) extractElements(text string, keywords []string) KeyElements {
	files := collect(fileRe.FindAllString(text, -1), c.maxElements)

	var funcs []string
	for _, m := range funcRe.FindAllStringSubmatch(text, -1) {
		if !callStopwords[strings.ToLower(m[1])] {
			funcs = append(funcs, m[1])
		}
	}

	var classes []string
	for _, m := range classDeclRe.FindAllStringSubmatch(text, -1) {
		classes = append(classes, m[1])
	}
	classes = append(classes, camelRe.FindAllString(text, -1)...)

	return KeyElements{
		Files:     files,
		Functions: collect(funcs, c.maxElements),
		Classes:   collect(classes, c.maxElements),
		Keywords:  collect(keywords, c.maxElements),
	}
}

// collect dedupes in first-seen order and caps the result at limit.
func collect(in []string, limit int) []string {
	out := make([]string, 0, min(len(in), limit))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if len(out) == limit {
			break
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
