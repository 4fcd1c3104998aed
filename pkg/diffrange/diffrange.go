// Package diffrange extracts the line ranges a change touched in a file.
package diffrange

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/papercomputeco/mnemo/pkg/git"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/record"
)

// ChangeType describes how a file changed.
type ChangeType string

const (
	ChangeNone     ChangeType = "none"
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// Provider is the version control collaborator consulted for status and
// diffs. *git.Client satisfies it.
type Provider interface {
	IsRepo(ctx context.Context, path string) bool
	Status(ctx context.Context, path string) (git.Status, error)
	Diff(ctx context.Context, path string) (string, error)
}

// Result is the outcome of an extraction.
type Result struct {
	Ranges            []record.LineRange `json:"ranges"`
	ChangeType        ChangeType         `json:"change_type"`
	TotalChangedLines int                `json:"total_changed_lines"`
}

func empty() Result {
	return Result{Ranges: []record.LineRange{}, ChangeType: ChangeNone}
}

// Config configures an Extractor.
type Config struct {
	Provider Provider
	Logger   *slog.Logger
}

// Extractor turns working tree changes into merged line ranges.
type Extractor struct {
	provider Provider
	logger   *slog.Logger
}

// New creates an Extractor.
func New(c Config) (*Extractor, error) {
	if c.Provider == nil {
		return nil, errors.New("diff provider is required")
	}
	return &Extractor{
		provider: c.Provider,
		logger:   logger.OrNop(c.Logger),
	}, nil
}

// Extract reports the ranges changed in path. Relative paths are taken from
// the working directory. Untracked files count as fully added. Provider
// failures are logged and produce an empty result.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	if path == "" {
		return empty()
	}
	path = realPath(path)
	if !e.provider.IsRepo(ctx, path) {
		return empty()
	}

	status, err := e.provider.Status(ctx, path)
	if err != nil {
		e.logger.Warn("diff provider status failed", "path", path, "error", err)
		return empty()
	}

	if status.IsUntracked(path) {
		return e.newFile(path)
	}

	out, err := e.provider.Diff(ctx, path)
	if err != nil {
		e.logger.Warn("diff provider diff failed", "path", path, "error", err)
		return empty()
	}

	res, err := Parse(out)
	if err != nil {
		e.logger.Warn("could not parse diff", "path", path, "error", err)
		return empty()
	}
	return res
}

// realPath makes path absolute and resolves symlinks so it compares equal to
// the paths git reports under its real top-level directory. A missing file
// still gets its parent resolved.
func realPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}
	return abs
}

func (e *Extractor) newFile(path string) Result {
	content, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("could not read untracked file", "path", path, "error", err)
		return empty()
	}

	n := countLines(content)
	if n == 0 {
		return Result{Ranges: []record.LineRange{}, ChangeType: ChangeAdded}
	}
	return Result{
		Ranges:            []record.LineRange{{Start: 1, End: n}},
		ChangeType:        ChangeAdded,
		TotalChangedLines: n,
	}
}

func countLines(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := bytes.Count(b, []byte("\n"))
	if b[len(b)-1] != '\n' {
		n++
	}
	return n
}

// Parse extracts merged added-line ranges from unified diff text. Empty
// input yields an empty result.
func Parse(diffText string) (Result, error) {
	if strings.TrimSpace(diffText) == "" {
		return empty(), nil
	}

	var hunks []*godiff.Hunk
	if strings.HasPrefix(diffText, "@@") {
		parsed, err := godiff.ParseHunks([]byte(diffText))
		if err != nil {
			return empty(), err
		}
		hunks = parsed
	} else {
		files, err := godiff.ParseMultiFileDiff([]byte(diffText))
		if err != nil {
			return empty(), err
		}
		for _, fd := range files {
			hunks = append(hunks, fd.Hunks...)
		}
	}

	var (
		ranges  []record.LineRange
		added   int
		removed int
	)
	for _, h := range hunks {
		r, a, d := scanHunk(h)
		ranges = append(ranges, r...)
		added += a
		removed += d
	}

	res := Result{
		Ranges:            MergeRanges(ranges),
		TotalChangedLines: added + removed,
	}
	switch {
	case added == 0 && removed == 0:
		res.ChangeType = ChangeNone
	case added == 0:
		res.ChangeType = ChangeDeleted
	default:
		res.ChangeType = ChangeModified
	}
	return res, nil
}

// scanHunk walks one hunk body with a running new-file line counter.
// Additions open or extend a block, removals leave the counter alone and
// context lines close the open block.
func scanHunk(h *godiff.Hunk) (ranges []record.LineRange, added, removed int) {
	counter := int(h.NewStartLine)
	blockStart := 0

	flush := func() {
		if blockStart > 0 {
			ranges = append(ranges, record.LineRange{Start: blockStart, End: counter - 1})
			blockStart = 0
		}
	}

	body := strings.TrimSuffix(string(h.Body), "\n")
	if body == "" {
		return nil, 0, 0
	}
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			if blockStart == 0 {
				blockStart = counter
			}
			added++
			counter++
		case strings.HasPrefix(line, "-"):
			removed++
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file"
		default:
			flush()
			counter++
		}
	}
	flush()
	return ranges, added, removed
}

// MergeRanges sorts ranges by start and merges those that overlap or sit
// within one line of each other.
func MergeRanges(in []record.LineRange) []record.LineRange {
	out := make([]record.LineRange, 0, len(in))
	if len(in) == 0 {
		return out
	}

	sorted := make([]record.LineRange, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	cur := sorted[0]
	for _, r := range sorted[1:] {
		if r.Start-cur.End <= 1 {
			if r.End > cur.End {
				cur.End = r.End
			}
			continue
		}
		out = append(out, cur)
		cur = r
	}
	return append(out, cur)
}
