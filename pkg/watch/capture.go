package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

// Source is the activity source reported for watched changes.
const Source = "watch"

// Enqueuer accepts capture jobs. *worker.Pool satisfies it.
type Enqueuer interface {
	Enqueue(job worker.Job) bool
}

// CaptureHandler returns an OnChange handler that summarizes each settled
// change from its diff ranges and enqueues it for capture. Changes without
// a diff are skipped. ranges may be nil, in which case every change is
// enqueued with a summary naming the file only.
func CaptureHandler(root string, ranges *diffrange.Extractor, q Enqueuer, log *slog.Logger) func(context.Context, Change) {
	log = logger.OrNop(log)
	return func(ctx context.Context, c Change) {
		var res diffrange.Result
		if ranges != nil && c.Op != OpRemove {
			res = ranges.Extract(ctx, c.Path)
			if res.ChangeType == diffrange.ChangeNone {
				log.Debug("skipping change without diff", "path", c.Rel)
				return
			}
		}

		job := worker.Job{Activity: memory.Activity{
			Content:  Summarize(c, res),
			Dir:      root,
			FilePath: c.Rel,
			Source:   Source,
		}}
		if !q.Enqueue(job) {
			log.Warn("dropped watched change", "path", c.Rel)
		}
	}
}

// Summarize describes a change in one line, e.g.
// "Modified src/auth.ts: lines 10-12, 20 (4 lines changed)".
func Summarize(c Change, res diffrange.Result) string {
	var verb string
	switch {
	case c.Op == OpRemove || res.ChangeType == diffrange.ChangeDeleted:
		verb = "Deleted"
	case c.Op == OpCreate || res.ChangeType == diffrange.ChangeAdded:
		verb = "Created"
	default:
		verb = "Modified"
	}

	var b strings.Builder
	b.WriteString(verb)
	b.WriteByte(' ')
	b.WriteString(c.Rel)
	if len(res.Ranges) > 0 {
		b.WriteString(": lines ")
		b.WriteString(FormatRanges(res.Ranges))
	}
	if res.TotalChangedLines > 0 {
		fmt.Fprintf(&b, " (%d lines changed)", res.TotalChangedLines)
	}
	return b.String()
}

// FormatRanges renders ranges as "10-12, 20".
func FormatRanges(ranges []record.LineRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		if r.Start == r.End {
			parts[i] = strconv.Itoa(r.Start)
		} else {
			parts[i] = strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
		}
	}
	return strings.Join(parts, ", ")
}
