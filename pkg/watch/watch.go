// Package watch turns file-system changes under a project root into
// debounced change notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/papercomputeco/mnemo/pkg/logger"
)

// DefaultDebounce is how long a path must stay quiet before its change is
// reported.
const DefaultDebounce = 2 * time.Second

// DefaultIgnore lists the patterns skipped when Config.Ignore is empty.
var DefaultIgnore = []string{
	".git/**",
	"node_modules/**",
	"vendor/**",
	".mnemo/**",
}

// Op is the kind of change reported for a path.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
)

// Change is a settled change to one file.
type Change struct {
	// Path is absolute.
	Path string
	// Rel is Path relative to the watch root, with forward slashes.
	Rel string
	Op  Op
	At  time.Time
}

// Config configures a Watcher.
type Config struct {
	Root     string
	Ignore   []string
	Debounce time.Duration

	// OnChange is called once per settled change, from a timer goroutine.
	OnChange func(context.Context, Change)

	Logger *slog.Logger
}

// Watcher watches a directory tree recursively.
type Watcher struct {
	root     string
	ignore   []glob.Glob
	debounce time.Duration
	onChange func(context.Context, Change)
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingChange
}

type pendingChange struct {
	op    Op
	timer *time.Timer
}

// New creates a Watcher. Ignore patterns use '/' as the separator, so '*'
// stays within one path segment and '**' crosses segments.
func New(c Config) (*Watcher, error) {
	if c.OnChange == nil {
		return nil, errors.New("change handler is required")
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	patterns := c.Ignore
	if len(patterns) == 0 {
		patterns = DefaultIgnore
	}
	w := &Watcher{
		root:     root,
		debounce: c.Debounce,
		onChange: c.OnChange,
		logger:   logger.OrNop(c.Logger),
		pending:  make(map[string]*pendingChange),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern '%s': %w", p, err)
		}
		w.ignore = append(w.ignore, g)
	}
	return w, nil
}

// Ignored reports whether rel, relative to the root, matches an ignore
// pattern. Directories match patterns that cover their contents.
func (w *Watcher) Ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range w.ignore {
		if g.Match(rel) || g.Match(rel+"/") {
			return true
		}
	}
	return false
}

// Run watches until ctx is cancelled. Pending debounced changes are
// dropped on return.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()
	defer w.stop()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching project", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	rel, ok := w.rel(event.Name)
	if !ok || w.Ignored(rel) {
		return
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, event.Name); err != nil {
				w.logger.Warn("could not watch new directory", "path", rel, "error", err)
			}
			return
		}
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpRemove
	default:
		return
	}

	w.schedule(ctx, event.Name, rel, op)
}

// schedule (re)arms the debounce timer of a path. A create followed by
// writes is still reported as a create.
func (w *Watcher) schedule(ctx context.Context, path, rel string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		if p.op == OpCreate && op == OpWrite {
			op = OpCreate
		}
	}

	p := &pendingChange{op: op}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.pending[path] != p {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Debug("file change settled", "path", rel, "op", op)
		w.onChange(ctx, Change{Path: path, Rel: rel, Op: op, At: time.Now()})
	})
	w.pending[path] = p
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && w.Ignored(rel) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
