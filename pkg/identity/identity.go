// Package identity resolves which project a path belongs to and derives a
// stable fingerprint for it.
//
// Resolution never fails: filesystem and VCS errors are swallowed and the
// resolver falls back to the next available signal.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// DefaultMaxDepth bounds the upward walk in ResolveRoot.
	DefaultMaxDepth = 10

	// FingerprintLength is the number of hex characters in a fingerprint.
	FingerprintLength = 16

	gitMarker = ".git"
)

// DefaultMarkers is the ordered list of project-root markers. The version
// control directory has the highest priority.
var DefaultMarkers = []string{
	gitMarker,
	"go.mod",
	"package.json",
	"Cargo.toml",
	"pyproject.toml",
	"setup.py",
	"pom.xml",
	"build.gradle",
	"composer.json",
	"Gemfile",
}

// RemoteProvider reports the remote URL of the repository at dir.
type RemoteProvider interface {
	RemoteURL(ctx context.Context, dir string) (string, error)
}

// Config configures a Resolver.
type Config struct {
	// Markers overrides DefaultMarkers.
	Markers []string

	// MaxDepth overrides DefaultMaxDepth.
	MaxDepth int

	// Remote is optional. Without it fingerprints skip the remote URL signal.
	Remote RemoteProvider

	// CaseInsensitive forces case folding in Normalize. When nil the
	// platform default applies (darwin and windows fold).
	CaseInsensitive *bool
}

// Resolver resolves project roots and fingerprints.
type Resolver struct {
	markers  []string
	maxDepth int
	remote   RemoteProvider
	fold     bool
}

// NewResolver creates a Resolver from c.
func NewResolver(c Config) *Resolver {
	markers := c.Markers
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	depth := c.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	fold := runtime.GOOS == "darwin" || runtime.GOOS == "windows"
	if c.CaseInsensitive != nil {
		fold = *c.CaseInsensitive
	}
	return &Resolver{
		markers:  markers,
		maxDepth: depth,
		remote:   c.Remote,
		fold:     fold,
	}
}

// Normalize cleans path, makes it absolute when possible, unifies separators
// to "/" and case-folds on case-insensitive platforms. It is idempotent.
func (r *Resolver) Normalize(path string) string {
	if path == "" {
		return ""
	}

	p := strings.ReplaceAll(path, `\`, "/")
	p = filepath.FromSlash(p)
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	} else {
		p = filepath.Clean(p)
	}
	p = filepath.ToSlash(p)

	if r.fold {
		p = strings.ToLower(p)
	}
	return p
}

// ResolveRoot walks upward from path, at most MaxDepth levels, and returns
// the first directory containing a marker. Markers are checked in priority
// order at each level. When nothing matches the original path is returned.
func (r *Resolver) ResolveRoot(path string) string {
	if path == "" {
		return path
	}

	dir := path
	if abs, err := filepath.Abs(path); err == nil {
		dir = abs
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for range r.maxDepth {
		if r.firstMarker(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return path
}

// Fingerprint derives a fixed-length digest identifying the project that
// contains path. Signals, in order of preference: remote URL, content hash of
// the first manifest found at the root, normalized root path.
func (r *Resolver) Fingerprint(ctx context.Context, path string) string {
	root := r.ResolveRoot(path)
	return digest(r.fingerprintSignal(ctx, root))
}

func (r *Resolver) fingerprintSignal(ctx context.Context, root string) string {
	if r.remote != nil {
		if url, err := r.remote.RemoteURL(ctx, root); err == nil && strings.TrimSpace(url) != "" {
			return "remote:" + NormalizeRemote(url)
		}
	}

	for _, m := range r.markers {
		if m == gitMarker {
			continue
		}
		content, err := os.ReadFile(filepath.Join(root, m))
		if err != nil {
			continue
		}
		sum := sha256.Sum256(content)
		return "manifest:" + m + ":" + hex.EncodeToString(sum[:])
	}

	return "path:" + r.Normalize(root)
}

// firstMarker returns the highest-priority marker present in dir, or "".
func (r *Resolver) firstMarker(dir string) string {
	for _, m := range r.markers {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return m
		}
	}
	return ""
}

// NormalizeRemote strips credentials, the scheme, a trailing ".git" and
// case so that https and ssh clones of the same repository agree.
func NormalizeRemote(url string) string {
	u := strings.TrimSpace(url)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	if i := strings.LastIndex(u, "@"); i >= 0 {
		u = u[i+1:]
	}
	// scp-like syntax: host:owner/repo
	if i := strings.Index(u, ":"); i >= 0 && !strings.Contains(u[:i], "/") {
		u = u[:i] + "/" + u[i+1:]
	}
	return strings.ToLower(u)
}

func digest(signal string) string {
	sum := sha256.Sum256([]byte(signal))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

var defaultResolver = NewResolver(Config{})

// Normalize normalizes path with the default resolver.
func Normalize(path string) string {
	return defaultResolver.Normalize(path)
}

// ResolveRoot resolves the project root of path with the default resolver.
func ResolveRoot(path string) string {
	return defaultResolver.ResolveRoot(path)
}
