// Package git provides the git collaborator used for project identity and
// diff range extraction. Every call shells out to the git binary with a
// bounded timeout.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/logger"
)

const defaultTimeout = 5 * time.Second

// Config configures a Client.
type Config struct {
	// Bin is the git executable. Defaults to "git".
	Bin string

	// Timeout bounds every git invocation. Defaults to 5s.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client runs git commands.
type Client struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a git client.
func NewClient(c Config) *Client {
	bin := c.Bin
	if bin == "" {
		bin = "git"
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		bin:     bin,
		timeout: timeout,
		logger:  logger.OrNop(c.Logger),
	}
}

// run executes git with args in dir and returns trimmed stdout.
func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		c.logger.Debug("git command failed",
			"args", strings.Join(args, " "),
			"dir", dir,
			"stderr", msg,
			"error", err,
		)
		if msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// dirOf returns path itself when it is a directory, else its parent.
func dirOf(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

// IsRepo reports whether path is inside a git work tree.
func (c *Client) IsRepo(ctx context.Context, path string) bool {
	out, err := c.run(ctx, dirOf(path), "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// TopLevel returns the absolute root of the work tree containing path.
func (c *Client) TopLevel(ctx context.Context, path string) (string, error) {
	out, err := c.run(ctx, dirOf(path), "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	top := strings.TrimSpace(out)
	if top == "" {
		return "", errors.New("git rev-parse returned an empty top level")
	}
	return top, nil
}

// RemoteURL returns the fetch URL of origin, or of the first remote when no
// origin exists.
func (c *Client) RemoteURL(ctx context.Context, dir string) (string, error) {
	if url, err := c.run(ctx, dirOf(dir), "remote", "get-url", "origin"); err == nil && url != "" {
		return strings.TrimSpace(url), nil
	}

	remotes, err := c.run(ctx, dirOf(dir), "remote")
	if err != nil {
		return "", err
	}
	for _, name := range strings.Fields(remotes) {
		if url, err := c.run(ctx, dirOf(dir), "remote", "get-url", name); err == nil && url != "" {
			return strings.TrimSpace(url), nil
		}
	}
	return "", errors.New("no git remote configured")
}

// Diff returns the unified diff of path against HEAD, staged and unstaged
// changes combined. Repositories without commits fall back to the unstaged
// diff. An unchanged file yields "".
func (c *Client) Diff(ctx context.Context, path string) (string, error) {
	dir := dirOf(path)
	out, err := c.run(ctx, dir, "diff", "--no-color", "--no-ext-diff", "HEAD", "--", path)
	if err == nil {
		return out, nil
	}
	return c.run(ctx, dir, "diff", "--no-color", "--no-ext-diff", "--", path)
}

// RepoName returns the base name of the repository containing the working
// directory, falling back to the working directory's base name.
func (c *Client) RepoName(ctx context.Context) string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	if top, err := c.TopLevel(ctx, wd); err == nil {
		return filepath.Base(top)
	}
	return filepath.Base(wd)
}

// RepoName returns the name of the current git repository using a default
// client.
func RepoName() string {
	return NewClient(Config{}).RepoName(context.Background())
}
