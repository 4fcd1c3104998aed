package git

import (
	"context"
	"path/filepath"
	"strings"
)

// Status is the work tree state of a repository. Paths are absolute.
type Status struct {
	Staged    []string `json:"staged"`
	Modified  []string `json:"modified"`
	Untracked []string `json:"untracked"`
}

// IsUntracked reports whether path is listed as untracked.
func (s Status) IsUntracked(path string) bool {
	clean := filepath.Clean(path)
	for _, p := range s.Untracked {
		if p == clean {
			return true
		}
	}
	return false
}

// Status reports staged, modified and untracked files of the repository
// containing path.
func (c *Client) Status(ctx context.Context, path string) (Status, error) {
	top, err := c.TopLevel(ctx, path)
	if err != nil {
		return Status{}, err
	}

	out, err := c.run(ctx, top, "status", "--porcelain=v1", "--untracked-files=all")
	if err != nil {
		return Status{}, err
	}

	return ParseStatus(top, out), nil
}

// ParseStatus parses `git status --porcelain=v1` output. Paths are joined
// onto root.
func ParseStatus(root, porcelain string) Status {
	var s Status
	for _, line := range strings.Split(porcelain, "\n") {
		if len(line) < 4 {
			continue
		}
		x, y := line[0], line[1]
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		path = filepath.Join(root, filepath.FromSlash(strings.Trim(path, `"`)))

		if x == '?' && y == '?' {
			s.Untracked = append(s.Untracked, path)
			continue
		}
		if x != ' ' && x != '?' {
			s.Staged = append(s.Staged, path)
		}
		if y != ' ' && y != '?' {
			s.Modified = append(s.Modified, path)
		}
	}
	return s
}
