package watch_test

import (
	"context"

	"github.com/papercomputeco/mnemo/pkg/git"
)

// noRepo reports that no path is under version control.
type noRepo struct{}

func (noRepo) IsRepo(context.Context, string) bool { return false }
func (noRepo) Status(context.Context, string) (git.Status, error) {
	return git.Status{}, nil
}
func (noRepo) Diff(context.Context, string) (string, error) { return "", nil }
