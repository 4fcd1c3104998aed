package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/mnemo/pkg/git"
)

// MockDiffProvider is a canned diff provider. Diffs are keyed by path.
type MockDiffProvider struct {
	Repo   bool
	State  git.Status
	Diffs  map[string]string
	Calls  int
	Failed bool
}

// NewMockDiffProvider creates a provider that reports a repository with no
// changes.
func NewMockDiffProvider() *MockDiffProvider {
	return &MockDiffProvider{
		Repo:  true,
		Diffs: make(map[string]string),
	}
}

func (m *MockDiffProvider) IsRepo(context.Context, string) bool {
	return m.Repo
}

func (m *MockDiffProvider) Status(context.Context, string) (git.Status, error) {
	if m.Failed {
		return git.Status{}, errors.New("mock status failure")
	}
	return m.State, nil
}

func (m *MockDiffProvider) Diff(_ context.Context, path string) (string, error) {
	m.Calls++
	if m.Failed {
		return "", errors.New("mock diff failure")
	}
	return m.Diffs[path], nil
}
