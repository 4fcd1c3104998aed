package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

// MockVectorDriver is an in-memory vector driver that records every call.
type MockVectorDriver struct {
	mu        sync.Mutex
	documents map[string]vector.Document

	// AddCalls and GetCalls count invocations.
	AddCalls int
	GetCalls int

	// FailGet and FailAdd make the matching method return an error.
	FailGet bool
	FailAdd bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		documents: make(map[string]vector.Document),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls++
	if m.FailAdd {
		return errors.New("mock add failure")
	}
	for _, d := range docs {
		m.documents[d.ID] = d
	}
	return nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.FailGet {
		return nil, errors.New("mock get failure")
	}
	out := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := m.documents[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Len returns the number of stored documents.
func (m *MockVectorDriver) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents)
}

func (m *MockVectorDriver) Close() error {
	return nil
}
