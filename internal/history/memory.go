package history

import (
	"context"
	"sync"

	"github.com/privacycheck/privacycheck/internal/report"
)

// MemoryStore keeps the history in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	reports []report.Report
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) ([]report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]report.Report{}, m.reports...), nil
}

func (m *MemoryStore) Set(_ context.Context, reports []report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append([]report.Report(nil), Trim(reports)...)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = nil
	return nil
}

func (m *MemoryStore) Close() error { return nil }
