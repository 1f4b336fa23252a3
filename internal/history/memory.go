package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"studio/internal/domain"
)

// MemoryStore keeps records for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[job.ID]; ok {
		return fmt.Errorf("history: duplicate id %s", job.ID)
	}
	cp := *job
	m.records[job.ID] = &cp
	m.order = append(m.order, job.ID)
	return nil
}

func (m *MemoryStore) Finish(_ context.Context, id string, status domain.JobStatus, errMsg, storageKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = status
	rec.Error = errMsg
	rec.StorageKey = storageKey
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns the newest records first.
func (m *MemoryStore) List(_ context.Context, limit int) ([]domain.Job, error) {
	m.mu.RLock()
	out := make([]domain.Job, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, *m.records[m.order[i]])
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit = ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
