package run

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrRunNotFound is returned when a run cannot be found by ID.
var ErrRunNotFound = errors.New("run: not found")

// Repository defines the interface for run persistence.
type Repository interface {
	// Save persists a run, replacing any previous version.
	Save(ctx context.Context, r *Run) error

	// FindByID retrieves a run by its ID.
	// Returns ErrRunNotFound if the run does not exist.
	FindByID(ctx context.Context, id string) (*Run, error)

	// List returns all runs, newest first.
	List(ctx context.Context) ([]*Run, error)
}

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It stores and returns clones so callers cannot mutate stored runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryRepository creates a new in-memory run repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: make(map[string]*Run)}
}

// Save stores a clone of r.
func (m *MemoryRepository) Save(_ context.Context, r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = r.Clone()
	return nil
}

// FindByID returns a clone of the stored run.
func (m *MemoryRepository) FindByID(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return r.Clone(), nil
}

// List returns clones of all runs, newest first.
func (m *MemoryRepository) List(_ context.Context) ([]*Run, error) {
	m.mu.RLock()
	result := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		result = append(result, r.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
