// Package output persists search results.
package output

import (
	"context"
	"sync"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// Repository defines the interface for search result persistence.
type Repository interface {
	// Save records one completed search result.
	Save(ctx context.Context, result shuttle.SearchResult) error
}

// MultiRepository fans a save out to several repositories. The first
// failure is returned but every repository is attempted.
type MultiRepository []Repository

// Save records the result in every repository.
func (m MultiRepository) Save(ctx context.Context, result shuttle.SearchResult) error {
	var firstErr error
	for _, repo := range m {
		if err := repo.Save(ctx, result); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MemoryRepository is an in-memory implementation of Repository,
// intended for tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	results []shuttle.SearchResult
}

// NewMemoryRepository creates a new in-memory result repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Save records a result.
func (r *MemoryRepository) Save(_ context.Context, result shuttle.SearchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = append(r.results, result)
	return nil
}

// Results returns a copy of everything saved so far.
func (r *MemoryRepository) Results() []shuttle.SearchResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]shuttle.SearchResult, len(r.results))
	copy(out, r.results)
	return out
}
