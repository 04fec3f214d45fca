package script

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNotFound is returned by Get when the requested script does not exist.
var ErrNotFound = errors.New("script not found")

// Repository stores presentation scripts.
//
// All implementations must be safe for concurrent use.
type Repository interface {
	// Get retrieves a script by id.
	// Returns [ErrNotFound] when no script with that id exists.
	Get(ctx context.Context, id string) (*Script, error)

	// List returns the metadata of all scripts ordered by id.
	List(ctx context.Context) ([]Meta, error)

	// Put validates s and stores it, replacing any script with the same id.
	Put(ctx context.Context, s *Script) error
}

var _ Repository = (*MemRepository)(nil)

// MemRepository is a thread-safe, in-memory implementation of [Repository].
// The zero value is ready to use. Stored scripts must not be mutated by
// callers.
type MemRepository struct {
	mu      sync.RWMutex
	scripts map[string]*Script
}

// NewMemRepository returns a [MemRepository] pre-populated with scripts.
// It fails on the first script that does not validate.
func NewMemRepository(scripts ...*Script) (*MemRepository, error) {
	r := &MemRepository{scripts: make(map[string]*Script, len(scripts))}
	for _, s := range scripts {
		if err := r.Put(context.Background(), s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Get implements [Repository.Get].
func (r *MemRepository) Get(_ context.Context, id string) (*Script, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scripts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List implements [Repository.List].
func (r *MemRepository) List(_ context.Context) ([]Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Meta, 0, len(r.scripts))
	for _, s := range r.scripts {
		result = append(result, s.Meta)
	}
	slices.SortFunc(result, func(a, b Meta) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

// Put implements [Repository.Put].
func (r *MemRepository) Put(_ context.Context, s *Script) error {
	if err := Validate(s); err != nil {
		return fmt.Errorf("script: put: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scripts == nil {
		r.scripts = make(map[string]*Script)
	}
	r.scripts[s.Meta.ID] = s
	return nil
}
