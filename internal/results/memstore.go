package results

import (
	"context"
	"slices"
	"strings"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// The zero value is ready to use.
type MemStore struct {
	mu         sync.RWMutex
	recordings map[string]Recording
}

// Save implements [Store.Save].
func (s *MemStore) Save(_ context.Context, rec *Recording) error {
	Prepare(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recordings == nil {
		s.recordings = make(map[string]Recording)
	}
	s.recordings[rec.ID] = clone(*rec)
	return nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, id string) (*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recordings[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(rec)
	return &out, nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context, opts ListOptions) ([]Recording, error) {
	s.mu.RLock()
	result := make([]Recording, 0, len(s.recordings))
	for _, rec := range s.recordings {
		if opts.ScriptID != "" && rec.ScriptID != opts.ScriptID {
			continue
		}
		rec.Parts = nil
		result = append(result, rec)
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b Recording) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit := opts.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// clone copies the slices a caller could mutate after Save or Get.
func clone(rec Recording) Recording {
	rec.Parts = slices.Clone(rec.Parts)
	rec.Coverage = slices.Clone(rec.Coverage)
	rec.Summary.Entries = slices.Clone(rec.Summary.Entries)
	rec.Summary.Pacing = slices.Clone(rec.Summary.Pacing)
	return rec
}
