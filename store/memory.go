// ABOUTME: In-memory Store guarded by a mutex, used for tests and ephemeral consoles.
// ABOUTME: Documents are kept encoded so callers always receive independent copies.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/2389-research/pipeconf/pipeline"
)

type memoryEntry struct {
	doc       []byte
	etag      string
	updatedAt time.Time
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	changes map[string][]Change
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		changes: make(map[string][]Change),
		now:     time.Now,
	}
}

func (s *MemoryStore) record(e memoryEntry) (Record, error) {
	p, err := pipeline.Decode(e.doc)
	if err != nil {
		return Record{}, fmt.Errorf("decode stored pipeline: %w", err)
	}
	return Record{Pipeline: p, ETag: e.etag, UpdatedAt: e.updatedAt}, nil
}

// List returns every pipeline ordered by name.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]memoryEntry, len(names))
	for i, name := range names {
		entries[i] = s.entries[name]
	}
	s.mu.RUnlock()

	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		r, err := s.record(e)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Get returns one pipeline.
func (s *MemoryStore) Get(ctx context.Context, name string) (Record, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.record(e)
}

// Create stores a new pipeline.
func (s *MemoryStore) Create(ctx context.Context, p *pipeline.Pipeline) (Record, error) {
	doc, etag, err := encode(p)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[p.Name()]; exists {
		return Record{}, ErrAlreadyExists
	}
	e := memoryEntry{doc: doc, etag: etag, updatedAt: s.now().UTC()}
	s.entries[p.Name()] = e
	s.appendChange(p.Name(), ActionCreate, etag, e.updatedAt)
	return s.record(e)
}

// Put replaces a pipeline guarded by its current ETag.
func (s *MemoryStore) Put(ctx context.Context, p *pipeline.Pipeline, ifMatch string) (Record, error) {
	doc, etag, err := encode(p)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[p.Name()]
	if !ok {
		return Record{}, ErrNotFound
	}
	if cur.etag != ifMatch {
		return Record{}, ErrPreconditionFailed
	}
	e := memoryEntry{doc: doc, etag: etag, updatedAt: s.now().UTC()}
	s.entries[p.Name()] = e
	s.appendChange(p.Name(), ActionUpdate, etag, e.updatedAt)
	return s.record(e)
}

// Delete removes a pipeline.
func (s *MemoryStore) Delete(ctx context.Context, name, ifMatch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[name]
	if !ok {
		return ErrNotFound
	}
	if ifMatch != "" && cur.etag != ifMatch {
		return ErrPreconditionFailed
	}
	delete(s.entries, name)
	s.appendChange(name, ActionDelete, cur.etag, s.now().UTC())
	return nil
}

// History returns the pipeline's changes, oldest first. Deleted pipelines keep
// their history.
func (s *MemoryStore) History(ctx context.Context, name string) ([]Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	changes, ok := s.changes[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Change, len(changes))
	copy(out, changes)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// appendChange records a write. Callers hold s.mu.
func (s *MemoryStore) appendChange(name string, action Action, etag string, at time.Time) {
	s.changes[name] = append(s.changes[name], Change{
		ID:     newChangeID(),
		Name:   name,
		Action: action,
		ETag:   etag,
		At:     at,
	})
}
