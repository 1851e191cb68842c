package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stayforge/hearth/pkg/types"
)

// Store implements types.Store with a flat JSON document as the durable form
// and an in-memory table as the canonical one. Enumeration follows kind
// registration order, then insertion order within a kind.
type Store struct {
	mu       sync.RWMutex
	attached bool
	registry *types.Registry
	path     string

	entities map[string]*types.Entity // composite key -> live entity
	order    map[string][]string      // kind -> ids in insertion order
}

// New creates a detached file store resolving kinds through registry.
func New(registry *types.Registry) *Store {
	return &Store{
		registry: registry,
		entities: make(map[string]*types.Entity),
		order:    make(map[string][]string),
	}
}

// Attach binds the store to config's data directory, creating it if needed,
// and performs the initial reload. Returns ErrAlreadyAttached when called
// while attached.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	s.path = filepath.Join(dataDir, DocumentName)

	if err := s.reloadLocked(); err != nil {
		return err
	}

	s.attached = true
	return nil
}

// Detach releases the store. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	s.attached = false
	s.entities = make(map[string]*types.Entity)
	s.order = make(map[string][]string)
	return nil
}

// Reload replaces the table with the persisted document's contents. The
// table is swapped only after every entry restores, so a corrupt document or
// an unknown kind leaves the prior table intact.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrStoreDetached
	}
	return s.reloadLocked()
}

func (s *Store) reloadLocked() error {
	doc, err := ReadDocument(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrCorruptStore, err)
	}

	entities := make(map[string]*types.Entity, len(doc))
	order := make(map[string][]string)
	for key, attrs := range doc {
		kind, _, ok := strings.Cut(key, types.KeyDelimiter)
		if !ok {
			return fmt.Errorf("%w: key %q has no kind prefix", types.ErrCorruptStore, key)
		}
		spec, err := s.registry.Resolve(kind)
		if err != nil {
			return err
		}
		e, err := spec.Restore(attrs)
		if err != nil {
			return fmt.Errorf("restoring %q: %w", key, err)
		}
		entities[e.Key()] = e
		order[e.Kind] = append(order[e.Kind], e.ID)
	}
	// Document key order is meaningless, so sort ids to keep enumeration
	// stable across reloads.
	for kind := range order {
		sort.Strings(order[kind])
	}

	s.entities = entities
	s.order = order
	return nil
}

// Persist overwrites the document with the entire table, atomically.
func (s *Store) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return types.ErrStoreDetached
	}

	doc := make(map[string]map[string]any, len(s.entities))
	for key, e := range s.entities {
		doc[key] = e.ToDocument()
	}
	return WriteDocument(s.path, doc)
}

// Put inserts or replaces the entry for the entity's composite key.
func (s *Store) Put(e *types.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrStoreDetached
	}

	key := e.Key()
	if _, exists := s.entities[key]; !exists {
		s.order[e.Kind] = append(s.order[e.Kind], e.ID)
	}
	s.entities[key] = e
	return nil
}

// Get returns the live entity for (kind, id), or ErrNotFound.
func (s *Store) Get(kind, id string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	e, ok := s.entities[types.CompositeKey(kind, id)]
	if !ok {
		return nil, types.ErrNotFound
	}
	return e, nil
}

// All returns the entities of the given kind, or of every kind when kind is
// empty, in registration order then insertion order.
func (s *Store) All(kind string) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	kinds := []string{kind}
	if kind == "" {
		kinds = s.registry.Kinds()
	}

	var out []*types.Entity
	for _, k := range kinds {
		for _, id := range s.order[k] {
			out = append(out, s.entities[types.CompositeKey(k, id)])
		}
	}
	return out, nil
}

// Remove deletes the entry for (kind, id), reporting whether one existed.
func (s *Store) Remove(kind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return false, types.ErrStoreDetached
	}

	key := types.CompositeKey(kind, id)
	if _, ok := s.entities[key]; !ok {
		return false, nil
	}
	delete(s.entities, key)

	ids := s.order[kind]
	for i, v := range ids {
		if v == id {
			s.order[kind] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return true, nil
}

// Count returns the number of entities All(kind) would yield.
func (s *Store) Count(kind string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return 0, types.ErrStoreDetached
	}

	if kind != "" {
		return len(s.order[kind]), nil
	}
	n := 0
	for _, k := range s.registry.Kinds() {
		n += len(s.order[k])
	}
	return n, nil
}
