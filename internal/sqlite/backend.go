// Package sqlite implements the SQLite storage backend for hearth. SQLite
// serves lookups and enumeration while the flat document written by the
// filestore package remains the source of truth on disk; the database file
// is rebuilt from it on every Attach.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/stayforge/hearth/internal/filestore"
	"github.com/stayforge/hearth/pkg/types"
)

// DatabaseName is the SQLite mirror filename inside the data directory.
const DatabaseName = "hearth.db"

// dbTimeLayout keeps a fixed-width fraction so timestamp columns compare
// chronologically under SQLite's text ordering. types.TimeLayout trims
// trailing zeros and would not.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Backend implements types.Store using SQLite as the query engine. Live
// entities are held in memory so repeated lookups of a composite key return
// the same instance; rows mirror kind, identity, timestamps and the attrs
// JSON for enumeration order and counting.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	registry *types.Registry
	config   types.Config
	db       *sql.DB
	docPath  string

	entities map[string]*types.Entity // composite key -> live entity
}

// NewBackend creates a detached SQLite backend resolving kinds through
// registry. Call Attach with a Config to initialize.
func NewBackend(registry *types.Registry) *Backend {
	return &Backend{
		registry: registry,
		entities: make(map[string]*types.Entity),
	}
}

// Attach initializes the backend: creates the data directory, opens a fresh
// database file, executes the schema, and loads the persisted document.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
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

	// The mirror is rebuilt from the document, so a stale database file
	// from a previous session is discarded.
	dbPath := filepath.Join(dataDir, DatabaseName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.config = config
	b.docPath = filepath.Join(dataDir, filestore.DocumentName)

	if err := b.reloadLocked(); err != nil {
		db.Close()
		b.db = nil
		return fmt.Errorf("load document: %w", err)
	}

	b.attached = true
	return nil
}

// Detach closes the database. Idempotent; after Detach all table operations
// return ErrStoreDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.entities = make(map[string]*types.Entity)
	return nil
}

// Reload replaces the table with the persisted document's contents.
// All-or-nothing: the row load is transactional and the entity map is
// swapped only after it commits.
func (b *Backend) Reload() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.reloadLocked()
}

func (b *Backend) reloadLocked() error {
	doc, err := filestore.ReadDocument(b.docPath)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrCorruptStore, err)
	}

	entities := make(map[string]*types.Entity, len(doc))
	for key, attrs := range doc {
		kind, _, ok := strings.Cut(key, types.KeyDelimiter)
		if !ok {
			return fmt.Errorf("%w: key %q has no kind prefix", types.ErrCorruptStore, key)
		}
		spec, err := b.registry.Resolve(kind)
		if err != nil {
			return err
		}
		e, err := spec.Restore(attrs)
		if err != nil {
			return fmt.Errorf("restoring %q: %w", key, err)
		}
		entities[e.Key()] = e
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entities"); err != nil {
		return fmt.Errorf("clearing entities: %w", err)
	}
	for _, e := range entities {
		attrsJSON, err := marshalAttrs(e)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO entities (kind, id, created_at, updated_at, attrs) VALUES (?, ?, ?, ?, ?)",
			e.Kind, e.ID,
			e.CreatedAt.Format(dbTimeLayout),
			e.UpdatedAt.Format(dbTimeLayout),
			attrsJSON); err != nil {
			return fmt.Errorf("inserting %s: %w", e.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}

	b.entities = entities
	return nil
}

// Persist overwrites the document with the entire table, atomically.
func (b *Backend) Persist() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	doc := make(map[string]map[string]any, len(b.entities))
	for key, e := range b.entities {
		doc[key] = e.ToDocument()
	}
	return filestore.WriteDocument(b.docPath, doc)
}

// Put inserts or replaces the row and live entity for the composite key.
func (b *Backend) Put(e *types.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	attrsJSON, err := marshalAttrs(e)
	if err != nil {
		return err
	}
	_, err = b.db.Exec(`
		INSERT INTO entities (kind, id, created_at, updated_at, attrs)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			updated_at = excluded.updated_at,
			attrs = excluded.attrs`,
		e.Kind, e.ID,
		e.CreatedAt.Format(dbTimeLayout),
		e.UpdatedAt.Format(dbTimeLayout),
		attrsJSON)
	if err != nil {
		return fmt.Errorf("upserting %s: %w", e.Key(), err)
	}

	b.entities[e.Key()] = e
	return nil
}

// Get returns the live entity for (kind, id), or ErrNotFound.
func (b *Backend) Get(kind, id string) (*types.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	e, ok := b.entities[types.CompositeKey(kind, id)]
	if !ok {
		return nil, types.ErrNotFound
	}
	return e, nil
}

// All returns entities of the given kind, or of every kind when kind is
// empty, ordered by creation time then identity.
func (b *Backend) All(kind string) ([]*types.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	query := "SELECT kind, id FROM entities"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at, id"

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching entities: %w", err)
	}
	defer rows.Close()

	var out []*types.Entity
	for rows.Next() {
		var k, id string
		if err := rows.Scan(&k, &id); err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		if e, ok := b.entities[types.CompositeKey(k, id)]; ok {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

// Remove deletes the row and live entity for (kind, id), reporting whether
// one existed.
func (b *Backend) Remove(kind, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return false, types.ErrStoreDetached
	}

	key := types.CompositeKey(kind, id)
	if _, ok := b.entities[key]; !ok {
		return false, nil
	}
	if _, err := b.db.Exec("DELETE FROM entities WHERE kind = ? AND id = ?", kind, id); err != nil {
		return false, fmt.Errorf("deleting %s: %w", key, err)
	}
	delete(b.entities, key)
	return true, nil
}

// Count returns the number of entities All(kind) would yield.
func (b *Backend) Count(kind string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}

	query := "SELECT COUNT(*) FROM entities"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}

	var n int
	if err := b.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return n, nil
}

// marshalAttrs encodes the entity's domain attributes for the attrs column.
func marshalAttrs(e *types.Entity) (string, error) {
	data, err := json.Marshal(e.Attrs)
	if err != nil {
		return "", fmt.Errorf("marshaling attrs for %s: %w", e.Key(), err)
	}
	return string(data), nil
}
