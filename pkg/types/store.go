package types

// Store defines the interface for backend-agnostic access to the entity
// table. Callers attach to a backend, operate on the table, and detach when
// done. The in-memory table is canonical; Persist mirrors it to the durable
// document and Reload rebuilds it from there.
type Store interface {
	// Attach connects the store to the destination described by config,
	// creating the data directory if needed, and performs the initial
	// reload. Returns ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls
	// succeed. After Detach, table operations return ErrStoreDetached.
	Detach() error

	// Reload replaces the table with the contents of the persisted
	// document. All-or-nothing: on ErrCorruptStore or ErrUnknownKind the
	// prior table is left intact. A missing document yields an empty table.
	Reload() error

	// Persist overwrites the destination with the entire table. Atomic: a
	// failed write leaves the prior content intact and the in-memory table
	// remains the source of truth.
	Persist() error

	// Put inserts or replaces the table entry for the entity's composite
	// key. It does not persist; durability is the caller's call.
	Put(e *Entity) error

	// Get returns the live entity for (kind, id), or ErrNotFound. Repeated
	// lookups of the same key return the same instance.
	Get(kind, id string) (*Entity, error)

	// All returns the entities of the given kind, or of all kinds when
	// kind is empty. Enumeration order is stable within a session.
	All(kind string) ([]*Entity, error)

	// Remove deletes the entry for (kind, id), reporting whether an entry
	// existed. Not-found is an outcome, not an error.
	Remove(kind, id string) (bool, error)

	// Count returns the number of entities All(kind) would yield.
	Count(kind string) (int, error)
}
