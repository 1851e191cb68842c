package sqlite

// Schema DDL for the entity mirror. One generic table holds every kind; the
// flat document stays the durable source of truth.
const schemaSQL = `CREATE TABLE entities (
    kind TEXT NOT NULL,
    id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    attrs TEXT NOT NULL,
    PRIMARY KEY (kind, id)
);`
