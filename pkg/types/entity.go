package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata field names in the serialized document. These fields are managed
// by the lifecycle and protected from attribute updates.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// TimeLayout is the serialized timestamp form. Nanosecond precision so that
// a persisted timestamp round-trips to the same instant.
const TimeLayout = time.RFC3339Nano

// protectedFields are never overwritten by Set, even when named explicitly.
var protectedFields = map[string]bool{
	FieldID:        true,
	FieldCreatedAt: true,
	FieldUpdatedAt: true,
}

// KeyDelimiter joins kind name and identity into a composite key.
const KeyDelimiter = "."

// CompositeKey returns the "Kind.id" key addressing one entity in the table.
func CompositeKey(kind, id string) string {
	return kind + KeyDelimiter + id
}

// Entity is one instance of a domain kind. Identity and timestamps are
// lifecycle-managed; Attrs holds the domain attributes, declared ones coerced
// to their declared value type plus any overflow keys from restore.
type Entity struct {
	Kind      string
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Attrs     map[string]any

	spec *KindSpec
}

// newUUID generates a UUID v7 string, falling back to v4 if v7 fails.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// New creates a fresh Entity of this kind: new identity, both timestamps set
// to now, declared attributes at their per-kind defaults.
func (k *KindSpec) New() *Entity {
	now := time.Now().UTC()
	e := &Entity{
		Kind:      k.Name,
		ID:        newUUID(),
		CreatedAt: now,
		UpdatedAt: now,
		Attrs:     make(map[string]any, len(k.Attrs)),
		spec:      k,
	}
	for _, a := range k.Attrs {
		e.Attrs[a.Name] = DefaultValue(a.ValueType)
	}
	return e
}

// Restore reconstructs an Entity of this kind from a serialized document.
// Identity and timestamps are consumed verbatim, declared attributes are
// coerced to their declared value type, unrecognized keys become overflow
// attributes. Returns ErrMalformedAttribute when a required field is absent
// or a value cannot be coerced.
func (k *KindSpec) Restore(doc map[string]any) (*Entity, error) {
	e := &Entity{
		Kind:  k.Name,
		Attrs: make(map[string]any, len(doc)),
		spec:  k,
	}

	id, ok := doc[FieldID].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: %s requires an id", ErrMalformedAttribute, k.Name)
	}
	e.ID = id

	var err error
	if e.CreatedAt, err = restoreTime(doc, FieldCreatedAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = restoreTime(doc, FieldUpdatedAt); err != nil {
		return nil, err
	}

	for name, raw := range doc {
		if protectedFields[name] {
			continue
		}
		if vt, declared := k.AttrType(name); declared {
			v, err := Coerce(vt, raw)
			if err != nil {
				return nil, fmt.Errorf("restoring %s.%s: %w", k.Name, name, err)
			}
			e.Attrs[name] = v
			continue
		}
		e.Attrs[name] = raw
	}

	// Declared attributes absent from the document still get defaults so the
	// key set stays stable per kind.
	for _, a := range k.Attrs {
		if _, ok := e.Attrs[a.Name]; !ok {
			e.Attrs[a.Name] = DefaultValue(a.ValueType)
		}
	}

	return e, nil
}

// restoreTime parses a timestamp field from a serialized document.
func restoreTime(doc map[string]any, field string) (time.Time, error) {
	raw, ok := doc[field].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s missing or not a string", ErrMalformedAttribute, field)
	}
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrMalformedAttribute, field, err)
	}
	return t, nil
}

// Key returns the entity's composite key.
func (e *Entity) Key() string {
	return CompositeKey(e.Kind, e.ID)
}

// Touch refreshes UpdatedAt. Called by every mutating operation that is
// meant to persist.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Set assigns a domain attribute. Protected fields (id, created_at,
// updated_at) are silently skipped. Declared attributes are coerced to their
// declared value type; undeclared attributes get a best-effort numeric guess
// for string input and are created if previously absent. Set does not touch
// the entity; the caller decides when the mutation persists.
func (e *Entity) Set(name string, value any) error {
	if protectedFields[name] {
		return nil
	}
	if e.spec != nil {
		if vt, declared := e.spec.AttrType(name); declared {
			v, err := Coerce(vt, value)
			if err != nil {
				return err
			}
			e.Attrs[name] = v
			return nil
		}
	}
	if s, ok := value.(string); ok {
		e.Attrs[name] = GuessValue(s)
		return nil
	}
	e.Attrs[name] = value
	return nil
}

// ToDocument returns the serializable attribute mapping: id, created_at,
// updated_at (as TimeLayout strings) and every domain attribute.
func (e *Entity) ToDocument() map[string]any {
	doc := make(map[string]any, len(e.Attrs)+3)
	for name, v := range e.Attrs {
		doc[name] = v
	}
	doc[FieldID] = e.ID
	doc[FieldCreatedAt] = e.CreatedAt.Format(TimeLayout)
	doc[FieldUpdatedAt] = e.UpdatedAt.Format(TimeLayout)
	return doc
}

// Describe renders the entity for display: kind, identity, and the full
// attribute mapping with keys in sorted order. Display only; persistence
// goes through ToDocument.
func (e *Entity) Describe() string {
	doc := e.ToDocument()
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] (%s) {", e.Kind, e.ID)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		switch v := doc[k].(type) {
		case string:
			fmt.Fprintf(&b, "%s: %q", k, v)
		default:
			fmt.Fprintf(&b, "%s: %v", k, v)
		}
	}
	b.WriteString("}")
	return b.String()
}
