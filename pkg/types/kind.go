package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute value types determine what values a declared attribute accepts.
const (
	ValueTypeString  = "string"
	ValueTypeInteger = "integer"
	ValueTypeFloat   = "float"
)

// validValueTypes is the set of recognized attribute value types.
var validValueTypes = map[string]bool{
	ValueTypeString:  true,
	ValueTypeInteger: true,
	ValueTypeFloat:   true,
}

// AttrDef declares one domain attribute of a kind.
type AttrDef struct {
	Name      string // Attribute name (e.g. "first_name").
	ValueType string // One of the ValueType constants.
}

// KindSpec describes a domain kind: its name and declared attribute set.
// Attributes not declared here survive restore as overflow attributes but
// receive no defaults and no type coercion.
type KindSpec struct {
	Name  string
	Attrs []AttrDef

	index map[string]string // attr name -> value type
}

// NewKindSpec builds a KindSpec from a name and declared attributes.
func NewKindSpec(name string, attrs ...AttrDef) *KindSpec {
	k := &KindSpec{
		Name:  name,
		Attrs: attrs,
		index: make(map[string]string, len(attrs)),
	}
	for _, a := range attrs {
		k.index[a.Name] = a.ValueType
	}
	return k
}

// AttrType returns the declared value type of an attribute and whether the
// attribute is declared at all.
func (k *KindSpec) AttrType(name string) (string, bool) {
	vt, ok := k.index[name]
	return vt, ok
}

// IsValidValueType reports whether the given string is a recognized value type.
func IsValidValueType(vt string) bool {
	return validValueTypes[vt]
}

// DefaultValue returns the type-based default value for a given value type:
// "" for string, int64(0) for integer, float64(0) for float.
func DefaultValue(valueType string) any {
	switch valueType {
	case ValueTypeInteger:
		return int64(0)
	case ValueTypeFloat:
		return float64(0)
	default:
		return ""
	}
}

// Coerce converts a raw value to the given declared value type. Raw values
// come either from a parsed store document (JSON scalars) or from interpreter
// input (strings). Returns ErrMalformedAttribute when the value cannot
// represent the declared type.
func Coerce(valueType string, raw any) (any, error) {
	switch valueType {
	case ValueTypeString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	case ValueTypeInteger:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n, nil
			}
		}
	case ValueTypeFloat:
		switch v := raw.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case float64:
			return v, nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v as %s", ErrMalformedAttribute, raw, valueType)
}

// GuessValue converts interpreter input for an undeclared attribute:
// numeric-looking strings become int64 or float64, everything else stays a
// string.
func GuessValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// builtinKinds returns the closed set of domain kinds in registration order.
func builtinKinds() []*KindSpec {
	return []*KindSpec{
		NewKindSpec("BaseModel"),
		NewKindSpec("User",
			AttrDef{"email", ValueTypeString},
			AttrDef{"password", ValueTypeString},
			AttrDef{"first_name", ValueTypeString},
			AttrDef{"last_name", ValueTypeString},
		),
		NewKindSpec("State",
			AttrDef{"name", ValueTypeString},
		),
		NewKindSpec("City",
			AttrDef{"state_id", ValueTypeString},
			AttrDef{"name", ValueTypeString},
		),
		NewKindSpec("Amenity",
			AttrDef{"name", ValueTypeString},
		),
		NewKindSpec("Place",
			AttrDef{"city_id", ValueTypeString},
			AttrDef{"user_id", ValueTypeString},
			AttrDef{"name", ValueTypeString},
			AttrDef{"description", ValueTypeString},
			AttrDef{"number_rooms", ValueTypeInteger},
			AttrDef{"number_bathrooms", ValueTypeInteger},
			AttrDef{"max_guest", ValueTypeInteger},
			AttrDef{"price_by_night", ValueTypeInteger},
			AttrDef{"latitude", ValueTypeFloat},
			AttrDef{"longitude", ValueTypeFloat},
		),
		NewKindSpec("Review",
			AttrDef{"place_id", ValueTypeString},
			AttrDef{"user_id", ValueTypeString},
			AttrDef{"text", ValueTypeString},
		),
	}
}
