package types

import "fmt"

// Registry maps kind names to their specs. It is populated once at process
// start and is the single validation point for kind names: the interpreter
// and the storage backends both resolve through it.
type Registry struct {
	kinds map[string]*KindSpec
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]*KindSpec)}
}

// NewDefaultRegistry returns a registry holding the closed set of domain
// kinds in their canonical registration order.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, k := range builtinKinds() {
		r.Register(k)
	}
	return r
}

// Register associates a kind spec with its name. Kind names are
// case-sensitive and unique; re-registration is a programming error and
// panics at startup rather than surfacing as a runtime condition.
func (r *Registry) Register(k *KindSpec) {
	if _, exists := r.kinds[k.Name]; exists {
		panic(fmt.Sprintf("types: kind %q registered twice", k.Name))
	}
	r.kinds[k.Name] = k
	r.order = append(r.order, k.Name)
}

// Resolve returns the spec for a kind name, or ErrUnknownKind.
func (r *Registry) Resolve(name string) (*KindSpec, error) {
	k, ok := r.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// Kinds returns all registered kind names in registration order.
func (r *Registry) Kinds() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
