package engine

import "github.com/hpungsan/cipherbox/internal/cipher"

// Registry is an immutable, ordered set of cipher modules keyed by name.
type Registry struct {
	names   []string
	modules map[string]*cipher.Module
}

// NewRegistry builds a registry. A module whose name was already seen
// replaces the earlier one but keeps its position.
func NewRegistry(modules ...*cipher.Module) *Registry {
	r := &Registry{modules: make(map[string]*cipher.Module, len(modules))}
	for _, m := range modules {
		if m == nil {
			continue
		}
		if _, ok := r.modules[m.Name]; !ok {
			r.names = append(r.names, m.Name)
		}
		r.modules[m.Name] = m
	}
	return r
}

// Names returns module names in registry order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Get returns the module called name.
func (r *Registry) Get(name string) (*cipher.Module, bool) {
	if r == nil {
		return nil, false
	}
	m, ok := r.modules[name]
	return m, ok
}

// Len returns the number of modules.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Modules returns the modules in registry order.
func (r *Registry) Modules() []*cipher.Module {
	if r == nil {
		return nil
	}
	out := make([]*cipher.Module, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.modules[n])
	}
	return out
}

// Without returns a registry lacking the named modules.
func (r *Registry) Without(names []string) *Registry {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	kept := make([]*cipher.Module, 0, r.Len())
	for _, m := range r.Modules() {
		if !skip[m.Name] {
			kept = append(kept, m)
		}
	}
	return NewRegistry(kept...)
}
