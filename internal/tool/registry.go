package tool

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry holds tool descriptors keyed by name. It is instance-based (not
// global) so each runtime or test can own its own catalogue.
//
// Registration normally happens once at startup; Close seals the registry
// so later registrations fail instead of racing with lookups.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Descriptor
	closed bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor to the registry. Registering a name that
// already exists replaces the previous descriptor.
func (r *Registry) Register(d Descriptor) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return ErrEmptyToolName
	}
	if d.Action == nil {
		return fmt.Errorf("%w: %s", ErrNilAction, name)
	}
	for _, p := range d.Permissions {
		if !p.valid() {
			return fmt.Errorf("%w: %s declares %q", ErrUnknownPermission, name, p)
		}
	}

	v, err := compileSchema(d.Schema)
	if err != nil {
		return fmt.Errorf("tool %s: %w", name, err)
	}

	d.Name = name
	d.Permissions = slices.Clone(d.Permissions)
	d.validator = v

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: %s", ErrRegistryClosed, name)
	}
	r.tools[name] = &d
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// built-in tool sets whose descriptors are static.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor with the given name, or ErrToolNotFound.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return d, nil
}

// List returns the public listing of every tool sorted by name.
func (r *Registry) List() []Info {
	descs := r.Descriptors()
	infos := make([]Info, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, d.Info())
	}
	return infos
}

// Descriptors returns all registered descriptors sorted by name.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		descs = append(descs, d)
	}
	slices.SortFunc(descs, func(a, b *Descriptor) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return descs
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Close seals the registry. Lookups keep working; Register fails with
// ErrRegistryClosed. Close is idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
