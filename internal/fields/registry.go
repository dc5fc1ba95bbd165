// Package fields holds the ordered registry of discovered field names and
// their enabled flags.
package fields

import (
	"strings"
	"sync"
)

// Field is a registry entry.
type Field struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Registry is an insertion-ordered set of field names. Discovery only adds;
// no operation removes a name. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	enabled map[string]bool
	version uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{enabled: make(map[string]bool)}
}

// Discover registers every unknown non-blank name as disabled and returns
// the names that were added, in order.
func (r *Registry) Discover(names []string) []string {
	var added []string
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, ok := r.enabled[name]; ok {
			continue
		}
		r.order = append(r.order, name)
		r.enabled[name] = false
		added = append(added, name)
	}
	if len(added) > 0 {
		r.version++
	}
	return added
}

// SetEnabled sets a field's flag, registering it when unknown. It reports
// whether the registry changed.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.enabled[name]
	if ok && cur == enabled {
		return false
	}
	if !ok {
		r.order = append(r.order, name)
	}
	r.enabled[name] = enabled
	r.version++
	return true
}

// Enabled reports whether name is registered and enabled. Unknown names are disabled.
func (r *Registry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// Known reports whether name has been registered.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.enabled[name]
	return ok
}

// Snapshot returns the entries in registration order.
func (r *Registry) Snapshot() []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Field, len(r.order))
	for i, name := range r.order {
		out[i] = Field{Name: name, Enabled: r.enabled[name]}
	}
	return out
}

// EnabledNames returns the enabled names in registration order.
func (r *Registry) EnabledNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if r.enabled[name] {
			out = append(out, name)
		}
	}
	return out
}

// Version increments on every change.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
