package metadata

import (
	"sort"
	"sync"
)

// Registry holds the definitions loaded for this process and serves them
// to the engine.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
	initialized bool
}

func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
	}
}

// GetDefinitions returns all definitions keyed by type directory name.
func (r *Registry) GetDefinitions() (map[string]*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized {
		return nil, ErrNotInitialized
	}
	out := make(map[string]*Definition, len(r.definitions))
	for k, v := range r.definitions {
		out[k] = v
	}
	return out, nil
}

// GetDefinition returns the definition with the given name, or nil.
func (r *Registry) GetDefinition(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.definitions[name]
}

// Names returns the definition names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.definitions)
}

// IsInitialized reports whether Load has been called.
func (r *Registry) IsInitialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Load replaces all definitions in the registry and marks it initialized.
func (r *Registry) Load(defs map[string]*Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.definitions = make(map[string]*Definition, len(defs))
	for name, d := range defs {
		r.definitions[name] = d
	}
	r.initialized = true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
