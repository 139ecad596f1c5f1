// Package platform is the in-process host that owns content types. It keeps
// the type registry, role capabilities, shortcodes and archive pages, and
// dispatches edit-form and save events to each type's lifecycle.
package platform

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"customfields/internal/engine"
)

var (
	ErrUnknownType      = errors.New("unknown content type")
	ErrTypeRegistered   = errors.New("content type already registered")
	ErrShortcodeExists  = errors.New("shortcode already registered")
	ErrUnknownShortcode = errors.New("unknown shortcode")
)

// BuiltinTypes are owned by the platform itself and cannot be redefined.
var BuiltinTypes = []string{"post", "page"}

type registeredType struct {
	name         string
	registration map[string]any
	lifecycle    engine.Lifecycle
}

// Platform implements engine.Platform.
type Platform struct {
	mu         sync.RWMutex
	builtin    map[string]bool
	types      map[string]*registeredType
	removed    map[string][]string
	roles      map[string]map[string]bool
	shortcodes map[string]engine.ShortcodeFunc
	archives   map[string]string
}

// New creates a platform whose roles start with the given capabilities.
func New(roles map[string][]string) *Platform {
	p := &Platform{
		builtin:    make(map[string]bool, len(BuiltinTypes)),
		types:      make(map[string]*registeredType),
		removed:    make(map[string][]string),
		roles:      make(map[string]map[string]bool),
		shortcodes: make(map[string]engine.ShortcodeFunc),
		archives:   make(map[string]string),
	}
	for _, name := range BuiltinTypes {
		p.builtin[name] = true
	}
	for role, caps := range roles {
		p.GrantRoleCapabilities(role, caps)
	}
	return p
}

func (p *Platform) IsTypeRegistered(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.types[name]
	return ok || p.builtin[name]
}

func (p *Platform) RegisterType(name string, registration map[string]any, lc engine.Lifecycle) error {
	if name == "" {
		return errors.New("type name is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.types[name]; ok || p.builtin[name] {
		return fmt.Errorf("%w: %s", ErrTypeRegistered, name)
	}
	p.types[name] = &registeredType{name: name, registration: registration, lifecycle: lc}
	zap.S().Infof("Registered content type %s", name)
	return nil
}

// Types returns the registered custom types, sorted.
func (p *Platform) Types() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.types))
	for name := range p.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registration returns the payload the type was registered with.
func (p *Platform) Registration(name string) (map[string]any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.types[name]
	if !ok {
		return nil, false
	}
	return t.registration, true
}

func (p *Platform) lifecycle(name string) (engine.Lifecycle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.types[name]
	if !ok || t.lifecycle == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return t.lifecycle, nil
}

func (p *Platform) RemoveMetabox(typeName, metaboxID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.removed[typeName] {
		if id == metaboxID {
			return
		}
	}
	p.removed[typeName] = append(p.removed[typeName], metaboxID)
}

// RemovedMetaboxes lists the metabox ids suppressed on the type's edit screen.
func (p *Platform) RemovedMetaboxes(typeName string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.removed[typeName]...)
}

func (p *Platform) ReplaceArchive(typeName, pageSlug string) {
	p.mu.Lock()
	p.archives[typeName] = pageSlug
	p.mu.Unlock()
}

// ArchivePage returns the page slug served instead of the type's archive.
func (p *Platform) ArchivePage(typeName string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	slug, ok := p.archives[typeName]
	return slug, ok
}
