package engine

import (
	"context"
	"sync"
)

// HookKind names an extension point a type can override.
type HookKind string

const (
	HookValidator           HookKind = "validator"
	HookContextualValidator HookKind = "contextual_validator"
	HookSanitizer           HookKind = "sanitizer"
	HookRender              HookKind = "render"
	HookPersist             HookKind = "persist"
	HookMetaboxRender       HookKind = "metabox_render"
	HookColumnContent       HookKind = "column_content"
	HookShortcode           HookKind = "shortcode"
)

// ValidatorFunc runs before the definition's validate rules.
type ValidatorFunc func(value any) bool

// ContextualValidatorFunc runs once per save after every field has been
// validated individually. Returning false marks the field invalid.
type ContextualValidatorFunc func(f *Field, fields map[string]*Field) bool

// SanitizerFunc runs before the definition's sanitize rules.
type SanitizerFunc func(value string) string

// RenderFunc replaces the default input markup for a field.
type RenderFunc func(f *Field) string

// PersistFunc takes over persistence for a field, including the decision
// whether to persist at all.
type PersistFunc func(f *Field) error

// MetaboxRenderFunc replaces the default metabox markup.
type MetaboxRenderFunc func(m *Metabox) string

// ColumnContentFunc renders one list-screen cell.
type ColumnContentFunc func(ctx context.Context, entityID int64, c *Column) string

// ShortcodeFunc renders a shortcode. attrs is empty when none were given
// and content is empty for self-closing use.
type ShortcodeFunc func(attrs map[string]string, content, name string) string

type hookKey struct {
	typeName string
	id       string
	kind     HookKind
}

// Hooks is the explicit override table. Entries are keyed by
// (type, field/metabox/column id, kind); shortcodes use the plural name as id.
type Hooks struct {
	mu      sync.RWMutex
	entries map[hookKey]any
}

func NewHooks() *Hooks {
	return &Hooks{entries: make(map[hookKey]any)}
}

func (h *Hooks) set(typeName, id string, kind HookKind, fn any) *Hooks {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[hookKey{typeName, id, kind}] = fn
	return h
}

func (h *Hooks) get(typeName, id string, kind HookKind) (any, bool) {
	if h == nil {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.entries[hookKey{typeName, id, kind}]
	return fn, ok
}

// Has reports whether an override is registered.
func (h *Hooks) Has(typeName, id string, kind HookKind) bool {
	_, ok := h.get(typeName, id, kind)
	return ok
}

func (h *Hooks) OnValidate(typeName, fieldID string, fn ValidatorFunc) *Hooks {
	return h.set(typeName, fieldID, HookValidator, fn)
}

func (h *Hooks) OnContextualValidate(typeName, fieldID string, fn ContextualValidatorFunc) *Hooks {
	return h.set(typeName, fieldID, HookContextualValidator, fn)
}

func (h *Hooks) OnSanitize(typeName, fieldID string, fn SanitizerFunc) *Hooks {
	return h.set(typeName, fieldID, HookSanitizer, fn)
}

func (h *Hooks) OnRender(typeName, fieldID string, fn RenderFunc) *Hooks {
	return h.set(typeName, fieldID, HookRender, fn)
}

func (h *Hooks) OnPersist(typeName, fieldID string, fn PersistFunc) *Hooks {
	return h.set(typeName, fieldID, HookPersist, fn)
}

func (h *Hooks) OnMetaboxRender(typeName, metaboxID string, fn MetaboxRenderFunc) *Hooks {
	return h.set(typeName, metaboxID, HookMetaboxRender, fn)
}

func (h *Hooks) OnColumnContent(typeName, columnID string, fn ColumnContentFunc) *Hooks {
	return h.set(typeName, columnID, HookColumnContent, fn)
}

func (h *Hooks) OnShortcode(typeName, plural string, fn ShortcodeFunc) *Hooks {
	return h.set(typeName, plural, HookShortcode, fn)
}

func (h *Hooks) validator(typeName, id string) ValidatorFunc {
	fn, _ := h.get(typeName, id, HookValidator)
	v, _ := fn.(ValidatorFunc)
	return v
}

func (h *Hooks) contextualValidator(typeName, id string) ContextualValidatorFunc {
	fn, _ := h.get(typeName, id, HookContextualValidator)
	v, _ := fn.(ContextualValidatorFunc)
	return v
}

func (h *Hooks) sanitizer(typeName, id string) SanitizerFunc {
	fn, _ := h.get(typeName, id, HookSanitizer)
	v, _ := fn.(SanitizerFunc)
	return v
}

func (h *Hooks) render(typeName, id string) RenderFunc {
	fn, _ := h.get(typeName, id, HookRender)
	v, _ := fn.(RenderFunc)
	return v
}

func (h *Hooks) persist(typeName, id string) PersistFunc {
	fn, _ := h.get(typeName, id, HookPersist)
	v, _ := fn.(PersistFunc)
	return v
}

func (h *Hooks) metaboxRender(typeName, id string) MetaboxRenderFunc {
	fn, _ := h.get(typeName, id, HookMetaboxRender)
	v, _ := fn.(MetaboxRenderFunc)
	return v
}

func (h *Hooks) columnContent(typeName, id string) ColumnContentFunc {
	fn, _ := h.get(typeName, id, HookColumnContent)
	v, _ := fn.(ColumnContentFunc)
	return v
}

func (h *Hooks) shortcode(typeName, id string) ShortcodeFunc {
	fn, _ := h.get(typeName, id, HookShortcode)
	v, _ := fn.(ShortcodeFunc)
	return v
}
