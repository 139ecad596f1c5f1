package engine

import (
	"errors"

	"customfields/internal/metadata"
)

// registerShortcode exposes the type's plural name as a shortcode. The
// callback must be registered as a hook beforehand.
func (t *Type) registerShortcode() *metadata.ConfigError {
	fn := t.hooks.shortcode(t.Name, t.Plural)
	if fn == nil {
		return &metadata.ConfigError{
			Kind:    metadata.MissingShortcodeCallback,
			Type:    t.Name,
			Keyword: t.Plural,
			Err:     errors.New("create_shortcode is set but no shortcode callback is registered"),
		}
	}
	if err := t.platform.RegisterShortcode(t.Plural, fn); err != nil {
		return &metadata.ConfigError{Kind: metadata.MissingShortcodeCallback, Type: t.Name, Keyword: t.Plural, Err: err}
	}
	t.shortcode = fn
	return nil
}

// Shortcode returns the registered shortcode callback, or nil.
func (t *Type) Shortcode() ShortcodeFunc { return t.shortcode }
