package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInitialized is returned when definitions are requested before a
// successful Initialize.
var ErrNotInitialized = errors.New("definitions not initialized")

// ConfigErrorKind classifies a broken definition or plugin misconfiguration.
type ConfigErrorKind string

const (
	BadDefinition            ConfigErrorKind = "BadDefinition"
	BadValidator             ConfigErrorKind = "BadValidator"
	BadSanitizer             ConfigErrorKind = "BadSanitizer"
	MissingRenderMethod      ConfigErrorKind = "MissingRenderMethod"
	HashFailure              ConfigErrorKind = "HashFailure"
	NoDefinitions            ConfigErrorKind = "NoDefinitions"
	BadColumn                ConfigErrorKind = "BadColumn"
	MissingShortcodeCallback ConfigErrorKind = "MissingShortcodeCallback"
)

// ConfigError identifies which definition, field or metabox is broken.
// It is data: the batch that produced it keeps going and hands the
// collected errors to a single notice adapter.
type ConfigError struct {
	Kind    ConfigErrorKind
	Type    string
	Field   string
	Metabox string
	Keyword string
	Err     error
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Type != "" {
		parts = append(parts, fmt.Sprintf("type %q", e.Type))
	}
	if e.Metabox != "" {
		parts = append(parts, fmt.Sprintf("metabox %q", e.Metabox))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field %q", e.Field))
	}
	if e.Keyword != "" {
		parts = append(parts, fmt.Sprintf("keyword %q", e.Keyword))
	}
	msg := string(e.Kind)
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigKind reports whether err is a ConfigError of the given kind.
func IsConfigKind(err error, kind ConfigErrorKind) bool {
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Kind == kind
}
