package engine

import (
	"fmt"

	"customfields/internal/metadata"
)

// AdminNoticer receives admin-facing notices.
type AdminNoticer interface {
	QueueAdminNotice(message string)
}

// ReportConfigErrors turns every collected configuration problem into one
// admin notice.
func ReportConfigErrors(n AdminNoticer, problems []*metadata.ConfigError) {
	for _, p := range problems {
		if p == nil {
			continue
		}
		n.QueueAdminNotice(ConfigNotice(p))
	}
}

// ConfigNotice formats a configuration problem for administrators.
func ConfigNotice(p *metadata.ConfigError) string {
	detail := ""
	if p.Err != nil {
		detail = " " + p.Err.Error()
	}
	switch p.Kind {
	case metadata.NoDefinitions:
		return "CustomFields found no definitions; no content types were registered." + detail
	case metadata.HashFailure:
		return fmt.Sprintf("CustomFields could not hash the definition %q.%s", p.Type, detail)
	case metadata.BadDefinition:
		return fmt.Sprintf("The CustomFields definition for %q is invalid and was skipped:%s", p.Type, detail)
	case metadata.BadValidator:
		return fmt.Sprintf("The CustomFields type %q has an invalid validator %q on field %q; the field was skipped.%s", p.Type, p.Keyword, p.Field, detail)
	case metadata.BadSanitizer:
		return fmt.Sprintf("The CustomFields type %q has an invalid sanitizer %q on field %q; the field was skipped.%s", p.Type, p.Keyword, p.Field, detail)
	case metadata.MissingRenderMethod:
		return fmt.Sprintf("The CustomFields type %q has no render method for field %q of type %q; the field was skipped.", p.Type, p.Field, p.Keyword)
	case metadata.BadColumn:
		return fmt.Sprintf("The CustomFields type %q has an invalid column %q; it was skipped.%s", p.Type, p.Field, detail)
	case metadata.MissingShortcodeCallback:
		return fmt.Sprintf("The CustomFields type %q asks for the shortcode [%s] but no callback is registered.", p.Type, p.Keyword)
	}
	return p.Error()
}
