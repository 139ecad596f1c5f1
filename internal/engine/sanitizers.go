package engine

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"customfields/internal/metadata"
)

// SanitizerKind tags the built-in sanitizers.
type SanitizerKind int

const (
	StripHTML SanitizerKind = iota + 1
	Trim
)

func (k SanitizerKind) String() string {
	switch k {
	case StripHTML:
		return "strip html"
	case Trim:
		return "trim"
	}
	return fmt.Sprintf("sanitizer(%d)", int(k))
}

// Sanitizer is one resolved sanitize rule.
type Sanitizer struct {
	Kind SanitizerKind
}

// ParseSanitizer resolves a sanitize rule by keyword.
func ParseSanitizer(rule metadata.Rule) (Sanitizer, error) {
	switch rule.Keyword {
	case "strip html":
		return Sanitizer{Kind: StripHTML}, nil
	case "trim":
		return Sanitizer{Kind: Trim}, nil
	}
	return Sanitizer{}, fmt.Errorf("unknown sanitizer %q", rule.Keyword)
}

// Sanitize applies s to value.
func Sanitize(s Sanitizer, value string) string {
	switch s.Kind {
	case StripHTML:
		return stripTags(value)
	case Trim:
		return strings.TrimSpace(value)
	}
	return value
}

// stripTags keeps only the text content of value. Script and style bodies
// are dropped, and entities are left encoded so a second pass changes nothing.
func stripTags(value string) string {
	if !strings.ContainsAny(value, "<>") {
		return value
	}
	z := html.NewTokenizer(strings.NewReader(value))
	var sb strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return sb.String()
			}
			return strings.NewReplacer("<", "", ">", "").Replace(sb.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTextTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTextTag(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Raw())
			}
		}
	}
}

func isRawTextTag(name string) bool {
	return name == "script" || name == "style"
}
