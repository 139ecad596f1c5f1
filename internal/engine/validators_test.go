package engine

import (
	"testing"

	"customfields/internal/metadata"
)

func mustValidator(t *testing.T, keyword string, args ...any) Validator {
	t.Helper()
	v, err := ParseValidator(metadata.NewRule(keyword, args...))
	if err != nil {
		t.Fatalf("parse %s: %v", keyword, err)
	}
	return v
}

func TestValidate_KeywordTable(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		args    []any
		value   any
		want    bool
	}{
		{"not empty with text", "not empty", nil, "hi", true},
		{"not empty with blank", "not empty", nil, "", false},
		{"not empty with nil", "not empty", nil, nil, false},
		{"not empty with numeric zero", "not empty", nil, 0.0, true},
		{"not empty with string zero", "not empty", nil, "0", true},
		{"not empty with false", "not empty", nil, false, false},
		{"url valid", "url", nil, "https://example.com/path?q=1", true},
		{"url missing scheme", "url", nil, "example.com", false},
		{"url empty", "url", nil, "", false},
		{"email valid", "email", nil, "ada@example.com", true},
		{"email invalid", "email", nil, "ada@", false},
		{"min length counts runes", "min-length", []any{3}, "héé", true},
		{"min length short", "min-length", []any{3}, "hi", false},
		{"min length spaces count", "min-length", []any{3}, "  hi  ", true},
		{"max length ok", "max_length", []any{5}, "hello", true},
		{"max length over", "max_length", []any{5}, "hello!", false},
		{"pattern match", "pattern", []any{`^[A-Z]{3}$`}, "ABC", true},
		{"pattern no match", "pattern", []any{`^[A-Z]{3}$`}, "abc", false},
		{"delimited pattern with flag", "pattern", []any{`/^[a-z]{3}$/i`}, "ABC", true},
		{"expression true", "expression", []any{`len(value) > 2`}, "abc", true},
		{"expression false", "expression", []any{`len(value) > 2`}, "ab", false},
		{"expression runtime error is invalid", "expression", []any{`int(value) > 0`}, "abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustValidator(t, tt.keyword, tt.args...)
			if got := Validate(v, tt.value); got != tt.want {
				t.Fatalf("Validate(%s, %v) = %v, want %v", tt.keyword, tt.value, got, tt.want)
			}
		})
	}
}

func TestParseValidator_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule metadata.Rule
	}{
		{"unknown keyword", metadata.NewRule("bogus")},
		{"min length without argument", metadata.NewRule("min-length")},
		{"min length with text argument", metadata.NewRule("min-length", "three")},
		{"negative length", metadata.NewRule("max-length", -1)},
		{"bad regex", metadata.NewRule("pattern", "([a-z")},
		{"pattern without argument", metadata.NewRule("pattern")},
		{"bad expression", metadata.NewRule("expression", "value ===")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseValidator(tt.rule); err == nil {
				t.Fatalf("expected error for %v", tt.rule)
			}
		})
	}
}

func TestValidatorKind_String(t *testing.T) {
	if MinLength.String() != "min length" || Pattern.String() != "pattern" {
		t.Fatalf("unexpected names %s, %s", MinLength, Pattern)
	}
}
