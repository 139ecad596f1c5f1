package engine

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-playground/validator/v10"

	"customfields/internal/metadata"
)

// ValidatorKind tags the built-in validators a definition can name.
type ValidatorKind int

const (
	NotEmpty ValidatorKind = iota + 1
	URL
	Email
	MinLength
	MaxLength
	Pattern
	Expression
)

func (k ValidatorKind) String() string {
	switch k {
	case NotEmpty:
		return "not empty"
	case URL:
		return "url"
	case Email:
		return "email"
	case MinLength:
		return "min length"
	case MaxLength:
		return "max length"
	case Pattern:
		return "pattern"
	case Expression:
		return "expression"
	}
	return fmt.Sprintf("validator(%d)", int(k))
}

// Validator is one resolved validate rule.
type Validator struct {
	Kind    ValidatorKind
	Length  int
	Regexp  *regexp.Regexp
	Program *vm.Program
}

var formats = validator.New()

// ParseValidator resolves a validate rule by keyword. Unknown keywords and
// bad arguments are errors; the caller turns them into BadValidator.
func ParseValidator(rule metadata.Rule) (Validator, error) {
	switch rule.Keyword {
	case "not empty":
		return Validator{Kind: NotEmpty}, nil
	case "url":
		return Validator{Kind: URL}, nil
	case "email":
		return Validator{Kind: Email}, nil
	case "min length", "max length":
		n, err := rule.IntArg(0)
		if err != nil {
			return Validator{}, err
		}
		if n < 0 {
			return Validator{}, fmt.Errorf("%s: length must not be negative", rule.Keyword)
		}
		kind := MinLength
		if rule.Keyword == "max length" {
			kind = MaxLength
		}
		return Validator{Kind: kind, Length: n}, nil
	case "pattern":
		src, err := rule.StringArg(0)
		if err != nil {
			return Validator{}, err
		}
		re, err := compilePattern(src)
		if err != nil {
			return Validator{}, fmt.Errorf("pattern: %w", err)
		}
		return Validator{Kind: Pattern, Regexp: re}, nil
	case "expression":
		src, err := rule.StringArg(0)
		if err != nil {
			return Validator{}, err
		}
		prog, err := CompileExpression(src)
		if err != nil {
			return Validator{}, err
		}
		return Validator{Kind: Expression, Program: prog}, nil
	}
	return Validator{}, fmt.Errorf("unknown validator %q", rule.Keyword)
}

// Validate runs v against a raw field value.
func Validate(v Validator, value any) bool {
	switch v.Kind {
	case NotEmpty:
		return !isEmpty(value) || isNumericZero(value)
	case URL:
		s := toString(value)
		return s != "" && formats.Var(s, "url") == nil
	case Email:
		s := toString(value)
		return s != "" && formats.Var(s, "email") == nil
	case MinLength:
		return utf8.RuneCountInString(toString(value)) >= v.Length
	case MaxLength:
		return utf8.RuneCountInString(toString(value)) <= v.Length
	case Pattern:
		return v.Regexp.MatchString(toString(value))
	case Expression:
		ok, err := RunExpression(v.Program, map[string]any{"value": toString(value)})
		return err == nil && ok
	}
	return false
}

// compilePattern accepts either a bare RE2 pattern or a delimited one such
// as /^[a-z]+$/i.
func compilePattern(src string) (*regexp.Regexp, error) {
	if len(src) >= 2 && src[0] == '/' {
		if end := strings.LastIndexByte(src, '/'); end > 0 {
			body, flags := src[1:end], src[end+1:]
			if strings.Trim(flags, "imsU") == "" {
				if flags != "" {
					body = "(?" + flags + ")" + body
				}
				return regexp.Compile(body)
			}
		}
	}
	return regexp.Compile(src)
}

// CompileExpression compiles a boolean expr-lang expression.
func CompileExpression(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	return prog, nil
}

// RunExpression evaluates a compiled expression against env.
func RunExpression(prog *vm.Program, env map[string]any) (bool, error) {
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, not bool", out)
	}
	return b, nil
}
