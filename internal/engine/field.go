package engine

import (
	"fmt"
	"html"

	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"customfields/internal/metadata"
)

type renderKind int

const (
	renderNone renderKind = iota
	renderText
	renderBoolean
	renderOverride
)

// fieldPlan is what BuildTypes resolves once per field so that broken
// keywords fail when definitions load, not on the first request.
type fieldPlan struct {
	spec       *metadata.FieldSpec
	validators []Validator
	sanitizers []Sanitizer
	contextual *vm.Program
	render     renderKind

	validateHook   ValidatorFunc
	contextualHook ContextualValidatorFunc
	sanitizeHook   SanitizerFunc
	renderHook     RenderFunc
	persistHook    PersistFunc
}

func compileField(typeName string, spec *metadata.FieldSpec, hooks *Hooks) (*fieldPlan, *metadata.ConfigError) {
	plan := &fieldPlan{
		spec:           spec,
		validateHook:   hooks.validator(typeName, spec.ID),
		contextualHook: hooks.contextualValidator(typeName, spec.ID),
		sanitizeHook:   hooks.sanitizer(typeName, spec.ID),
		renderHook:     hooks.render(typeName, spec.ID),
		persistHook:    hooks.persist(typeName, spec.ID),
	}

	for _, rule := range spec.Validate {
		v, err := ParseValidator(rule)
		if err != nil {
			return nil, &metadata.ConfigError{Kind: metadata.BadValidator, Type: typeName, Field: spec.ID, Keyword: rule.Keyword, Err: err}
		}
		plan.validators = append(plan.validators, v)
	}

	if spec.Contextual != "" {
		prog, err := CompileExpression(spec.Contextual)
		if err != nil {
			return nil, &metadata.ConfigError{Kind: metadata.BadValidator, Type: typeName, Field: spec.ID, Keyword: "contextual", Err: err}
		}
		plan.contextual = prog
	}

	for _, rule := range spec.Sanitize {
		s, err := ParseSanitizer(rule)
		if err != nil {
			return nil, &metadata.ConfigError{Kind: metadata.BadSanitizer, Type: typeName, Field: spec.ID, Keyword: rule.Keyword, Err: err}
		}
		plan.sanitizers = append(plan.sanitizers, s)
	}

	switch {
	case plan.renderHook != nil:
		plan.render = renderOverride
	case spec.Type == metadata.FieldTypeValidationOnly:
		plan.render = renderNone
	case spec.Type == metadata.FieldTypeText:
		plan.render = renderText
	case spec.Type == metadata.FieldTypeBoolean:
		plan.render = renderBoolean
	default:
		return nil, &metadata.ConfigError{Kind: metadata.MissingRenderMethod, Type: typeName, Field: spec.ID, Keyword: spec.Type}
	}
	return plan, nil
}

// PersistOutcome records what PersistValue did.
type PersistOutcome int

const (
	Persisted PersistOutcome = iota + 1
	SkippedValidationOnly
	SkippedInvalid
	PersistFailed
	Delegated
)

func (o PersistOutcome) String() string {
	switch o {
	case Persisted:
		return "persisted"
	case SkippedValidationOnly:
		return "skipped_validation_only"
	case SkippedInvalid:
		return "skipped_invalid"
	case PersistFailed:
		return "persist_failed"
	case Delegated:
		return "delegated"
	}
	return "unknown"
}

func (o PersistOutcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Field is one field's value lifecycle for one request.
type Field struct {
	req  *Request
	typ  *Type
	plan *fieldPlan

	value    any
	hasValue bool

	sanitized     string
	sanitizedDone bool

	validationComplete bool
	validationPassed   bool
}

// buildField returns nil when the actor lacks a required capability.
func buildField(req *Request, t *Type, plan *fieldPlan) *Field {
	if !req.canAll(plan.spec.Requires) {
		return nil
	}
	f := &Field{req: req, typ: t, plan: plan}
	f.setValue()
	return f
}

// setValue picks the source once: the submitted form on save, storage for
// an existing entity, otherwise the definition default.
func (f *Field) setValue() {
	id := f.plan.spec.ID
	switch {
	case f.req.Saving:
		f.value = f.req.Submitted[id]
		f.hasValue = true
	case f.req.EntityID != 0:
		v, err := f.typ.storage.Retrieve(f.req.context(), f.req.EntityID, id)
		if err != nil {
			zap.S().Warnf("retrieve %s for %s %d: %v", id, f.typ.Name, f.req.EntityID, err)
			v = ""
		}
		f.value = v
		f.hasValue = true
	case f.plan.spec.Default != nil:
		f.value = f.plan.spec.Default
		f.hasValue = true
	}
}

func (f *Field) ID() string                  { return f.plan.spec.ID }
func (f *Field) Spec() *metadata.FieldSpec   { return f.plan.spec }
func (f *Field) Type() *Type                 { return f.typ }
func (f *Field) Request() *Request           { return f.req }
func (f *Field) EntityID() int64             { return f.req.EntityID }
func (f *Field) RawValue() any               { return f.value }
func (f *Field) HasValue() bool              { return f.hasValue }
func (f *Field) ValidationComplete() bool    { return f.validationComplete }
func (f *Field) IsValidationOnly() bool      { return f.plan.spec.Type == metadata.FieldTypeValidationOnly }
func (f *Field) PersistsInvalidValues() bool { return f.plan.spec.PersistInvalidValues }

// ValidateValue runs the validator chain once and memoizes the result.
func (f *Field) ValidateValue() bool {
	if f.validationComplete {
		return f.validationPassed
	}
	passed := true
	if f.plan.validateHook != nil && !f.plan.validateHook(f.value) {
		passed = false
	}
	if passed {
		for _, v := range f.plan.validators {
			if !Validate(v, f.value) {
				passed = false
				break
			}
		}
	}
	f.validationPassed = passed
	f.validationComplete = true
	if !passed {
		f.flag()
	}
	return passed
}

// GetValidationStatus returns whether the value passed validation.
func (f *Field) GetValidationStatus() bool {
	return f.ValidateValue()
}

// SanitizedValue runs the sanitizer chain once, whatever the validation
// outcome, and memoizes the result.
func (f *Field) SanitizedValue() string {
	if f.sanitizedDone {
		return f.sanitized
	}
	s := toString(f.value)
	if f.plan.sanitizeHook != nil {
		s = f.plan.sanitizeHook(s)
	}
	for _, san := range f.plan.sanitizers {
		s = Sanitize(san, s)
	}
	f.sanitized = s
	f.sanitizedDone = true
	return s
}

// GetValue validates and sanitizes, returning the value to persist.
func (f *Field) GetValue() string {
	f.ValidateValue()
	return f.SanitizedValue()
}

// ErrorMessage is the warning shown when this field fails validation.
func (f *Field) ErrorMessage() string {
	if f.plan.spec.ErrorMessage != "" {
		return f.plan.spec.ErrorMessage
	}
	return fmt.Sprintf("The value for %s is not valid.", f.plan.spec.Label())
}

func (f *Field) flag() {
	f.req.queueUserWarning(f.ErrorMessage())
	f.req.queueFieldWarning(f.plan.spec.ID)
}

// CallContextualValidator runs the cross-field check, if any. A failure
// marks the field invalid and queues the field's warning.
func (f *Field) CallContextualValidator(fields map[string]*Field) {
	if f.plan.contextualHook == nil && f.plan.contextual == nil {
		return
	}
	f.ValidateValue()

	ok := true
	if f.plan.contextualHook != nil {
		ok = f.plan.contextualHook(f, fields)
	}
	if ok && f.plan.contextual != nil {
		env := map[string]any{
			"value":  toString(f.value),
			"fields": rawValues(fields),
		}
		res, err := RunExpression(f.plan.contextual, env)
		if err != nil {
			zap.S().Warnf("contextual validator for %s.%s: %v", f.typ.Name, f.plan.spec.ID, err)
		}
		ok = err == nil && res
	}
	if !ok && f.validationPassed {
		f.validationPassed = false
		f.flag()
	}
}

func rawValues(fields map[string]*Field) map[string]any {
	out := make(map[string]any, len(fields))
	for id, f := range fields {
		out[id] = toString(f.value)
	}
	return out
}

// Render returns the field's edit-form markup.
func (f *Field) Render() string {
	id := f.plan.spec.ID
	inputID := "customfields-" + id
	label := html.EscapeString(f.plan.spec.Label())
	switch f.plan.render {
	case renderOverride:
		return f.plan.renderHook(f)
	case renderText:
		return fmt.Sprintf(`<label for="%s">%s</label> <input type="text" id="%s" name="%s" value="%s" />`,
			inputID, label, inputID, html.EscapeString(id), html.EscapeString(toString(f.value)))
	case renderBoolean:
		checked := ""
		if toString(f.value) != "" {
			checked = ` checked="checked"`
		}
		return fmt.Sprintf(`<input type="checkbox" id="%s" name="%s" value="1"%s /> <label for="%s">%s</label>`,
			inputID, html.EscapeString(id), checked, inputID, label)
	}
	return ""
}

// PersistValue stores the sanitized value if policy allows. A persist hook
// takes over completely.
func (f *Field) PersistValue() (PersistOutcome, error) {
	if f.plan.persistHook != nil {
		if err := f.plan.persistHook(f); err != nil {
			return PersistFailed, err
		}
		return Delegated, nil
	}
	if f.IsValidationOnly() {
		return SkippedValidationOnly, nil
	}
	value := f.GetValue()
	if !f.validationPassed && !f.plan.spec.PersistInvalidValues {
		return SkippedInvalid, nil
	}
	if err := f.typ.storage.Persist(f.req.context(), f.req.EntityID, f.plan.spec.ID, value); err != nil {
		return PersistFailed, err
	}
	return Persisted, nil
}
