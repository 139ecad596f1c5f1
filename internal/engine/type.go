package engine

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"customfields/internal/instrument"
	"customfields/internal/metadata"
	"customfields/internal/notifier"
	"customfields/internal/storage"
)

// Platform is what the engine needs from the host that owns content types.
type Platform interface {
	IsTypeRegistered(name string) bool
	RegisterType(name string, registration map[string]any, lc Lifecycle) error
	RemoveMetabox(typeName, metaboxID string)
	GrantRoleCapabilities(role string, caps []string)
	RegisterShortcode(name string, fn ShortcodeFunc) error
	ReplaceArchive(typeName, pageSlug string)
}

// Lifecycle is invoked by the platform on its per-request events.
type Lifecycle interface {
	EditForm(req *Request) *Form
	SaveFieldsData(req *Request, isUpdate bool) *SaveResult
}

// DefinitionSource is the Definition Store.
type DefinitionSource interface {
	GetDefinitions() (map[string]*metadata.Definition, error)
}

// Deps are the collaborators every Type shares.
type Deps struct {
	Storage  storage.Storage
	Hooks    *Hooks
	Platform Platform
}

// Type is one registered content type. It is built once and holds no
// per-request state; every request rebuilds its Fields and Metaboxes.
type Type struct {
	Name   string
	Plural string

	def       *metadata.Definition
	fields    []*fieldPlan
	columns   []*Column
	shortcode ShortcodeFunc

	storage  storage.Storage
	hooks    *Hooks
	platform Platform
}

func (t *Type) Definition() *metadata.Definition { return t.def }
func (t *Type) Columns() []*Column               { return t.columns }

// BuildTypes builds and registers a Type for every usable definition. A
// broken definition, field, column or shortcode is reported and skipped;
// the rest of the batch continues.
func BuildTypes(src DefinitionSource, deps Deps) (map[string]*Type, []*metadata.ConfigError) {
	types := make(map[string]*Type)

	defs, err := src.GetDefinitions()
	if errors.Is(err, metadata.ErrNotInitialized) {
		// The loader has already reported why.
		return types, nil
	}
	if err != nil {
		return types, []*metadata.ConfigError{{Kind: metadata.NoDefinitions, Err: err}}
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []*metadata.ConfigError
	for _, name := range names {
		t, errs := buildType(name, defs[name], deps)
		problems = append(problems, errs...)
		if t != nil {
			types[t.Name] = t
		}
	}
	zap.S().Infof("Built %d content types", len(types))
	return types, problems
}

func buildType(name string, def *metadata.Definition, deps Deps) (*Type, []*metadata.ConfigError) {
	if def == nil || def.SingularName == "" || def.PluralName == "" {
		return nil, []*metadata.ConfigError{{
			Kind: metadata.BadDefinition,
			Type: name,
			Err:  errors.New("singular_name and plural_name are required"),
		}}
	}
	if deps.Platform.IsTypeRegistered(def.SingularName) {
		return nil, []*metadata.ConfigError{{
			Kind: metadata.BadDefinition,
			Type: def.SingularName,
			Err:  errors.New("cannot redefine type"),
		}}
	}

	t := &Type{
		Name:     def.SingularName,
		Plural:   def.PluralName,
		def:      def,
		storage:  deps.Storage,
		hooks:    deps.Hooks,
		platform: deps.Platform,
	}

	var problems []*metadata.ConfigError
	for _, spec := range def.Fields {
		plan, cerr := compileField(t.Name, spec, deps.Hooks)
		if cerr != nil {
			problems = append(problems, cerr)
			continue
		}
		t.fields = append(t.fields, plan)
	}

	for _, spec := range def.Columns {
		col, cerr := newColumn(t, spec)
		if cerr != nil {
			problems = append(problems, cerr)
			continue
		}
		t.columns = append(t.columns, col)
	}

	if err := deps.Platform.RegisterType(t.Name, def.Registration, t); err != nil {
		problems = append(problems, &metadata.ConfigError{Kind: metadata.BadDefinition, Type: t.Name, Err: err})
		return nil, problems
	}
	deps.Platform.GrantRoleCapabilities(metadata.AdministratorRole, metadata.TypeCapabilities(t.Plural))

	if def.CreateShortcode {
		if cerr := t.registerShortcode(); cerr != nil {
			problems = append(problems, cerr)
		}
	}
	if def.ReplaceArchiveWithPage != "" {
		deps.Platform.ReplaceArchive(t.Name, def.ReplaceArchiveWithPage)
	}
	return t, problems
}

// Form is the per-request object graph for one entity.
type Form struct {
	Type      *Type
	EntityID  int64
	Fields    map[string]*Field
	Order     []string
	Metaboxes []*Metabox
	Warnings  *notifier.Warnings
}

// PrepareFields rebuilds all Fields and then all Metaboxes for the request.
// Nothing from a previous request is reused.
func (t *Type) PrepareFields(req *Request) *Form {
	if req.Notifier != nil {
		req.Notifier.SetTransientKey(req.transientKey())
	}
	form := &Form{
		Type:     t,
		EntityID: req.EntityID,
		Fields:   make(map[string]*Field, len(t.fields)),
	}
	for _, plan := range t.fields {
		if f := buildField(req, t, plan); f != nil {
			form.Fields[f.ID()] = f
			form.Order = append(form.Order, f.ID())
		}
	}
	for _, spec := range t.def.Metaboxes {
		if m := buildMetabox(req, t, spec, form.Fields); m != nil {
			form.Metaboxes = append(form.Metaboxes, m)
		}
	}
	return form
}

// EditForm prepares the form and picks up warnings left by the last save.
func (t *Type) EditForm(req *Request) *Form {
	form := t.PrepareFields(req)
	if req.Notifier != nil {
		form.Warnings = req.Notifier.RetrieveWarnings("")
	}
	return form
}

// Metabox returns the built metabox with the given id, or nil.
func (f *Form) Metabox(id string) *Metabox {
	for _, m := range f.Metaboxes {
		if m.ID() == id {
			return m
		}
	}
	return nil
}

// Render returns the warning banner followed by each metabox.
func (f *Form) Render() string {
	flagged := make(map[string]bool)
	var sb strings.Builder
	if f.Warnings != nil && len(f.Warnings.Messages) > 0 {
		sb.WriteString(`<div class="notice notice-warning customfields-warnings"><ul>`)
		for _, msg := range f.Warnings.Messages {
			fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(msg))
		}
		sb.WriteString("</ul></div>")
	}
	if f.Warnings != nil {
		for _, id := range f.Warnings.Elements {
			flagged[id] = true
		}
	}
	for _, m := range f.Metaboxes {
		class := "postbox customfields-metabox"
		for _, field := range m.Fields() {
			if flagged[field.ID()] {
				class += " customfields-has-warning"
				break
			}
		}
		fmt.Fprintf(&sb, `<div id="%s" class="%s" data-context="%s"><h2>%s</h2><div class="inside">%s</div></div>`,
			html.EscapeString(m.ID()), class, html.EscapeString(m.Context()), html.EscapeString(m.Title()), m.Render())
	}
	return sb.String()
}

// SaveSkip says why a save did nothing.
type SaveSkip string

const (
	SkipAutosave  SaveSkip = "autosave"
	SkipNotUpdate SaveSkip = "not_update"
	SkipForbidden SaveSkip = "forbidden"
)

// FailureKind classifies a field that was not saved.
type FailureKind string

const (
	ValidationFailure FailureKind = "validation"
	PersistFailure    FailureKind = "persist"
)

// FieldFailure is one field the save did not store.
type FieldFailure struct {
	Field string      `json:"field"`
	Kind  FailureKind `json:"kind"`
	Err   error       `json:"-"`
}

// SaveResult summarizes a save.
type SaveResult struct {
	EntityID  int64                     `json:"entity_id"`
	Skipped   SaveSkip                  `json:"skipped,omitempty"`
	Outcomes  map[string]PersistOutcome `json:"outcomes"`
	Persisted []string                  `json:"persisted"`
	Failures  []FieldFailure            `json:"failures,omitempty"`
}

// OK reports whether every collected field was handled without failure.
func (r *SaveResult) OK() bool { return r.Skipped == "" && len(r.Failures) == 0 }

// SaveFieldsData validates and persists submitted values for an update.
// Autosaves and creations are ignored, as is an actor without the type's
// edit capability.
func (t *Type) SaveFieldsData(req *Request, isUpdate bool) *SaveResult {
	result := &SaveResult{EntityID: req.EntityID, Outcomes: make(map[string]PersistOutcome)}
	if req.Autosave {
		result.Skipped = SkipAutosave
		return result
	}
	if !isUpdate {
		result.Skipped = SkipNotUpdate
		return result
	}
	if !req.Can(metadata.EditCapability(t.Plural)) {
		result.Skipped = SkipForbidden
		return result
	}

	ctx, span := instrument.GetInstrumenter(req.context()).StartSpan(req.context(), "engine", "save", "fields.save")
	defer span.End()
	span.SetEntity(t.Name, strconv.FormatInt(req.EntityID, 10))

	saveReq := *req
	saveReq.Ctx = ctx
	saveReq.Saving = true
	form := t.PrepareFields(&saveReq)

	collected, order := collectFields(form)
	for _, id := range order {
		collected[id].GetValue()
	}
	for _, id := range order {
		collected[id].CallContextualValidator(collected)
	}

	inst := instrument.GetInstrumenter(ctx)
	recordID := strconv.FormatInt(req.EntityID, 10)
	for _, id := range order {
		f := collected[id]
		outcome, err := f.PersistValue()
		result.Outcomes[id] = outcome
		switch outcome {
		case Persisted, Delegated:
			result.Persisted = append(result.Persisted, id)
			inst.EmitBusinessEvent(ctx, "field.persisted", t.Name, recordID, map[string]any{"field": id})
		case SkippedValidationOnly:
			if !f.GetValidationStatus() {
				result.Failures = append(result.Failures, FieldFailure{Field: id, Kind: ValidationFailure})
			}
		case SkippedInvalid:
			result.Failures = append(result.Failures, FieldFailure{Field: id, Kind: ValidationFailure})
			inst.EmitBusinessEvent(ctx, "field.skipped_invalid", t.Name, recordID, map[string]any{"field": id})
		case PersistFailed:
			result.Failures = append(result.Failures, FieldFailure{Field: id, Kind: PersistFailure, Err: err})
			zap.S().Errorf("persist %s.%s for entity %d: %v", t.Name, id, req.EntityID, err)
			saveReq.queueUserWarning(fmt.Sprintf("%s could not be saved.", f.Spec().Label()))
			saveReq.queueFieldWarning(id)
			inst.EmitBusinessEvent(ctx, "field.persist_failed", t.Name, recordID, map[string]any{"field": id, "error": err.Error()})
		}
	}

	if len(result.Failures) > 0 {
		labels := make([]string, len(result.Failures))
		for i, ff := range result.Failures {
			labels[i] = collected[ff.Field].Spec().Label()
		}
		saveReq.queueUserWarning("These fields were not saved: " + strings.Join(labels, ", ") + ".")
		span.SetStatus("error")
	} else {
		span.SetStatus("ok")
	}
	span.SetMetadata("persisted", len(result.Persisted))
	span.SetMetadata("failed", len(result.Failures))

	if saveReq.Notifier != nil {
		saveReq.Notifier.Flush()
	}
	return result
}

// collectFields returns the union of metabox fields, first seen wins.
func collectFields(form *Form) (map[string]*Field, []string) {
	collected := make(map[string]*Field)
	var order []string
	for _, m := range form.Metaboxes {
		for _, f := range m.Fields() {
			if _, seen := collected[f.ID()]; seen {
				continue
			}
			collected[f.ID()] = f
			order = append(order, f.ID())
		}
	}
	return collected, order
}
