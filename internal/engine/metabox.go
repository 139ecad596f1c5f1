package engine

import (
	"fmt"
	"html"
	"strings"

	"customfields/internal/metadata"
)

// Metabox is an ordered group of fields on the edit screen.
type Metabox struct {
	req    *Request
	typ    *Type
	spec   *metadata.MetaboxSpec
	fields []*Field
	render MetaboxRenderFunc
}

// buildMetabox returns nil when the actor lacks a required capability or
// the box is declared for removal. Removal is forwarded to the platform.
func buildMetabox(req *Request, t *Type, spec *metadata.MetaboxSpec, built map[string]*Field) *Metabox {
	if spec.Display == metadata.DisplayRemove {
		t.platform.RemoveMetabox(t.Name, spec.ID)
		return nil
	}
	if !req.canAll(spec.Requires) {
		return nil
	}

	m := &Metabox{
		req:    req,
		typ:    t,
		spec:   spec,
		render: t.hooks.metaboxRender(t.Name, spec.ID),
	}
	for _, id := range spec.Fields {
		if f, ok := built[id]; ok {
			m.fields = append(m.fields, f)
		}
	}
	return m
}

func (m *Metabox) ID() string                  { return m.spec.ID }
func (m *Metabox) Spec() *metadata.MetaboxSpec { return m.spec }
func (m *Metabox) Fields() []*Field            { return m.fields }
func (m *Metabox) Type() *Type                 { return m.typ }

// Title falls back to the id when the definition has none.
func (m *Metabox) Title() string {
	if m.spec.Title != "" {
		return m.spec.Title
	}
	return m.spec.ID
}

// Context is the screen area the box is placed in.
func (m *Metabox) Context() string {
	if m.spec.Context != "" {
		return m.spec.Context
	}
	return "advanced"
}

// Render returns the box body.
func (m *Metabox) Render() string {
	if m.render != nil {
		return m.render(m)
	}
	var sb strings.Builder
	for _, f := range m.fields {
		fmt.Fprintf(&sb, `<div class="customfields-field customfields-field-%s">%s</div>`,
			html.EscapeString(f.ID()), f.Render())
	}
	return sb.String()
}
