package metadata

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field types understood by the default renderers.
const (
	FieldTypeText           = "text"
	FieldTypeBoolean        = "boolean"
	FieldTypeValidationOnly = "validation only"
)

// DisplayRemove tells the platform to suppress an existing metabox of the same id.
const DisplayRemove = "remove"

// Definition is the parsed tree for one content type. It is never mutated
// after the loader hands it out.
type Definition struct {
	SingularName string `json:"singular_name"`
	PluralName   string `json:"plural_name"`

	// Registration is the opaque payload passed to the platform when the
	// type is registered (labels, public, hierarchical, ...).
	Registration map[string]any `json:"wp_definition,omitempty"`

	Fields    []*FieldSpec   `json:"fields,omitempty"`
	Metaboxes []*MetaboxSpec `json:"metaboxes,omitempty"`
	Columns   []*ColumnSpec  `json:"add_columns,omitempty"`

	ReplaceArchiveWithPage string `json:"replace_archive_with_page,omitempty"`
	CreateShortcode        bool   `json:"create_shortcode,omitempty"`
}

// FieldSpec declares one field.
type FieldSpec struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name,omitempty" yaml:"name"`
	Type                 string   `json:"type,omitempty" yaml:"type"`
	Default              any      `json:"default,omitempty" yaml:"default"`
	Validate             []Rule   `json:"validate,omitempty" yaml:"validate"`
	Sanitize             []Rule   `json:"sanitize,omitempty" yaml:"sanitize"`
	Requires             []string `json:"requires,omitempty" yaml:"requires"`
	ErrorMessage         string   `json:"error_message,omitempty" yaml:"error_message"`
	PersistInvalidValues bool     `json:"persist_invalid_values,omitempty" yaml:"persist_invalid_values"`

	// Contextual is an optional expression evaluated after every field of
	// the save has been validated. It sees `value` and `fields`.
	Contextual string `json:"contextual,omitempty" yaml:"contextual"`
}

// Label returns the human-readable name, falling back to the id.
func (f *FieldSpec) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// MetaboxSpec declares one metabox on the edit screen.
type MetaboxSpec struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty" yaml:"title"`
	Fields   []string `json:"fields,omitempty" yaml:"fields"`
	Requires []string `json:"requires,omitempty" yaml:"requires"`
	Display  string   `json:"display,omitempty" yaml:"display"`
	Context  string   `json:"context,omitempty" yaml:"context"`
	Priority string   `json:"priority,omitempty" yaml:"priority"`
}

// ColumnSpec declares an extra column on the type's list screen.
type ColumnSpec struct {
	ID       string      `json:"id"`
	Header   string      `json:"header,omitempty" yaml:"header"`
	Position *int        `json:"position,omitempty" yaml:"position"`
	Sort     *ColumnSort `json:"sort,omitempty" yaml:"sort"`
}

// ColumnSort configures meta_value sorting for a column.
type ColumnSort struct {
	OrderBy string `json:"orderby,omitempty" yaml:"orderby"`
	Order   string `json:"order,omitempty" yaml:"order"`
}

// ParseDefinition decodes a YAML definition document.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// UnmarshalYAML walks the top-level mapping by hand so that fields,
// metaboxes and columns keep their declaration order. Unknown top-level
// keys are folded into Registration.
func (d *Definition) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: definition must be a mapping", value.Line)
	}

	for i := 0; i < len(value.Content)-1; i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		var err error
		switch k.Value {
		case "singular_name":
			err = v.Decode(&d.SingularName)
		case "plural_name":
			err = v.Decode(&d.PluralName)
		case "wp_definition":
			var reg map[string]any
			if err = v.Decode(&reg); err == nil {
				d.mergeRegistration(reg)
			}
		case "fields":
			d.Fields, err = decodeOrdered(v, func(id string, spec *FieldSpec) { spec.ID = id })
			if err == nil {
				for _, f := range d.Fields {
					f.Type = NormalizeKeyword(f.Type)
				}
			}
		case "metaboxes":
			d.Metaboxes, err = decodeOrdered(v, func(id string, spec *MetaboxSpec) { spec.ID = id })
		case "add_columns":
			d.Columns, err = decodeOrdered(v, func(id string, spec *ColumnSpec) { spec.ID = id })
		case "replace_archive_with_page":
			err = v.Decode(&d.ReplaceArchiveWithPage)
		case "create_shortcode":
			err = v.Decode(&d.CreateShortcode)
		default:
			var raw any
			if err = v.Decode(&raw); err == nil {
				d.mergeRegistration(map[string]any{k.Value: raw})
			}
		}
		if err != nil {
			return fmt.Errorf("%s: %w", k.Value, err)
		}
	}
	return nil
}

func (d *Definition) mergeRegistration(m map[string]any) {
	if d.Registration == nil {
		d.Registration = make(map[string]any, len(m))
	}
	for k, v := range m {
		d.Registration[k] = v
	}
}

// decodeOrdered decodes a mapping of id -> spec into a slice in document order.
// A null or empty spec is allowed and yields a zero spec with only the id set.
func decodeOrdered[T any](node *yaml.Node, setID func(string, *T)) ([]*T, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	out := make([]*T, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i < len(node.Content)-1; i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if seen[k.Value] {
			return nil, fmt.Errorf("line %d: duplicate id %q", k.Line, k.Value)
		}
		seen[k.Value] = true

		spec := new(T)
		if !(v.Kind == yaml.ScalarNode && v.Tag == "!!null") {
			if err := v.Decode(spec); err != nil {
				return nil, fmt.Errorf("%s: %w", k.Value, err)
			}
		}
		setID(k.Value, spec)
		out = append(out, spec)
	}
	return out, nil
}

// Field returns the field spec with the given id, or nil.
func (d *Definition) Field(id string) *FieldSpec {
	for _, f := range d.Fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// NormalizeKeyword folds the spellings accepted in definition files
// ("min-length", "min_length", "Min Length") into one canonical form.
func NormalizeKeyword(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
