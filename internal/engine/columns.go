package engine

import (
	"context"
	"errors"
	"html"
	"strings"

	"go.uber.org/zap"

	"customfields/internal/metadata"
)

// DefaultColumnPosition places added columns before the last two existing
// ones (typically author and date).
const DefaultColumnPosition = -2

// ColumnHeader is one list-screen column.
type ColumnHeader struct {
	ID     string `json:"id"`
	Header string `json:"header"`
}

// Column is an add_columns entry of a type.
type Column struct {
	typ      *Type
	spec     *metadata.ColumnSpec
	position int
	content  ColumnContentFunc
}

func newColumn(t *Type, spec *metadata.ColumnSpec) (*Column, *metadata.ConfigError) {
	if spec.Header == "" {
		return nil, &metadata.ConfigError{Kind: metadata.BadColumn, Type: t.Name, Field: spec.ID, Err: errors.New("header is required")}
	}
	pos := DefaultColumnPosition
	if spec.Position != nil && *spec.Position != 0 {
		pos = *spec.Position
	}
	return &Column{
		typ:      t,
		spec:     spec,
		position: pos,
		content:  t.hooks.columnContent(t.Name, spec.ID),
	}, nil
}

func (c *Column) ID() string     { return c.spec.ID }
func (c *Column) Header() string { return c.spec.Header }
func (c *Column) Position() int  { return c.position }
func (c *Column) Sortable() bool { return c.spec.Sort != nil }

// Content renders the cell for one entity. By default it is the escaped
// stored value under the column id.
func (c *Column) Content(ctx context.Context, entityID int64) string {
	if c.content != nil {
		return c.content(ctx, entityID, c)
	}
	v, err := c.typ.storage.Retrieve(ctx, entityID, c.spec.ID)
	if err != nil {
		zap.S().Warnf("column %s.%s for entity %d: %v", c.typ.Name, c.spec.ID, entityID, err)
		return ""
	}
	return html.EscapeString(toString(v))
}

// SortKey is the meta key the column sorts by; it defaults to the column id.
func (c *Column) SortKey() string {
	if c.spec.Sort != nil && c.spec.Sort.OrderBy != "" {
		return c.spec.Sort.OrderBy
	}
	return c.spec.ID
}

// SortOrder is ASC only when configured so, DESC otherwise.
func (c *Column) SortOrder() string {
	if c.spec.Sort != nil && strings.EqualFold(c.spec.Sort.Order, "ASC") {
		return "ASC"
	}
	return "DESC"
}

// AddColumns inserts the type's columns into the existing header list, in
// declaration order, each at its configured position.
func (t *Type) AddColumns(existing []ColumnHeader) []ColumnHeader {
	out := append([]ColumnHeader(nil), existing...)
	for _, c := range t.columns {
		out = insertColumn(out, c.position, ColumnHeader{ID: c.ID(), Header: c.Header()})
	}
	return out
}

// SortableColumns returns the column ids the list screen may sort by.
func (t *Type) SortableColumns() []string {
	var ids []string
	for _, c := range t.columns {
		if c.Sortable() {
			ids = append(ids, c.ID())
		}
	}
	return ids
}

// SortColumn returns the sortable column named by orderby, or nil.
func (t *Type) SortColumn(orderby string) *Column {
	for _, c := range t.columns {
		if c.ID() == orderby && c.Sortable() {
			return c
		}
	}
	return nil
}

// insertColumn places col at offset pos; negative offsets count from the
// end and out-of-range offsets clamp to the ends.
func insertColumn(cols []ColumnHeader, pos int, col ColumnHeader) []ColumnHeader {
	n := len(cols)
	if pos < 0 {
		pos += n
	}
	if pos < 0 {
		pos = 0
	}
	if pos > n {
		pos = n
	}
	out := make([]ColumnHeader, 0, n+1)
	out = append(out, cols[:pos]...)
	out = append(out, col)
	return append(out, cols[pos:]...)
}
