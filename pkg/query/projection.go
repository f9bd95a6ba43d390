// Package query builds parameterized SQL over a mapping from logical field
// names to columns, so request filters and sort keys never reach SQL verbatim.
package query

import "strings"

// ProjectionMap maps logical field names to qualified columns of one aliased table.
type ProjectionMap struct {
	from     string
	alias    string
	columns  map[string]string
	selected []string
}

// NewProjectionMap starts a map over schema.table aliased as alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		from:    schema + "." + table + " " + alias,
		alias:   alias,
		columns: map[string]string{},
	}
}

// Project selects column and exposes it as field.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.columns[field] = qualified
	p.selected = append(p.selected, qualified)
	return p
}

// ProjectExpr exposes a raw expression such as "s.fields::text" as field.
// It can be filtered and sorted on but is not selected.
func (p *ProjectionMap) ProjectExpr(expr, field string) *ProjectionMap {
	p.columns[field] = expr
	return p
}

// From is the FROM target, "schema.table alias".
func (p *ProjectionMap) From() string {
	return p.from
}

// Column resolves field, falling back to the input when unmapped.
func (p *ProjectionMap) Column(field string) string {
	if col, ok := p.columns[field]; ok {
		return col
	}
	return field
}

// Has reports whether field is mapped.
func (p *ProjectionMap) Has(field string) bool {
	_, ok := p.columns[field]
	return ok
}

// Columns is the comma-separated select list in projection order.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.selected, ", ")
}
