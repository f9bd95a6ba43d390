package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField is one ORDER BY term. Field is a logical name from the ProjectionMap.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields reads "a,-b" into ascending a, descending b.
// Empty input yields nil.
func ParseSortFields(s string) []SortField {
	if s == "" {
		return nil
	}

	fields := []SortField{}
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// params hands out positional placeholders in the order arguments are bound.
type params struct {
	args []any
}

func (p *params) bind(v any) string {
	p.args = append(p.args, v)
	return fmt.Sprintf("$%d", len(p.args))
}

type predicate func(p *params) string

// Builder assembles SELECT and COUNT statements over a ProjectionMap.
// Filters with nil or empty values are skipped, so optional request
// filters can be chained unconditionally.
type Builder struct {
	projection  *ProjectionMap
	predicates  []predicate
	order       []SortField
	defaultSort []SortField
}

// NewBuilder starts a query over projection, sorted by defaultSort unless
// OrderByFields overrides it.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, defaultSort: defaultSort}
}

// WhereEquals filters field = value.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.projection.Column(field)
	b.predicates = append(b.predicates, func(p *params) string {
		return col + " = " + p.bind(value)
	})
	return b
}

// Clause is one alternative of WhereAnyOf.
type Clause struct {
	field  string
	values []any
	in     bool
}

// Equals matches field = value.
func Equals(field string, value any) Clause {
	return Clause{field: field, values: []any{value}}
}

// In matches field against any of values. An empty In matches nothing.
func In(field string, values ...any) Clause {
	return Clause{field: field, values: values, in: true}
}

func (c Clause) render(col string, p *params) string {
	if !c.in {
		return col + " = " + p.bind(c.values[0])
	}
	if len(c.values) == 0 {
		return "FALSE"
	}
	binds := make([]string, len(c.values))
	for i, v := range c.values {
		binds[i] = p.bind(v)
	}
	return col + " IN (" + strings.Join(binds, ", ") + ")"
}

// WhereIn filters field against a set of values. Unlike the other filters
// an empty set is not skipped and matches no rows.
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	return b.WhereAnyOf(In(field, values...))
}

// WhereAnyOf ORs clauses together. No clauses adds no filter.
func (b *Builder) WhereAnyOf(clauses ...Clause) *Builder {
	if len(clauses) == 0 {
		return b
	}
	cols := make([]string, len(clauses))
	for i, c := range clauses {
		cols[i] = b.projection.Column(c.field)
	}
	b.predicates = append(b.predicates, func(p *params) string {
		terms := make([]string, len(clauses))
		for i, c := range clauses {
			terms[i] = c.render(cols[i], p)
		}
		if len(terms) == 1 {
			return terms[0]
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	})
	return b
}

// WhereSearch matches search case-insensitively against any of fields.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + *search + "%"
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.projection.Column(f)
	}
	b.predicates = append(b.predicates, func(p *params) string {
		terms := make([]string, len(cols))
		for i, col := range cols {
			terms[i] = col + " ILIKE " + p.bind(pattern)
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	})
	return b
}

// OrderByFields replaces the default sort.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.order = fields
	return b
}

// BuildCount renders SELECT COUNT(*) with the current filters.
func (b *Builder) BuildCount() (string, []any) {
	var p params
	sql := "SELECT COUNT(*) FROM " + b.projection.From() + b.where(&p)
	return sql, p.args
}

// BuildPage renders a filtered, ordered SELECT for a 1-based page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	var p params
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		b.projection.Columns(),
		b.projection.From(),
		b.where(&p),
		b.orderBy(),
		pageSize,
		(page-1)*pageSize,
	)
	return sql, p.args
}

// BuildSingle renders a SELECT of the row whose idField equals id.
// Filters added to the builder are ignored.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.From(),
		b.projection.Column(idField),
	)
	return sql, []any{id}
}

func (b *Builder) where(p *params) string {
	if len(b.predicates) == 0 {
		return ""
	}
	clauses := make([]string, len(b.predicates))
	for i, pred := range b.predicates {
		clauses[i] = pred(p)
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (b *Builder) orderBy() string {
	fields := b.order
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	var terms []string
	for _, f := range fields {
		// client-supplied names never reach SQL unless mapped
		if !b.projection.Has(f.Field) {
			continue
		}
		term := b.projection.Column(f.Field)
		if f.Descending {
			term += " DESC"
		} else {
			term += " ASC"
		}
		terms = append(terms, term)
	}

	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
