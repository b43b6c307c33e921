package query

import (
	"strings"

	"github.com/quarrydb/quarry/schema"
)

// Sort orders a result set by one property, ascending unless marked
// descending
type Sort struct {
	Property   string
	Descending bool
}

// SelectQuery describes a SELECT statement over one model
type SelectQuery struct {
	// Select lists the projected properties; empty means all columns
	Select []string
	Where  Where
	Joins  []*Join
	Sort   []Sort

	// Limit and Skip accept numbers or numeric strings
	Limit interface{}
	Skip  interface{}

	// WithTotal adds a COUNT(*) OVER() window column for total-count
	// pagination
	WithTotal bool
}

// BuildSelect assembles a full SELECT statement. Declared sort order is
// preserved, joins precede WHERE, and the primary key is always part of
// an explicit projection.
func BuildSelect(registry *schema.Registry, model *schema.Model, q *SelectQuery) (*Statement, error) {
	if q == nil {
		q = &SelectQuery{}
	}
	params := NewParams()

	qualifier := ""
	if len(q.Joins) > 0 {
		qualifier = model.Table
	}

	projection, err := buildColumnList(model, q.Select, qualifier)
	if err != nil {
		return nil, err
	}
	if q.WithTotal {
		projection += `, COUNT(*) OVER() AS ` + quoteIdent("total_count")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(projection)
	b.WriteString(" FROM ")
	b.WriteString(QuoteTable(model.Table))

	joinFrag, err := BuildJoins(registry, model, q.Joins, params)
	if err != nil {
		return nil, err
	}
	b.WriteString(joinFrag)

	whereFrag, err := CompileWhere(registry, model, q.Where, params, q.Joins)
	if err != nil {
		return nil, err
	}
	if whereFrag != "" {
		b.WriteString(" WHERE ")
		b.WriteString(whereFrag)
	}

	if len(q.Sort) > 0 {
		order, err := buildSortList(registry, model, q.Sort, q.Joins, params)
		if err != nil {
			return nil, err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
	}

	if q.Limit != nil {
		limit, err := coerceCount("limit", q.Limit)
		if err != nil {
			return nil, err
		}
		b.WriteString(" LIMIT ")
		b.WriteString(params.Placeholder(limit))
	}
	if q.Skip != nil {
		skip, err := coerceCount("skip", q.Skip)
		if err != nil {
			return nil, err
		}
		b.WriteString(" OFFSET ")
		b.WriteString(params.Placeholder(skip))
	}

	return &Statement{Text: b.String(), Params: params.Values()}, nil
}

// buildSortList renders an ORDER BY list, resolving dot-qualified paths
// through the active joins
func buildSortList(registry *schema.Registry, model *schema.Model, sorts []Sort, joins []*Join, params *Params) (string, error) {
	c := newCompiler(registry, model, params, joins)
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		ref, err := c.resolveColumn(s.Property)
		if err != nil {
			return "", err
		}
		if s.Descending {
			parts = append(parts, ref.sql+" DESC")
		} else {
			parts = append(parts, ref.sql+" ASC")
		}
	}
	return strings.Join(parts, ", "), nil
}
