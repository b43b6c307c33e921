package query

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/schema"
)

// Aggregate declares one aggregated output of a subquery
type Aggregate struct {
	// Fn is one of count, sum, avg, min, max
	Fn string
	// Property is the aggregated property; empty means * and is only
	// valid for count
	Property string
	// Alias names the output; defaults to the function name
	Alias    string
	Distinct bool
}

// outputName returns the advertised name of the aggregate output
func (a *Aggregate) outputName() string {
	if a.Alias != "" {
		return a.Alias
	}
	return strings.ToLower(a.Fn)
}

// Subquery describes a nested SELECT: projected columns and aggregates,
// an optional filter, grouping, a HAVING clause over previously selected
// aggregate aliases, ordering, and a limit. It always shares the parent
// statement's parameter accumulator, so placeholder numbering stays
// globally consistent.
type Subquery struct {
	Model string

	Columns    []string
	Aggregates []Aggregate

	Where   Where
	GroupBy []string

	// Having maps an aggregate alias to a numeric comparison: either a
	// bare number (equality) or an operator map of <, <=, >, >=
	Having map[string]interface{}

	Sort  []Sort
	Limit interface{}
}

// Outputs returns the column names the subquery advertises to the outer
// statement: physical names of projected columns plus aggregate aliases
func (s *Subquery) Outputs() []string {
	outs := make([]string, 0, len(s.Columns)+len(s.Aggregates))
	outs = append(outs, s.Columns...)
	for i := range s.Aggregates {
		outs = append(outs, s.Aggregates[i].outputName())
	}
	return outs
}

// buildScalar renders the subquery for use as a comparison operand.
// A scalar subquery must select exactly one aggregate.
func (s *Subquery) buildScalar(registry *schema.Registry, params *Params) (string, error) {
	if len(s.Aggregates) != 1 || len(s.Columns) != 0 {
		return "", &StructuralError{Model: s.Model, Detail: "scalar subquery must select exactly one aggregate"}
	}
	return s.build(registry, params)
}

// buildIn renders the subquery for use in an IN test. A row-producing
// subquery must select exactly one column.
func (s *Subquery) buildIn(registry *schema.Registry, params *Params) (string, error) {
	if len(s.Columns) != 1 || len(s.Aggregates) != 0 {
		return "", &StructuralError{Model: s.Model, Detail: "IN subquery must select exactly one column"}
	}
	return s.build(registry, params)
}

// build renders the full nested SELECT
func (s *Subquery) build(registry *schema.Registry, params *Params) (string, error) {
	model, ok := registry.Get(s.Model)
	if !ok {
		return "", &SchemaResolutionError{Model: s.Model, Detail: "unknown model"}
	}
	if len(s.Columns) == 0 && len(s.Aggregates) == 0 {
		return "", &StructuralError{Model: s.Model, Detail: "subquery selects nothing"}
	}

	projection := make([]string, 0, len(s.Columns)+len(s.Aggregates))
	for _, property := range s.Columns {
		col, ok := model.Column(property)
		if !ok {
			return "", &SchemaResolutionError{Model: model.Name, Property: property, Detail: "unknown property"}
		}
		// outputs advertise logical names, so physical columns alias
		// when the two differ
		if col.Name != property {
			projection = append(projection, quoteIdent(col.Name)+" AS "+quoteIdent(property))
		} else {
			projection = append(projection, quoteIdent(col.Name))
		}
	}

	aggExprs := make(map[string]string, len(s.Aggregates))
	for i := range s.Aggregates {
		agg := &s.Aggregates[i]
		expr, err := s.aggregateExpr(model, agg)
		if err != nil {
			return "", err
		}
		name := agg.outputName()
		if _, dup := aggExprs[name]; dup {
			return "", &StructuralError{Model: s.Model, Detail: fmt.Sprintf("duplicate aggregate alias %s", name)}
		}
		aggExprs[name] = expr
		projection = append(projection, expr+" AS "+quoteIdent(name))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(projection, ", "))
	b.WriteString(" FROM ")
	b.WriteString(QuoteTable(model.Table))

	frag, err := CompileWhere(registry, model, s.Where, params, nil)
	if err != nil {
		return "", err
	}
	if frag != "" {
		b.WriteString(" WHERE ")
		b.WriteString(frag)
	}

	if len(s.GroupBy) > 0 {
		groups := make([]string, 0, len(s.GroupBy))
		for _, property := range s.GroupBy {
			col, ok := model.Column(property)
			if !ok {
				return "", &SchemaResolutionError{Model: model.Name, Property: property, Detail: "unknown group-by property"}
			}
			groups = append(groups, quoteIdent(col.Name))
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groups, ", "))
	}

	if len(s.Having) > 0 {
		having, err := s.buildHaving(aggExprs, params)
		if err != nil {
			return "", err
		}
		b.WriteString(" HAVING ")
		b.WriteString(having)
	}

	if len(s.Sort) > 0 {
		order, err := s.buildOrderBy(model, aggExprs)
		if err != nil {
			return "", err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
	}

	if s.Limit != nil {
		limit, err := coerceCount("limit", s.Limit)
		if err != nil {
			return "", err
		}
		b.WriteString(" LIMIT ")
		b.WriteString(params.Placeholder(limit))
	}

	return b.String(), nil
}

// aggregateExpr renders one aggregate function call
func (s *Subquery) aggregateExpr(model *schema.Model, agg *Aggregate) (string, error) {
	fn := strings.ToUpper(agg.Fn)
	switch fn {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
	default:
		return "", &StructuralError{Model: s.Model, Detail: fmt.Sprintf("unknown aggregate function %q", agg.Fn)}
	}

	operand := "*"
	if agg.Property != "" {
		col, ok := model.Column(agg.Property)
		if !ok {
			return "", &SchemaResolutionError{Model: model.Name, Property: agg.Property, Detail: "unknown aggregate property"}
		}
		operand = quoteIdent(col.Name)
	} else if fn != "COUNT" {
		return "", &StructuralError{Model: s.Model, Detail: fmt.Sprintf("%s requires a property", agg.Fn)}
	}

	if agg.Distinct {
		if operand == "*" {
			return "", &StructuralError{Model: s.Model, Detail: "COUNT(DISTINCT *) is not valid"}
		}
		return fn + "(DISTINCT " + operand + ")", nil
	}
	return fn + "(" + operand + ")", nil
}

// buildHaving compiles the HAVING clause. Only numeric comparisons
// against a previously selected aggregate alias are allowed; unknown
// aliases fail the build. The rendered SQL repeats the aggregate
// expression, since Postgres does not allow output aliases in HAVING.
func (s *Subquery) buildHaving(aggExprs map[string]string, params *Params) (string, error) {
	parts := make([]string, 0, len(s.Having))
	for _, alias := range sortedKeys(s.Having) {
		expr, ok := aggExprs[alias]
		if !ok {
			return "", &StructuralError{Model: s.Model, Detail: fmt.Sprintf("having references unselected aggregate %q", alias)}
		}

		value := s.Having[alias]
		if m, ok := asMap(value); ok {
			for _, opKey := range sortedKeys(m) {
				var op compareOp
				switch opKey {
				case "<":
					op = opLt
				case "<=":
					op = opLte
				case ">":
					op = opGt
				case ">=":
					op = opGte
				default:
					return "", &StructuralError{Model: s.Model, Detail: fmt.Sprintf("having supports numeric comparisons only, got %q", opKey)}
				}
				n, err := havingNumber(s.Model, alias, m[opKey])
				if err != nil {
					return "", err
				}
				parts = append(parts, expr+op.token()+params.Placeholder(n))
			}
			continue
		}

		n, err := havingNumber(s.Model, alias, value)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr+"="+params.Placeholder(n))
	}
	return strings.Join(parts, " AND "), nil
}

// havingNumber validates that a HAVING operand is numeric
func havingNumber(model, alias string, v interface{}) (interface{}, error) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, nil
	default:
		return nil, &TypeConstraintError{Model: model, Property: alias, Detail: fmt.Sprintf("having expects a numeric value, got %T", v)}
	}
}

// buildOrderBy renders the subquery ORDER BY over columns or aggregate
// aliases
func (s *Subquery) buildOrderBy(model *schema.Model, aggExprs map[string]string) (string, error) {
	parts := make([]string, 0, len(s.Sort))
	for _, sort := range s.Sort {
		var target string
		if _, ok := aggExprs[sort.Property]; ok {
			target = quoteIdent(sort.Property)
		} else {
			col, ok := model.Column(sort.Property)
			if !ok {
				return "", &SchemaResolutionError{Model: model.Name, Property: sort.Property, Detail: "unknown sort property"}
			}
			target = quoteIdent(col.Name)
		}
		if sort.Descending {
			target += " DESC"
		} else {
			target += " ASC"
		}
		parts = append(parts, target)
	}
	return strings.Join(parts, ", "), nil
}
