package query

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/schema"
)

// compareOp is the closed set of scalar comparison operators
type compareOp int

const (
	opEq compareOp = iota
	opNe
	opLt
	opLte
	opGt
	opGte
)

// negated returns the operator with negation folded into the token
// itself; the compiler never wraps a comparison in NOT(...)
func (op compareOp) negated() compareOp {
	switch op {
	case opEq:
		return opNe
	case opNe:
		return opEq
	case opLt:
		return opGte
	case opLte:
		return opGt
	case opGt:
		return opLte
	case opGte:
		return opLt
	default:
		return op
	}
}

// token returns the SQL operator token
func (op compareOp) token() string {
	switch op {
	case opEq:
		return "="
	case opNe:
		return "<>"
	case opLt:
		return "<"
	case opLte:
		return "<="
	case opGt:
		return ">"
	case opGte:
		return ">="
	default:
		return "="
	}
}

// ordered reports whether the operator is one of <, <=, >, >=
func (op compareOp) ordered() bool {
	return op == opLt || op == opLte || op == opGt || op == opGte
}

// compileComparison renders a single scalar comparison leaf
func (c *compiler) compileComparison(property string, ref *columnRef, op compareOp, value interface{}, negate bool) (string, error) {
	if negate {
		op = op.negated()
	}
	col := ref.column

	if op.ordered() && col != nil && (col.IsArray() || col.Type == schema.TypeJSON) {
		return "", &TypeConstraintError{Model: c.model.Name, Property: property, Detail: fmt.Sprintf("operator %s is not supported for %s columns", op.token(), col.Type)}
	}

	// a scalar subquery is parenthesized in place of a placeholder
	if sub, ok := value.(*Subquery); ok {
		frag, err := sub.buildScalar(c.registry, c.params)
		if err != nil {
			return "", err
		}
		return ref.sql + op.token() + "(" + frag + ")", nil
	}

	if value == nil {
		switch op {
		case opEq:
			return ref.sql + " IS NULL", nil
		case opNe:
			return ref.sql + " IS NOT NULL", nil
		default:
			return "", &TypeConstraintError{Model: c.model.Name, Property: property, Detail: fmt.Sprintf("operator %s cannot compare against null", op.token())}
		}
	}

	if m, ok := asMap(value); ok {
		if pkValue, ok := c.hydratedPrimaryKey(col, m); ok {
			value = pkValue
		} else {
			return "", &TypeConstraintError{Model: c.model.Name, Property: property, Detail: fmt.Sprintf("operator %s expects a scalar value, got an object", op.token())}
		}
	}

	// scalar against an array-typed column uses membership semantics
	if col != nil && col.IsArray() {
		ph := c.params.Placeholder(value)
		switch op {
		case opEq:
			return ph + "=ANY(" + ref.sql + ")", nil
		case opNe:
			return ph + "<>ALL(" + ref.sql + ")", nil
		default:
			return "", &TypeConstraintError{Model: c.model.Name, Property: property, Detail: fmt.Sprintf("operator %s is not supported for array columns", op.token())}
		}
	}

	return ref.sql + op.token() + c.params.Placeholder(value), nil
}

// compileLike renders the case-insensitive match operator. Null turns
// into a null test and the empty string into plain (in)equality, never
// into ILIKE; array-typed columns unnest before matching; arrays of
// patterns fan out into recursive single-value branches.
func (c *compiler) compileLike(property string, ref *columnRef, value interface{}, negate bool) (string, error) {
	switch v := value.(type) {
	case nil:
		return c.nullTest(ref, negate), nil

	case string:
		if v == "" {
			if negate {
				return ref.sql + "<>''", nil
			}
			return ref.sql + "=''", nil
		}
		if ref.column != nil && ref.column.IsArray() {
			ph := c.params.Placeholder(v)
			inner := "SELECT 1 FROM UNNEST(" + ref.sql + ") AS " + quoteIdent("element") + " WHERE " + quoteIdent("element") + " ILIKE " + ph
			if negate {
				return "NOT EXISTS (" + inner + ")", nil
			}
			return "EXISTS (" + inner + ")", nil
		}
		ph := c.params.Placeholder(v)
		if negate {
			return ref.sql + " NOT ILIKE " + ph, nil
		}
		return ref.sql + " ILIKE " + ph, nil
	}

	if items, ok := toSlice(value); ok {
		branches := make([]string, 0, len(items))
		for _, item := range items {
			frag, err := c.compileLike(property, ref, item, negate)
			if err != nil {
				return "", err
			}
			branches = append(branches, frag)
		}
		switch len(branches) {
		case 0:
			return "", nil
		case 1:
			return branches[0], nil
		}
		return "(" + strings.Join(branches, orJoin(negate)) + ")", nil
	}

	return "", &TypeConstraintError{Model: c.model.Name, Property: property, Detail: fmt.Sprintf("like expects a string value, got %T", value)}
}

// compileStringMatch rewrites contains/startsWith/endsWith into a like
// pattern and delegates. These operators only accept strings.
func (c *compiler) compileStringMatch(property string, ref *columnRef, operator string, value interface{}, negate bool, prefix, suffix string) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &TypeConstraintError{Model: c.model.Name, Property: property, Detail: fmt.Sprintf("%s expects a string value, got %T", operator, value)}
	}
	return c.compileLike(property, ref, prefix+s+suffix, negate)
}

// compileInSubquery renders a membership test against a row-producing
// subquery
func (c *compiler) compileInSubquery(ref *columnRef, sub *Subquery, negate bool) (string, error) {
	frag, err := sub.buildIn(c.registry, c.params)
	if err != nil {
		return "", err
	}
	if negate {
		return ref.sql + " NOT IN (" + frag + ")", nil
	}
	return ref.sql + " IN (" + frag + ")", nil
}

// compileExists renders an EXISTS test against a subquery
func (c *compiler) compileExists(value interface{}, negate bool) (string, error) {
	sub, ok := value.(*Subquery)
	if !ok {
		return "", &StructuralError{Model: c.model.Name, Detail: fmt.Sprintf("exists expects a subquery, got %T", value)}
	}
	frag, err := sub.build(c.registry, c.params)
	if err != nil {
		return "", err
	}
	if negate {
		return "NOT EXISTS (" + frag + ")", nil
	}
	return "EXISTS (" + frag + ")", nil
}
