package query

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/schema"
)

// Where is the recursive declarative filter tree. Leaves are scalar,
// array, or null comparisons; internal nodes are the logical combinators
// ("and", "or", "not"/"!") or nested property maps.
type Where = map[string]interface{}

// CompileWhere compiles a filter tree into a boolean SQL fragment,
// appending bound values to params. An absent or empty filter yields an
// empty fragment. Placeholder numbering continues wherever params left
// off, so a caller can thread one accumulator through a whole statement.
func CompileWhere(registry *schema.Registry, model *schema.Model, where Where, params *Params, joins []*Join) (string, error) {
	c := newCompiler(registry, model, params, joins)
	return c.compileWhere(where, false)
}

// compiler carries the per-build state of one predicate compilation.
// It is created fresh per build call and discarded on return.
type compiler struct {
	registry *schema.Registry
	model    *schema.Model
	params   *Params
	joins    []*Join

	// qualifier prefixes local column references; set to the base table
	// when joins are active, or to a join alias when compiling extra ON
	// conditions against a joined model
	qualifier string
}

func newCompiler(registry *schema.Registry, model *schema.Model, params *Params, joins []*Join) *compiler {
	c := &compiler{
		registry: registry,
		model:    model,
		params:   params,
		joins:    joins,
	}
	if len(joins) > 0 {
		c.qualifier = model.Table
	}
	return c
}

// columnRef is a resolved column reference: rendered SQL plus the column
// metadata (nil for subquery-join outputs, which carry no metadata).
type columnRef struct {
	sql    string
	column *schema.Column
}

func (c *compiler) compileWhere(expr Where, negate bool) (string, error) {
	parts, err := c.whereParts(expr, negate)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, andJoin(negate)), nil
}

// whereParts compiles each key of a filter mapping into one fragment.
// Keys classify as logical combinators, operators, or property names.
// Every returned part is either a single predicate or parenthesized, so
// callers can join parts with any connective.
func (c *compiler) whereParts(expr Where, negate bool) ([]string, error) {
	if len(expr) == 0 {
		return nil, nil
	}

	parts := make([]string, 0, len(expr))
	for _, key := range sortedKeys(expr) {
		value := expr[key]
		switch key {
		case "not", "!":
			sub, ok := asMap(value)
			if !ok {
				return nil, &StructuralError{Model: c.model.Name, Detail: fmt.Sprintf("%q expects a nested filter, got %T", key, value)}
			}
			// negation composes via XOR, never by wrapping in NOT(...)
			inner, err := c.whereParts(sub, !negate)
			if err != nil {
				return nil, err
			}
			switch len(inner) {
			case 0:
			case 1:
				parts = append(parts, inner[0])
			default:
				parts = append(parts, "("+strings.Join(inner, andJoin(!negate))+")")
			}

		case "or":
			frag, err := c.compileCombinator(value, negate, true)
			if err != nil {
				return nil, err
			}
			if frag != "" {
				parts = append(parts, frag)
			}

		case "and":
			frag, err := c.compileCombinator(value, negate, false)
			if err != nil {
				return nil, err
			}
			if frag != "" {
				parts = append(parts, frag)
			}

		case "exists":
			frag, err := c.compileExists(value, negate)
			if err != nil {
				return nil, err
			}
			parts = append(parts, frag)

		default:
			frag, err := c.compileProperty(key, value, negate)
			if err != nil {
				return nil, err
			}
			if frag != "" {
				parts = append(parts, frag)
			}
		}
	}
	return parts, nil
}

// compileCombinator compiles an "or"/"and" array of sub-filters.
// De Morgan is applied locally: a negated OR joins with AND and vice
// versa. A single-element array skips the parentheses only when the
// member compiled to a single predicate; a compound member keeps them
// so the surrounding AND cannot rebind its connective.
func (c *compiler) compileCombinator(value interface{}, negate, isOr bool) (string, error) {
	items, ok := toSlice(value)
	if !ok {
		return "", &StructuralError{Model: c.model.Name, Detail: fmt.Sprintf("combinator expects an array of filters, got %T", value)}
	}

	type member struct {
		frag     string
		compound bool
	}
	subs := make([]member, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			return "", &StructuralError{Model: c.model.Name, Detail: fmt.Sprintf("combinator members must be filters, got %T", item)}
		}
		parts, err := c.whereParts(m, negate)
		if err != nil {
			return "", err
		}
		if len(parts) == 0 {
			continue
		}
		subs = append(subs, member{
			frag:     strings.Join(parts, andJoin(negate)),
			compound: len(parts) > 1,
		})
	}

	switch len(subs) {
	case 0:
		return "", nil
	case 1:
		if subs[0].compound {
			return "(" + subs[0].frag + ")", nil
		}
		return subs[0].frag, nil
	}

	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = "(" + s.frag + ")"
	}
	conn := orJoin(negate)
	if !isOr {
		conn = andJoin(negate)
	}
	return "(" + strings.Join(out, conn) + ")", nil
}

// compileProperty compiles one property-context leaf or sub-tree
func (c *compiler) compileProperty(property string, value interface{}, negate bool) (string, error) {
	ref, err := c.resolveColumn(property)
	if err != nil {
		return "", err
	}

	if value == nil {
		return c.nullTest(ref, negate), nil
	}

	if sub, ok := value.(*Subquery); ok {
		return c.compileInSubquery(ref, sub, negate)
	}

	if m, ok := asMap(value); ok {
		// a hydrated related entity reduces to its primary-key scalar
		if pkValue, ok := c.hydratedPrimaryKey(ref.column, m); ok {
			return c.compileProperty(property, pkValue, negate)
		}
		return c.compilePropertyMap(property, ref, m, negate)
	}

	if items, ok := toSlice(value); ok {
		if ref.column != nil && ref.column.IsArray() {
			return c.compileArrayColumnValues(ref, items, negate)
		}
		return c.compileScalarColumnValues(property, ref, items, negate)
	}

	return c.compileComparison(property, ref, opEq, value, negate)
}

// compilePropertyMap compiles an operator mapping in property context.
// Operator keys apply to the current property; any other key opens a new
// property context. Entries are AND-ed together.
func (c *compiler) compilePropertyMap(property string, ref *columnRef, m map[string]interface{}, negate bool) (string, error) {
	parts := make([]string, 0, len(m))
	for _, key := range sortedKeys(m) {
		value := m[key]

		var frag string
		var err error
		switch key {
		case "not", "!":
			frag, err = c.compileProperty(property, value, !negate)
		case "<":
			frag, err = c.compileComparison(property, ref, opLt, value, negate)
		case "<=":
			frag, err = c.compileComparison(property, ref, opLte, value, negate)
		case ">":
			frag, err = c.compileComparison(property, ref, opGt, value, negate)
		case ">=":
			frag, err = c.compileComparison(property, ref, opGte, value, negate)
		case "like":
			frag, err = c.compileLike(property, ref, value, negate)
		case "contains":
			frag, err = c.compileStringMatch(property, ref, key, value, negate, "%", "%")
		case "startsWith":
			frag, err = c.compileStringMatch(property, ref, key, value, negate, "", "%")
		case "endsWith":
			frag, err = c.compileStringMatch(property, ref, key, value, negate, "%", "")
		default:
			frag, err = c.compileProperty(key, value, negate)
		}
		if err != nil {
			return "", err
		}
		if frag != "" {
			parts = append(parts, frag)
		}
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, andJoin(negate)) + ")", nil
}

// compileScalarColumnValues compiles an array value against a scalar
// column. Null and empty-string members split into OR-ed single-value
// branches; remaining scalars batch into one typed ANY/ALL parameter.
func (c *compiler) compileScalarColumnValues(property string, ref *columnRef, items []interface{}, negate bool) (string, error) {
	if len(items) == 0 {
		// an empty IN-list can never match
		if negate {
			return "1=1", nil
		}
		return "1<>1", nil
	}

	var branches []string
	var batch []interface{}
	for _, item := range items {
		if item == nil || item == "" {
			frag, err := c.compileProperty(property, item, negate)
			if err != nil {
				return "", err
			}
			branches = append(branches, frag)
			continue
		}
		if m, ok := asMap(item); ok {
			if pkValue, ok := c.hydratedPrimaryKey(ref.column, m); ok {
				batch = append(batch, pkValue)
				continue
			}
		}
		if !isScalar(item) {
			return "", &StructuralError{Model: c.model.Name, Detail: fmt.Sprintf("property %s: array filter member must be a scalar, got %T", property, item)}
		}
		batch = append(batch, item)
	}

	if len(batch) > 0 {
		cast, err := c.arrayCastType(property, ref.column)
		if err != nil {
			return "", err
		}
		ph := c.params.Placeholder(batch)
		if negate {
			branches = append(branches, ref.sql+"<>ALL("+ph+"::"+cast+"[])")
		} else {
			branches = append(branches, ref.sql+"=ANY("+ph+"::"+cast+"[])")
		}
	}

	if len(branches) == 1 {
		return branches[0], nil
	}
	return "(" + strings.Join(branches, orJoin(negate)) + ")", nil
}

// compileArrayColumnValues compiles an array value against an
// array-typed column. Postgres array-column semantics differ from the
// scalar-column ANY/ALL form: empty compares against the '{}' literal
// and each element gets its own membership test.
func (c *compiler) compileArrayColumnValues(ref *columnRef, items []interface{}, negate bool) (string, error) {
	if len(items) == 0 {
		if negate {
			return ref.sql + "<>'{}'", nil
		}
		return ref.sql + "='{}'", nil
	}

	branches := make([]string, 0, len(items))
	for _, item := range items {
		if !isScalar(item) || item == nil {
			return "", &StructuralError{Model: c.model.Name, Detail: fmt.Sprintf("array column filter member must be a scalar, got %T", item)}
		}
		ph := c.params.Placeholder(item)
		if negate {
			branches = append(branches, ph+"<>ALL("+ref.sql+")")
		} else {
			branches = append(branches, ph+"=ANY("+ref.sql+")")
		}
	}

	if len(branches) == 1 {
		return branches[0], nil
	}
	return "(" + strings.Join(branches, orJoin(negate)) + ")", nil
}

// arrayCastType derives the Postgres array cast for a batched IN-filter
// from the column type, borrowing the related model's primary-key type
// for relationship columns.
func (c *compiler) arrayCastType(property string, col *schema.Column) (string, error) {
	if col == nil {
		return "TEXT", nil
	}
	t := col.Type
	if col.Model != "" {
		related, ok := c.registry.Get(col.Model)
		if !ok {
			return "", &SchemaResolutionError{Model: c.model.Name, Property: property, Detail: fmt.Sprintf("references unregistered model %s", col.Model)}
		}
		t = related.PrimaryKey().Type
	}
	switch t {
	case schema.TypeInteger, schema.TypeBigInt:
		return "INTEGER", nil
	case schema.TypeFloat:
		return "NUMERIC", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeUUID:
		return "UUID", nil
	default:
		return "TEXT", nil
	}
}

// nullTest renders the IS NULL form; null never binds a parameter
func (c *compiler) nullTest(ref *columnRef, negate bool) string {
	if negate {
		return ref.sql + " IS NOT NULL"
	}
	return ref.sql + " IS NULL"
}

// hydratedPrimaryKey checks whether a map value looks like a hydrated
// related entity, and if so returns its populated primary-key value
func (c *compiler) hydratedPrimaryKey(col *schema.Column, m map[string]interface{}) (interface{}, bool) {
	if col == nil || col.Model == "" {
		return nil, false
	}
	related, ok := c.registry.Get(col.Model)
	if !ok {
		return nil, false
	}
	pk := related.PrimaryKey()
	if pk == nil {
		return nil, false
	}
	v, ok := m[pk.Property]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// resolveColumn maps a property name or dot-qualified path to a rendered
// column reference
func (c *compiler) resolveColumn(property string) (*columnRef, error) {
	if idx := strings.Index(property, "."); idx > 0 && len(c.joins) > 0 {
		return c.resolveJoinedColumn(property[:idx], property[idx+1:])
	}

	col, ok := c.model.Column(property)
	if !ok {
		return nil, &SchemaResolutionError{Model: c.model.Name, Property: property, Detail: "unknown property"}
	}
	sql := quoteIdent(col.Name)
	if c.qualifier != "" {
		sql = QuoteTable(c.qualifier) + "." + sql
	}
	return &columnRef{sql: sql, column: col}, nil
}

// resolveJoinedColumn resolves an alias.property path against the
// active joins
func (c *compiler) resolveJoinedColumn(alias, property string) (*columnRef, error) {
	for _, j := range c.joins {
		if j.Alias != alias {
			continue
		}

		if j.Subquery != nil {
			// subquery joins advertise output names; those names are
			// taken at face value, not validated against a model
			for _, out := range j.Subquery.Outputs() {
				if out == property {
					return &columnRef{sql: quoteIdent(alias) + "." + quoteIdent(property)}, nil
				}
			}
			return nil, &SchemaResolutionError{Model: c.model.Name, Property: alias + "." + property, Detail: "subquery join does not advertise this column"}
		}

		ownerCol, ok := c.model.Column(j.On)
		if !ok {
			return nil, &SchemaResolutionError{Model: c.model.Name, Property: j.On, Detail: "join source property is unknown"}
		}
		if ownerCol.Model == "" {
			return nil, &SchemaResolutionError{Model: c.model.Name, Property: j.On, Detail: "join source property is not a declared relationship"}
		}
		related, ok := c.registry.Get(ownerCol.Model)
		if !ok {
			return nil, &SchemaResolutionError{Model: c.model.Name, Property: j.On, Detail: fmt.Sprintf("references unregistered model %s", ownerCol.Model)}
		}
		col, ok := related.Column(property)
		if !ok {
			return nil, &SchemaResolutionError{Model: related.Name, Property: property, Detail: "unknown property"}
		}
		return &columnRef{sql: quoteIdent(alias) + "." + quoteIdent(col.Name), column: col}, nil
	}

	return nil, &SchemaResolutionError{Model: c.model.Name, Property: alias + "." + property, Detail: "no join matches this alias"}
}
