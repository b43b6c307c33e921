package query

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/schema"
)

// Join declares a traversal from the base model to a related model's
// table or to a pre-aggregated subquery. The owner side is always the
// relationship column named by On; the target side defaults to the
// related model's primary key, or is named explicitly by Key for
// subquery targets.
type Join struct {
	Alias string
	Left  bool

	// On is the owner property the join hangs off. For model joins it
	// must be a declared relationship.
	On string

	// Subquery, when set, replaces the related model's table as the
	// join target
	Subquery *Subquery

	// Key is the target column compared against the owner foreign key.
	// Required for subquery joins; defaults to the related primary key
	// for model joins.
	Key string

	// Criteria are extra parameterized ON conditions, expressed against
	// the joined model's properties
	Criteria Where
}

// typeToken renders the join type
func (j *Join) typeToken() string {
	if j.Left {
		return "LEFT JOIN"
	}
	return "INNER JOIN"
}

// BuildJoins renders the JOIN clauses for a statement, threading extra
// ON conditions and subquery parameters through the shared accumulator.
// The returned fragment starts with a space, or is empty when there are
// no joins.
func BuildJoins(registry *schema.Registry, model *schema.Model, joins []*Join, params *Params) (string, error) {
	if len(joins) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, j := range joins {
		if j.Alias == "" {
			return "", &StructuralError{Model: model.Name, Detail: "join requires an alias"}
		}
		ownerCol, ok := model.Column(j.On)
		if !ok {
			return "", &SchemaResolutionError{Model: model.Name, Property: j.On, Detail: "join source property is unknown"}
		}
		owner := QuoteTable(model.Table) + "." + quoteIdent(ownerCol.Name)

		if j.Subquery != nil {
			frag, err := buildSubqueryJoin(registry, model, j, owner, params)
			if err != nil {
				return "", err
			}
			b.WriteString(frag)
			continue
		}

		frag, err := buildModelJoin(registry, model, j, ownerCol, owner, params)
		if err != nil {
			return "", err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}

func buildModelJoin(registry *schema.Registry, model *schema.Model, j *Join, ownerCol *schema.Column, owner string, params *Params) (string, error) {
	if ownerCol.Model == "" {
		return "", &SchemaResolutionError{Model: model.Name, Property: j.On, Detail: "join source property is not a declared relationship"}
	}
	related, ok := registry.Get(ownerCol.Model)
	if !ok {
		return "", &SchemaResolutionError{Model: model.Name, Property: j.On, Detail: fmt.Sprintf("references unregistered model %s", ownerCol.Model)}
	}

	target := related.PrimaryKey()
	if j.Key != "" {
		target, ok = related.Column(j.Key)
		if !ok {
			return "", &SchemaResolutionError{Model: related.Name, Property: j.Key, Detail: "unknown join key property"}
		}
	}

	var b strings.Builder
	b.WriteString(" ")
	b.WriteString(j.typeToken())
	b.WriteString(" ")
	b.WriteString(QuoteTable(related.Table))
	b.WriteString(" AS ")
	b.WriteString(quoteIdent(j.Alias))
	b.WriteString(" ON ")
	b.WriteString(owner)
	b.WriteString(" = ")
	b.WriteString(quoteIdent(j.Alias))
	b.WriteString(".")
	b.WriteString(quoteIdent(target.Name))

	if len(j.Criteria) > 0 {
		sub := newCompiler(registry, related, params, nil)
		sub.qualifier = j.Alias
		frag, err := sub.compileWhere(j.Criteria, false)
		if err != nil {
			return "", err
		}
		if frag != "" {
			b.WriteString(" AND ")
			b.WriteString(frag)
		}
	}
	return b.String(), nil
}

func buildSubqueryJoin(registry *schema.Registry, model *schema.Model, j *Join, owner string, params *Params) (string, error) {
	if j.Key == "" {
		return "", &StructuralError{Model: model.Name, Detail: fmt.Sprintf("subquery join %s requires a key column", j.Alias)}
	}
	if len(j.Criteria) > 0 {
		return "", &StructuralError{Model: model.Name, Detail: fmt.Sprintf("subquery join %s cannot carry extra conditions", j.Alias)}
	}

	frag, err := j.Subquery.build(registry, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(" ")
	b.WriteString(j.typeToken())
	b.WriteString(" (")
	b.WriteString(frag)
	b.WriteString(") AS ")
	b.WriteString(quoteIdent(j.Alias))
	b.WriteString(" ON ")
	b.WriteString(owner)
	b.WriteString(" = ")
	b.WriteString(quoteIdent(j.Alias))
	b.WriteString(".")
	b.WriteString(quoteIdent(j.Key))
	return b.String(), nil
}
