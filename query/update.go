package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/quarrydb/quarry/schema"
)

// UpdateOptions carries the optional clauses of an update
type UpdateOptions struct {
	// Returning lists the properties to return; non-nil empty means
	// every column
	Returning []string
}

// BuildUpdate assembles an UPDATE statement. Update-timestamp columns
// are auto-populated when absent from the input, and version columns
// present in the input increment in place instead of taking the
// supplied value.
func BuildUpdate(registry *schema.Registry, model *schema.Model, values map[string]interface{}, where Where, opts *UpdateOptions) (*Statement, error) {
	if len(values) == 0 {
		return nil, &ArgumentError{Detail: fmt.Sprintf("update of %s requires at least one value", model.Name)}
	}
	if opts == nil {
		opts = &UpdateOptions{}
	}
	for property := range values {
		if !model.HasProperty(property) {
			return nil, &SchemaResolutionError{Model: model.Name, Property: property, Detail: "unknown property"}
		}
	}

	params := NewParams()
	now := time.Now().UTC()

	sets := make([]string, 0, len(values)+1)
	for _, col := range model.Columns {
		value, supplied := values[col.Property]

		if col.UpdateDate && !supplied {
			sets = append(sets, quoteIdent(col.Name)+" = "+params.Placeholder(now))
			continue
		}
		if !supplied {
			continue
		}
		if col.Version {
			sets = append(sets, quoteIdent(col.Name)+" = "+quoteIdent(col.Name)+" + 1")
			continue
		}

		normalized, cast, err := normalizeValue(registry, model, col, value)
		if err != nil {
			return nil, err
		}
		sets = append(sets, quoteIdent(col.Name)+" = "+params.Placeholder(normalized)+cast)
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(QuoteTable(model.Table))
	b.WriteString(" SET ")
	b.WriteString(strings.Join(sets, ", "))

	frag, err := CompileWhere(registry, model, where, params, nil)
	if err != nil {
		return nil, err
	}
	if frag != "" {
		b.WriteString(" WHERE ")
		b.WriteString(frag)
	}

	if opts.Returning != nil {
		returning, err := buildColumnList(model, opts.Returning, "")
		if err != nil {
			return nil, err
		}
		b.WriteString(" RETURNING ")
		b.WriteString(returning)
	}

	return &Statement{Text: b.String(), Params: params.Values()}, nil
}
