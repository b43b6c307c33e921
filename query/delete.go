package query

import (
	"strings"

	"github.com/quarrydb/quarry/schema"
)

// DeleteOptions carries the optional clauses of a delete
type DeleteOptions struct {
	// Returning lists the properties to return; non-nil empty means
	// every column
	Returning []string
}

// BuildDelete assembles a DELETE statement; the filter compiles through
// the predicate compiler like every other WHERE
func BuildDelete(registry *schema.Registry, model *schema.Model, where Where, opts *DeleteOptions) (*Statement, error) {
	if opts == nil {
		opts = &DeleteOptions{}
	}
	params := NewParams()

	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(QuoteTable(model.Table))

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
