package query

import (
	"strings"

	"github.com/quarrydb/quarry/schema"
)

// buildColumnList renders a projection or RETURNING list. A nil or
// empty selection means every column in declared order; an explicit
// selection always gets the primary key prepended when the caller left
// it out. Columns are table-qualified when qualifier is set.
func buildColumnList(model *schema.Model, properties []string, qualifier string) (string, error) {
	prefix := ""
	if qualifier != "" {
		prefix = QuoteTable(qualifier) + "."
	}

	if len(properties) == 0 {
		parts := make([]string, 0, len(model.Columns))
		for _, col := range model.Columns {
			parts = append(parts, prefix+quoteIdent(col.Name))
		}
		return strings.Join(parts, ", "), nil
	}

	pk := model.PrimaryKey()
	seenPK := false
	parts := make([]string, 0, len(properties)+1)
	for _, property := range properties {
		col, ok := model.Column(property)
		if !ok {
			return "", &SchemaResolutionError{Model: model.Name, Property: property, Detail: "unknown property in selection"}
		}
		if col == pk {
			seenPK = true
		}
		parts = append(parts, prefix+quoteIdent(col.Name))
	}
	if !seenPK {
		parts = append([]string{prefix + quoteIdent(pk.Name)}, parts...)
	}
	return strings.Join(parts, ", "), nil
}
