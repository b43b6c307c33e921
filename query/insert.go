package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/quarrydb/quarry/schema"
)

// OnConflict declares upsert behavior for an insert
type OnConflict struct {
	// Targets are the conflict-target properties. Required for DO
	// UPDATE, optional for DO NOTHING.
	Targets []string
	// Where narrows the conflict target (partial-index upserts)
	Where Where
	// DoNothing suppresses the conflicting insert instead of merging
	DoNothing bool
	// Update lists the properties to merge; nil means every column
	// that is not a primary key and not a create timestamp
	Update []string
}

// InsertOptions carries the optional clauses of an insert
type InsertOptions struct {
	Returning  []string
	OnConflict *OnConflict
}

// BuildInsert assembles an INSERT for one or more rows. Omitted values
// resolve per column: literal default, factory default, auto create or
// update timestamp, or a version seed of 1; a missing value on a
// required column without a default fails the row. All rows batch into
// one statement sharing the running parameter sequence.
func BuildInsert(registry *schema.Registry, model *schema.Model, rows []map[string]interface{}, opts *InsertOptions) (*Statement, error) {
	if len(rows) == 0 {
		return nil, &ArgumentError{Detail: fmt.Sprintf("insert into %s requires at least one row", model.Name)}
	}
	if opts == nil {
		opts = &InsertOptions{}
	}
	params := NewParams()
	now := time.Now().UTC()

	names := make([]string, 0, len(model.Columns))
	for _, col := range model.Columns {
		names = append(names, quoteIdent(col.Name))
	}

	tuples := make([]string, 0, len(rows))
	for _, row := range rows {
		for property := range row {
			if !model.HasProperty(property) {
				return nil, &SchemaResolutionError{Model: model.Name, Property: property, Detail: "unknown property"}
			}
		}

		placeholders := make([]string, 0, len(model.Columns))
		for _, col := range model.Columns {
			value, supplied := row[col.Property]
			if !supplied {
				resolved, err := resolveDefault(model, col, now)
				if err != nil {
					return nil, err
				}
				value = resolved
			}
			// defaults normalize like supplied values: a JSON document
			// default still needs its cast, a relation default its
			// pk-reduction
			normalized, cast, err := normalizeValue(registry, model, col, value)
			if err != nil {
				return nil, err
			}
			placeholders = append(placeholders, params.Placeholder(normalized)+cast)
		}
		tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(QuoteTable(model.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(") VALUES ")
	b.WriteString(strings.Join(tuples, ", "))

	if opts.OnConflict != nil {
		frag, err := buildOnConflict(registry, model, opts.OnConflict, params)
		if err != nil {
			return nil, err
		}
		b.WriteString(frag)
	}

	// a non-nil empty Returning means every column
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

// resolveDefault produces the value for a column the caller omitted
func resolveDefault(model *schema.Model, col *schema.Column, now time.Time) (interface{}, error) {
	switch {
	case col.DefaultFunc != nil:
		return col.DefaultFunc(), nil
	case col.Default != nil:
		return col.Default, nil
	case col.CreateDate || col.UpdateDate:
		return now, nil
	case col.Version:
		return 1, nil
	case col.Required:
		return nil, &RequiredValueError{Model: model.Name, Property: col.Property}
	default:
		return nil, nil
	}
}

// normalizeValue prepares a supplied value for binding: hydrated
// relation values reduce to their primary key, JSON documents serialize
// to text with a ::jsonb cast, and maxLength-constrained strings are
// validated before the statement is built.
func normalizeValue(registry *schema.Registry, model *schema.Model, col *schema.Column, value interface{}) (interface{}, string, error) {
	if value == nil {
		return nil, "", nil
	}

	if m, ok := asMap(value); ok && col.Model != "" {
		related, ok := registry.Get(col.Model)
		if !ok {
			return nil, "", &SchemaResolutionError{Model: model.Name, Property: col.Property, Detail: fmt.Sprintf("references unregistered model %s", col.Model)}
		}
		pk := related.PrimaryKey()
		pkValue, ok := m[pk.Property]
		if !ok || pkValue == nil {
			return nil, "", &TypeConstraintError{Model: model.Name, Property: col.Property, Detail: fmt.Sprintf("related %s value has no %s", col.Model, pk.Property)}
		}
		return pkValue, "", nil
	}

	if col.Type == schema.TypeJSON {
		switch value.(type) {
		case string, []byte:
			return value, "", nil
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, "", &TypeConstraintError{Model: model.Name, Property: col.Property, Detail: fmt.Sprintf("value is not JSON-serializable: %v", err)}
		}
		return string(encoded), "::jsonb", nil
	}

	if err := checkMaxLength(model, col, value); err != nil {
		return nil, "", err
	}
	return value, "", nil
}

// checkMaxLength enforces maxLength on string and string-array values
func checkMaxLength(model *schema.Model, col *schema.Column, value interface{}) error {
	if col.MaxLength <= 0 {
		return nil
	}

	check := func(s string) error {
		if utf8.RuneCountInString(s) > col.MaxLength {
			return &TypeConstraintError{Model: model.Name, Property: col.Property, Detail: fmt.Sprintf("value exceeds maxLength %d", col.MaxLength)}
		}
		return nil
	}

	if s, ok := value.(string); ok {
		return check(s)
	}
	if col.IsArray() {
		items, ok := toSlice(value)
		if !ok {
			return nil
		}
		for _, item := range items {
			if s, ok := item.(string); ok {
				if err := check(s); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// buildOnConflict renders the upsert clause
func buildOnConflict(registry *schema.Registry, model *schema.Model, oc *OnConflict, params *Params) (string, error) {
	var b strings.Builder
	b.WriteString(" ON CONFLICT")

	if len(oc.Targets) > 0 {
		targets := make([]string, 0, len(oc.Targets))
		for _, property := range oc.Targets {
			col, ok := model.Column(property)
			if !ok {
				return "", &SchemaResolutionError{Model: model.Name, Property: property, Detail: "unknown conflict target"}
			}
			targets = append(targets, quoteIdent(col.Name))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(targets, ", "))
		b.WriteString(")")

		if len(oc.Where) > 0 {
			frag, err := CompileWhere(registry, model, oc.Where, params, nil)
			if err != nil {
				return "", err
			}
			if frag != "" {
				b.WriteString(" WHERE ")
				b.WriteString(frag)
			}
		}
	}

	if oc.DoNothing {
		b.WriteString(" DO NOTHING")
		return b.String(), nil
	}

	if len(oc.Targets) == 0 {
		return "", &StructuralError{Model: model.Name, Detail: "DO UPDATE requires conflict targets"}
	}

	merge := oc.Update
	if merge == nil {
		for _, col := range model.Columns {
			if col.Primary || col.CreateDate {
				continue
			}
			merge = append(merge, col.Property)
		}
	}
	if len(merge) == 0 {
		return "", &StructuralError{Model: model.Name, Detail: "DO UPDATE has no columns to merge"}
	}

	// unqualified target-row references are ambiguous inside DO UPDATE,
	// so version increments name the table explicitly
	table := model.Table
	if idx := strings.LastIndex(table, "."); idx >= 0 {
		table = table[idx+1:]
	}

	sets := make([]string, 0, len(merge))
	for _, property := range merge {
		col, ok := model.Column(property)
		if !ok {
			return "", &SchemaResolutionError{Model: model.Name, Property: property, Detail: "unknown merge property"}
		}
		if col.Version {
			sets = append(sets, quoteIdent(col.Name)+" = "+quoteIdent(table)+"."+quoteIdent(col.Name)+" + 1")
			continue
		}
		sets = append(sets, quoteIdent(col.Name)+" = EXCLUDED."+quoteIdent(col.Name))
	}

	b.WriteString(" DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))
	return b.String(), nil
}
