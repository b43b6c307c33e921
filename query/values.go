package query

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// quoteIdent double-quotes a single identifier
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteTable double-quotes a possibly schema-qualified table name,
// quoting each dot segment separately. Exported for callers that
// assemble SQL around compiled fragments.
func QuoteTable(s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// sortedKeys returns map keys in sorted order. Go maps iterate in random
// order; compiling keys sorted keeps placeholder numbering deterministic.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// asMap normalizes a filter value to a string-keyed map
func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// toSlice normalizes any slice or array value to []interface{}.
// Byte slices and times stay scalar.
func toSlice(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	switch v.(type) {
	case []byte, time.Time:
		return nil, false
	}
	if items, ok := v.([]interface{}); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// isScalar reports whether a value can be bound as a single parameter
func isScalar(v interface{}) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case []byte, time.Time:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Ptr:
		return false
	}
	return true
}

// andJoin is the connective for implicitly AND-ed siblings; negation
// turns it into OR per De Morgan
func andJoin(negate bool) string {
	if negate {
		return " OR "
	}
	return " AND "
}

// orJoin is the connective for OR-ed alternatives; negation turns it
// into AND
func orJoin(negate bool) string {
	if negate {
		return " AND "
	}
	return " OR "
}
