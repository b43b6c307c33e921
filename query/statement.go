// Package query compiles declarative filter trees and clause descriptors
// into parameterized Postgres SQL. The compiler is pure and reentrant:
// every build owns its own Params accumulator and output buffer, and the
// only shared input is the read-only schema registry.
package query

import "fmt"

// Statement is the universal output contract of every builder: SQL text
// with $1..$N positional placeholders and the positionally aligned
// parameter list.
type Statement struct {
	Text   string
	Params []interface{}
}

// Params is the append-only parameter accumulator threaded through a
// whole build, nested subqueries included. It is the single source of
// truth for placeholder numbering: Add returns the 1-based ordinal of
// the value it just appended, so placeholder order always matches
// parameter order.
type Params struct {
	values []interface{}
}

// NewParams creates an empty accumulator
func NewParams() *Params {
	return &Params{values: make([]interface{}, 0, 8)}
}

// Add appends a value and returns its 1-based placeholder ordinal
func (p *Params) Add(v interface{}) int {
	p.values = append(p.values, v)
	return len(p.values)
}

// Placeholder appends a value and returns its rendered placeholder
func (p *Params) Placeholder(v interface{}) string {
	return fmt.Sprintf("$%d", p.Add(v))
}

// Len returns the number of accumulated parameters
func (p *Params) Len() int {
	return len(p.values)
}

// Values returns the accumulated parameters in append order
func (p *Params) Values() []interface{} {
	return p.values
}
