// Package schema provides the metadata registry for quarry models.
// It defines the immutable column and model descriptors that the query
// package compiles against: physical/logical names, declared types,
// nullability, defaults, and relationship references.
package schema

import "fmt"

// ColumnType represents the declared type of a column
type ColumnType int

const (
	// TypeUnknown is the zero value; only valid as an Array element
	// placeholder for untyped array columns
	TypeUnknown ColumnType = iota

	// Text types
	TypeString
	TypeText

	// Numeric types
	TypeInteger
	TypeBigInt
	TypeFloat

	// Boolean
	TypeBoolean

	// Time types
	TypeDate
	TypeTimestamp

	// Unique identifiers
	TypeUUID

	// JSON document
	TypeJSON

	// Postgres array column; element type carried separately
	TypeArray
)

// String returns the string representation of the column type
func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	case TypeUUID:
		return "uuid"
	case TypeJSON:
		return "json"
	case TypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// ParseColumnType converts a string to a ColumnType
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "integer":
		return TypeInteger, nil
	case "bigint":
		return TypeBigInt, nil
	case "float":
		return TypeFloat, nil
	case "boolean":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "timestamp":
		return TypeTimestamp, nil
	case "uuid":
		return TypeUUID, nil
	case "json":
		return TypeJSON, nil
	case "array":
		return TypeArray, nil
	default:
		return TypeUnknown, fmt.Errorf("unknown column type: %s", s)
	}
}

// IsText returns true for types compared with string operators
func (t ColumnType) IsText() bool {
	return t == TypeString || t == TypeText
}

// IsNumeric returns true for the numeric column types
func (t ColumnType) IsNumeric() bool {
	return t == TypeInteger || t == TypeBigInt || t == TypeFloat
}

// Column describes one physical column of a model
type Column struct {
	// Name is the physical column name, Property the logical one
	// exposed through the query API
	Name     string
	Property string

	Type ColumnType
	// Elem is the element type for TypeArray columns; TypeUnknown when
	// the array was declared without one
	Elem ColumnType

	Required  bool
	MaxLength int

	Primary    bool
	CreateDate bool
	UpdateDate bool
	Version    bool

	// Model names the related model for foreign-key columns
	Model string

	// Default is a literal default; DefaultFunc a factory evaluated per
	// insert. At most one is set.
	Default     interface{}
	DefaultFunc func() interface{}
}

// IsArray returns true for array-typed columns
func (c *Column) IsArray() bool {
	return c.Type == TypeArray
}

// HasDefault returns true if the column can produce a value when the
// caller omits one
func (c *Column) HasDefault() bool {
	return c.Default != nil || c.DefaultFunc != nil
}

// Model describes a registered model: its table, ordered columns, and
// the special-role columns the assemblers need
type Model struct {
	Name  string
	Table string

	Columns    []*Column
	byProperty map[string]*Column

	primary *Column
}

// Column returns the column for a logical property name
func (m *Model) Column(property string) (*Column, bool) {
	c, ok := m.byProperty[property]
	return c, ok
}

// PrimaryKey returns the primary-key column
func (m *Model) PrimaryKey() *Column {
	return m.primary
}

// UpdateDateColumns returns the columns flagged as update timestamps
func (m *Model) UpdateDateColumns() []*Column {
	var cols []*Column
	for _, c := range m.Columns {
		if c.UpdateDate {
			cols = append(cols, c)
		}
	}
	return cols
}

// VersionColumns returns the optimistic-lock version columns
func (m *Model) VersionColumns() []*Column {
	var cols []*Column
	for _, c := range m.Columns {
		if c.Version {
			cols = append(cols, c)
		}
	}
	return cols
}

// HasProperty returns true if the model declares the given property
func (m *Model) HasProperty(property string) bool {
	_, ok := m.byProperty[property]
	return ok
}
