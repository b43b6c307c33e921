package schema

import "fmt"

// ModelBuilder constructs a Model incrementally. It is the programmatic
// stand-in for annotation-driven model declaration: each ColumnSpec maps
// one property to a physical column with its flags, and Build validates
// the result before it can be registered.
type ModelBuilder struct {
	name    string
	table   string
	columns []*Column
}

// NewModel starts a builder for a model backed by the given qualified
// table name
func NewModel(name, table string) *ModelBuilder {
	return &ModelBuilder{name: name, table: table}
}

// ColumnSpec declares one column while building a model
type ColumnSpec struct {
	Name     string
	Property string
	Type     ColumnType
	Elem     ColumnType

	Required  bool
	MaxLength int

	Primary    bool
	CreateDate bool
	UpdateDate bool
	Version    bool

	Model string

	Default     interface{}
	DefaultFunc func() interface{}
}

// Column appends a column declaration. Property defaults to Name when
// omitted.
func (b *ModelBuilder) Column(spec ColumnSpec) *ModelBuilder {
	property := spec.Property
	if property == "" {
		property = spec.Name
	}
	b.columns = append(b.columns, &Column{
		Name:        spec.Name,
		Property:    property,
		Type:        spec.Type,
		Elem:        spec.Elem,
		Required:    spec.Required,
		MaxLength:   spec.MaxLength,
		Primary:     spec.Primary,
		CreateDate:  spec.CreateDate,
		UpdateDate:  spec.UpdateDate,
		Version:     spec.Version,
		Model:       spec.Model,
		Default:     spec.Default,
		DefaultFunc: spec.DefaultFunc,
	})
	return b
}

// Build validates the declarations and returns the immutable Model
func (b *ModelBuilder) Build() (*Model, error) {
	if b.name == "" {
		return nil, fmt.Errorf("model requires a name")
	}
	if b.table == "" {
		return nil, fmt.Errorf("model %s requires a table name", b.name)
	}
	if len(b.columns) == 0 {
		return nil, fmt.Errorf("model %s declares no columns", b.name)
	}

	m := &Model{
		Name:       b.name,
		Table:      b.table,
		Columns:    make([]*Column, 0, len(b.columns)),
		byProperty: make(map[string]*Column, len(b.columns)),
	}

	for _, c := range b.columns {
		if c.Name == "" {
			return nil, fmt.Errorf("model %s declares a column without a name", b.name)
		}
		if c.Type == TypeUnknown {
			return nil, fmt.Errorf("model %s: column %s has no declared type", b.name, c.Property)
		}
		if c.Default != nil && c.DefaultFunc != nil {
			return nil, fmt.Errorf("model %s: column %s declares both a literal and a factory default", b.name, c.Property)
		}
		if _, dup := m.byProperty[c.Property]; dup {
			return nil, fmt.Errorf("model %s: duplicate property %s", b.name, c.Property)
		}
		if c.Primary {
			if m.primary != nil {
				return nil, fmt.Errorf("model %s: multiple primary keys (%s, %s)", b.name, m.primary.Property, c.Property)
			}
			m.primary = c
		}
		m.byProperty[c.Property] = c
		m.Columns = append(m.Columns, c)
	}

	if m.primary == nil {
		return nil, fmt.Errorf("model %s has no primary key", b.name)
	}

	return m, nil
}

// MustBuild is Build that panics on error, for statically declared models
func (b *ModelBuilder) MustBuild() *Model {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
