package schema

import (
	"strings"
	"testing"
)

func TestBuildModel(t *testing.T) {
	model, err := NewModel("User", "public.users").
		Column(ColumnSpec{Name: "id", Type: TypeUUID, Primary: true}).
		Column(ColumnSpec{Name: "email", Type: TypeString, Required: true, MaxLength: 255}).
		Column(ColumnSpec{Name: "org_id", Property: "org", Type: TypeInteger, Model: "Org"}).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if model.Name != "User" || model.Table != "public.users" {
		t.Errorf("unexpected identity: %s %s", model.Name, model.Table)
	}
	if len(model.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(model.Columns))
	}

	// property defaults to the column name
	if model.Columns[0].Property != "id" {
		t.Errorf("unexpected property: %s", model.Columns[0].Property)
	}
	if col, _ := model.Column("org"); col.Model != "Org" {
		t.Errorf("relationship target not carried: %v", col)
	}
}

func TestBuildModelErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *ModelBuilder
		detail  string
	}{
		{
			"missing name",
			NewModel("", "t").Column(ColumnSpec{Name: "id", Type: TypeInteger, Primary: true}),
			"requires a name",
		},
		{
			"missing table",
			NewModel("M", "").Column(ColumnSpec{Name: "id", Type: TypeInteger, Primary: true}),
			"requires a table",
		},
		{
			"no columns",
			NewModel("M", "t"),
			"declares no columns",
		},
		{
			"unnamed column",
			NewModel("M", "t").Column(ColumnSpec{Type: TypeInteger, Primary: true}),
			"without a name",
		},
		{
			"untyped column",
			NewModel("M", "t").Column(ColumnSpec{Name: "id", Primary: true}),
			"no declared type",
		},
		{
			"duplicate property",
			NewModel("M", "t").
				Column(ColumnSpec{Name: "id", Type: TypeInteger, Primary: true}).
				Column(ColumnSpec{Name: "id", Type: TypeString}),
			"duplicate property",
		},
		{
			"two primary keys",
			NewModel("M", "t").
				Column(ColumnSpec{Name: "a", Type: TypeInteger, Primary: true}).
				Column(ColumnSpec{Name: "b", Type: TypeInteger, Primary: true}),
			"multiple primary keys",
		},
		{
			"no primary key",
			NewModel("M", "t").Column(ColumnSpec{Name: "id", Type: TypeInteger}),
			"no primary key",
		},
		{
			"two kinds of default",
			NewModel("M", "t").
				Column(ColumnSpec{Name: "id", Type: TypeInteger, Primary: true}).
				Column(ColumnSpec{Name: "s", Type: TypeString, Default: "x", DefaultFunc: func() interface{} { return "y" }}),
			"both a literal and a factory default",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.detail) {
				t.Errorf("expected %q in error, got %v", tt.detail, err)
			}
		})
	}
}

func TestMustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	NewModel("M", "t").MustBuild()
}
