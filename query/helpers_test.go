package query

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/google/uuid"

	"github.com/quarrydb/quarry/schema"
)

// testRegistry builds the model set shared by the query tests: a
// Product with a Store relationship and an Order pointing back at
// Product for subquery cases.
func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	store := schema.NewModel("Store", "public.stores").
		Column(schema.ColumnSpec{Name: "id", Type: schema.TypeInteger, Primary: true}).
		Column(schema.ColumnSpec{Name: "name", Type: schema.TypeString}).
		Column(schema.ColumnSpec{Name: "city", Type: schema.TypeString}).
		MustBuild()

	product := schema.NewModel("Product", "public.products").
		Column(schema.ColumnSpec{Name: "id", Type: schema.TypeUUID, Primary: true, DefaultFunc: func() interface{} { return uuid.NewString() }}).
		Column(schema.ColumnSpec{Name: "name", Type: schema.TypeString}).
		Column(schema.ColumnSpec{Name: "sku", Type: schema.TypeString, Required: true, MaxLength: 12}).
		Column(schema.ColumnSpec{Name: "status", Type: schema.TypeString, Default: "draft"}).
		Column(schema.ColumnSpec{Name: "price", Type: schema.TypeFloat}).
		Column(schema.ColumnSpec{Name: "active", Type: schema.TypeBoolean}).
		Column(schema.ColumnSpec{Name: "tags", Type: schema.TypeArray, Elem: schema.TypeString, MaxLength: 8}).
		Column(schema.ColumnSpec{Name: "meta", Type: schema.TypeJSON}).
		Column(schema.ColumnSpec{Name: "store_id", Property: "store", Type: schema.TypeInteger, Model: "Store"}).
		Column(schema.ColumnSpec{Name: "created_at", Property: "createdAt", Type: schema.TypeTimestamp, CreateDate: true}).
		Column(schema.ColumnSpec{Name: "updated_at", Property: "updatedAt", Type: schema.TypeTimestamp, UpdateDate: true}).
		Column(schema.ColumnSpec{Name: "revision", Type: schema.TypeInteger, Version: true}).
		MustBuild()

	order := schema.NewModel("Order", "public.orders").
		Column(schema.ColumnSpec{Name: "id", Type: schema.TypeInteger, Primary: true}).
		Column(schema.ColumnSpec{Name: "product_id", Property: "product", Type: schema.TypeUUID, Model: "Product"}).
		Column(schema.ColumnSpec{Name: "total", Type: schema.TypeFloat}).
		Column(schema.ColumnSpec{Name: "status", Type: schema.TypeString}).
		MustBuild()

	registry := schema.NewRegistry()
	for _, m := range []*schema.Model{store, product, order} {
		if err := registry.Register(m); err != nil {
			t.Fatalf("failed to register %s: %v", m.Name, err)
		}
	}
	if err := registry.ValidateAll(); err != nil {
		t.Fatalf("registry validation failed: %v", err)
	}
	return registry
}

func mustModel(t *testing.T, registry *schema.Registry, name string) *schema.Model {
	t.Helper()
	m, ok := registry.Get(name)
	if !ok {
		t.Fatalf("model %s not registered", name)
	}
	return m
}

// compileTestWhere compiles a filter with a fresh accumulator
func compileTestWhere(t *testing.T, registry *schema.Registry, modelName string, where Where, joins []*Join) (string, []interface{}) {
	t.Helper()
	model := mustModel(t, registry, modelName)
	params := NewParams()
	frag, err := CompileWhere(registry, model, where, params, joins)
	if err != nil {
		t.Fatalf("CompileWhere failed: %v", err)
	}
	return frag, params.Values()
}

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

// checkPlaceholders asserts the core invariant: the distinct $n
// placeholders in a statement match the parameter count and are
// strictly increasing in order of first occurrence
func checkPlaceholders(t *testing.T, text string, params []interface{}) {
	t.Helper()
	seen := make(map[int]bool)
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			t.Fatalf("bad placeholder %q", m[0])
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		if n != last+1 {
			t.Errorf("placeholder $%d out of order (previous $%d) in %q", n, last, text)
		}
		last = n
	}
	if len(seen) != len(params) {
		t.Errorf("placeholder count %d does not match params length %d in %q", len(seen), len(params), text)
	}
}
