package query

import (
	"reflect"
	"testing"
)

func TestScalarSubqueryComparison(t *testing.T) {
	registry := testRegistry(t)

	sub := &Subquery{
		Model:      "Order",
		Aggregates: []Aggregate{{Fn: "avg", Property: "total", Alias: "avg_total"}},
		Where:      Where{"status": "open"},
	}
	frag, params := compileTestWhere(t, registry, "Product",
		Where{"active": true, "price": map[string]interface{}{">": sub}}, nil)

	expected := `"active"=$1 AND "price">(SELECT AVG("total") AS "avg_total" FROM "public"."orders" WHERE "status"=$2)`
	if frag != expected {
		t.Errorf("expected %q, got %q", expected, frag)
	}
	// one global sequence across the outer statement and the subquery
	if !reflect.DeepEqual(params, []interface{}{true, "open"}) {
		t.Errorf("unexpected params: %v", params)
	}
	checkPlaceholders(t, frag, params)
}

func TestScalarSubqueryRequiresExactlyOneAggregate(t *testing.T) {
	registry := testRegistry(t)
	model := mustModel(t, registry, "Product")

	sub := &Subquery{Model: "Order", Columns: []string{"total"}}
	_, err := CompileWhere(registry, model, Where{"price": map[string]interface{}{">": sub}}, NewParams(), nil)
	if !IsStructural(err) {
		t.Errorf("scalar subquery without one aggregate should fail, got %v", err)
	}
}

func TestInSubquery(t *testing.T) {
	registry := testRegistry(t)

	sub := &Subquery{
		Model:   "Order",
		Columns: []string{"product"},
		Where:   Where{"total": map[string]interface{}{">": 100}},
	}
	frag, params := compileTestWhere(t, registry, "Product", Where{"id": sub}, nil)

	expected := `"id" IN (SELECT "product_id" AS "product" FROM "public"."orders" WHERE "total">$1)`
	if frag != expected {
		t.Errorf("expected %q, got %q", expected, frag)
	}
	checkPlaceholders(t, frag, params)

	frag, _ = compileTestWhere(t, registry, "Product",
		Where{"id": map[string]interface{}{"!": sub}}, nil)
	if frag != `"id" NOT IN (SELECT "product_id" AS "product" FROM "public"."orders" WHERE "total">$1)` {
		t.Errorf("unexpected fragment: %q", frag)
	}
}

func TestInSubqueryRequiresExactlyOneColumn(t *testing.T) {
	registry := testRegistry(t)
	model := mustModel(t, registry, "Product")

	sub := &Subquery{Model: "Order", Columns: []string{"product", "total"}}
	_, err := CompileWhere(registry, model, Where{"id": sub}, NewParams(), nil)
	if !IsStructural(err) {
		t.Errorf("IN subquery with two columns should fail, got %v", err)
	}
}

func TestExistsSubquery(t *testing.T) {
	registry := testRegistry(t)

	sub := &Subquery{Model: "Order", Columns: []string{"id"}, Where: Where{"status": "open"}}
	frag, params := compileTestWhere(t, registry, "Product", Where{"exists": sub}, nil)
	if frag != `EXISTS (SELECT "id" FROM "public"."orders" WHERE "status"=$1)` {
		t.Errorf("unexpected fragment: %q", frag)
	}
	checkPlaceholders(t, frag, params)

	frag, _ = compileTestWhere(t, registry, "Product",
		Where{"not": map[string]interface{}{"exists": sub}}, nil)
	if frag != `NOT EXISTS (SELECT "id" FROM "public"."orders" WHERE "status"=$1)` {
		t.Errorf("unexpected fragment: %q", frag)
	}
}

func TestSubqueryGroupByHaving(t *testing.T) {
	registry := testRegistry(t)

	sub := &Subquery{
		Model:      "Order",
		Columns:    []string{"product"},
		Aggregates: []Aggregate{{Fn: "count", Alias: "cnt"}},
		GroupBy:    []string{"product"},
		Having:     map[string]interface{}{"cnt": map[string]interface{}{">": 5}},
	}
	params := NewParams()
	frag, err := sub.build(registry, params)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	expected := `SELECT "product_id" AS "product", COUNT(*) AS "cnt" FROM "public"."orders" GROUP BY "product_id" HAVING COUNT(*)>$1`
	if frag != expected {
		t.Errorf("expected %q, got %q", expected, frag)
	}
	if !reflect.DeepEqual(params.Values(), []interface{}{5}) {
		t.Errorf("unexpected params: %v", params.Values())
	}
}

func TestSubqueryHavingErrors(t *testing.T) {
	registry := testRegistry(t)

	sub := &Subquery{
		Model:      "Order",
		Aggregates: []Aggregate{{Fn: "count", Alias: "cnt"}},
		GroupBy:    []string{"product"},
		Having:     map[string]interface{}{"missing": 1},
	}
	_, err := sub.build(registry, NewParams())
	if !IsStructural(err) {
		t.Errorf("having on an unselected alias should fail, got %v", err)
	}

	sub.Having = map[string]interface{}{"cnt": "five"}
	_, err = sub.build(registry, NewParams())
	if !IsTypeConstraint(err) {
		t.Errorf("having with a non-numeric operand should fail, got %v", err)
	}
}

func TestSubquerySortAndLimit(t *testing.T) {
	registry := testRegistry(t)

	sub := &Subquery{
		Model:      "Order",
		Aggregates: []Aggregate{{Fn: "sum", Property: "total", Alias: "total_sum", Distinct: true}},
		Sort:       []Sort{{Property: "total_sum", Descending: true}},
		Limit:      "3",
	}
	params := NewParams()
	frag, err := sub.build(registry, params)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	expected := `SELECT SUM(DISTINCT "total") AS "total_sum" FROM "public"."orders" ORDER BY "total_sum" DESC LIMIT $1`
	if frag != expected {
		t.Errorf("expected %q, got %q", expected, frag)
	}
	if !reflect.DeepEqual(params.Values(), []interface{}{int64(3)}) {
		t.Errorf("numeric string limit should coerce, got %v", params.Values())
	}
}

func TestSubqueryStructuralErrors(t *testing.T) {
	registry := testRegistry(t)

	tests := []struct {
		name string
		sub  *Subquery
	}{
		{"unknown model", &Subquery{Model: "Nope", Columns: []string{"id"}}},
		{"empty projection", &Subquery{Model: "Order"}},
		{"unknown aggregate fn", &Subquery{Model: "Order", Aggregates: []Aggregate{{Fn: "median", Property: "total"}}}},
		{"sum without property", &Subquery{Model: "Order", Aggregates: []Aggregate{{Fn: "sum"}}}},
		{"distinct star", &Subquery{Model: "Order", Aggregates: []Aggregate{{Fn: "count", Distinct: true}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.sub.build(registry, NewParams()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
