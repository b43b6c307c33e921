package query

import (
	"reflect"
	"testing"
)

func TestBuildDelete(t *testing.T) {
	registry := testRegistry(t)
	model := mustModel(t, registry, "Product")

	stmt, err := BuildDelete(registry, model, Where{"store": 1}, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if stmt.Text != `DELETE FROM "public"."products" WHERE "store_id"=$1` {
		t.Errorf("unexpected text: %q", stmt.Text)
	}
	if !reflect.DeepEqual(stmt.Params, []interface{}{1}) {
		t.Errorf("unexpected params: %v", stmt.Params)
	}
}

func TestBuildDeleteWithoutFilter(t *testing.T) {
	registry := testRegistry(t)
	model := mustModel(t, registry, "Product")

	stmt, err := BuildDelete(registry, model, nil, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if stmt.Text != `DELETE FROM "public"."products"` {
		t.Errorf("unexpected text: %q", stmt.Text)
	}
}

func TestBuildDeleteReturning(t *testing.T) {
	registry := testRegistry(t)
	model := mustModel(t, registry, "Product")

	stmt, err := BuildDelete(registry, model, Where{"active": false},
		&DeleteOptions{Returning: []string{"id"}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if stmt.Text != `DELETE FROM "public"."products" WHERE "active"=$1 RETURNING "id"` {
		t.Errorf("unexpected text: %q", stmt.Text)
	}
}

func TestBuildDeleteInvalidFilter(t *testing.T) {
	registry := testRegistry(t)
	model := mustModel(t, registry, "Product")

	_, err := BuildDelete(registry, model, Where{"nope": 1}, nil)
	if !IsSchemaResolution(err) {
		t.Errorf("expected a schema-resolution error, got %v", err)
	}
}
