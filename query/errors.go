package query

import (
	"errors"
	"fmt"
)

// The build error taxonomy. Every error is raised synchronously at the
// point of detection, carries model and property context, and abandons
// the whole build; callers never see partially valid SQL.

// SchemaResolutionError reports an unknown property, model, or
// relationship reference.
type SchemaResolutionError struct {
	Model    string
	Property string
	Detail   string
}

func (e *SchemaResolutionError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("model %s: property %s: %s", e.Model, e.Property, e.Detail)
	}
	return fmt.Sprintf("model %s: %s", e.Model, e.Detail)
}

// TypeConstraintError reports a wrong value type for an operator, an
// operator unsupported for a column type, or a maxLength violation.
type TypeConstraintError struct {
	Model    string
	Property string
	Detail   string
}

func (e *TypeConstraintError) Error() string {
	return fmt.Sprintf("model %s: property %s: %s", e.Model, e.Property, e.Detail)
}

// RequiredValueError reports a missing required column on insert
type RequiredValueError struct {
	Model    string
	Property string
}

func (e *RequiredValueError) Error() string {
	return fmt.Sprintf("model %s: property %s is required and has no default", e.Model, e.Property)
}

// StructuralError reports a malformed subquery, join, or filter shape
type StructuralError struct {
	Model  string
	Detail string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("model %s: %s", e.Model, e.Detail)
}

// ArgumentError reports an invalid caller-supplied argument, such as a
// non-finite limit or a string where an object was expected
type ArgumentError struct {
	Detail string
}

func (e *ArgumentError) Error() string {
	return e.Detail
}

// IsSchemaResolution returns true if the error is a SchemaResolutionError
func IsSchemaResolution(err error) bool {
	var target *SchemaResolutionError
	return errors.As(err, &target)
}

// IsTypeConstraint returns true if the error is a TypeConstraintError
func IsTypeConstraint(err error) bool {
	var target *TypeConstraintError
	return errors.As(err, &target)
}

// IsRequiredValue returns true if the error is a RequiredValueError
func IsRequiredValue(err error) bool {
	var target *RequiredValueError
	return errors.As(err, &target)
}

// IsStructural returns true if the error is a StructuralError
func IsStructural(err error) bool {
	var target *StructuralError
	return errors.As(err, &target)
}

// IsArgument returns true if the error is an ArgumentError
func IsArgument(err error) bool {
	var target *ArgumentError
	return errors.As(err, &target)
}
