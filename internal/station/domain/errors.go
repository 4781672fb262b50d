package domain

import "fmt"

// ValidationError reports a structural or cross-reference failure on an
// entity. It carries the entity kind and field so the HTTP boundary can
// render a precise message without inspecting internals.
type ValidationError struct {
	Entity string
	Field  string
	Info   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Info)
}

// ValidationErrorf builds a ValidationError with a formatted Info message.
func ValidationErrorf(entity, field, format string, args ...any) error {
	return &ValidationError{Entity: entity, Field: field, Info: fmt.Sprintf(format, args...)}
}
