// Package patch provides optional values that remember whether a client supplied them.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field holds a value together with whether it was present in the input.
// A JSON null marks the field as present with the zero value.
type Field[T any] struct {
	value T
	set   bool
}

// Set returns a present field holding value.
func Set[T any](value T) Field[T] {
	return Field[T]{value: value, set: true}
}

// Unset returns an absent field.
func Unset[T any]() Field[T] {
	return Field[T]{}
}

// IsSet reports whether the field was supplied.
func (f Field[T]) IsSet() bool {
	return f.set
}

// Value returns the held value; the zero value when unset.
func (f Field[T]) Value() T {
	return f.value
}

// Get returns the value and whether it was supplied.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

// UnmarshalJSON marks the field as supplied. It is only invoked for keys present in the payload.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.value = zero
		return nil
	}
	return json.Unmarshal(data, &f.value)
}

// MarshalJSON encodes the held value, or null when unset.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
