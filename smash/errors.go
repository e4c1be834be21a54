package smash

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTransformation is returned when a transformer source resolves to nothing.
	ErrNoTransformation = errors.New("smash: must provide a transformation")

	// ErrUnknownCoercion is returned for a coercion name that is not registered.
	ErrUnknownCoercion = errors.New("smash: unknown coercion")

	// ErrUnknownKey matches every *UnknownKeyError.
	ErrUnknownKey = errors.New("smash: unknown key")

	// ErrMissingProperty matches every *MissingPropertyError.
	ErrMissingProperty = errors.New("smash: missing required property")
)

// UnknownKeyError reports a key rejected by a strict schema.
type UnknownKeyError struct {
	Key    string
	Schema string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("smash: the property '%s' is not defined for this %s", e.Key, e.Schema)
}

// Is makes errors.Is(err, ErrUnknownKey) true.
func (e *UnknownKeyError) Is(target error) bool {
	return target == ErrUnknownKey
}

// MissingPropertyError reports required properties left unset by construction.
type MissingPropertyError struct {
	Properties []string
	Schema     string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("smash: %s requires %v", e.Schema, e.Properties)
}

// Is makes errors.Is(err, ErrMissingProperty) true.
func (e *MissingPropertyError) Is(target error) bool {
	return target == ErrMissingProperty
}
