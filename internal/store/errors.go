package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for callers to match with errors.Is.
var (
	// ErrNotFound means the referenced record does not exist (anymore).
	ErrNotFound = errors.New("not found")

	// ErrConflict means a transaction could not be committed within the
	// retry budget because of concurrent writers.
	ErrConflict = errors.New("write conflict")

	// ErrUnauthenticated means an operation that requires a signed-in user
	// was called without one.
	ErrUnauthenticated = errors.New("authenticated user required")
)

// ValidationError reports one or more invalid fields. The triggering write
// is never applied when a ValidationError is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// fieldError builds a single-field ValidationError.
func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
