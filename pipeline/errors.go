// ABOUTME: Sentinel and typed errors for pipeline decoding, mutation, and validation.
// ABOUTME: ValidationError carries per-field messages keyed by wire-level field paths.
package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPlaintextSecret indicates a secure variable arrived with plaintext and no sealer was available.
	ErrPlaintextSecret = errors.New("secure variable carries plaintext value and no sealer is configured")

	// ErrAmbiguousValue indicates a variable carries both a plaintext and an encrypted value.
	ErrAmbiguousValue = errors.New("variable carries both value and encryptedValue")

	// ErrSecureValue indicates an attempt to set plaintext on a secure variable.
	ErrSecureValue = errors.New("cannot set plaintext value on a secure variable")

	// ErrPlainValue indicates an attempt to set ciphertext on a plain variable.
	ErrPlainValue = errors.New("cannot set encrypted value on a plain variable")

	// ErrNoSealer indicates an operation needed encryption but none is configured.
	ErrNoSealer = errors.New("no sealer configured for secure values")
)

// DuplicateNameError indicates a name already present in a parameter or variable collection.
type DuplicateNameError struct {
	Collection string
	Name       string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s: duplicate name %q", e.Collection, e.Name)
}

// NotFoundError indicates a name missing from a parameter or variable collection.
type NotFoundError struct {
	Collection string
	Name       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %q not found", e.Collection, e.Name)
}

// ValidationError collects field-level problems found by Validate.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }

// FieldNames returns the failing field paths in sorted order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.FieldNames() {
		parts = append(parts, f+": "+strings.Join(e.Fields[f], "; "))
	}
	return "invalid pipeline config: " + strings.Join(parts, ", ")
}
