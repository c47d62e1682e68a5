// Package apperror defines the error kinds shared by every domain package.
// Domain sentinels wrap one of the kinds so the transport layer can map
// them to a status code with errors.Is.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrConflict          = errors.New("conflict")
)

// StockError reports a single line whose requested quantity exceeds the
// live stock of the resolved product or variant.
type StockError struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// FieldErrors maps a request field to a human readable message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (f FieldErrors) Unwrap() error {
	return ErrValidation
}

// Validation builds a single-field validation error.
func Validation(field, message string) error {
	return FieldErrors{field: message}
}
