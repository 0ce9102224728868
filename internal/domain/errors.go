package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers wrap them with context and compare with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrOutOfStock   = errors.New("product out of stock")
	ErrStorage      = errors.New("storage failure")
	ErrUpstream     = errors.New("upstream failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrCartNotFound    = fmt.Errorf("cart %w", ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("item %w in cart", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrCartEmpty       = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrDuplicateTag    = fmt.Errorf("%w: product with this RFID tag already exists", ErrConflict)
)

// Validationf builds a validation error with a formatted detail.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
