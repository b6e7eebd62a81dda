package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrAlreadyDelivered = errors.New("order already delivered")
)

// ValidationError rejects a placement before anything is written.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ProductNotFoundError names the cart line whose product no longer exists.
type ProductNotFoundError struct{ ProductID string }

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}
