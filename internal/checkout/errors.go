package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInvalidTransition = errors.New("illegal transition of checkout step")
	ErrAlreadyPlaced     = errors.New("order is already being placed")
	ErrInProgress        = errors.New("checkout is processing")
)

// ValidationError carries one message per rejected field.
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
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// PaymentError is a failed confirmation. The checkout is back at review and
// the buyer may try again.
type PaymentError struct {
	Reason string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed: %s", e.Reason)
}

func (e *PaymentError) Retryable() bool {
	return true
}

func transitionError(from, to Step) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
