package order

import (
	"errors"
	"fmt"
)

var ErrNothingToCommit = errors.New("ledger is empty, nothing to commit")

// CommitError means the payment went through but the order was not recorded.
// It needs manual reconciliation; retrying could charge the buyer twice.
type CommitError struct {
	OrderID          string
	PaymentReference string
	Err              error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("payment succeeded but order recording failed (order %s, payment %s): %v",
		e.OrderID, e.PaymentReference, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
