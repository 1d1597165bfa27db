package payments

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/platform/money"
)

// ValidationError covers malformed input: allocation sum mismatch,
// non-positive amounts, missing void reason, unknown payment method. No
// mutation has occurred when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// OverflowError reports an allocation larger than the target invoice's
// current balance.
type OverflowError struct {
	InvoiceID uuid.UUID
	Requested money.Amount
	Balance   money.Amount
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("allocation of %s exceeds balance %s on invoice %s",
		e.Requested, e.Balance, e.InvoiceID)
}

// AlreadyVoidedError reports a second void attempt. Voiding is not
// idempotent; the duplicate attempt is an error and nothing is mutated.
type AlreadyVoidedError struct {
	PaymentID uuid.UUID
}

func (e *AlreadyVoidedError) Error() string {
	return fmt.Sprintf("payment %s is already voided", e.PaymentID)
}

// ConflictError reports that an invoice's balance changed between validation
// and commit. The operation was rolled back and may be retried.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return "concurrent balance change, retry the operation: " + e.Err.Error()
}

func (e *ConflictError) Unwrap() error { return e.Err }
