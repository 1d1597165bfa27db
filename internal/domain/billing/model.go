package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentira/clinic-api/internal/platform/money"
)

// Invoice statuses.
const (
	StatusDraft         = "draft"
	StatusSent          = "sent"
	StatusPartiallyPaid = "partially_paid"
	StatusPaid          = "paid"
	StatusOverdue       = "overdue"
	StatusCancelled     = "cancelled"
)

var (
	// ErrExceedsBalance is returned when a payment would drive an invoice
	// balance negative.
	ErrExceedsBalance = errors.New("payment exceeds invoice balance")
	// ErrExceedsPaid is returned when a reversal would drive total_paid negative.
	ErrExceedsPaid = errors.New("reversal exceeds amount paid")
	// ErrBalanceConflict is returned when an invoice's financial state changed
	// between read and write. Callers may retry.
	ErrBalanceConflict = errors.New("invoice balance changed concurrently")
	// ErrInvoiceClosed is returned when applying a payment to a cancelled invoice.
	ErrInvoiceClosed = errors.New("invoice is cancelled")
)

// Invoice maps to the invoices table. total_paid is mutated only through
// ApplyPayment and ReversePayment so balance and status never drift apart.
type Invoice struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patient_id"`
	AppointmentID  *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
	Number         string          `db:"number" json:"number"`
	InvoiceDate    time.Time       `db:"invoice_date" json:"invoice_date"`
	DueDate        *time.Time      `db:"due_date" json:"due_date,omitempty"`
	ServiceCharge  money.Amount    `db:"service_charge" json:"service_charge"`
	ItemsSubtotal  money.Amount    `db:"items_subtotal" json:"items_subtotal"`
	InterestRate   decimal.Decimal `db:"interest_rate" json:"interest_rate"`
	InterestAmount money.Amount    `db:"interest_amount" json:"interest_amount"`
	TotalDue       money.Amount    `db:"total_due" json:"total_due"`
	TotalPaid      money.Amount    `db:"total_paid" json:"total_paid"`
	Status         string          `db:"status" json:"status"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// InvoiceItem maps to the invoice_items table.
type InvoiceItem struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	InvoiceID   uuid.UUID    `db:"invoice_id" json:"invoice_id"`
	Description string       `db:"description" json:"description"`
	Quantity    int          `db:"quantity" json:"quantity"`
	UnitPrice   money.Amount `db:"unit_price" json:"unit_price"`
	LineTotal   money.Amount `db:"line_total" json:"line_total"`
}

// Balance is the amount still owed.
func (inv *Invoice) Balance() money.Amount {
	return inv.TotalDue.Sub(inv.TotalPaid)
}

// IsOpen reports whether the invoice can still receive payments.
func (inv *Invoice) IsOpen() bool {
	return inv.Status != StatusCancelled && inv.Balance().IsPositive()
}

// ApplyPayment increases total_paid and recomputes status. It is one of the
// two permitted mutators of the invoice's financial state.
func (inv *Invoice) ApplyPayment(amount money.Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	if inv.Status == StatusCancelled {
		return ErrInvoiceClosed
	}
	if amount.GreaterThan(inv.Balance()) {
		return ErrExceedsBalance
	}
	inv.TotalPaid = inv.TotalPaid.Add(amount)
	inv.recomputeStatus()
	return nil
}

// ReversePayment decreases total_paid and recomputes status. Used when a
// payment against this invoice is voided.
func (inv *Invoice) ReversePayment(amount money.Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("reversal amount must be positive, got %s", amount)
	}
	if amount.GreaterThan(inv.TotalPaid) {
		return ErrExceedsPaid
	}
	inv.TotalPaid = inv.TotalPaid.Sub(amount)
	inv.recomputeStatus()
	return nil
}

// recomputeStatus derives status from the financial state instead of trusting
// whatever was stored. Cancelled invoices keep their status; a draft keeps it
// only until it has received money, so balance == 0 always means paid.
func (inv *Invoice) recomputeStatus() {
	if inv.Status == StatusCancelled {
		return
	}
	if inv.Status == StatusDraft && !inv.TotalPaid.IsPositive() {
		return
	}
	switch {
	case inv.Balance().IsZero():
		inv.Status = StatusPaid
	case inv.TotalPaid.IsPositive():
		inv.Status = StatusPartiallyPaid
	case inv.DueDate != nil && inv.DueDate.Before(time.Now()):
		inv.Status = StatusOverdue
	default:
		inv.Status = StatusSent
	}
}

// RecomputeTotals recalculates interest and total_due from the charge fields.
func (inv *Invoice) RecomputeTotals() {
	principal := inv.ServiceCharge.Add(inv.ItemsSubtotal)
	inv.InterestAmount = principal.MulRate(inv.InterestRate.Div(decimal.NewFromInt(100)))
	inv.TotalDue = principal.Add(inv.InterestAmount)
}

// AccrueInterest adds interest_rate percent of the outstanding balance to the
// invoice. Only meaningful for overdue invoices; callers guard the status.
func (inv *Invoice) AccrueInterest() money.Amount {
	if inv.InterestRate.IsZero() || !inv.Balance().IsPositive() {
		return money.Zero
	}
	accrued := inv.Balance().MulRate(inv.InterestRate.Div(decimal.NewFromInt(100)))
	inv.InterestAmount = inv.InterestAmount.Add(accrued)
	inv.TotalDue = inv.TotalDue.Add(accrued)
	inv.recomputeStatus()
	return accrued
}
