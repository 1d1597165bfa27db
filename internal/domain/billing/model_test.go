package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentira/clinic-api/internal/platform/money"
)

func amt(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.FromString(s)
	if err != nil {
		t.Fatalf("bad amount %q: %v", s, err)
	}
	return a
}

func sentInvoice(t *testing.T, totalDue string) *Invoice {
	t.Helper()
	return &Invoice{
		Status:      StatusSent,
		InvoiceDate: time.Now(),
		TotalDue:    amt(t, totalDue),
	}
}

func TestApplyPayment_Partial(t *testing.T) {
	inv := sentInvoice(t, "1000.00")

	if err := inv.ApplyPayment(amt(t, "400.00")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inv.Balance().Equal(amt(t, "600.00")) {
		t.Errorf("expected balance 600.00, got %s", inv.Balance())
	}
	if inv.Status != StatusPartiallyPaid {
		t.Errorf("expected partially_paid, got %s", inv.Status)
	}
}

func TestApplyPayment_Full(t *testing.T) {
	inv := sentInvoice(t, "1000.00")

	if err := inv.ApplyPayment(amt(t, "1000.00")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inv.Balance().IsZero() {
		t.Errorf("expected zero balance, got %s", inv.Balance())
	}
	if inv.Status != StatusPaid {
		t.Errorf("expected paid, got %s", inv.Status)
	}
}

func TestApplyPayment_ExceedsBalance(t *testing.T) {
	inv := sentInvoice(t, "300.00")

	err := inv.ApplyPayment(amt(t, "400.00"))
	if !errors.Is(err, ErrExceedsBalance) {
		t.Fatalf("expected ErrExceedsBalance, got %v", err)
	}
	if !inv.TotalPaid.IsZero() {
		t.Errorf("failed apply must not mutate, total_paid=%s", inv.TotalPaid)
	}
	if inv.Status != StatusSent {
		t.Errorf("failed apply must not change status, got %s", inv.Status)
	}
}

func TestApplyPayment_NonPositive(t *testing.T) {
	inv := sentInvoice(t, "100.00")
	if err := inv.ApplyPayment(money.Zero); err == nil {
		t.Error("expected error for zero amount")
	}
	if err := inv.ApplyPayment(amt(t, "-5.00")); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestApplyPayment_Cancelled(t *testing.T) {
	inv := sentInvoice(t, "100.00")
	inv.Status = StatusCancelled
	if err := inv.ApplyPayment(amt(t, "50.00")); !errors.Is(err, ErrInvoiceClosed) {
		t.Errorf("expected ErrInvoiceClosed, got %v", err)
	}
}

func TestReversePayment_RoundTrip(t *testing.T) {
	inv := sentInvoice(t, "1000.00")
	if err := inv.ApplyPayment(amt(t, "1000.00")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := inv.ReversePayment(amt(t, "1000.00")); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if !inv.Balance().Equal(amt(t, "1000.00")) {
		t.Errorf("expected balance restored to 1000.00, got %s", inv.Balance())
	}
	if !inv.TotalPaid.IsZero() {
		t.Errorf("expected total_paid restored to zero, got %s", inv.TotalPaid)
	}
	if inv.Status != StatusSent {
		t.Errorf("expected status sent after full reversal, got %s", inv.Status)
	}
}

func TestReversePayment_ExceedsPaid(t *testing.T) {
	inv := sentInvoice(t, "1000.00")
	if err := inv.ApplyPayment(amt(t, "200.00")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := inv.ReversePayment(amt(t, "300.00")); !errors.Is(err, ErrExceedsPaid) {
		t.Errorf("expected ErrExceedsPaid, got %v", err)
	}
	if !inv.TotalPaid.Equal(amt(t, "200.00")) {
		t.Errorf("failed reverse must not mutate, total_paid=%s", inv.TotalPaid)
	}
}

func TestRecomputeStatus_OverdueAfterReversal(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	inv := sentInvoice(t, "500.00")
	inv.DueDate = &past

	if err := inv.ApplyPayment(amt(t, "500.00")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := inv.ReversePayment(amt(t, "500.00")); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if inv.Status != StatusOverdue {
		t.Errorf("expected overdue after reversal past due date, got %s", inv.Status)
	}
}

func TestRecomputeTotals(t *testing.T) {
	inv := &Invoice{
		ServiceCharge: amt(t, "500.00"),
		ItemsSubtotal: amt(t, "1500.00"),
		InterestRate:  decimal.NewFromInt(2),
	}
	inv.RecomputeTotals()

	if !inv.InterestAmount.Equal(amt(t, "40.00")) {
		t.Errorf("expected interest 40.00, got %s", inv.InterestAmount)
	}
	if !inv.TotalDue.Equal(amt(t, "2040.00")) {
		t.Errorf("expected total_due 2040.00, got %s", inv.TotalDue)
	}
}

func TestAccrueInterest(t *testing.T) {
	inv := sentInvoice(t, "1000.00")
	inv.Status = StatusOverdue
	inv.InterestRate = decimal.NewFromInt(3)

	accrued := inv.AccrueInterest()
	if !accrued.Equal(amt(t, "30.00")) {
		t.Errorf("expected accrued 30.00, got %s", accrued)
	}
	if !inv.TotalDue.Equal(amt(t, "1030.00")) {
		t.Errorf("expected total_due 1030.00, got %s", inv.TotalDue)
	}
}

func TestAccrueInterest_NoRate(t *testing.T) {
	inv := sentInvoice(t, "1000.00")
	if accrued := inv.AccrueInterest(); !accrued.IsZero() {
		t.Errorf("expected no accrual without a rate, got %s", accrued)
	}
}

func TestAccrueInterest_SettledInvoice(t *testing.T) {
	inv := sentInvoice(t, "1000.00")
	inv.InterestRate = decimal.NewFromInt(3)
	if err := inv.ApplyPayment(amt(t, "1000.00")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if accrued := inv.AccrueInterest(); !accrued.IsZero() {
		t.Errorf("expected no accrual on settled invoice, got %s", accrued)
	}
}

func TestIsOpen(t *testing.T) {
	inv := sentInvoice(t, "100.00")
	if !inv.IsOpen() {
		t.Error("sent invoice with balance should be open")
	}

	inv.Status = StatusCancelled
	if inv.IsOpen() {
		t.Error("cancelled invoice should not be open")
	}

	paid := sentInvoice(t, "100.00")
	if err := paid.ApplyPayment(amt(t, "100.00")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if paid.IsOpen() {
		t.Error("settled invoice should not be open")
	}
}

func draftInvoice(t *testing.T, totalDue string) *Invoice {
	t.Helper()
	return &Invoice{
		Status:      StatusDraft,
		InvoiceDate: time.Now(),
		TotalDue:    amt(t, totalDue),
	}
}

func TestApplyPayment_DraftFullyPaid(t *testing.T) {
	inv := draftInvoice(t, "100.00")

	if err := inv.ApplyPayment(amt(t, "100.00")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inv.Balance().IsZero() {
		t.Errorf("expected zero balance, got %s", inv.Balance())
	}
	if inv.Status != StatusPaid {
		t.Errorf("fully paid draft must become paid, got %s", inv.Status)
	}
}

func TestApplyPayment_DraftPartiallyPaid(t *testing.T) {
	inv := draftInvoice(t, "100.00")

	if err := inv.ApplyPayment(amt(t, "40.00")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Status != StatusPartiallyPaid {
		t.Errorf("partially paid draft must become partially_paid, got %s", inv.Status)
	}

	// Reversing all the money does not return it to draft.
	if err := inv.ReversePayment(amt(t, "40.00")); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if inv.Status == StatusDraft {
		t.Errorf("invoice must not return to draft after a reversal, got %s", inv.Status)
	}
}
