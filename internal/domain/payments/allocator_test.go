package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/domain/billing"
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

func openInvoice(t *testing.T, balance string, date time.Time) *billing.Invoice {
	t.Helper()
	return &billing.Invoice{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		Status:      billing.StatusSent,
		InvoiceDate: date,
		TotalDue:    amt(t, balance),
	}
}

func invoiceMap(invs ...*billing.Invoice) map[uuid.UUID]*billing.Invoice {
	m := make(map[uuid.UUID]*billing.Invoice, len(invs))
	for _, inv := range invs {
		m[inv.ID] = inv
	}
	return m
}

func TestValidateSplits_ExactAllocation(t *testing.T) {
	now := time.Now()
	invA := openInvoice(t, "1000.00", now.Add(-48*time.Hour))
	invB := openInvoice(t, "500.00", now)

	allocations, err := ValidateSplits(amt(t, "1200.00"), []AllocationRequest{
		{InvoiceID: invA.ID, Amount: amt(t, "1000.00")},
		{InvoiceID: invB.ID, Amount: amt(t, "200.00")},
	}, invoiceMap(invA, invB))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if !allocations[0].BalanceAfter.IsZero() {
		t.Errorf("expected invoice A fully settled, balance after %s", allocations[0].BalanceAfter)
	}
	if !allocations[1].BalanceAfter.Equal(amt(t, "300.00")) {
		t.Errorf("expected invoice B balance after 300.00, got %s", allocations[1].BalanceAfter)
	}
}

func TestValidateSplits_SumMismatch(t *testing.T) {
	invA := openInvoice(t, "1000.00", time.Now())

	_, err := ValidateSplits(amt(t, "300.00"), []AllocationRequest{
		{InvoiceID: invA.ID, Amount: amt(t, "200.00")},
	}, invoiceMap(invA))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for sum mismatch, got %v", err)
	}
}

func TestValidateSplits_Overflow(t *testing.T) {
	invA := openInvoice(t, "300.00", time.Now())

	_, err := ValidateSplits(amt(t, "400.00"), []AllocationRequest{
		{InvoiceID: invA.ID, Amount: amt(t, "400.00")},
	}, invoiceMap(invA))

	var oe *OverflowError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OverflowError, got %v", err)
	}
	if oe.InvoiceID != invA.ID {
		t.Errorf("expected offending invoice %s, got %s", invA.ID, oe.InvoiceID)
	}
	if !oe.Balance.Equal(amt(t, "300.00")) {
		t.Errorf("expected reported balance 300.00, got %s", oe.Balance)
	}
	if !invA.TotalPaid.IsZero() {
		t.Error("validation must not mutate the invoice")
	}
}

func TestValidateSplits_NonPositiveAllocation(t *testing.T) {
	invA := openInvoice(t, "100.00", time.Now())

	_, err := ValidateSplits(amt(t, "100.00"), []AllocationRequest{
		{InvoiceID: invA.ID, Amount: money.Zero},
	}, invoiceMap(invA))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for zero allocation, got %v", err)
	}
}

func TestValidateSplits_DuplicateInvoice(t *testing.T) {
	invA := openInvoice(t, "500.00", time.Now())

	_, err := ValidateSplits(amt(t, "400.00"), []AllocationRequest{
		{InvoiceID: invA.ID, Amount: amt(t, "200.00")},
		{InvoiceID: invA.ID, Amount: amt(t, "200.00")},
	}, invoiceMap(invA))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for duplicate invoice, got %v", err)
	}
}

func TestValidateSplits_UnknownInvoice(t *testing.T) {
	_, err := ValidateSplits(amt(t, "100.00"), []AllocationRequest{
		{InvoiceID: uuid.New(), Amount: amt(t, "100.00")},
	}, invoiceMap())

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown invoice, got %v", err)
	}
}

func TestValidateSplits_CancelledInvoice(t *testing.T) {
	invA := openInvoice(t, "500.00", time.Now())
	invA.Status = billing.StatusCancelled

	_, err := ValidateSplits(amt(t, "100.00"), []AllocationRequest{
		{InvoiceID: invA.ID, Amount: amt(t, "100.00")},
	}, invoiceMap(invA))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for cancelled invoice, got %v", err)
	}
}

func TestAutoAllocate_OldestFirst(t *testing.T) {
	now := time.Now()
	older := openInvoice(t, "1000.00", now.Add(-48*time.Hour))
	newer := openInvoice(t, "500.00", now)

	// Pass in newest-first order to prove sorting happens inside.
	allocations, err := AutoAllocate(amt(t, "1200.00"), []*billing.Invoice{newer, older})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].InvoiceID != older.ID {
		t.Error("oldest invoice must be allocated first")
	}
	if !allocations[0].Amount.Equal(amt(t, "1000.00")) {
		t.Errorf("oldest invoice must be exhausted first, got %s", allocations[0].Amount)
	}
	if !allocations[1].Amount.Equal(amt(t, "200.00")) {
		t.Errorf("expected 200.00 on the newer invoice, got %s", allocations[1].Amount)
	}
}

func TestAutoAllocate_StopsWhenExhausted(t *testing.T) {
	now := time.Now()
	older := openInvoice(t, "1000.00", now.Add(-48*time.Hour))
	newer := openInvoice(t, "500.00", now)

	allocations, err := AutoAllocate(amt(t, "600.00"), []*billing.Invoice{older, newer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(allocations) != 1 {
		t.Fatalf("expected a single allocation, got %d", len(allocations))
	}
	if !allocations[0].Amount.Equal(amt(t, "600.00")) {
		t.Errorf("expected 600.00 allocated, got %s", allocations[0].Amount)
	}
	if allocations[0].InvoiceID != older.ID {
		t.Error("allocation must target the oldest invoice")
	}
}

func TestAutoAllocate_RejectsOverpayment(t *testing.T) {
	invA := openInvoice(t, "300.00", time.Now())

	_, err := AutoAllocate(amt(t, "400.00"), []*billing.Invoice{invA})

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for overpayment, got %v", err)
	}
}

func TestAutoAllocate_TieBreakByID(t *testing.T) {
	date := time.Now().Truncate(time.Hour)
	a := openInvoice(t, "100.00", date)
	b := openInvoice(t, "100.00", date)
	first, second := a, b
	if b.ID.String() < a.ID.String() {
		first, second = b, a
	}

	allocations, err := AutoAllocate(amt(t, "150.00"), []*billing.Invoice{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allocations[0].InvoiceID != first.ID || allocations[1].InvoiceID != second.ID {
		t.Error("equal-dated invoices must allocate in id order")
	}
}

func TestAutoAllocate_Deterministic(t *testing.T) {
	now := time.Now()
	invs := []*billing.Invoice{
		openInvoice(t, "250.00", now.Add(-72*time.Hour)),
		openInvoice(t, "400.00", now.Add(-24*time.Hour)),
		openInvoice(t, "150.00", now),
	}

	first, err := AutoAllocate(amt(t, "700.00"), invs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := AutoAllocate(amt(t, "700.00"), invs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("allocation lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].InvoiceID != second[i].InvoiceID || !first[i].Amount.Equal(second[i].Amount) {
			t.Errorf("allocation %d differs between runs", i)
		}
	}
}

func TestAutoAllocate_SkipsClosedInvoices(t *testing.T) {
	now := time.Now()
	cancelled := openInvoice(t, "500.00", now.Add(-96*time.Hour))
	cancelled.Status = billing.StatusCancelled
	open := openInvoice(t, "500.00", now)

	allocations, err := AutoAllocate(amt(t, "500.00"), []*billing.Invoice{cancelled, open})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(allocations) != 1 || allocations[0].InvoiceID != open.ID {
		t.Error("cancelled invoices must be skipped")
	}
}
