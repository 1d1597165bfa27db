package payments

import (
	"sort"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/domain/billing"
	"github.com/dentira/clinic-api/internal/platform/money"
)

// AllocationRequest is a caller-chosen (invoice, amount) pair.
type AllocationRequest struct {
	InvoiceID uuid.UUID    `json:"invoice_id"`
	Amount    money.Amount `json:"amount"`
}

// Allocation is a validated split with the invoice balances around it.
type Allocation struct {
	InvoiceID     uuid.UUID    `json:"invoice_id"`
	Amount        money.Amount `json:"amount"`
	BalanceBefore money.Amount `json:"balance_before"`
	BalanceAfter  money.Amount `json:"balance_after"`
}

// ValidateSplits checks a requested split set against the payment amount and
// the invoices' current balances:
//
//   - every requested amount must be positive,
//   - every requested amount must fit within its invoice's balance,
//   - the amounts must sum to exactly the payment amount.
//
// Nothing is mutated; the caller commits the returned allocations inside a
// transaction. Partial allocation is rejected rather than parked as credit.
func ValidateSplits(amount money.Amount, requests []AllocationRequest, invoices map[uuid.UUID]*billing.Invoice) ([]Allocation, error) {
	if !amount.IsPositive() {
		return nil, validationf("payment amount must be positive, got %s", amount)
	}
	if len(requests) == 0 {
		return nil, validationf("at least one allocation is required")
	}

	seen := make(map[uuid.UUID]bool, len(requests))
	allocations := make([]Allocation, 0, len(requests))
	total := money.Zero

	for _, req := range requests {
		if seen[req.InvoiceID] {
			return nil, validationf("duplicate allocation for invoice %s", req.InvoiceID)
		}
		seen[req.InvoiceID] = true

		if !req.Amount.IsPositive() {
			return nil, validationf("allocation for invoice %s must be positive, got %s", req.InvoiceID, req.Amount)
		}

		inv, ok := invoices[req.InvoiceID]
		if !ok {
			return nil, validationf("invoice %s not found", req.InvoiceID)
		}
		if !inv.IsOpen() {
			return nil, validationf("invoice %s is not open for payment", req.InvoiceID)
		}

		balance := inv.Balance()
		if req.Amount.GreaterThan(balance) {
			return nil, &OverflowError{InvoiceID: req.InvoiceID, Requested: req.Amount, Balance: balance}
		}

		allocations = append(allocations, Allocation{
			InvoiceID:     req.InvoiceID,
			Amount:        req.Amount,
			BalanceBefore: balance,
			BalanceAfter:  balance.Sub(req.Amount),
		})
		total = total.Add(req.Amount)
	}

	if !total.Equal(amount) {
		return nil, validationf("allocations sum to %s but payment amount is %s", total, amount)
	}

	return allocations, nil
}

// AutoAllocate distributes the payment across the patient's open invoices,
// oldest invoice first (id as tie-break), exhausting each invoice's balance
// before moving to the next. The result is deterministic for a given invoice
// set and amount.
//
// An amount exceeding the sum of open balances is rejected; there is no
// credit-balance facility.
func AutoAllocate(amount money.Amount, open []*billing.Invoice) ([]Allocation, error) {
	if !amount.IsPositive() {
		return nil, validationf("payment amount must be positive, got %s", amount)
	}

	ordered := make([]*billing.Invoice, 0, len(open))
	for _, inv := range open {
		if inv.IsOpen() {
			ordered = append(ordered, inv)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].InvoiceDate.Equal(ordered[j].InvoiceDate) {
			return ordered[i].InvoiceDate.Before(ordered[j].InvoiceDate)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	var allocations []Allocation
	remaining := amount
	for _, inv := range ordered {
		if remaining.IsZero() {
			break
		}
		balance := inv.Balance()
		take := remaining.Min(balance)
		allocations = append(allocations, Allocation{
			InvoiceID:     inv.ID,
			Amount:        take,
			BalanceBefore: balance,
			BalanceAfter:  balance.Sub(take),
		})
		remaining = remaining.Sub(take)
	}

	if !remaining.IsZero() {
		return nil, validationf("payment of %s exceeds open balances by %s; reduce the amount", amount, remaining)
	}

	return allocations, nil
}
