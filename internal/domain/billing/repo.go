package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/platform/money"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	// UpdateFinancials writes total_paid, interest, total_due and status with a
	// compare-and-swap on the previously read total_paid. Returns
	// ErrBalanceConflict when the invoice changed underneath the caller.
	UpdateFinancials(ctx context.Context, inv *Invoice, expectedPaid money.Amount) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
	// ListOpenByPatient returns invoices with balance > 0 and status other
	// than cancelled, oldest invoice_date first with id as tie-break.
	ListOpenByPatient(ctx context.Context, patientID uuid.UUID) ([]*Invoice, error)
	ListOverdue(ctx context.Context) ([]*Invoice, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error)
	// Items
	AddItem(ctx context.Context, item *InvoiceItem) error
	GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
}
