package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/platform/money"
)

type Service struct {
	invoices InvoiceRepository
}

func NewService(invoices InvoiceRepository) *Service {
	return &Service{invoices: invoices}
}

var validInvoiceStatuses = map[string]bool{
	StatusDraft: true, StatusSent: true, StatusPartiallyPaid: true,
	StatusPaid: true, StatusOverdue: true, StatusCancelled: true,
}

// CreateInvoiceInput carries a new invoice and its line items.
type CreateInvoiceInput struct {
	Invoice *Invoice
	Items   []*InvoiceItem
}

// CreateInvoice validates the invoice, computes its totals from the line
// items, and persists invoice and items together.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) error {
	inv := in.Invoice
	if inv.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if inv.Status == "" {
		inv.Status = StatusDraft
	}
	if !validInvoiceStatuses[inv.Status] {
		return fmt.Errorf("invalid invoice status: %s", inv.Status)
	}
	if inv.ServiceCharge.IsNegative() {
		return fmt.Errorf("service_charge cannot be negative")
	}
	if inv.InterestRate.IsNegative() {
		return fmt.Errorf("interest_rate cannot be negative")
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = time.Now()
	}
	if inv.Number == "" {
		inv.Number = generateInvoiceNumber(inv.InvoiceDate)
	}

	subtotal := money.Zero
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item %q: quantity must be positive", item.Description)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("item %q: unit_price cannot be negative", item.Description)
		}
		item.LineTotal = item.UnitPrice.MulInt(item.Quantity)
		subtotal = subtotal.Add(item.LineTotal)
	}
	inv.ItemsSubtotal = subtotal
	inv.TotalPaid = money.Zero
	inv.RecomputeTotals()

	if err := s.invoices.Create(ctx, inv); err != nil {
		return err
	}
	for _, item := range in.Items {
		item.InvoiceID = inv.ID
		if err := s.invoices.AddItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func generateInvoiceNumber(date time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("INV-%s-%s", date.Format("20060102"), suffix)
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) GetInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	return s.invoices.GetItems(ctx, invoiceID)
}

func (s *Service) ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListOpenInvoices(ctx context.Context, patientID uuid.UUID) ([]*Invoice, error) {
	return s.invoices.ListOpenByPatient(ctx, patientID)
}

func (s *Service) SearchInvoices(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.Search(ctx, params, limit, offset)
}

// UpdateInvoice changes the editable fields of a draft invoice. Issued
// invoices are financial records and are not editable.
func (s *Service) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	current, err := s.invoices.GetByID(ctx, inv.ID)
	if err != nil {
		return err
	}
	if current.Status != StatusDraft {
		return fmt.Errorf("only draft invoices can be edited, status is %s", current.Status)
	}
	inv.Status = StatusDraft
	inv.RecomputeTotals()
	return s.invoices.Update(ctx, inv)
}

// SendInvoice issues a draft invoice to the patient.
func (s *Service) SendInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("only draft invoices can be sent, status is %s", inv.Status)
	}
	inv.Status = StatusSent
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// CancelInvoice cancels an invoice that has no payments applied. Invoices are
// never deleted.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusCancelled {
		return nil, fmt.Errorf("invoice is already cancelled")
	}
	if inv.TotalPaid.IsPositive() {
		return nil, fmt.Errorf("cannot cancel an invoice with payments applied; void the payments first")
	}
	inv.Status = StatusCancelled
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// AccrueOverdueInterest adds one interest period to every overdue invoice and
// returns the number of invoices touched. Intended to run from a daily job.
func (s *Service) AccrueOverdueInterest(ctx context.Context) (int, error) {
	overdue, err := s.invoices.ListOverdue(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, inv := range overdue {
		expectedPaid := inv.TotalPaid
		if accrued := inv.AccrueInterest(); accrued.IsZero() {
			continue
		}
		if inv.Status != StatusPartiallyPaid {
			inv.Status = StatusOverdue
		}
		if err := s.invoices.UpdateFinancials(ctx, inv, expectedPaid); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
