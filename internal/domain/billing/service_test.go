package billing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentira/clinic-api/internal/platform/money"
)

// mockInvoiceRepo is a map-backed InvoiceRepository for tests.
type mockInvoiceRepo struct {
	invoices map[uuid.UUID]*Invoice
	items    map[uuid.UUID][]*InvoiceItem
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		items:    make(map[uuid.UUID][]*InvoiceItem),
	}
}

func (m *mockInvoiceRepo) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice not found")
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) Update(ctx context.Context, inv *Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return fmt.Errorf("invoice not found")
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) UpdateFinancials(ctx context.Context, inv *Invoice, expectedPaid money.Amount) error {
	current, ok := m.invoices[inv.ID]
	if !ok {
		return fmt.Errorf("invoice not found")
	}
	if !current.TotalPaid.Equal(expectedPaid) {
		return fmt.Errorf("invoice %s: %w", inv.ID, ErrBalanceConflict)
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.PatientID == patientID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockInvoiceRepo) ListOpenByPatient(ctx context.Context, patientID uuid.UUID) ([]*Invoice, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.PatientID == patientID && inv.IsOpen() {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InvoiceDate.Equal(out[j].InvoiceDate) {
			return out[i].InvoiceDate.Before(out[j].InvoiceDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *mockInvoiceRepo) ListOverdue(ctx context.Context) ([]*Invoice, error) {
	var out []*Invoice
	now := time.Now()
	for _, inv := range m.invoices {
		if inv.Status == StatusCancelled || inv.Status == StatusPaid || inv.Status == StatusDraft {
			continue
		}
		if inv.DueDate != nil && inv.DueDate.Before(now) && inv.Balance().IsPositive() {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockInvoiceRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if status := params["status"]; status != "" && inv.Status != status {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockInvoiceRepo) AddItem(ctx context.Context, item *InvoiceItem) error {
	item.ID = uuid.New()
	m.items[item.InvoiceID] = append(m.items[item.InvoiceID], item)
	return nil
}

func (m *mockInvoiceRepo) GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	return m.items[invoiceID], nil
}

func TestCreateInvoice_ComputesTotals(t *testing.T) {
	repo := newMockInvoiceRepo()
	svc := NewService(repo)

	inv := &Invoice{
		PatientID:     uuid.New(),
		ServiceCharge: amt(t, "500.00"),
		InterestRate:  decimal.NewFromInt(2),
	}
	items := []*InvoiceItem{
		{Description: "Tooth extraction", Quantity: 1, UnitPrice: amt(t, "1200.00")},
		{Description: "Anesthesia", Quantity: 2, UnitPrice: amt(t, "150.00")},
	}

	err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{Invoice: inv, Items: items})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !inv.ItemsSubtotal.Equal(amt(t, "1500.00")) {
		t.Errorf("expected subtotal 1500.00, got %s", inv.ItemsSubtotal)
	}
	// interest = 2% of (500 + 1500) = 40
	if !inv.InterestAmount.Equal(amt(t, "40.00")) {
		t.Errorf("expected interest 40.00, got %s", inv.InterestAmount)
	}
	if !inv.TotalDue.Equal(amt(t, "2040.00")) {
		t.Errorf("expected total_due 2040.00, got %s", inv.TotalDue)
	}
	if inv.Status != StatusDraft {
		t.Errorf("expected draft, got %s", inv.Status)
	}
	if !strings.HasPrefix(inv.Number, "INV-") {
		t.Errorf("expected generated number, got %q", inv.Number)
	}

	stored, _ := repo.GetItems(context.Background(), inv.ID)
	if len(stored) != 2 {
		t.Errorf("expected 2 items persisted, got %d", len(stored))
	}
}

func TestCreateInvoice_RequiresPatient(t *testing.T) {
	svc := NewService(newMockInvoiceRepo())
	err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{Invoice: &Invoice{}})
	if err == nil {
		t.Error("expected error for missing patient_id")
	}
}

func TestCreateInvoice_RejectsBadItems(t *testing.T) {
	svc := NewService(newMockInvoiceRepo())
	inv := &Invoice{PatientID: uuid.New()}
	err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Invoice: inv,
		Items:   []*InvoiceItem{{Description: "Filling", Quantity: 0, UnitPrice: amt(t, "100.00")}},
	})
	if err == nil {
		t.Error("expected error for zero quantity")
	}
}

func TestSendInvoice(t *testing.T) {
	repo := newMockInvoiceRepo()
	svc := NewService(repo)
	inv := &Invoice{PatientID: uuid.New(), ServiceCharge: amt(t, "100.00")}
	if err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{Invoice: inv}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, err := svc.SendInvoice(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Status != StatusSent {
		t.Errorf("expected sent, got %s", sent.Status)
	}

	if _, err := svc.SendInvoice(context.Background(), inv.ID); err == nil {
		t.Error("expected error sending a non-draft invoice")
	}
}

func TestCancelInvoice_WithPayments(t *testing.T) {
	repo := newMockInvoiceRepo()
	svc := NewService(repo)
	inv := &Invoice{PatientID: uuid.New(), ServiceCharge: amt(t, "100.00")}
	if err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{Invoice: inv}); err != nil {
		t.Fatalf("create: %v", err)
	}

	stored := repo.invoices[inv.ID]
	stored.Status = StatusSent
	if err := stored.ApplyPayment(amt(t, "50.00")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, err := svc.CancelInvoice(context.Background(), inv.ID); err == nil {
		t.Error("expected error cancelling invoice with payments")
	}
}

func TestCancelInvoice_Clean(t *testing.T) {
	repo := newMockInvoiceRepo()
	svc := NewService(repo)
	inv := &Invoice{PatientID: uuid.New(), ServiceCharge: amt(t, "100.00")}
	if err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{Invoice: inv}); err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := svc.CancelInvoice(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	if _, err := svc.CancelInvoice(context.Background(), inv.ID); err == nil {
		t.Error("expected error cancelling twice")
	}
}

func TestUpdateInvoice_OnlyDraft(t *testing.T) {
	repo := newMockInvoiceRepo()
	svc := NewService(repo)
	inv := &Invoice{PatientID: uuid.New(), ServiceCharge: amt(t, "100.00")}
	if err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{Invoice: inv}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SendInvoice(context.Background(), inv.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.UpdateInvoice(context.Background(), inv); err == nil {
		t.Error("expected error editing a sent invoice")
	}
}

func TestAccrueOverdueInterest(t *testing.T) {
	repo := newMockInvoiceRepo()
	svc := NewService(repo)

	past := time.Now().Add(-72 * time.Hour)
	overdue := &Invoice{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		Status:       StatusOverdue,
		InvoiceDate:  past,
		DueDate:      &past,
		InterestRate: decimal.NewFromInt(5),
		TotalDue:     amt(t, "1000.00"),
	}
	repo.invoices[overdue.ID] = overdue

	count, err := svc.AccrueOverdueInterest(context.Background())
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 invoice accrued, got %d", count)
	}

	updated := repo.invoices[overdue.ID]
	if !updated.TotalDue.Equal(amt(t, "1050.00")) {
		t.Errorf("expected total_due 1050.00, got %s", updated.TotalDue)
	}
}
