package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentira/clinic-api/internal/domain/billing"
	"github.com/dentira/clinic-api/internal/platform/db"
	"github.com/dentira/clinic-api/internal/platform/money"
)

type Service struct {
	payments PaymentRepository
	invoices billing.InvoiceRepository
}

func NewService(payments PaymentRepository, invoices billing.InvoiceRepository) *Service {
	return &Service{payments: payments, invoices: invoices}
}

// CreatePaymentInput is the payment-creation contract. When Allocations is
// empty the amount is auto-allocated across the patient's open invoices,
// oldest first.
type CreatePaymentInput struct {
	PatientID       uuid.UUID           `json:"patient_id"`
	Amount          money.Amount        `json:"amount"`
	PaymentDate     time.Time           `json:"payment_date"`
	Method          string              `json:"method"`
	CheckNumber     *string             `json:"check_number,omitempty"`
	BankName        *string             `json:"bank_name,omitempty"`
	ReferenceNumber *string             `json:"reference_number,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	Allocations     []AllocationRequest `json:"allocations,omitempty"`

	// IdempotencyKey comes from the Idempotency-Key header or the request
	// body; a retried create with the same key returns the original payment
	// instead of allocating twice.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	ReceivedBy     string `json:"-"`
}

// CreatePayment validates, allocates and commits a payment atomically. The
// returned bool is true when an idempotency-key replay short-circuited to an
// existing payment.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, bool, error) {
	if in.PatientID == uuid.Nil {
		return nil, false, validationf("patient_id is required")
	}
	if !in.Amount.IsPositive() {
		return nil, false, validationf("amount must be positive, got %s", in.Amount)
	}
	p := &Payment{
		PatientID:       in.PatientID,
		Amount:          in.Amount,
		PaymentDate:     in.PaymentDate,
		Method:          in.Method,
		CheckNumber:     in.CheckNumber,
		BankName:        in.BankName,
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		ReceivedBy:      in.ReceivedBy,
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now()
	}
	if err := validateMethod(p); err != nil {
		return nil, false, err
	}

	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		p.IdempotencyKey = &key
		existing, err := s.payments.GetByIdempotencyKey(ctx, key)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, err
		}
	}

	var allocations []Allocation
	var invoices map[uuid.UUID]*billing.Invoice
	var err error
	if len(in.Allocations) > 0 {
		invoices, err = s.loadTargets(ctx, in.PatientID, in.Allocations)
		if err != nil {
			return nil, false, err
		}
		allocations, err = ValidateSplits(in.Amount, in.Allocations, invoices)
	} else {
		var open []*billing.Invoice
		open, err = s.invoices.ListOpenByPatient(ctx, in.PatientID)
		if err != nil {
			return nil, false, err
		}
		invoices = make(map[uuid.UUID]*billing.Invoice, len(open))
		for _, inv := range open {
			invoices[inv.ID] = inv
		}
		allocations, err = AutoAllocate(in.Amount, open)
	}
	if err != nil {
		return nil, false, err
	}

	commit, rollback, txCtx, err := s.begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer rollback()

	for _, a := range allocations {
		if err := s.applyToInvoice(txCtx, invoices[a.InvoiceID], a.Amount); err != nil {
			return nil, false, err
		}
		p.Splits = append(p.Splits, &Split{InvoiceID: a.InvoiceID, Amount: a.Amount})
	}

	if err := s.payments.Create(txCtx, p); err != nil {
		// A concurrent create with the same key won the unique index race.
		// The deferred rollback discards this attempt's invoice mutations;
		// answer with the winner's payment, same as a plain replay.
		if p.IdempotencyKey != nil && isUniqueViolation(err) {
			existing, lookupErr := s.payments.GetByIdempotencyKey(ctx, *p.IdempotencyKey)
			if lookupErr != nil {
				return nil, false, &ConflictError{Err: err}
			}
			return existing, true, nil
		}
		return nil, false, err
	}
	if err := commit(); err != nil {
		return nil, false, err
	}
	return p, false, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// loadTargets fetches the invoices named by the allocation requests and
// checks they belong to the paying patient.
func (s *Service) loadTargets(ctx context.Context, patientID uuid.UUID, requests []AllocationRequest) (map[uuid.UUID]*billing.Invoice, error) {
	invoices := make(map[uuid.UUID]*billing.Invoice, len(requests))
	for _, req := range requests {
		if _, ok := invoices[req.InvoiceID]; ok {
			continue
		}
		inv, err := s.invoices.GetByID(ctx, req.InvoiceID)
		if err != nil {
			return nil, validationf("invoice %s not found", req.InvoiceID)
		}
		if inv.PatientID != patientID {
			return nil, validationf("invoice %s does not belong to patient %s", req.InvoiceID, patientID)
		}
		invoices[inv.ID] = inv
	}
	return invoices, nil
}

// applyToInvoice runs one ledger mutation with a compare-and-swap on the
// previously read total_paid. A concurrent change surfaces as ConflictError.
func (s *Service) applyToInvoice(ctx context.Context, inv *billing.Invoice, amount money.Amount) error {
	expectedPaid := inv.TotalPaid
	if err := inv.ApplyPayment(amount); err != nil {
		if errors.Is(err, billing.ErrExceedsBalance) {
			return &OverflowError{InvoiceID: inv.ID, Requested: amount, Balance: inv.Balance()}
		}
		return err
	}
	if err := s.invoices.UpdateFinancials(ctx, inv, expectedPaid); err != nil {
		if errors.Is(err, billing.ErrBalanceConflict) {
			return &ConflictError{Err: err}
		}
		return err
	}
	return nil
}

// VoidPayment reverses every split of the payment and marks it voided, as one
// atomic unit. Voiding is not idempotent: a second attempt fails with
// AlreadyVoidedError and changes nothing.
func (s *Service) VoidPayment(ctx context.Context, id uuid.UUID, reason, voidedBy string) (*Payment, error) {
	if reason == "" {
		return nil, validationf("void reason is required")
	}
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Voided {
		return nil, &AlreadyVoidedError{PaymentID: p.ID}
	}

	commit, rollback, txCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	for _, sp := range p.Splits {
		inv, err := s.invoices.GetByID(txCtx, sp.InvoiceID)
		if err != nil {
			return nil, err
		}
		expectedPaid := inv.TotalPaid
		if err := inv.ReversePayment(sp.Amount); err != nil {
			return nil, err
		}
		if err := s.invoices.UpdateFinancials(txCtx, inv, expectedPaid); err != nil {
			if errors.Is(err, billing.ErrBalanceConflict) {
				return nil, &ConflictError{Err: err}
			}
			return nil, err
		}
	}

	now := time.Now()
	p.Voided = true
	p.VoidReason = &reason
	p.VoidedAt = &now
	p.VoidedBy = &voidedBy
	if err := s.payments.MarkVoided(txCtx, p); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *Service) ListPaymentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return s.payments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	return s.payments.ListByInvoice(ctx, invoiceID)
}

// PreviewAutoAllocation computes the oldest-first split for an amount without
// committing anything.
func (s *Service) PreviewAutoAllocation(ctx context.Context, patientID uuid.UUID, amount money.Amount) ([]Allocation, error) {
	open, err := s.invoices.ListOpenByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return AutoAllocate(amount, open)
}

// begin opens a transaction on the request's clinic connection. Without one
// (unit tests run repositories against in-memory fakes) the operations run
// unwrapped and commit/rollback are no-ops. A Begin failure on a live
// connection propagates; running multi-write operations outside a transaction
// would break their all-or-nothing guarantee.
func (s *Service) begin(ctx context.Context) (commit func() error, rollback func(), txCtx context.Context, err error) {
	txCtx, tx, err := db.WithTx(ctx)
	if errors.Is(err, db.ErrNoConn) {
		return func() error { return nil }, func() {}, ctx, nil
	}
	if err != nil {
		return nil, nil, ctx, err
	}
	return func() error { return tx.Commit(txCtx) },
		func() { _ = tx.Rollback(txCtx) },
		txCtx, nil
}
