package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/platform/money"
)

// Payment methods.
const (
	MethodCash         = "cash"
	MethodCheck        = "check"
	MethodBankTransfer = "bank_transfer"
	MethodCreditCard   = "credit_card"
	MethodDebitCard    = "debit_card"
	MethodGCash        = "gcash"
	MethodPayMaya      = "paymaya"
	MethodOther        = "other"
)

var validMethods = map[string]bool{
	MethodCash: true, MethodCheck: true, MethodBankTransfer: true,
	MethodCreditCard: true, MethodDebitCard: true,
	MethodGCash: true, MethodPayMaya: true, MethodOther: true,
}

// Payment maps to the payments table. Amount and method are immutable after
// creation; the only permitted mutation is the void transition.
type Payment struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	PatientID       uuid.UUID    `db:"patient_id" json:"patient_id"`
	Amount          money.Amount `db:"amount" json:"amount"`
	PaymentDate     time.Time    `db:"payment_date" json:"payment_date"`
	Method          string       `db:"method" json:"method"`
	CheckNumber     *string      `db:"check_number" json:"check_number,omitempty"`
	BankName        *string      `db:"bank_name" json:"bank_name,omitempty"`
	ReferenceNumber *string      `db:"reference_number" json:"reference_number,omitempty"`
	Notes           *string      `db:"notes" json:"notes,omitempty"`
	IdempotencyKey  *string      `db:"idempotency_key" json:"idempotency_key,omitempty"`
	ReceivedBy      string       `db:"received_by" json:"received_by"`
	Voided          bool         `db:"voided" json:"voided"`
	VoidReason      *string      `db:"void_reason" json:"void_reason,omitempty"`
	VoidedAt        *time.Time   `db:"voided_at" json:"voided_at,omitempty"`
	VoidedBy        *string      `db:"voided_by" json:"voided_by,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`

	// Splits are loaded with the payment; they are never mutated after
	// creation, only logically reversed by a void.
	Splits []*Split `db:"-" json:"splits,omitempty"`
}

// Split maps to the payment_splits table: the portion of one payment applied
// to one invoice.
type Split struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	PaymentID uuid.UUID    `db:"payment_id" json:"payment_id"`
	InvoiceID uuid.UUID    `db:"invoice_id" json:"invoice_id"`
	Amount    money.Amount `db:"amount" json:"amount"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// validateMethod checks the payment method and its required metadata.
func validateMethod(p *Payment) error {
	if !validMethods[p.Method] {
		return validationf("invalid payment method: %s", p.Method)
	}
	switch p.Method {
	case MethodCheck:
		if p.CheckNumber == nil || *p.CheckNumber == "" {
			return validationf("check_number is required for check payments")
		}
		if p.BankName == nil || *p.BankName == "" {
			return validationf("bank_name is required for check payments")
		}
	case MethodBankTransfer, MethodGCash, MethodPayMaya, MethodCreditCard, MethodDebitCard:
		if p.ReferenceNumber == nil || *p.ReferenceNumber == "" {
			return validationf("reference_number is required for %s payments", p.Method)
		}
	}
	return nil
}
