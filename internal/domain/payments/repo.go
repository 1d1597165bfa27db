package payments

import (
	"context"

	"github.com/google/uuid"
)

type PaymentRepository interface {
	// Create persists the payment and its splits together.
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	// MarkVoided writes the void fields. Amount, method and splits are never
	// updated after creation.
	MarkVoided(ctx context.Context, p *Payment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
}
