package patient

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// SetActive flips the active flag; there is no delete.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	// Search matches name (first or last, prefix) and phone (exact).
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
}
