package dentist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo DentistRepository
}

func NewService(repo DentistRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateDentist(ctx context.Context, d *Dentist) error {
	if d.FirstName == "" || d.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if d.LicenseNumber == "" {
		return fmt.Errorf("license_number is required")
	}
	d.Active = true
	return s.repo.Create(ctx, d)
}

func (s *Service) GetDentist(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateDentist(ctx context.Context, d *Dentist) error {
	if d.FirstName == "" || d.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if d.LicenseNumber == "" {
		return fmt.Errorf("license_number is required")
	}
	return s.repo.Update(ctx, d)
}

func (s *Service) DeactivateDentist(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) ListDentists(ctx context.Context, activeOnly bool, limit, offset int) ([]*Dentist, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}
