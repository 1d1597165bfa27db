package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/platform/db"
)

type Service struct {
	repo ItemRepository
}

func NewService(repo ItemRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateItem(ctx context.Context, i *Item) error {
	if i.Name == "" {
		return fmt.Errorf("name is required")
	}
	if i.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if i.QuantityOnHand < 0 {
		return fmt.Errorf("quantity_on_hand cannot be negative")
	}
	if i.UnitCost.IsNegative() {
		return fmt.Errorf("unit_cost cannot be negative")
	}
	return s.repo.Create(ctx, i)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateItem(ctx context.Context, i *Item) error {
	if i.Name == "" || i.SKU == "" {
		return fmt.Errorf("name and sku are required")
	}
	return s.repo.Update(ctx, i)
}

func (s *Service) ListItems(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListLowStock(ctx context.Context) ([]*Item, error) {
	return s.repo.ListLowStock(ctx)
}

// RecordMovement applies one stock movement atomically: quantity on hand is
// updated with a compare-and-swap and the movement row is written alongside.
func (s *Service) RecordMovement(ctx context.Context, itemID uuid.UUID, m *Movement) (*Item, error) {
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	expected := item.QuantityOnHand
	if err := item.Apply(m); err != nil {
		return nil, err
	}
	m.ItemID = item.ID

	commit, rollback, txCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	if err := s.repo.UpdateQuantity(txCtx, item, expected); err != nil {
		return nil, err
	}
	if err := s.repo.AddMovement(txCtx, m); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) ListMovements(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*Movement, int, error) {
	return s.repo.ListMovements(ctx, itemID, limit, offset)
}

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
