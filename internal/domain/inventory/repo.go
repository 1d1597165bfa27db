package inventory

import (
	"context"

	"github.com/google/uuid"
)

type ItemRepository interface {
	Create(ctx context.Context, i *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, i *Item) error
	// UpdateQuantity writes quantity_on_hand with a compare-and-swap on the
	// previously read value.
	UpdateQuantity(ctx context.Context, i *Item, expected int) error
	List(ctx context.Context, limit, offset int) ([]*Item, int, error)
	ListLowStock(ctx context.Context) ([]*Item, error)
	AddMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*Movement, int, error)
}
