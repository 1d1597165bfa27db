package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/platform/money"
)

// Movement types.
const (
	MovementReceived = "received"
	MovementConsumed = "consumed"
	MovementAdjusted = "adjusted"
)

var validMovements = map[string]bool{
	MovementReceived: true, MovementConsumed: true, MovementAdjusted: true,
}

// ErrInsufficientStock is returned when a consume or downward adjustment
// would drive quantity on hand below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrStockConflict is returned when quantity on hand changed between read
// and write.
var ErrStockConflict = errors.New("stock level changed concurrently")

// Item maps to the inventory_items table.
type Item struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	SKU          string       `db:"sku" json:"sku"`
	Unit         string       `db:"unit" json:"unit"`
	UnitCost     money.Amount `db:"unit_cost" json:"unit_cost"`
	QuantityOnHand int        `db:"quantity_on_hand" json:"quantity_on_hand"`
	ReorderLevel int          `db:"reorder_level" json:"reorder_level"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the item is at or below its reorder level.
func (i *Item) LowStock() bool {
	return i.QuantityOnHand <= i.ReorderLevel
}

// Apply mutates quantity on hand for one movement. Received adds, consumed
// subtracts, adjusted applies the signed delta directly.
func (i *Item) Apply(m *Movement) error {
	if !validMovements[m.Type] {
		return fmt.Errorf("invalid movement type: %s", m.Type)
	}
	var next int
	switch m.Type {
	case MovementReceived:
		if m.Quantity <= 0 {
			return fmt.Errorf("received quantity must be positive, got %d", m.Quantity)
		}
		next = i.QuantityOnHand + m.Quantity
	case MovementConsumed:
		if m.Quantity <= 0 {
			return fmt.Errorf("consumed quantity must be positive, got %d", m.Quantity)
		}
		next = i.QuantityOnHand - m.Quantity
	case MovementAdjusted:
		next = i.QuantityOnHand + m.Quantity
	}
	if next < 0 {
		return fmt.Errorf("%w: have %d, movement leaves %d", ErrInsufficientStock, i.QuantityOnHand, next)
	}
	i.QuantityOnHand = next
	return nil
}

// Movement maps to the stock_movements table. Quantity is the signed delta
// for adjustments and a positive count otherwise.
type Movement struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ItemID    uuid.UUID `db:"item_id" json:"item_id"`
	Type      string    `db:"type" json:"type"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
