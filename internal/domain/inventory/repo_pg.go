package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentira/clinic-api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const itemCols = `id, name, sku, unit, unit_cost, quantity_on_hand, reorder_level, created_at, updated_at`

func (r *itemRepoPG) scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.Name, &i.SKU, &i.Unit, &i.UnitCost,
		&i.QuantityOnHand, &i.ReorderLevel, &i.CreatedAt, &i.UpdatedAt)
	return &i, err
}

func (r *itemRepoPG) Create(ctx context.Context, i *Item) error {
	i.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO inventory_items (id, name, sku, unit, unit_cost, quantity_on_hand, reorder_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		i.ID, i.Name, i.SKU, i.Unit, i.UnitCost, i.QuantityOnHand, i.ReorderLevel)
	return err
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return r.scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id = $1`, id))
}

func (r *itemRepoPG) Update(ctx context.Context, i *Item) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE inventory_items SET name=$2, sku=$3, unit=$4, unit_cost=$5, reorder_level=$6, updated_at=NOW()
		WHERE id = $1`,
		i.ID, i.Name, i.SKU, i.Unit, i.UnitCost, i.ReorderLevel)
	return err
}

func (r *itemRepoPG) UpdateQuantity(ctx context.Context, i *Item, expected int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE inventory_items SET quantity_on_hand=$2, updated_at=NOW()
		WHERE id = $1 AND quantity_on_hand = $3`,
		i.ID, i.QuantityOnHand, expected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockConflict
	}
	return nil
}

func (r *itemRepoPG) List(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM inventory_items ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collectItems(rows)
	return items, total, err
}

func (r *itemRepoPG) ListLowStock(ctx context.Context) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM inventory_items WHERE quantity_on_hand <= reorder_level ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectItems(rows)
}

func (r *itemRepoPG) AddMovement(ctx context.Context, m *Movement) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_movements (id, item_id, type, quantity, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.ItemID, m.Type, m.Quantity, m.Notes, m.CreatedBy)
	return err
}

func (r *itemRepoPG) ListMovements(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*Movement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_movements WHERE item_id = $1`, itemID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, item_id, type, quantity, notes, created_by, created_at
		FROM stock_movements WHERE item_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		itemID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Type, &m.Quantity, &m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}

func (r *itemRepoPG) collectItems(rows pgx.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		i, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
