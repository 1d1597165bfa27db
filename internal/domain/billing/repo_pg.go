package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentira/clinic-api/internal/platform/db"
	"github.com/dentira/clinic-api/internal/platform/money"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const invCols = `id, patient_id, appointment_id, number, invoice_date, due_date,
	service_charge, items_subtotal, interest_rate, interest_amount,
	total_due, total_paid, status, notes, created_at, updated_at`

func (r *invoiceRepoPG) scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.AppointmentID, &inv.Number, &inv.InvoiceDate, &inv.DueDate,
		&inv.ServiceCharge, &inv.ItemsSubtotal, &inv.InterestRate, &inv.InterestAmount,
		&inv.TotalDue, &inv.TotalPaid, &inv.Status, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	return &inv, err
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (id, patient_id, appointment_id, number, invoice_date, due_date,
			service_charge, items_subtotal, interest_rate, interest_amount,
			total_due, total_paid, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		inv.ID, inv.PatientID, inv.AppointmentID, inv.Number, inv.InvoiceDate, inv.DueDate,
		inv.ServiceCharge, inv.ItemsSubtotal, inv.InterestRate, inv.InterestAmount,
		inv.TotalDue, inv.TotalPaid, inv.Status, inv.Notes)
	return err
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE id = $1`, id))
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET due_date=$2, service_charge=$3, items_subtotal=$4,
			interest_rate=$5, interest_amount=$6, total_due=$7, status=$8, notes=$9,
			updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.DueDate, inv.ServiceCharge, inv.ItemsSubtotal,
		inv.InterestRate, inv.InterestAmount, inv.TotalDue, inv.Status, inv.Notes)
	return err
}

func (r *invoiceRepoPG) UpdateFinancials(ctx context.Context, inv *Invoice, expectedPaid money.Amount) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET total_paid=$2, interest_amount=$3, total_due=$4, status=$5, updated_at=NOW()
		WHERE id = $1 AND total_paid = $6`,
		inv.ID, inv.TotalPaid, inv.InterestAmount, inv.TotalDue, inv.Status, expectedPaid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s: %w", inv.ID, ErrBalanceConflict)
	}
	return nil
}

func (r *invoiceRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+invCols+` FROM invoices WHERE patient_id = $1 ORDER BY invoice_date DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *invoiceRepoPG) ListOpenByPatient(ctx context.Context, patientID uuid.UUID) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+invCols+` FROM invoices
		WHERE patient_id = $1 AND status <> 'cancelled' AND total_due > total_paid
		ORDER BY invoice_date ASC, id ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *invoiceRepoPG) ListOverdue(ctx context.Context) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+invCols+` FROM invoices
		WHERE status NOT IN ('cancelled', 'paid', 'draft')
		  AND due_date IS NOT NULL AND due_date < NOW()
		  AND total_due > total_paid
		ORDER BY due_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *invoiceRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	i := 1
	if status, ok := params["status"]; ok && status != "" {
		where += fmt.Sprintf(" AND status = $%d", i)
		args = append(args, status)
		i++
	}
	if number, ok := params["number"]; ok && number != "" {
		where += fmt.Sprintf(" AND number = $%d", i)
		args = append(args, number)
		i++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+invCols+` FROM invoices `+where+` ORDER BY invoice_date DESC LIMIT $%d OFFSET $%d`, i, i+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *invoiceRepoPG) collect(rows pgx.Rows) ([]*Invoice, error) {
	var items []*Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

func (r *invoiceRepoPG) AddItem(ctx context.Context, item *InvoiceItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, line_total)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		item.ID, item.InvoiceID, item.Description, item.Quantity, item.UnitPrice, item.LineTotal)
	return err
}

func (r *invoiceRepoPG) GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, line_total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY description`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}
