package payments

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

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const payCols = `id, patient_id, amount, payment_date, method,
	check_number, bank_name, reference_number, notes, idempotency_key,
	received_by, voided, void_reason, voided_at, voided_by, created_at`

func (r *paymentRepoPG) scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.PatientID, &p.Amount, &p.PaymentDate, &p.Method,
		&p.CheckNumber, &p.BankName, &p.ReferenceNumber, &p.Notes, &p.IdempotencyKey,
		&p.ReceivedBy, &p.Voided, &p.VoidReason, &p.VoidedAt, &p.VoidedBy, &p.CreatedAt)
	return &p, err
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, patient_id, amount, payment_date, method,
			check_number, bank_name, reference_number, notes, idempotency_key,
			received_by, voided)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false)`,
		p.ID, p.PatientID, p.Amount, p.PaymentDate, p.Method,
		p.CheckNumber, p.BankName, p.ReferenceNumber, p.Notes, p.IdempotencyKey,
		p.ReceivedBy)
	if err != nil {
		return err
	}
	for _, sp := range p.Splits {
		sp.ID = uuid.New()
		sp.PaymentID = p.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO payment_splits (id, payment_id, invoice_id, amount)
			VALUES ($1,$2,$3,$4)`,
			sp.ID, sp.PaymentID, sp.InvoiceID, sp.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := r.scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+payCols+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	p.Splits, err = r.getSplits(ctx, p.ID)
	return p, err
}

func (r *paymentRepoPG) GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error) {
	p, err := r.scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+payCols+` FROM payments WHERE idempotency_key = $1`, key))
	if err != nil {
		return nil, err
	}
	p.Splits, err = r.getSplits(ctx, p.ID)
	return p, err
}

func (r *paymentRepoPG) getSplits(ctx context.Context, paymentID uuid.UUID) ([]*Split, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, payment_id, invoice_id, amount, created_at
		FROM payment_splits WHERE payment_id = $1 ORDER BY created_at, id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var splits []*Split
	for rows.Next() {
		var sp Split
		if err := rows.Scan(&sp.ID, &sp.PaymentID, &sp.InvoiceID, &sp.Amount, &sp.CreatedAt); err != nil {
			return nil, err
		}
		splits = append(splits, &sp)
	}
	return splits, rows.Err()
}

func (r *paymentRepoPG) MarkVoided(ctx context.Context, p *Payment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payments SET voided=true, void_reason=$2, voided_at=$3, voided_by=$4
		WHERE id = $1`,
		p.ID, p.VoidReason, p.VoidedAt, p.VoidedBy)
	return err
}

func (r *paymentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+payCols+` FROM payments WHERE patient_id = $1 ORDER BY payment_date DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		if p.Splits, err = r.getSplits(ctx, p.ID); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *paymentRepoPG) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+payCols+` FROM payments
		WHERE id IN (SELECT payment_id FROM payment_splits WHERE invoice_id = $1)
		ORDER BY payment_date DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range items {
		if p.Splits, err = r.getSplits(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}
