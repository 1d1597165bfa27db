package dentist

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

type dentistRepoPG struct{ pool *pgxpool.Pool }

func NewDentistRepoPG(pool *pgxpool.Pool) DentistRepository { return &dentistRepoPG{pool: pool} }

func (r *dentistRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const dentistCols = `id, first_name, last_name, specialty, license_number,
	phone, email, active, created_at, updated_at`

func (r *dentistRepoPG) scanRow(row pgx.Row) (*Dentist, error) {
	var d Dentist
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialty, &d.LicenseNumber,
		&d.Phone, &d.Email, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *dentistRepoPG) Create(ctx context.Context, d *Dentist) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dentists (id, first_name, last_name, specialty, license_number, phone, email, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.FirstName, d.LastName, d.Specialty, d.LicenseNumber, d.Phone, d.Email, d.Active)
	return err
}

func (r *dentistRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+dentistCols+` FROM dentists WHERE id = $1`, id))
}

func (r *dentistRepoPG) Update(ctx context.Context, d *Dentist) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE dentists SET first_name=$2, last_name=$3, specialty=$4, license_number=$5,
			phone=$6, email=$7, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.FirstName, d.LastName, d.Specialty, d.LicenseNumber, d.Phone, d.Email)
	return err
}

func (r *dentistRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE dentists SET active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	return err
}

func (r *dentistRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Dentist, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM dentists`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+dentistCols+` FROM dentists`+where+` ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Dentist
	for rows.Next() {
		d, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
