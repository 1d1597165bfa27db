package patient

import (
	"context"
	"fmt"

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

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, first_name, last_name, middle_name, gender, birth_date,
	phone, email, address_line, address_city, address_postal_code,
	allergies, medical_notes, active, created_at, updated_at`

func (r *patientRepoPG) scanRow(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.MiddleName, &p.Gender, &p.BirthDate,
		&p.Phone, &p.Email, &p.AddressLine, &p.AddressCity, &p.AddressPostalCode,
		&p.Allergies, &p.MedicalNotes, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, middle_name, gender, birth_date,
			phone, email, address_line, address_city, address_postal_code,
			allergies, medical_notes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.FirstName, p.LastName, p.MiddleName, p.Gender, p.BirthDate,
		p.Phone, p.Email, p.AddressLine, p.AddressCity, p.AddressPostalCode,
		p.Allergies, p.MedicalNotes, p.Active)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, middle_name=$4, gender=$5, birth_date=$6,
			phone=$7, email=$8, address_line=$9, address_city=$10, address_postal_code=$11,
			allergies=$12, medical_notes=$13, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.MiddleName, p.Gender, p.BirthDate,
		p.Phone, p.Email, p.AddressLine, p.AddressCity, p.AddressPostalCode,
		p.Allergies, p.MedicalNotes)
	return err
}

func (r *patientRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *patientRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	i := 1
	if name, ok := params["name"]; ok && name != "" {
		where += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d)", i, i)
		args = append(args, name+"%")
		i++
	}
	if phone, ok := params["phone"]; ok && phone != "" {
		where += fmt.Sprintf(" AND phone = $%d", i)
		args = append(args, phone)
		i++
	}
	if active, ok := params["active"]; ok && active != "" {
		where += fmt.Sprintf(" AND active = $%d", i)
		args = append(args, active == "true")
		i++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+patientCols+` FROM patients `+where+` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, i, i+1)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *patientRepoPG) collect(rows pgx.Rows) ([]*Patient, error) {
	var items []*Patient
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
