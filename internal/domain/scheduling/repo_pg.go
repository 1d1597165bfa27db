package scheduling

import (
	"context"
	"time"

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- schedules --

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

const scheduleCols = `id, dentist_id, weekday, start_time, end_time, slot_minutes,
	effective_from, effective_until, active, created_at, updated_at`

func scanSchedule(row pgx.Row) (*AvailabilitySchedule, error) {
	var s AvailabilitySchedule
	err := row.Scan(&s.ID, &s.DentistID, &s.Weekday, &s.StartTime, &s.EndTime, &s.SlotMinutes,
		&s.EffectiveFrom, &s.EffectiveUntil, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *AvailabilitySchedule) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO availability_schedules (id, dentist_id, weekday, start_time, end_time,
			slot_minutes, effective_from, effective_until, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		s.ID, s.DentistID, s.Weekday, s.StartTime, s.EndTime,
		s.SlotMinutes, s.EffectiveFrom, s.EffectiveUntil, s.Active)
	return err
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AvailabilitySchedule, error) {
	return scanSchedule(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM availability_schedules WHERE id = $1`, id))
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *AvailabilitySchedule) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE availability_schedules SET weekday=$2, start_time=$3, end_time=$4,
			slot_minutes=$5, effective_from=$6, effective_until=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Weekday, s.StartTime, s.EndTime, s.SlotMinutes, s.EffectiveFrom, s.EffectiveUntil)
	return err
}

func (r *scheduleRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE availability_schedules SET active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	return err
}

func (r *scheduleRepoPG) ListByDentist(ctx context.Context, dentistID uuid.UUID) ([]*AvailabilitySchedule, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+scheduleCols+` FROM availability_schedules WHERE dentist_id = $1 ORDER BY weekday, start_time`, dentistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *scheduleRepoPG) List(ctx context.Context, limit, offset int) ([]*AvailabilitySchedule, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM availability_schedules`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+scheduleCols+` FROM availability_schedules ORDER BY dentist_id, weekday, start_time LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectSchedules(rows)
	return items, total, err
}

func collectSchedules(rows pgx.Rows) ([]*AvailabilitySchedule, error) {
	var items []*AvailabilitySchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// -- slots --

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

const slotCols = `id, schedule_id, dentist_id, status, start_time, end_time, created_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	err := row.Scan(&sl.ID, &sl.ScheduleID, &sl.DentistID, &sl.Status, &sl.StartTime, &sl.EndTime, &sl.CreatedAt)
	return &sl, err
}

func (r *slotRepoPG) Create(ctx context.Context, sl *Slot) error {
	sl.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO slots (id, schedule_id, dentist_id, status, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		sl.ID, sl.ScheduleID, sl.DentistID, sl.Status, sl.StartTime, sl.EndTime)
	return err
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+slotCols+` FROM slots WHERE id = $1`, id))
}

func (r *slotRepoPG) SetStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE slots SET status=$3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotTaken
	}
	return nil
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	return err
}

func (r *slotRepoPG) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+slotCols+` FROM slots WHERE schedule_id = $1 AND start_time >= $2 AND start_time < $3 ORDER BY start_time`,
		scheduleID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

func (r *slotRepoPG) ListByDentist(ctx context.Context, dentistID uuid.UUID, from, to time.Time, status string) ([]*Slot, error) {
	query := `SELECT ` + slotCols + ` FROM slots WHERE dentist_id = $1 AND start_time >= $2 AND start_time < $3`
	args := []interface{}{dentistID, from, to}
	if status != "" {
		query += ` AND status = $4`
		args = append(args, status)
	}
	query += ` ORDER BY start_time`
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]*Slot, error) {
	var items []*Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, rows.Err()
}

// -- appointments --

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, dentist_id, slot_id, status, reason, cancellation_reason,
	start_time, end_time, completed_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DentistID, &a.SlotID, &a.Status, &a.Reason, &a.CancellationReason,
		&a.StartTime, &a.EndTime, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, dentist_id, slot_id, status, reason, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.DentistID, a.SlotID, a.Status, a.Reason, a.StartTime, a.EndTime)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments SET status=$2, cancellation_reason=$3, completed_at=$4, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.CancellationReason, a.CompletedAt)
	return err
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE patient_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectAppointments(rows)
	return items, total, err
}

func (r *appointmentRepoPG) ListByDentist(ctx context.Context, dentistID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE dentist_id = $1 AND start_time >= $2 AND start_time < $3 ORDER BY start_time`,
		dentistID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *appointmentRepoPG) CountOverlapping(ctx context.Context, patientID uuid.UUID, start, end time.Time) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE patient_id = $1 AND status IN ($2, $3)
		  AND start_time < $5 AND end_time > $4`,
		patientID, StatusBooked, StatusArrived, start, end).Scan(&count)
	return count, err
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
