package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	Create(ctx context.Context, s *AvailabilitySchedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*AvailabilitySchedule, error)
	Update(ctx context.Context, s *AvailabilitySchedule) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	ListByDentist(ctx context.Context, dentistID uuid.UUID) ([]*AvailabilitySchedule, error)
	List(ctx context.Context, limit, offset int) ([]*AvailabilitySchedule, int, error)
}

type SlotRepository interface {
	Create(ctx context.Context, sl *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// SetStatus moves free ↔ busy with a guard on the expected current
	// status, so two bookings cannot claim the same slot.
	SetStatus(ctx context.Context, id uuid.UUID, from, to string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]*Slot, error)
	ListByDentist(ctx context.Context, dentistID uuid.UUID, from, to time.Time, status string) ([]*Slot, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDentist(ctx context.Context, dentistID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	// CountOverlapping counts the patient's non-terminal appointments
	// intersecting [start, end).
	CountOverlapping(ctx context.Context, patientID uuid.UUID, start, end time.Time) (int, error)
}
