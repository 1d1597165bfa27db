package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentira/clinic-api/internal/platform/db"
)

// ErrSlotTaken is returned when a booking races another for the same slot.
var ErrSlotTaken = errors.New("slot is no longer free")

// CompletionHook runs after an appointment reaches completed, inside the same
// transaction. Billing registers one to raise the invoice.
type CompletionHook func(ctx context.Context, a *Appointment) error

type Service struct {
	schedules    ScheduleRepository
	slots        SlotRepository
	appointments AppointmentRepository
	onCompleted  CompletionHook
}

func NewService(schedules ScheduleRepository, slots SlotRepository, appointments AppointmentRepository) *Service {
	return &Service{schedules: schedules, slots: slots, appointments: appointments}
}

func (s *Service) SetCompletionHook(h CompletionHook) { s.onCompleted = h }

func (s *Service) CreateSchedule(ctx context.Context, sched *AvailabilitySchedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	sched.Active = true
	if sched.EffectiveFrom.IsZero() {
		sched.EffectiveFrom = time.Now()
	}
	return s.schedules.Create(ctx, sched)
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*AvailabilitySchedule, error) {
	return s.schedules.GetByID(ctx, id)
}

func (s *Service) UpdateSchedule(ctx context.Context, sched *AvailabilitySchedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	return s.schedules.Update(ctx, sched)
}

func (s *Service) DeactivateSchedule(ctx context.Context, id uuid.UUID) error {
	return s.schedules.SetActive(ctx, id, false)
}

func (s *Service) ListSchedules(ctx context.Context, limit, offset int) ([]*AvailabilitySchedule, int, error) {
	return s.schedules.List(ctx, limit, offset)
}

// GenerateSlots reconciles the concrete slots for one template over a date
// range: missing slots are created, free slots the template no longer yields
// are deleted, busy slots are never touched. Returns (created, deleted).
func (s *Service) GenerateSlots(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) (int, int, error) {
	if to.Before(from) {
		return 0, 0, fmt.Errorf("range end %s before start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	sched, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return 0, 0, err
	}

	wanted := ExpandSlots(sched, from, to)
	wantedByStart := make(map[time.Time]*Slot, len(wanted))
	for i := range wanted {
		wantedByStart[wanted[i].StartTime.UTC()] = &wanted[i]
	}

	existing, err := s.slots.ListBySchedule(ctx, scheduleID, from, to)
	if err != nil {
		return 0, 0, err
	}

	commit, rollback, txCtx, err := s.begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer rollback()

	var created, deleted int
	for _, sl := range existing {
		if _, ok := wantedByStart[sl.StartTime.UTC()]; ok {
			delete(wantedByStart, sl.StartTime.UTC())
			continue
		}
		if sl.Status == SlotBusy {
			continue
		}
		if err := s.slots.Delete(txCtx, sl.ID); err != nil {
			return 0, 0, err
		}
		deleted++
	}
	for _, sl := range wantedByStart {
		if err := s.slots.Create(txCtx, sl); err != nil {
			return 0, 0, err
		}
		created++
	}
	if err := commit(); err != nil {
		return 0, 0, err
	}
	return created, deleted, nil
}

// Availability returns the free slots for a dentist in a window, merged
// across all of their active templates.
func (s *Service) Availability(ctx context.Context, dentistID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	return s.slots.ListByDentist(ctx, dentistID, from, to, SlotFree)
}

// BookAppointment claims a free slot for a patient. The free→busy guard on
// the slot makes double-booking a conflict for the loser.
func (s *Service) BookAppointment(ctx context.Context, patientID, slotID uuid.UUID, reason *string) (*Appointment, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if sl.Status != SlotFree {
		return nil, ErrSlotTaken
	}
	overlapping, err := s.appointments.CountOverlapping(ctx, patientID, sl.StartTime, sl.EndTime)
	if err != nil {
		return nil, err
	}
	if overlapping > 0 {
		return nil, fmt.Errorf("patient already has an appointment overlapping %s", sl.StartTime.Format(time.RFC3339))
	}

	commit, rollback, txCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	if err := s.slots.SetStatus(txCtx, sl.ID, SlotFree, SlotBusy); err != nil {
		return nil, err
	}
	a := &Appointment{
		PatientID: patientID,
		DentistID: sl.DentistID,
		SlotID:    sl.ID,
		Status:    StatusBooked,
		Reason:    reason,
		StartTime: sl.StartTime,
		EndTime:   sl.EndTime,
	}
	if err := s.appointments.Create(txCtx, a); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListAppointmentsByDentist(ctx context.Context, dentistID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	return s.appointments.ListByDentist(ctx, dentistID, from, to)
}

func (s *Service) MarkArrived(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusArrived, nil)
}

// CompleteAppointment closes the visit and fires the completion hook, which
// is what makes the visit billable.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, s.onCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, nil)
}

// CancelAppointment cancels and frees the slot for rebooking.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	if reason == "" {
		return nil, fmt.Errorf("cancellation reason is required")
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.Transition(StatusCancelled); err != nil {
		return nil, err
	}
	a.CancellationReason = &reason

	commit, rollback, txCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	if err := s.appointments.Update(txCtx, a); err != nil {
		return nil, err
	}
	if err := s.slots.SetStatus(txCtx, a.SlotID, SlotBusy, SlotFree); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to string, hook CompletionHook) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.Transition(to); err != nil {
		return nil, err
	}

	commit, rollback, txCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	if err := s.appointments.Update(txCtx, a); err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(txCtx, a); err != nil {
			return nil, err
		}
	}
	if err := commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// begin opens a transaction on the request's clinic connection; without one
// the operations run unwrapped and commit/rollback are no-ops. A Begin
// failure on a live connection propagates rather than running the writes
// unwrapped.
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
