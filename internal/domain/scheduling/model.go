package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot statuses.
const (
	SlotFree = "free"
	SlotBusy = "busy"
)

// Appointment statuses.
const (
	StatusBooked    = "booked"
	StatusArrived   = "arrived"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// validTransitions is the appointment status machine. Completed, cancelled
// and no_show are terminal.
var validTransitions = map[string][]string{
	StatusBooked:  {StatusArrived, StatusCancelled, StatusNoShow},
	StatusArrived: {StatusCompleted, StatusCancelled},
}

// AvailabilitySchedule is a dentist-scoped weekly recurring template. One row
// per weekday block; concrete slots are generated from it.
type AvailabilitySchedule struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	DentistID      uuid.UUID  `db:"dentist_id" json:"dentist_id"`
	Weekday        int        `db:"weekday" json:"weekday"` // 0 = Sunday, per time.Weekday
	StartTime      string     `db:"start_time" json:"start_time"`
	EndTime        string     `db:"end_time" json:"end_time"`
	SlotMinutes    int        `db:"slot_minutes" json:"slot_minutes"`
	EffectiveFrom  time.Time  `db:"effective_from" json:"effective_from"`
	EffectiveUntil *time.Time `db:"effective_until" json:"effective_until,omitempty"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks the template's time window and slot size.
func (s *AvailabilitySchedule) Validate() error {
	if s.DentistID == uuid.Nil {
		return fmt.Errorf("dentist_id is required")
	}
	if s.Weekday < 0 || s.Weekday > 6 {
		return fmt.Errorf("weekday must be 0-6, got %d", s.Weekday)
	}
	start, err := parseClock(s.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start_time: %w", err)
	}
	end, err := parseClock(s.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end_time: %w", err)
	}
	if !end.after(start) {
		return fmt.Errorf("end_time %s must be after start_time %s", s.EndTime, s.StartTime)
	}
	if s.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive, got %d", s.SlotMinutes)
	}
	return nil
}

// activeOn reports whether the template covers the given calendar day.
func (s *AvailabilitySchedule) activeOn(day time.Time) bool {
	if !s.Active || int(day.Weekday()) != s.Weekday {
		return false
	}
	if day.Before(truncateDay(s.EffectiveFrom)) {
		return false
	}
	if s.EffectiveUntil != nil && day.After(truncateDay(*s.EffectiveUntil)) {
		return false
	}
	return true
}

// Slot is one concrete bookable interval generated from a template.
type Slot struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ScheduleID uuid.UUID `db:"schedule_id" json:"schedule_id"`
	DentistID  uuid.UUID `db:"dentist_id" json:"dentist_id"`
	Status     string    `db:"status" json:"status"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Appointment links a patient, a dentist and a slot.
type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	DentistID          uuid.UUID  `db:"dentist_id" json:"dentist_id"`
	SlotID             uuid.UUID  `db:"slot_id" json:"slot_id"`
	Status             string     `db:"status" json:"status"`
	Reason             *string    `db:"reason" json:"reason,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	StartTime          time.Time  `db:"start_time" json:"start_time"`
	EndTime            time.Time  `db:"end_time" json:"end_time"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Transition moves the appointment to the target status, enforcing the
// status machine.
func (a *Appointment) Transition(to string) error {
	for _, allowed := range validTransitions[a.Status] {
		if allowed == to {
			a.Status = to
			if to == StatusCompleted {
				now := time.Now()
				a.CompletedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("cannot transition appointment from %s to %s", a.Status, to)
}

// ExpandSlots deterministically generates the concrete slots a template
// yields over [from, to] inclusive of both days. Identical inputs always
// produce the identical slot set.
func ExpandSlots(s *AvailabilitySchedule, from, to time.Time) []Slot {
	start, err := parseClock(s.StartTime)
	if err != nil {
		return nil
	}
	end, err := parseClock(s.EndTime)
	if err != nil {
		return nil
	}
	step := time.Duration(s.SlotMinutes) * time.Minute

	var slots []Slot
	for day := truncateDay(from); !day.After(truncateDay(to)); day = day.AddDate(0, 0, 1) {
		if !s.activeOn(day) {
			continue
		}
		dayEnd := end.on(day)
		for cur := start.on(day); !cur.Add(step).After(dayEnd); cur = cur.Add(step) {
			slots = append(slots, Slot{
				ScheduleID: s.ID,
				DentistID:  s.DentistID,
				Status:     SlotFree,
				StartTime:  cur,
				EndTime:    cur.Add(step),
			})
		}
	}
	return slots
}

type clock struct {
	hour, min int
}

func parseClock(v string) (clock, error) {
	var c clock
	if _, err := fmt.Sscanf(v, "%d:%d", &c.hour, &c.min); err != nil {
		return c, fmt.Errorf("want HH:MM, got %q", v)
	}
	if c.hour < 0 || c.hour > 23 || c.min < 0 || c.min > 59 {
		return c, fmt.Errorf("out of range: %q", v)
	}
	return c, nil
}

func (c clock) after(other clock) bool {
	return c.hour*60+c.min > other.hour*60+other.min
}

func (c clock) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.min, 0, 0, day.Location())
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
