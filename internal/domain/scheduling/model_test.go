package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func weeklyTemplate(t *testing.T, weekday int, start, end string, slotMinutes int) *AvailabilitySchedule {
	t.Helper()
	s := &AvailabilitySchedule{
		ID:            uuid.New(),
		DentistID:     uuid.New(),
		Weekday:       weekday,
		StartTime:     start,
		EndTime:       end,
		SlotMinutes:   slotMinutes,
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:        true,
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("template invalid: %v", err)
	}
	return s
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*AvailabilitySchedule)
		wantErr bool
	}{
		{"valid", func(*AvailabilitySchedule) {}, false},
		{"missing dentist", func(s *AvailabilitySchedule) { s.DentistID = uuid.Nil }, true},
		{"bad weekday", func(s *AvailabilitySchedule) { s.Weekday = 7 }, true},
		{"bad start", func(s *AvailabilitySchedule) { s.StartTime = "9am" }, true},
		{"hour out of range", func(s *AvailabilitySchedule) { s.StartTime = "25:00" }, true},
		{"end before start", func(s *AvailabilitySchedule) { s.StartTime = "17:00"; s.EndTime = "09:00" }, true},
		{"end equals start", func(s *AvailabilitySchedule) { s.EndTime = s.StartTime }, true},
		{"zero slot", func(s *AvailabilitySchedule) { s.SlotMinutes = 0 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &AvailabilitySchedule{
				DentistID:   uuid.New(),
				Weekday:     1,
				StartTime:   "09:00",
				EndTime:     "17:00",
				SlotMinutes: 30,
			}
			tc.mutate(s)
			err := s.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestExpandSlots_SingleDay(t *testing.T) {
	// Monday 2026-01-05, 09:00-12:00 in 30 minute slots.
	s := weeklyTemplate(t, 1, "09:00", "12:00", 30)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	slots := ExpandSlots(s, day, day)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if !slots[0].StartTime.Equal(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("first slot starts at %s", slots[0].StartTime)
	}
	if !slots[5].EndTime.Equal(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("last slot ends at %s", slots[5].EndTime)
	}
	for _, sl := range slots {
		if sl.Status != SlotFree {
			t.Errorf("generated slot must be free, got %s", sl.Status)
		}
		if sl.DentistID != s.DentistID || sl.ScheduleID != s.ID {
			t.Error("slot must carry its template and dentist")
		}
	}
}

func TestExpandSlots_PartialSlotDropped(t *testing.T) {
	// 100 minutes of window, 45 minute slots: only two fit.
	s := weeklyTemplate(t, 1, "09:00", "10:40", 45)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	slots := ExpandSlots(s, day, day)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
}

func TestExpandSlots_WeekRange(t *testing.T) {
	s := weeklyTemplate(t, 1, "09:00", "11:00", 60)
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)  // Monday
	to := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)   // Sunday, two Mondays inside

	slots := ExpandSlots(s, from, to)
	if len(slots) != 4 {
		t.Fatalf("expected 2 slots on each of 2 Mondays, got %d", len(slots))
	}
	if slots[2].StartTime.Day() != 12 {
		t.Errorf("second Monday slots expected on Jan 12, got %s", slots[2].StartTime)
	}
}

func TestExpandSlots_EffectiveRange(t *testing.T) {
	s := weeklyTemplate(t, 1, "09:00", "10:00", 60)
	s.EffectiveFrom = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	s.EffectiveUntil = &until

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	// Only Monday Jan 12 falls inside the effective range.
	slots := ExpandSlots(s, from, to)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if slots[0].StartTime.Day() != 12 {
		t.Errorf("expected slot on Jan 12, got %s", slots[0].StartTime)
	}
}

func TestExpandSlots_InactiveTemplate(t *testing.T) {
	s := weeklyTemplate(t, 1, "09:00", "10:00", 60)
	s.Active = false

	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if slots := ExpandSlots(s, day, day); len(slots) != 0 {
		t.Errorf("inactive template must yield no slots, got %d", len(slots))
	}
}

func TestExpandSlots_Deterministic(t *testing.T) {
	s := weeklyTemplate(t, 3, "08:00", "16:00", 20)
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	first := ExpandSlots(s, from, to)
	second := ExpandSlots(s, from, to)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].StartTime.Equal(second[i].StartTime) || !first[i].EndTime.Equal(second[i].EndTime) {
			t.Fatalf("slot %d differs between runs", i)
		}
	}
}

func TestAppointmentTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{StatusBooked, StatusArrived, true},
		{StatusBooked, StatusCancelled, true},
		{StatusBooked, StatusNoShow, true},
		{StatusBooked, StatusCompleted, false},
		{StatusArrived, StatusCompleted, true},
		{StatusArrived, StatusCancelled, true},
		{StatusArrived, StatusNoShow, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusBooked, false},
		{StatusNoShow, StatusArrived, false},
	}
	for _, tc := range cases {
		t.Run(tc.from+"_to_"+tc.to, func(t *testing.T) {
			a := &Appointment{Status: tc.from}
			err := a.Transition(tc.to)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Error("expected error")
				}
				if a.Status != tc.from {
					t.Error("failed transition must not change status")
				}
			}
		})
	}
}

func TestTransition_CompletedSetsTimestamp(t *testing.T) {
	a := &Appointment{Status: StatusArrived}
	if err := a.Transition(StatusCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.CompletedAt == nil {
		t.Error("completed_at must be set on completion")
	}
}
