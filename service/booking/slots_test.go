package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/medibook-app/MediBook-server/cmd/models"
)

func TestDateKey(t *testing.T) {
	got := DateKey(time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC))
	if got != "5_3_2025" {
		t.Errorf("expected 5_3_2025, got %s", got)
	}
}

func TestParseDateKey(t *testing.T) {
	day, err := ParseDateKey("5_3_2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.Day() != 5 || day.Month() != time.March || day.Year() != 2025 {
		t.Errorf("parsed wrong day: %v", day)
	}

	invalid := []string{"", "5-3-2025", "5_3", "a_b_c", "32_1_2025", "30_2_2025", "1_13_2025"}
	for _, key := range invalid {
		if _, err := ParseDateKey(key); !errors.Is(err, ErrValidation) {
			t.Errorf("expected validation error for %q, got %v", key, err)
		}
	}
}

func TestValidateSlotTime(t *testing.T) {
	if err := ValidateSlotTime("10:00 AM"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateSlotTime("1:30 PM"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, s := range []string{"", "25:00", "10:00", "ten o'clock"} {
		if err := ValidateSlotTime(s); !errors.Is(err, ErrValidation) {
			t.Errorf("expected validation error for %q, got %v", s, err)
		}
	}
}

func TestCandidateSlots(t *testing.T) {
	from := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	booked := models.SlotMap{
		"5_3_2025": {"10:00 AM"},
	}

	days := CandidateSlots(booked, from, CandidateDays)
	if len(days) != CandidateDays {
		t.Fatalf("expected %d days, got %d", CandidateDays, len(days))
	}
	if days[0].DateKey != "5_3_2025" {
		t.Errorf("expected first key 5_3_2025, got %s", days[0].DateKey)
	}

	for _, slot := range days[0].Times {
		if slot == "10:00 AM" {
			t.Error("booked time must not appear among candidates")
		}
	}
	// 10:00–21:00 yields 22 half-hour slots, one of which is booked.
	if got := len(days[0].Times); got != 21 {
		t.Errorf("expected 21 open slots on first day, got %d", got)
	}
	if got := len(days[1].Times); got != 22 {
		t.Errorf("expected 22 open slots on a free day, got %d", got)
	}
	if days[0].Times[0] != "10:30 AM" {
		t.Errorf("expected first open slot 10:30 AM, got %s", days[0].Times[0])
	}
}

func TestCandidateSlotsSkipsPastTimes(t *testing.T) {
	from := time.Date(2025, 3, 5, 13, 10, 0, 0, time.UTC)

	days := CandidateSlots(models.SlotMap{}, from, 1)
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	if len(days[0].Times) == 0 {
		t.Fatal("expected open slots in the afternoon")
	}
	if days[0].Times[0] != "1:30 PM" {
		t.Errorf("expected first slot 1:30 PM, got %s", days[0].Times[0])
	}
}
