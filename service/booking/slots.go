package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medibook-app/MediBook-server/cmd/models"
)

const (
	slotTimeLayout = "3:04 PM"
	openingHour    = 10
	closingHour    = 21
	slotInterval   = 30 * time.Minute

	// CandidateDays is how far ahead the public slot listing looks.
	CandidateDays = 7
)

// DateKey formats a day as the map key used in slots_booked, e.g. "5_3_2025".
func DateKey(t time.Time) string {
	return fmt.Sprintf("%d_%d_%d", t.Day(), int(t.Month()), t.Year())
}

// ParseDateKey validates and parses a "day_month_year" key.
func ParseDateKey(key string) (time.Time, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: slot date must be day_month_year", ErrValidation)
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("%w: slot date must be numeric day_month_year", ErrValidation)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 2000 {
		return time.Time{}, fmt.Errorf("%w: slot date out of range", ErrValidation)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: no such calendar day", ErrValidation)
	}
	return t, nil
}

// ValidateSlotTime checks a time string like "10:00 AM".
func ValidateSlotTime(s string) error {
	if _, err := time.Parse(slotTimeLayout, s); err != nil {
		return fmt.Errorf("%w: slot time must look like 10:00 AM", ErrValidation)
	}
	return nil
}

// DaySlots is one day's worth of open candidate times.
type DaySlots struct {
	DateKey string   `json:"date_key"`
	Times   []string `json:"times"`
}

// CandidateSlots lists every open 30-minute slot between opening and closing
// time for the given number of days starting at `from`. Times already present
// in booked are excluded, as are times that have already passed on the first
// day. This is display-only filtering; the booking invariant lives in Book.
func CandidateSlots(booked models.SlotMap, from time.Time, days int) []DaySlots {
	result := make([]DaySlots, 0, days)

	for d := 0; d < days; d++ {
		day := from.AddDate(0, 0, d)
		start := time.Date(day.Year(), day.Month(), day.Day(), openingHour, 0, 0, 0, day.Location())
		end := time.Date(day.Year(), day.Month(), day.Day(), closingHour, 0, 0, 0, day.Location())

		if d == 0 && from.After(start) {
			start = roundUpToInterval(from)
		}

		key := DateKey(day)
		var times []string
		for t := start; t.Before(end); t = t.Add(slotInterval) {
			formatted := t.Format(slotTimeLayout)
			if booked.Has(key, formatted) {
				continue
			}
			times = append(times, formatted)
		}
		result = append(result, DaySlots{DateKey: key, Times: times})
	}
	return result
}

func roundUpToInterval(t time.Time) time.Time {
	rounded := t.Truncate(slotInterval)
	if rounded.Before(t) {
		rounded = rounded.Add(slotInterval)
	}
	return rounded
}
