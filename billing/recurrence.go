package billing

import (
	"errors"
	"fmt"
	"time"

	"invoicing-backend/models"
)

var ErrInvalidSchedule = errors.New("invalid recurring schedule")

// Schedule is the recurring configuration of a template invoice.
type Schedule struct {
	Frequency models.RecurringFrequency
	Every     int
	// Day anchors monthly/yearly occurrences to a day of month (1-31, clamped to month end).
	Day *int
	// Month anchors yearly occurrences to a month (1-12).
	Month *int
}

// ScheduleOf reads the schedule stored on a template invoice.
func ScheduleOf(inv *models.Invoice) Schedule {
	return Schedule{
		Frequency: inv.RecurringFrequency,
		Every:     inv.RecurringEvery,
		Day:       inv.RecurringDay,
		Month:     inv.RecurringMonth,
	}
}

func (s Schedule) Validate() error {
	switch s.Frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, s.Frequency)
	}
	if s.Every < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidSchedule)
	}
	if s.Day != nil && (*s.Day < 1 || *s.Day > 31) {
		return fmt.Errorf("%w: day must be within 1..31", ErrInvalidSchedule)
	}
	if s.Month != nil && (*s.Month < 1 || *s.Month > 12) {
		return fmt.Errorf("%w: month must be within 1..12", ErrInvalidSchedule)
	}
	return nil
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampedDate builds year-month-day, moving an out-of-range day to the last day of that month.
func clampedDate(year int, month time.Month, day int) time.Time {
	// normalise month overflow first (e.g. month 14 -> Feb next year) without touching the day
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	year, month = first.Year(), first.Month()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NextOccurrence returns the occurrence following current.
//
// Monthly and yearly schedules keep an anchor day: the configured Day when set, otherwise
// current's own day of month. Yearly schedules also honour a configured Month. Daily and
// weekly schedules ignore the anchors.
func NextOccurrence(current time.Time, s Schedule) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}
	every := s.Every
	if every == 0 {
		every = 1
	}
	current = DateOf(current)

	switch s.Frequency {
	case models.FrequencyDaily:
		return current.AddDate(0, 0, every), nil
	case models.FrequencyWeekly:
		return current.AddDate(0, 0, 7*every), nil
	case models.FrequencyMonthly:
		day := current.Day()
		if s.Day != nil {
			day = *s.Day
		}
		return clampedDate(current.Year(), current.Month()+time.Month(every), day), nil
	default: // yearly
		day := current.Day()
		if s.Day != nil {
			day = *s.Day
		}
		month := current.Month()
		if s.Month != nil {
			month = time.Month(*s.Month)
		}
		return clampedDate(current.Year()+every, month, day), nil
	}
}

// FirstOccurrence places the first occurrence of a new template on or after start,
// honouring any anchor day/month.
func FirstOccurrence(start time.Time, s Schedule) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}
	start = DateOf(start)
	switch s.Frequency {
	case models.FrequencyMonthly:
		if s.Day == nil {
			return start, nil
		}
		candidate := clampedDate(start.Year(), start.Month(), *s.Day)
		if candidate.Before(start) {
			candidate = clampedDate(start.Year(), start.Month()+1, *s.Day)
		}
		return candidate, nil
	case models.FrequencyYearly:
		if s.Day == nil && s.Month == nil {
			return start, nil
		}
		day, month := start.Day(), start.Month()
		if s.Day != nil {
			day = *s.Day
		}
		if s.Month != nil {
			month = time.Month(*s.Month)
		}
		candidate := clampedDate(start.Year(), month, day)
		if candidate.Before(start) {
			candidate = clampedDate(start.Year()+1, month, day)
		}
		return candidate, nil
	default:
		return start, nil
	}
}

// AdvancePast steps from occurrence until the result lies strictly after today. Missed
// occurrences are skipped rather than back-filled.
func AdvancePast(occurrence, today time.Time, s Schedule) (time.Time, error) {
	today = DateOf(today)
	next, err := NextOccurrence(occurrence, s)
	if err != nil {
		return time.Time{}, err
	}
	for !next.After(today) {
		if next, err = NextOccurrence(next, s); err != nil {
			return time.Time{}, err
		}
	}
	return next, nil
}
