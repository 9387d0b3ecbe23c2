package utils

import (
	"fmt"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

// ParseDay parses YYYY-MM-DD date in UTC
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %v", s, err)
	}
	return t, nil
}

// ParseMonth parses YYYY-MM month in UTC
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM: %v", s, err)
	}
	return t, nil
}

func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// NextDay returns the day following s in YYYY-MM-DD format
func NextDay(s string) (string, error) {
	t, err := ParseDay(s)
	if err != nil {
		return "", err
	}
	return FormatDay(t.AddDate(0, 0, 1)), nil
}

// DayRange returns all days in [start, end). Both bounds are YYYY-MM-DD.
func DayRange(start, end string) ([]string, error) {
	s, err := ParseDay(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return nil, err
	}
	if !s.Before(e) {
		return nil, fmt.Errorf("start date %s must be before end date %s", start, end)
	}
	var days []string
	for d := s; d.Before(e); d = d.AddDate(0, 0, 1) {
		days = append(days, FormatDay(d))
	}
	return days, nil
}
