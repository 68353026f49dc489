package timeutil

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidDateTime = errors.New("invalid datetime")
)

// Layouts accepted for local datetime input. Seconds are optional.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ToInstant interprets a wall-clock datetime string as local time in the
// given IANA zone and returns the equivalent UTC instant. Skipped or
// repeated local times around DST transitions resolve however the time
// package resolves them.
func ToInstant(local, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, local, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, local)
}

// Combine builds an instant from a YYYY-MM-DD date, an HH:mm time of day
// and an IANA zone. Used for batch expansion.
func Combine(date, timeOfDay, timezone string) (time.Time, error) {
	return ToInstant(date+"T"+timeOfDay, timezone)
}

// MinutesUntil returns the floor of (instant - now) in whole minutes.
// Negative for past instants.
func MinutesUntil(instant, now time.Time) int {
	d := instant.Sub(now)
	m := int(d / time.Minute)
	// integer division truncates toward zero; floor negative remainders
	if d < 0 && d%time.Minute != 0 {
		m--
	}
	return m
}

// FormatInZone renders a UTC instant as wall-clock time in the given zone.
func FormatInZone(instant time.Time, timezone, layout string) (string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}
	return instant.In(loc).Format(layout), nil
}

// DateRange enumerates every calendar day in the inclusive range
// [startDate, endDate] as YYYY-MM-DD strings. Day boundaries are
// zone-naive. Returns ErrInvalidDateTime for unparseable dates and an
// empty slice when endDate precedes startDate.
func DateRange(startDate, endDate string) ([]string, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDateTime, startDate)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDateTime, endDate)
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dateLayout))
	}
	return days, nil
}

// ParseDate parses a YYYY-MM-DD string as a UTC midnight instant.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, date)
	}
	return t, nil
}

// ValidTimeOfDay reports whether s is a parseable HH:mm time.
func ValidTimeOfDay(s string) bool {
	_, err := time.Parse(timeLayout, s)
	return err == nil
}
