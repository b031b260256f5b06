// Package timeutil provides pure arithmetic over wall-clock "HH:MM" strings
// and "YYYY-MM-DD" dates. Times never carry a timezone; dates are interpreted
// in the shop's local calendar.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesOf converts "HH:MM" to minutes since midnight.
func MinutesOf(t string) (int, error) {
	parts := strings.Split(t, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", t)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", t, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", t, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", t)
	}
	return hour*60 + minute, nil
}

// FormatMinutes converts minutes since midnight to zero-padded "HH:MM".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// GenerateTimeSlots enumerates slot start times from open up to, but not
// including, close at the given interval. Returns an empty slice when
// open >= close.
func GenerateTimeSlots(open, close string, intervalMinutes int) ([]string, error) {
	if intervalMinutes <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %d", intervalMinutes)
	}
	openMin, err := MinutesOf(open)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	closeMin, err := MinutesOf(close)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}

	var slots []string
	for cursor := openMin; cursor < closeMin; cursor += intervalMinutes {
		slots = append(slots, FormatMinutes(cursor))
	}
	return slots, nil
}

// AddMinutesToTime adds minutes to an "HH:MM" time using 24-hour wraparound.
// It never rolls over to a new date; callers detect day-crossing with
// CrossesMidnight before trusting the result.
func AddMinutesToTime(t string, minutes int) string {
	base, err := MinutesOf(t)
	if err != nil {
		return t
	}
	total := (base + minutes) % (24 * 60)
	if total < 0 {
		total += 24 * 60
	}
	return FormatMinutes(total)
}

// CrossesMidnight reports whether start plus duration reaches or runs past
// 24:00. An end of exactly 24:00 has no "HH:MM" representation on the same
// date, so it counts as crossing.
func CrossesMidnight(start string, durationMinutes int) bool {
	base, err := MinutesOf(start)
	if err != nil {
		return true
	}
	return base+durationMinutes >= 24*60 || durationMinutes <= 0
}

// IsTimeInRange reports start <= t < end over "HH:MM" strings. Zero-padded
// fixed-width times compare correctly as strings.
func IsTimeInRange(t, start, end string) bool {
	return t >= start && t < end
}

// ParseDate parses "YYYY-MM-DD" as a wall-clock date in the given location.
// The string is split by hand rather than fed to a UTC-based parser so the
// weekday never shifts by one near midnight.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date format: %s", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year in %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month in %q: %w", s, err)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day in %q: %w", s, err)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date out of range: %s", s)
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject it instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("date does not exist: %s", s)
	}
	return t, nil
}

// DateString formats a time as "YYYY-MM-DD" in its own location.
func DateString(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDuration renders minutes as a short human string, e.g. "45m", "2h",
// "1h 30m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

/// Format12h renders "HH:MM" in 12-hour clock form, e.g. "2:30 PM".
func Format12h(t string) string {
	minutes, err := MinutesOf(t)
	if err != nil {
		return t
	}
	hour := minutes / 60
	min := minutes % 60
	suffix := "AM"
	display := hour
	switch {
	case hour == 0:
		display = 12
	case hour == 12:
		suffix = "PM"
	case hour > 12:
		display = hour - 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", display, min, suffix)
}
