// Package timeframe provides calendar-day date ranges for insights queries
// and analysis windows.
package timeframe

import (
	"fmt"
	"time"
)

// DayFormat is the wire format for calendar days, matching the upstream API.
const DayFormat = "2006-01-02"

// Clock abstracts time.Now so rolling windows and cooldowns are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by the system time.
type SystemClock struct{}

// Now returns the current time without any adjustments
func (SystemClock) Now() time.Time {
	return time.Now()
}

// RangeLabel represents the available named range options. The non-custom
// labels correspond one-to-one with the upstream API's date_preset values.
type RangeLabel string

const (
	RangeLabelToday      RangeLabel = "today"
	RangeLabelYesterday  RangeLabel = "yesterday"
	RangeLabelLast7Days  RangeLabel = "last_7d"
	RangeLabelLast14Days RangeLabel = "last_14d"
	RangeLabelLast30Days RangeLabel = "last_30d"
	RangeLabelLast90Days RangeLabel = "last_90d"
	RangeLabelThisMonth  RangeLabel = "this_month"
	RangeLabelLastMonth  RangeLabel = "last_month"
	RangeLabelCustom     RangeLabel = "custom"
)

// DateRange represents a closed interval of calendar days.
type DateRange struct {
	From  time.Time
	To    time.Time
	Label RangeLabel
}

// NewDateRange builds a custom range. Both endpoints are truncated to
// midnight UTC; From must not be after To.
func NewDateRange(from, to time.Time) (DateRange, error) {
	from = Day(from)
	to = Day(to)
	if from.After(to) {
		return DateRange{}, fmt.Errorf("from must be before to")
	}
	return DateRange{From: from, To: to, Label: RangeLabelCustom}, nil
}

// FromLabel resolves a named range relative to the clock's current day.
func FromLabel(label RangeLabel, clock Clock) (DateRange, error) {
	today := Day(clock.Now())
	switch label {
	case RangeLabelToday:
		return DateRange{From: today, To: today, Label: label}, nil
	case RangeLabelYesterday:
		y := today.AddDate(0, 0, -1)
		return DateRange{From: y, To: y, Label: label}, nil
	case RangeLabelLast7Days:
		return DateRange{From: today.AddDate(0, 0, -7), To: today.AddDate(0, 0, -1), Label: label}, nil
	case RangeLabelLast14Days:
		return DateRange{From: today.AddDate(0, 0, -14), To: today.AddDate(0, 0, -1), Label: label}, nil
	case RangeLabelLast30Days:
		return DateRange{From: today.AddDate(0, 0, -30), To: today.AddDate(0, 0, -1), Label: label}, nil
	case RangeLabelLast90Days:
		return DateRange{From: today.AddDate(0, 0, -90), To: today.AddDate(0, 0, -1), Label: label}, nil
	case RangeLabelThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{From: first, To: today, Label: label}, nil
	case RangeLabelLastMonth:
		firstThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		firstLast := firstThis.AddDate(0, -1, 0)
		return DateRange{From: firstLast, To: firstThis.AddDate(0, 0, -1), Label: label}, nil
	default:
		return DateRange{}, fmt.Errorf("unknown range label: %s", label)
	}
}

// Day truncates a timestamp to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a wire-format calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return t, nil
}

// Days returns the number of calendar days in the range, inclusive.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Contains reports whether the given day falls inside the range.
func (r DateRange) Contains(day time.Time) bool {
	day = Day(day)
	return !day.Before(r.From) && !day.After(r.To)
}

// EachDay calls fn once per calendar day in the range, in order.
func (r DateRange) EachDay(fn func(day time.Time)) {
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// IsPreset reports whether the range maps to an upstream date_preset value.
func (r DateRange) IsPreset() bool {
	return r.Label != RangeLabelCustom && r.Label != ""
}

// Preset returns the upstream date_preset parameter value for named ranges.
func (r DateRange) Preset() string {
	return string(r.Label)
}
