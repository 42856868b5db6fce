// Package recurrence computes occurrence dates for repeating todos.
//
// All functions are pure: they never modify their arguments and keep no state,
// so they are safe to call from any number of goroutines.
package recurrence

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"todo-planner/internal/model"
)

// ErrInvalidConfiguration is returned for a malformed repeat config.
var ErrInvalidConfiguration = errors.New("invalid repeat configuration")

// Validate checks a repeat config without computing anything.
func Validate(r model.Repeat) error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidConfiguration, r.Kind)
	}
	if r.Repeats() && r.Interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1, got %d", ErrInvalidConfiguration, r.Interval)
	}
	if limit := maxInterval(r.Kind); r.Repeats() && r.Interval > limit {
		return fmt.Errorf("%w: interval %d too large for %s, max %d", ErrInvalidConfiguration, r.Interval, r.Kind, limit)
	}
	for _, wd := range r.Weekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalidConfiguration, wd)
		}
	}
	return nil
}

// Next returns the occurrence that follows due. The boolean is false when the
// config does not repeat or the series ended before the next occurrence.
//
// Day-based units are applied to due's wall clock in due's location, so the
// caller decides which calendar is used by choosing the location of due.
func Next(due time.Time, r model.Repeat) (time.Time, bool, error) {
	if err := Validate(r); err != nil {
		return time.Time{}, false, err
	}
	if !r.Repeats() {
		return time.Time{}, false, nil
	}

	next := advance(due, r.Kind, r.Interval)
	if r.Kind == model.RepeatWeekly && len(r.Weekdays) > 0 {
		next = alignWeekday(next, r.Weekdays)
	}

	if !next.After(due) {
		return time.Time{}, false, fmt.Errorf("%w: interval %d does not move past %s", ErrInvalidConfiguration, r.Interval, due.Format(time.RFC3339))
	}

	if r.EndDate != nil && next.After(*r.EndDate) {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

// Series returns up to limit occurrences following due, in order.
func Series(due time.Time, r model.Repeat, limit int) ([]time.Time, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	if limit <= 0 || !r.Repeats() {
		return nil, nil
	}
	out := make([]time.Time, 0, limit)
	cur := due
	for len(out) < limit {
		next, ok, err := Next(cur, r)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

// maxInterval is the largest interval whose step still fits in the
// arithmetic used by advance.
func maxInterval(kind model.RepeatKind) int {
	switch kind {
	case model.RepeatMinute:
		return int(math.MaxInt64 / int64(time.Minute))
	case model.RepeatHourly:
		return int(math.MaxInt64 / int64(time.Hour))
	case model.RepeatWeekly:
		return math.MaxInt32 / 7
	case model.RepeatMonthly:
		return math.MaxInt32
	case model.RepeatYearly:
		return math.MaxInt32 / 12
	}
	return math.MaxInt32
}

func advance(t time.Time, kind model.RepeatKind, n int) time.Time {
	switch kind {
	case model.RepeatMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case model.RepeatHourly:
		return t.Add(time.Duration(n) * time.Hour)
	case model.RepeatDaily:
		return t.AddDate(0, 0, n)
	case model.RepeatWeekly:
		return t.AddDate(0, 0, 7*n)
	case model.RepeatMonthly:
		return addMonths(t, n)
	case model.RepeatYearly:
		return addMonths(t, 12*n)
	}
	return t
}

// addMonths moves t by n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1 month = Feb 28 or 29).
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(target.Month(), target.Year()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// alignWeekday moves t forward to the first selected weekday strictly after
// t's own weekday, wrapping to the earliest selected day of the next week.
func alignWeekday(t time.Time, weekdays []int) time.Time {
	days := slices.Clone(weekdays)
	slices.Sort(days)

	current := int(t.Weekday())
	for _, wd := range days {
		if wd > current {
			return t.AddDate(0, 0, wd-current)
		}
	}
	return t.AddDate(0, 0, 7-current+days[0])
}

func daysInMonth(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
