package service

import (
	"strconv"
	"time"

	"todo-planner/internal/model"
)

// LocationFromTZ accepts an IANA zone name, "UTC" or a fixed "±HH:MM" offset.
func LocationFromTZ(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err == nil {
		return loc, nil
	}
	if loc, ok := parseOffsetLocation(tz); ok {
		return loc, nil
	}
	return nil, invalid("timezone", "unknown timezone %q", tz)
}

func parseOffsetLocation(tz string) (*time.Location, bool) {
	if len(tz) != 6 || (tz[0] != '+' && tz[0] != '-') || tz[3] != ':' {
		return nil, false
	}
	hours, err := strconv.Atoi(tz[1:3])
	if err != nil || hours > 23 {
		return nil, false
	}
	minutes, err := strconv.Atoi(tz[4:6])
	if err != nil || minutes > 59 {
		return nil, false
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset), true
}

// userLocation resolves the calendar a user's dates are computed in.
func userLocation(user *model.User, fallback *time.Location) *time.Location {
	if user != nil && user.Timezone != "" {
		if loc, err := LocationFromTZ(user.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}
