// Package timeconv converts local wall-clock appointment times into the
// UTC wire format the external systems expect, and derives visit windows
// from scheduling inputs. All functions are pure.
package timeconv

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// WireLayout is the datetime format the field-service API expects:
	// UTC, no zone suffix.
	WireLayout = "2006-01-02 15:04:05"
	// DateLayout is the calendar-date format used throughout requests.
	DateLayout = "2006-01-02"
)

// standardOffsets holds standard (winter) UTC offsets for the zones crews
// work in. Used only when the host has no tz database entry for the
// requested zone; DST is not applied on this path.
var standardOffsets = map[string]int{
	"America/New_York":    -5,
	"America/Detroit":     -5,
	"America/Chicago":     -6,
	"America/Denver":      -7,
	"America/Boise":       -7,
	"America/Phoenix":     -7,
	"America/Los_Angeles": -8,
	"America/Anchorage":   -9,
	"Pacific/Honolulu":    -10,
	"UTC":                 0,
}

// LocalToUTCTime interprets date ("2006-01-02") and clock ("15:04" or
// "15:04:05") as wall-clock time in the given IANA zone and returns the
// corresponding UTC instant. The zone's rules for that calendar date
// decide the offset, so DST is handled; when the zone cannot be loaded
// the standard-offset table is consulted instead.
func LocalToUTCTime(date, clock, zone string) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}

	hour, minute, second, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	zone = strings.TrimSpace(zone)
	if zone == "" {
		return time.Time{}, fmt.Errorf("time zone is required")
	}

	if loc, locErr := time.LoadLocation(zone); locErr == nil {
		local := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, loc)
		return local.UTC(), nil
	}

	if t, ok := standardOffsetTime(day, hour, minute, second, zone); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unknown time zone %q", zone)
}

// standardOffsetTime resolves the wall-clock time against the static
// offset table, ignoring DST.
func standardOffsetTime(day time.Time, hour, minute, second int, zone string) (time.Time, bool) {
	offset, ok := standardOffsets[zone]
	if !ok {
		return time.Time{}, false
	}
	fixed := time.FixedZone(zone, offset*3600)
	local := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, fixed)
	return local.UTC(), true
}

// LocalToUTC is LocalToUTCTime rendered in the wire format.
func LocalToUTC(date, clock, zone string) (string, error) {
	t, err := LocalToUTCTime(date, clock, zone)
	if err != nil {
		return "", err
	}
	return t.Format(WireLayout), nil
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(date string) (time.Time, error) {
	day, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return day, nil
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// BusinessEndDate returns the final calendar day of a span of business
// days starting at start, counting start itself when it is a weekday.
// Weekends never consume span days: Friday plus a two-day span ends on
// Monday. A span of one (or less) ends on the start date.
func BusinessEndDate(start time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}

	current := start
	for IsWeekend(current) {
		current = current.AddDate(0, 0, 1)
	}

	remaining := days - 1
	for remaining > 0 {
		current = current.AddDate(0, 0, 1)
		if !IsWeekend(current) {
			remaining--
		}
	}
	return current
}

// WindowSpec describes how a visit window is derived for one appointment
// kind. Fixed clocks override caller input entirely; default clocks fill
// in when the caller omits times. SpanBusinessDays lets multi-day visits
// push the end date across a business-day span.
type WindowSpec struct {
	FixedStart       string
	FixedEnd         string
	DefaultStart     string
	DefaultEnd       string
	SpanBusinessDays bool
}

// Window is a resolved visit window. Start and End are UTC instants; the
// local dates and clocks record what the crew sees on their calendar.
type Window struct {
	Start           time.Time
	End             time.Time
	StartLocalDate  string
	EndLocalDate    string
	StartLocalClock string
	EndLocalClock   string
}

// StartWire renders the window start in the wire format.
func (w Window) StartWire() string { return w.Start.Format(WireLayout) }

// EndWire renders the window end in the wire format.
func (w Window) EndWire() string { return w.End.Format(WireLayout) }

// BuildWindow resolves a visit window from scheduling inputs. startClock
// and endClock are the caller's optional "HH:MM" times; days is the visit
// length in business days, honored only when sp.SpanBusinessDays is set.
func BuildWindow(sp WindowSpec, date, startClock, endClock string, days int, zone string) (Window, error) {
	start := firstNonEmpty(sp.FixedStart, startClock, sp.DefaultStart)
	end := firstNonEmpty(sp.FixedEnd, endClock, sp.DefaultEnd)
	if start == "" || end == "" {
		return Window{}, fmt.Errorf("start and end times are required")
	}

	endDate := strings.TrimSpace(date)
	if sp.SpanBusinessDays && days > 1 {
		day, err := ParseDate(date)
		if err != nil {
			return Window{}, err
		}
		endDate = BusinessEndDate(day, days).Format(DateLayout)
	}

	startUTC, err := LocalToUTCTime(date, start, zone)
	if err != nil {
		return Window{}, err
	}
	endUTC, err := LocalToUTCTime(endDate, end, zone)
	if err != nil {
		return Window{}, err
	}
	if !endUTC.After(startUTC) {
		return Window{}, fmt.Errorf("window end must be after start")
	}

	return Window{
		Start:           startUTC,
		End:             endUTC,
		StartLocalDate:  strings.TrimSpace(date),
		EndLocalDate:    endDate,
		StartLocalClock: start,
		EndLocalClock:   end,
	}, nil
}

func parseClock(clock string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", clock)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, 0, fmt.Errorf("invalid minute in %q", clock)
	}
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, 0, 0, fmt.Errorf("invalid second in %q", clock)
		}
	}
	return hour, minute, second, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
