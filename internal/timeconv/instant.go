package timeconv

import (
	"strconv"
	"strings"
	"time"
)

// Precision describes how finely an instant is known.
type Precision int

const (
	// PrecisionSecond means the instant carries a full time of day.
	PrecisionSecond Precision = iota
	// PrecisionDay means only the calendar date is meaningful.
	PrecisionDay
)

// Instant pairs a UTC moment with the precision it was expressed at.
// The CRM stores the same scheduled date as epoch milliseconds, a full
// datetime string, or a bare date depending on property type and portal
// configuration; Instant lets those spellings be compared as values
// instead of as strings.
type Instant struct {
	Time      time.Time
	Precision Precision
}

var instantLayouts = []struct {
	layout    string
	precision Precision
}{
	{WireLayout, PrecisionSecond},
	{time.RFC3339, PrecisionSecond},
	{"2006-01-02T15:04:05", PrecisionSecond},
	{DateLayout, PrecisionDay},
}

// ParseInstant interprets the datetime spellings seen on the wire: epoch
// milliseconds, the wire layout, RFC 3339, and bare dates. Returns false
// for anything unrecognizable.
func ParseInstant(raw string) (Instant, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Instant{}, false
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Instant{Time: time.UnixMilli(ms).UTC(), Precision: PrecisionSecond}, true
	}

	for _, candidate := range instantLayouts {
		if t, err := time.Parse(candidate.layout, s); err == nil {
			return Instant{Time: t.UTC(), Precision: candidate.precision}, true
		}
	}
	return Instant{}, false
}

// FromTime wraps a concrete UTC time as a second-precision Instant.
func FromTime(t time.Time) Instant {
	return Instant{Time: t.UTC(), Precision: PrecisionSecond}
}

// Equal reports whether two instants refer to the same moment, compared
// at the coarser of the two precisions. A bare date equals any instant
// that falls on the same UTC calendar day.
func (i Instant) Equal(other Instant) bool {
	if i.Precision == PrecisionDay || other.Precision == PrecisionDay {
		ay, am, ad := i.Time.UTC().Date()
		by, bm, bd := other.Time.UTC().Date()
		return ay == by && am == bm && ad == bd
	}
	return i.Time.UTC().Equal(other.Time.UTC())
}

// SameDay reports whether both instants fall on the same UTC calendar
// day, regardless of precision.
func (i Instant) SameDay(other Instant) bool {
	ay, am, ad := i.Time.UTC().Date()
	by, bm, bd := other.Time.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// EpochMillis returns the instant as epoch milliseconds.
func (i Instant) EpochMillis() int64 {
	return i.Time.UnixMilli()
}
