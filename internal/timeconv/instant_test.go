package timeconv

import (
	"testing"
	"time"
)

func TestParseInstantSpellings(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      time.Time
		precision Precision
	}{
		{"epoch millis", "1709510400000", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), PrecisionSecond},
		{"wire layout", "2024-03-04 22:00:00", time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC), PrecisionSecond},
		{"rfc3339", "2024-03-04T22:00:00Z", time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC), PrecisionSecond},
		{"bare iso datetime", "2024-03-04T22:00:00", time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC), PrecisionSecond},
		{"date only", "2024-03-04", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), PrecisionDay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInstant(tt.raw)
			if !ok {
				t.Fatalf("failed to parse %q", tt.raw)
			}
			if !got.Time.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got.Time, tt.want)
			}
			if got.Precision != tt.precision {
				t.Fatalf("got precision %d, want %d", got.Precision, tt.precision)
			}
		})
	}
}

func TestParseInstantRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "next tuesday", "04/03/2024"} {
		if _, ok := ParseInstant(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestInstantEqualAcrossSpellings(t *testing.T) {
	// The CRM may echo a scheduled date back as a bare date while the
	// write sent epoch milliseconds; both name the same day.
	date, _ := ParseInstant("2024-03-04")
	epoch, _ := ParseInstant("1709510400000")
	if !date.Equal(epoch) {
		t.Fatal("expected bare date to equal midnight epoch value")
	}
	if !epoch.Equal(date) {
		t.Fatal("expected equality to be symmetric")
	}

	afternoon, _ := ParseInstant("2024-03-04 22:00:00")
	if !date.Equal(afternoon) {
		t.Fatal("expected bare date to equal same-day datetime")
	}

	nextDay, _ := ParseInstant("2024-03-05")
	if date.Equal(nextDay) {
		t.Fatal("expected different days to be unequal")
	}
}

func TestInstantEqualSecondPrecision(t *testing.T) {
	a, _ := ParseInstant("2024-03-04 22:00:00")
	b, _ := ParseInstant("2024-03-04T22:00:00Z")
	if !a.Equal(b) {
		t.Fatal("expected identical instants to be equal")
	}

	c, _ := ParseInstant("2024-03-04 22:00:01")
	if a.Equal(c) {
		t.Fatal("expected instants a second apart to be unequal")
	}
}

func TestInstantEpochMillis(t *testing.T) {
	i, _ := ParseInstant("2024-03-04")
	if got := i.EpochMillis(); got != 1709510400000 {
		t.Fatalf("got %d, want 1709510400000", got)
	}
}
