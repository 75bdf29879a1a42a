package service

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"fieldops_backend/internal/timeconv"
)

const (
	wireStart   = "2024-03-04 15:00:00"
	epochStart  = "1709564400000"
	epochMidnit = "1709510400000"
)

func TestDateCandidates(t *testing.T) {
	tests := []struct {
		name          string
		wireUTC       string
		localDate     string
		allowDateOnly bool
		want          []string
	}{
		{
			name:          "datetime property only",
			wireUTC:       wireStart,
			localDate:     "2024-03-04",
			allowDateOnly: false,
			want:          []string{epochStart, wireStart},
		},
		{
			name:          "date-only fallback enabled",
			wireUTC:       wireStart,
			localDate:     "2024-03-04",
			allowDateOnly: true,
			want:          []string{epochStart, wireStart, "2024-03-04", epochMidnit},
		},
		{
			name:          "unparseable wire value",
			wireUTC:       "bogus",
			localDate:     "2024-03-05",
			allowDateOnly: true,
			want:          []string{"bogus", "2024-03-05", "1709596800000"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := dateCandidates(tc.wireUTC, tc.localDate, tc.allowDateOnly)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("dateCandidates(%q, %q, %v) = %v, want %v",
					tc.wireUTC, tc.localDate, tc.allowDateOnly, got, tc.want)
			}
		})
	}
}

func TestMatchesAnyCandidate(t *testing.T) {
	tests := []struct {
		name       string
		stored     string
		candidates []string
		want       bool
	}{
		{"exact string", wireStart, []string{epochStart, wireStart}, true},
		{"epoch equals datetime", epochStart, []string{wireStart}, true},
		{"bare date same day as epoch", "2024-03-04", []string{epochStart}, true},
		{"different day", "2024-03-05", []string{epochStart, wireStart}, false},
		{"unparseable stored value", "garbage", []string{wireStart}, false},
		{"empty stored value", "", []string{wireStart}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchesAnyCandidate(tc.stored, tc.candidates); got != tc.want {
				t.Fatalf("matchesAnyCandidate(%q, %v) = %v, want %v", tc.stored, tc.candidates, got, tc.want)
			}
		})
	}
}

func TestWriteDatePropertyFallsBackToNextCandidate(t *testing.T) {
	crm := newFakeCRM()
	crm.updateHook = func(_ string, props map[string]interface{}) error {
		// A datetime-typed property rejects bare epoch millis.
		if v, ok := props["survey_scheduled_date"].(string); ok && v == epochStart {
			return fmt.Errorf("invalid value")
		}
		return nil
	}
	svc := testService(testConfig(), newFakeStore(), newFakeFieldService(), crm, &fakeSender{})

	ok, warnings := svc.writeDateProperty(context.Background(), testDealID, "survey_scheduled_date", wireStart, "2024-03-04", false)
	if !ok {
		t.Fatalf("expected fallback write to succeed, warnings: %v", warnings)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got := crm.stored(testDealID, "survey_scheduled_date"); got != wireStart {
		t.Fatalf("expected wire literal stored, got %q", got)
	}
	if len(crm.updates) != 2 {
		t.Fatalf("expected two write attempts, got %d", len(crm.updates))
	}
}

func TestWriteDatePropertyAllWritesFail(t *testing.T) {
	crm := newFakeCRM()
	crm.updateHook = func(_ string, _ map[string]interface{}) error {
		return fmt.Errorf("property is read only")
	}
	svc := testService(testConfig(), newFakeStore(), newFakeFieldService(), crm, &fakeSender{})

	ok, warnings := svc.writeDateProperty(context.Background(), testDealID, "survey_scheduled_date", wireStart, "2024-03-04", false)
	if ok {
		t.Fatalf("expected failure when every representation is rejected")
	}
	if len(warnings) != 1 || !hasWarning(warnings, "crm write failed for survey_scheduled_date") {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestWriteDatePropertyVerifyMismatch(t *testing.T) {
	crm := newFakeCRM()
	crm.storeAs = map[string]string{"survey_scheduled_date": "2025-01-01"}
	svc := testService(testConfig(), newFakeStore(), newFakeFieldService(), crm, &fakeSender{})

	ok, warnings := svc.writeDateProperty(context.Background(), testDealID, "survey_scheduled_date", wireStart, "2024-03-04", false)
	if ok {
		t.Fatalf("expected verification to fail on a foreign readback value")
	}
	if !hasWarning(warnings, "matches no written value") {
		t.Fatalf("expected readback mismatch warning, got %v", warnings)
	}
}

func TestWriteDatePropertyAcceptsNormalizedReadback(t *testing.T) {
	// The CRM normalizing a datetime write down to its calendar day still
	// counts as verified.
	crm := newFakeCRM()
	crm.storeAs = map[string]string{"install_scheduled_date": epochMidnit}
	svc := testService(testConfig(), newFakeStore(), newFakeFieldService(), crm, &fakeSender{})

	ok, warnings := svc.writeDateProperty(context.Background(), testDealID, "install_scheduled_date", wireStart, "2024-03-04", true)
	if !ok {
		t.Fatalf("day-normalized readback should verify, warnings: %v", warnings)
	}
}

func TestReflectScheduleWritesBoundariesAndAssignee(t *testing.T) {
	crm := newFakeCRM()
	svc := testService(testConfig(), newFakeStore(), newFakeFieldService(), crm, &fakeSender{})

	cfg := testConfig()
	cat := cfg.Categories["installation"]
	window, err := timeconv.BuildWindow(cat.WindowSpec(), "2024-03-04", "", "", 3, "America/Denver")
	if err != nil {
		t.Fatalf("unexpected window error: %v", err)
	}

	ok, warnings := svc.reflectSchedule(context.Background(), testDealID, cat, window, "Chris Lee")
	if !ok {
		t.Fatalf("expected date write to verify, warnings: %v", warnings)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if got := crm.stored(testDealID, "install_scheduled_date"); got != epochStart {
		t.Fatalf("scheduled date stored as %q, want %q", got, epochStart)
	}
	if got := crm.stored(testDealID, "install_start_date"); got != epochStart {
		t.Fatalf("boundary start stored as %q, want %q", got, epochStart)
	}
	// Three business days from Monday end Wednesday 16:00 Denver.
	if got := crm.stored(testDealID, "install_end_date"); got != "1709766000000" {
		t.Fatalf("boundary end stored as %q", got)
	}
	if got := crm.stored(testDealID, "install_crew_lead"); got != "Chris Lee" {
		t.Fatalf("assignee stored as %q", got)
	}
}

func TestReflectScheduleSkipsAssigneeWhenUnset(t *testing.T) {
	crm := newFakeCRM()
	svc := testService(testConfig(), newFakeStore(), newFakeFieldService(), crm, &fakeSender{})

	cfg := testConfig()
	cat := cfg.Categories["survey"]
	window, err := timeconv.BuildWindow(cat.WindowSpec(), "2024-03-04", "09:00", "11:00", 0, "America/Denver")
	if err != nil {
		t.Fatalf("unexpected window error: %v", err)
	}

	if ok, warnings := svc.reflectSchedule(context.Background(), testDealID, cat, window, ""); !ok || len(warnings) != 0 {
		t.Fatalf("expected clean reflect, ok=%v warnings=%v", ok, warnings)
	}
	if got := crm.stored(testDealID, "surveyor_name"); got != "" {
		t.Fatalf("assignee property must stay untouched, got %q", got)
	}
}
