package service

import (
	"context"
	"fmt"
	"testing"

	"fieldops_backend/internal/scheduling/repository"
	"fieldops_backend/internal/scheduling/transport"
	"fieldops_backend/internal/zuper"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
)

func activeSurveyRecord() *repository.ScheduleRecord {
	return &repository.ScheduleRecord{
		ID:                uuid.New(),
		ProjectID:         testDealID,
		ScheduleType:      "survey",
		Status:            repository.StatusActive,
		ScheduledDate:     "2024-03-04",
		ScheduledStart:    "09:00",
		ScheduledEnd:      "11:00",
		ZuperJobUID:       "job-9",
		AssignedUser:      "Dana Fox",
		AssignedUserEmail: "dana@sunpeak.example",
		CustomerFirstName: "Maria",
		CustomerLastName:  "Garcia",
		CreatedBy:         "ops@sunpeak.example",
	}
}

func unscheduleRequest() transport.UnscheduleVisitRequest {
	return transport.UnscheduleVisitRequest{
		ProjectID:    testDealID,
		ScheduleType: "survey",
		Reason:       "customer moved",
	}
}

func TestUnscheduleVisitFullClear(t *testing.T) {
	store := newFakeStore()
	store.latest = activeSurveyRecord()
	fsm := newFakeFieldService()
	crm := newFakeCRM()
	crm.props[testDealID]["survey_scheduled_date"] = "1709568000000"
	crm.props[testDealID]["surveyor_name"] = "Dana Fox"
	sender := &fakeSender{}
	svc := testService(testConfig(), store, fsm, crm, sender)

	resp, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success || resp.Action != transport.UnscheduleActionUnscheduled {
		t.Fatalf("expected full unschedule, got %+v", resp)
	}
	if !resp.ZuperCleared || !resp.CRMCleared {
		t.Fatalf("expected both sides cleared, got %+v", resp)
	}
	if len(fsm.cleared) != 1 || fsm.cleared[0] != "job-9" {
		t.Fatalf("expected clear of job-9, got %v", fsm.cleared)
	}

	if len(store.cancelledIDs) != 1 || store.cancelledIDs[0] != store.latest.ID {
		t.Fatalf("record should flip to cancelled, got %v", store.cancelledIDs)
	}
	if store.cancelNote != "Cancelled by ops@sunpeak.example: customer moved" {
		t.Fatalf("unexpected cancellation note %q", store.cancelNote)
	}

	if len(sender.cancelledTo) != 1 || sender.cancelledTo[0] != "dana@sunpeak.example" {
		t.Fatalf("crew should be told about the cancellation, got %v", sender.cancelledTo)
	}

	if got := crm.stored(testDealID, "survey_scheduled_date"); got != "" {
		t.Fatalf("date property should be cleared, reads %q", got)
	}
	if got := crm.stored(testDealID, "survey_status"); got != "Ready for Survey" {
		t.Fatalf("status should reset to ready, reads %q", got)
	}
}

func TestUnscheduleVisitPartialWhenCalendarClearFails(t *testing.T) {
	store := newFakeStore()
	store.latest = activeSurveyRecord()
	fsm := newFakeFieldService()
	fsm.clearErr = fmt.Errorf("zuper 500")
	sender := &fakeSender{}
	svc := testService(testConfig(), store, fsm, newFakeCRM(), sender)

	resp, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Success || resp.Action != transport.UnscheduleActionPartial {
		t.Fatalf("expected partial result, got %+v", resp)
	}
	if resp.ZuperCleared {
		t.Fatalf("calendar side must report uncleared")
	}
	if !resp.CRMCleared {
		t.Fatalf("crm side should still be attempted and cleared, warnings: %v", resp.Warnings)
	}
	if !hasWarning(resp.Warnings, "field-service clear failed") {
		t.Fatalf("expected clear failure warning, got %v", resp.Warnings)
	}

	// A partial clear keeps the record active so it can be retried.
	if len(store.cancelledIDs) != 0 {
		t.Fatalf("record must stay active on partial clear")
	}
	if len(sender.cancelledTo) != 0 {
		t.Fatalf("no cancellation email on partial clear, got %v", sender.cancelledTo)
	}
}

func TestUnscheduleVisitVanishedJobCountsAsCleared(t *testing.T) {
	store := newFakeStore()
	store.latest = activeSurveyRecord()
	store.cache[cacheKey(testDealID, "Survey")] = &repository.JobCacheEntry{
		ProjectID:    testDealID,
		CategoryName: "Survey",
		JobUID:       "job-9",
	}
	fsm := newFakeFieldService()
	fsm.clearErr = apperr.NotFound("job not found")
	svc := testService(testConfig(), store, fsm, newFakeCRM(), &fakeSender{})

	resp, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success || !resp.ZuperCleared {
		t.Fatalf("a vanished job occupies no calendar, got %+v", resp)
	}
	if !hasWarning(resp.Warnings, "field-service job no longer exists") {
		t.Fatalf("expected vanished-job warning, got %v", resp.Warnings)
	}
	if len(store.deletedCache) != 1 {
		t.Fatalf("stale correlation should be evicted, deletions: %v", store.deletedCache)
	}
	if len(store.cancelledIDs) != 1 {
		t.Fatalf("record should still flip to cancelled")
	}
}

func TestUnscheduleVisitWithoutFieldService(t *testing.T) {
	store := newFakeStore()
	svc := testService(testConfig(), store, nil, newFakeCRM(), &fakeSender{})

	resp, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success || !resp.ZuperCleared || !resp.CRMCleared {
		t.Fatalf("flow should reduce to crm cleanup, got %+v", resp)
	}
	if !hasWarning(resp.Warnings, "field service integration is not configured") {
		t.Fatalf("expected integration warning, got %v", resp.Warnings)
	}
	if !hasWarning(resp.Warnings, "no active schedule record") {
		t.Fatalf("expected missing-record warning, got %v", resp.Warnings)
	}
	if len(store.cancelledIDs) != 0 {
		t.Fatalf("no record exists to cancel")
	}
}

func TestUnscheduleVisitFindsJobByTag(t *testing.T) {
	store := newFakeStore()
	fsm := newFakeFieldService()
	fsm.searchResults[""] = []zuper.Job{
		{JobUID: "job-other", Title: "Lopez, Ana - Survey", Category: zuper.Category{Name: "Survey"}},
		{
			JobUID:   "job-tagged",
			Title:    "Garcia, Maria - Survey",
			Category: zuper.Category{Name: "Survey"},
			Tags:     []string{"hubspot-" + testDealID},
		},
	}
	svc := testService(testConfig(), store, fsm, newFakeCRM(), &fakeSender{})

	resp, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ZuperJobUID != "job-tagged" {
		t.Fatalf("expected tag-matched job, got %q", resp.ZuperJobUID)
	}
	if len(fsm.cleared) != 1 || fsm.cleared[0] != "job-tagged" {
		t.Fatalf("expected clear of job-tagged, got %v", fsm.cleared)
	}
}

func TestUnscheduleVisitToleratesStatusCasing(t *testing.T) {
	store := newFakeStore()
	store.latest = activeSurveyRecord()
	fsm := newFakeFieldService()
	crm := newFakeCRM()
	crm.updateHook = func(_ string, props map[string]interface{}) error {
		// The portal's pipeline only knows the sentence-cased option.
		if v, ok := props["survey_status"]; ok && v == "Ready for Survey" {
			return fmt.Errorf("invalid option")
		}
		return nil
	}
	svc := testService(testConfig(), store, fsm, crm, &fakeSender{})

	resp, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.CRMCleared {
		t.Fatalf("sentence-cased status should clear, warnings: %v", resp.Warnings)
	}
	if got := crm.stored(testDealID, "survey_status"); got != "Ready for survey" {
		t.Fatalf("expected sentence-cased status stored, got %q", got)
	}
}

func TestUnscheduleVisitRetriesNullClearRepresentation(t *testing.T) {
	store := newFakeStore()
	store.latest = activeSurveyRecord()
	fsm := newFakeFieldService()
	crm := newFakeCRM()
	clearWrites := 0
	crm.updateHook = func(_ string, props map[string]interface{}) error {
		v, ok := props["survey_scheduled_date"]
		if !ok {
			return nil
		}
		clearWrites++
		// A date-typed property rejects "" but accepts an explicit null.
		if v == "" {
			return fmt.Errorf("invalid value")
		}
		return nil
	}
	svc := testService(testConfig(), store, fsm, crm, &fakeSender{})

	resp, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.CRMCleared {
		t.Fatalf("null representation should clear on the second attempt, warnings: %v", resp.Warnings)
	}
	if clearWrites != 2 {
		t.Fatalf("expected empty-string then null write, got %d clear writes", clearWrites)
	}
}

func TestUnscheduleVisitOwnershipGate(t *testing.T) {
	store := newFakeStore()
	rec := activeSurveyRecord()
	rec.CreatedBy = "sam@sunpeak.example"
	store.latest = rec
	svc := testService(testConfig(), store, newFakeFieldService(), newFakeCRM(), &fakeSender{})

	_, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	wantKind(t, err, apperr.KindForbidden)

	resp, err := svc.UnscheduleVisit(context.Background(), Actor{Email: "lead@sunpeak.example", Roles: []string{"admin"}}, unscheduleRequest())
	if err != nil {
		t.Fatalf("manager override failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected successful unschedule, got %+v", resp)
	}
}

func TestUnscheduleVisitRequiresCRM(t *testing.T) {
	svc := testService(testConfig(), newFakeStore(), newFakeFieldService(), nil, &fakeSender{})

	_, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), unscheduleRequest())
	wantKind(t, err, apperr.KindUnavailable)
}

func TestUnscheduleVisitRejectsUnknownType(t *testing.T) {
	svc := testService(testConfig(), newFakeStore(), newFakeFieldService(), newFakeCRM(), &fakeSender{})

	req := unscheduleRequest()
	req.ScheduleType = "maintenance"
	_, err := svc.UnscheduleVisit(context.Background(), schedulerActor(), req)
	wantKind(t, err, apperr.KindValidation)
}

func TestStatusSpellings(t *testing.T) {
	got := statusSpellings("Ready for Survey")
	if len(got) != 2 || got[0] != "Ready for Survey" || got[1] != "Ready for survey" {
		t.Fatalf("unexpected spellings %v", got)
	}

	// Already sentence-cased values yield no variant.
	if got := statusSpellings("Ready for survey"); len(got) != 1 {
		t.Fatalf("expected single spelling, got %v", got)
	}
}

func TestCancellationNote(t *testing.T) {
	tests := []struct {
		name        string
		cancelledBy string
		reason      string
		want        string
	}{
		{"full", "ops@sunpeak.example", "customer moved", "Cancelled by ops@sunpeak.example: customer moved"},
		{"no reason", "ops@sunpeak.example", "", "Cancelled by ops@sunpeak.example"},
		{"no actor", "", "duplicate", "Cancelled: duplicate"},
		{"bare", "", "", "Cancelled"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cancellationNote(tc.cancelledBy, tc.reason); got != tc.want {
				t.Fatalf("cancellationNote(%q, %q) = %q, want %q", tc.cancelledBy, tc.reason, got, tc.want)
			}
		})
	}
}
