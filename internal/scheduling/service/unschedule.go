package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"fieldops_backend/internal/email"
	"fieldops_backend/internal/events"
	"fieldops_backend/internal/scheduling/repository"
	"fieldops_backend/internal/scheduling/transport"
	"fieldops_backend/internal/timeconv"
	"fieldops_backend/internal/zuper"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/phone"
	"fieldops_backend/platform/retry"
	"fieldops_backend/platform/sanitize"
)

// The CRM's write-then-read consistency is not immediate, so clears are
// re-checked a few times before giving up.
const (
	clearAttempts = 4
	clearDelay    = 450 * time.Millisecond
)

// UnscheduleVisit clears a booked visit from both external systems.
// Each side is cleared independently: a failure on one side never stops
// the other, and a partially cleared visit is reported as
// unschedule_partial so callers do not mistake it for a full cancel.
func (s *Service) UnscheduleVisit(ctx context.Context, actor Actor, req transport.UnscheduleVisitRequest) (*transport.UnscheduleVisitResponse, error) {
	cat, ok := s.cfg.Category(req.ScheduleType)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown schedule type %q", req.ScheduleType))
	}
	scheduleType := normalizeType(req.ScheduleType)

	if !cat.RoleAllowed(actor.Roles) && !s.cfg.IsManager(actor.Roles) {
		return nil, apperr.Forbidden(fmt.Sprintf("your role may not cancel %s visits", strings.ToLower(cat.DisplayName)))
	}
	if s.crm == nil {
		return nil, apperr.Unavailable("crm integration is not configured")
	}

	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" || strings.ContainsAny(projectID, "/ \t") {
		return nil, apperr.Validation("invalid project id")
	}
	req.Reason = sanitize.Text(req.Reason)

	record, err := s.repo.LatestActive(ctx, projectID, scheduleType)
	if err != nil {
		return nil, err
	}
	if record != nil && record.CreatedBy != "" &&
		!strings.EqualFold(record.CreatedBy, actor.Email) && !s.cfg.IsManager(actor.Roles) {
		return nil, apperr.Forbidden(fmt.Sprintf("scheduled by %s", record.CreatedBy))
	}

	var warnings []string
	if record == nil {
		warnings = append(warnings, "no active schedule record for this project")
	}

	jobUID, job := s.resolveForUnschedule(ctx, req, record, cat, projectID, &warnings)

	fsmCleared := false
	switch {
	case s.fsm == nil:
		// Without the integration there is no calendar to clear; the
		// flow reduces to CRM cleanup.
		fsmCleared = true
		warnings = append(warnings, "field service integration is not configured; calendar untouched")
	case jobUID == "":
		warnings = append(warnings, "no field-service job found to clear")
	default:
		err := s.fsm.ClearSchedule(ctx, jobUID)
		switch {
		case err == nil:
			fsmCleared = true
		case apperr.Is(err, apperr.KindNotFound):
			// The job vanished upstream; nothing occupies the calendar.
			fsmCleared = true
			warnings = append(warnings, "field-service job no longer exists")
			if cerr := s.repo.DeleteJobCache(ctx, projectID, cat.DisplayName); cerr != nil {
				s.log.Warn("job_cache_delete_failed", "project_id", projectID, "error", cerr.Error())
			}
		default:
			warnings = append(warnings, "field-service clear failed: "+err.Error())
		}
	}

	// Deal ids recovered from the job itself cover correlation drift:
	// the job may point at a different deal than the caller named.
	dealIDs := []string{projectID}
	if job != nil {
		if alt := jobDealID(*job, s.cfg.DealIDFieldLabel); alt != "" {
			dealIDs = append(dealIDs, alt)
		}
		for _, tag := range job.Tags {
			lower := strings.ToLower(strings.TrimSpace(tag))
			if id := strings.TrimPrefix(lower, "hubspot-"); id != lower && id != "" {
				dealIDs = append(dealIDs, id)
			}
		}
	}
	dealIDs = dedupStrings(dealIDs)

	crmCleared := false
	for _, dealID := range dealIDs {
		ok, clearWarnings := s.clearDealSchedule(ctx, dealID, cat)
		warnings = append(warnings, clearWarnings...)
		if ok {
			crmCleared = true
			break
		}
	}

	fullyCleared := fsmCleared && crmCleared
	action := transport.UnscheduleActionUnscheduled
	if !fullyCleared {
		action = transport.UnscheduleActionPartial
	}

	assigneeEmail := ""
	if record != nil {
		assigneeEmail = record.AssignedUserEmail
	}

	// The record flips to cancelled only once both systems are clean, so
	// a partial clear stays visible as an active record to retry against.
	if fullyCleared && record != nil {
		note := cancellationNote(actor.Email, req.Reason)
		if err := s.repo.Cancel(ctx, record.ID, note); err != nil {
			warnings = append(warnings, "schedule record update failed: "+err.Error())
		}
		if cat.NotifyOnCancel && !record.TestMode {
			recipient := firstNonEmptyStr(record.AssignedUserEmail, actor.Email)
			if recipient != "" {
				details := email.VisitDetails{
					CustomerName:  strings.TrimSpace(record.CustomerFirstName + " " + record.CustomerLastName),
					Category:      cat.DisplayName,
					VisitDate:     record.ScheduledDate,
					VisitWindow:   record.ScheduledStart + " - " + record.ScheduledEnd,
					Address:       record.Address,
					CustomerPhone: phone.FormatNational(record.CustomerPhone),
					AssigneeName:  record.AssignedUser,
					ScheduledBy:   record.CreatedBy,
					Notes:         record.Notes,
				}
				if err := s.sender.SendVisitCancelledEmail(ctx, recipient, details, req.Reason); err != nil {
					warnings = append(warnings, "cancellation notification failed")
					s.log.Warn("cancellation_notification_failed", "project_id", projectID, "error", err.Error())
				}
			}
		}
	}

	s.bus.Publish(ctx, events.VisitUnscheduled{
		BaseEvent:     events.NewBaseEvent(),
		DealID:        projectID,
		Category:      cat.DisplayName,
		JobUID:        jobUID,
		Reason:        req.Reason,
		CancelledBy:   actor.Email,
		Partial:       !fullyCleared,
		AssigneeEmail: assigneeEmail,
	})

	return &transport.UnscheduleVisitResponse{
		Success:      fullyCleared,
		Action:       action,
		ProjectID:    projectID,
		ScheduleType: scheduleType,
		ZuperJobUID:  jobUID,
		ZuperCleared: fsmCleared,
		CRMCleared:   crmCleared,
		Warnings:     warnings,
	}, nil
}

// resolveForUnschedule finds the job to clear without requiring the
// caller to know it: caller-supplied uid, then the active record, then
// the cache, then a tag-filtered search.
func (s *Service) resolveForUnschedule(ctx context.Context, req transport.UnscheduleVisitRequest, record *repository.ScheduleRecord, cat CategoryConfig, projectID string, warnings *[]string) (string, *zuper.Job) {
	if uid := strings.TrimSpace(req.ZuperJobUID); uid != "" {
		return uid, s.fetchJob(ctx, uid)
	}
	if record != nil && record.ZuperJobUID != "" {
		return record.ZuperJobUID, s.fetchJob(ctx, record.ZuperJobUID)
	}

	cached, err := s.repo.GetJobCache(ctx, projectID, cat.DisplayName)
	if err != nil {
		s.log.Warn("job_cache_read_failed", "project_id", projectID, "error", err.Error())
	}
	if cached != nil && cached.JobUID != "" {
		return cached.JobUID, s.fetchJob(ctx, cached.JobUID)
	}

	if s.fsm == nil {
		return "", nil
	}

	now := time.Now()
	jobs, err := s.fsm.SearchJobs(ctx, zuper.SearchQuery{
		FromDate: now.AddDate(0, 0, -searchLookbackDays).Format(timeconv.DateLayout),
		ToDate:   now.AddDate(0, 0, searchLookaheadDays).Format(timeconv.DateLayout),
	})
	if err != nil {
		*warnings = append(*warnings, "field-service search failed: "+err.Error())
		return "", nil
	}

	syntheticTag := "hubspot-" + projectID
	for _, candidate := range filterByCategory(jobs, cat) {
		if candidate.HasTag(syntheticTag) {
			job := candidate
			return job.JobUID, &job
		}
	}
	return "", nil
}

// clearDealSchedule resets one deal: status back to the category's
// ready value, then date and assignee properties cleared under the
// bounded retry loop.
func (s *Service) clearDealSchedule(ctx context.Context, dealID string, cat CategoryConfig) (bool, []string) {
	var warnings []string

	statusWritten := false
	var statusErr error
	for _, spelling := range statusSpellings(cat.ReadyStatusValue) {
		if err := s.crm.UpdateDealProperties(ctx, dealID, map[string]interface{}{cat.StatusProperty: spelling}); err != nil {
			statusErr = err
			continue
		}
		statusWritten = true
		break
	}
	if !statusWritten && statusErr != nil {
		warnings = append(warnings, fmt.Sprintf("crm status reset failed for deal %s: %s", dealID, statusErr.Error()))
	}

	clearProps := []string{cat.DateProperty}
	if cat.AssigneeProperty != "" {
		clearProps = append(clearProps, cat.AssigneeProperty)
	}
	if cat.HasBoundaryProperties() {
		clearProps = append(clearProps, cat.BoundaryStartProperty, cat.BoundaryEndProperty)
	}

	attempt := 0
	err := retry.Fixed(ctx, "crm clear", clearAttempts, clearDelay, func() error {
		attempt++
		// Odd attempts write empty strings, even attempts explicit
		// nulls; which clears a property depends on its type.
		var value interface{} = ""
		if attempt%2 == 0 {
			value = nil
		}
		patch := make(map[string]interface{}, len(clearProps))
		for _, p := range clearProps {
			patch[p] = value
		}
		if err := s.crm.UpdateDealProperties(ctx, dealID, patch); err != nil {
			return err
		}

		deal, err := s.crm.GetDeal(ctx, dealID, clearProps)
		if err != nil {
			return err
		}
		for _, p := range clearProps {
			if stored := deal.Property(p); stored != "" {
				return fmt.Errorf("%s still reads %q", p, stored)
			}
		}
		return nil
	})
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("crm date clear failed for deal %s: %s", dealID, err.Error()))
		return false, warnings
	}

	deal, err := s.crm.GetDeal(ctx, dealID, []string{cat.StatusProperty})
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("crm status verify failed for deal %s: %s", dealID, err.Error()))
		return false, warnings
	}
	if stored := deal.Property(cat.StatusProperty); !strings.EqualFold(stored, cat.ReadyStatusValue) {
		warnings = append(warnings, fmt.Sprintf("crm status for deal %s reads %q, expected %q", dealID, stored, cat.ReadyStatusValue))
		return false, warnings
	}

	return true, warnings
}

// statusSpellings returns the configured ready value plus its
// sentence-cased variant; portals disagree on which casing their
// pipeline options use.
func statusSpellings(value string) []string {
	spellings := []string{value}
	if alt := sentenceCase(value); alt != value {
		spellings = append(spellings, alt)
	}
	return spellings
}

func sentenceCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func cancellationNote(cancelledBy, reason string) string {
	note := "Cancelled"
	if cancelledBy != "" {
		note += " by " + cancelledBy
	}
	if r := strings.TrimSpace(reason); r != "" {
		note += ": " + r
	}
	return note
}
