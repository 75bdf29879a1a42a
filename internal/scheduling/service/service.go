// Package service implements schedule reconciliation between the CRM
// and the field-service system. The field service owns crew calendars;
// writes land there first and the CRM is reconciled afterwards, so CRM
// problems surface as warnings rather than failures.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fieldops_backend/internal/email"
	"fieldops_backend/internal/events"
	"fieldops_backend/internal/hubspot"
	"fieldops_backend/internal/scheduling/repository"
	"fieldops_backend/internal/scheduling/transport"
	"fieldops_backend/internal/timeconv"
	"fieldops_backend/internal/zuper"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/phone"
	"fieldops_backend/platform/sanitize"
)

// FieldService is the surface of the Zuper client the engine uses.
type FieldService interface {
	SearchJobs(ctx context.Context, q zuper.SearchQuery) ([]zuper.Job, error)
	GetJob(ctx context.Context, jobUID string) (*zuper.Job, error)
	CreateJob(ctx context.Context, in zuper.CreateJobInput) (string, error)
	UpdateSchedule(ctx context.Context, in zuper.ScheduleInput) error
	ClearSchedule(ctx context.Context, jobUID string) error
	AssignUser(ctx context.Context, in zuper.AssignInput) error
	SearchUsers(ctx context.Context, keyword string) ([]zuper.User, error)
}

// CRM is the surface of the HubSpot client the engine uses.
type CRM interface {
	GetDeal(ctx context.Context, dealID string, properties []string) (*hubspot.Deal, error)
	UpdateDealProperties(ctx context.Context, dealID string, properties map[string]interface{}) error
}

// Actor identifies the authenticated caller of a scheduling operation.
type Actor struct {
	Email string
	Name  string
	Roles []string
}

// Service orchestrates scheduling operations across the field service,
// the CRM, and the local schedule history. Either integration may be
// nil when not configured; operations that need it return 503.
type Service struct {
	cfg    *Config
	repo   repository.Store
	fsm    FieldService
	crm    CRM
	sender email.Sender
	bus    events.Bus
	log    *logger.Logger
}

// New creates the scheduling service.
func New(cfg *Config, repo repository.Store, fsm FieldService, crm CRM, sender email.Sender, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		repo:   repo,
		fsm:    fsm,
		crm:    crm,
		sender: sender,
		bus:    bus,
		log:    log,
	}
}

// ScheduleVisit books or moves a field visit. The field-service write is
// the one fatal step after validation; everything downstream (history,
// CRM reflection, notification) degrades to warnings.
func (s *Service) ScheduleVisit(ctx context.Context, actor Actor, req transport.ScheduleVisitRequest) (*transport.ScheduleVisitResponse, error) {
	cat, ok := s.cfg.Category(req.ScheduleType)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown schedule type %q", req.ScheduleType))
	}
	scheduleType := normalizeType(req.ScheduleType)

	if !cat.RoleAllowed(actor.Roles) && !s.cfg.IsManager(actor.Roles) {
		return nil, apperr.Forbidden(fmt.Sprintf("your role may not schedule %s visits", strings.ToLower(cat.DisplayName)))
	}
	if req.TestMode && !s.cfg.TestModeAllowed(actor.Roles) {
		return nil, apperr.Forbidden("test mode is restricted to elevated roles")
	}

	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" || strings.ContainsAny(projectID, "/ \t") {
		return nil, apperr.Validation("invalid project id")
	}
	req.Notes = sanitize.Text(req.Notes)

	zone := strings.TrimSpace(req.Timezone)
	if zone == "" {
		zone = s.cfg.DefaultTimezone
	}

	day, err := timeconv.ParseDate(req.VisitDate)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if timeconv.IsWeekend(day) {
		return nil, apperr.Validation("visits cannot start on a weekend")
	}
	if cat.RequireClocks && (strings.TrimSpace(req.StartTime) == "" || strings.TrimSpace(req.EndTime) == "") {
		return nil, apperr.Validation(fmt.Sprintf("startTime and endTime are required for %s visits", strings.ToLower(cat.DisplayName)))
	}

	window, err := timeconv.BuildWindow(cat.WindowSpec(), req.VisitDate, req.StartTime, req.EndTime, req.InstallDays, zone)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	if s.fsm == nil || s.crm == nil {
		return nil, apperr.Unavailable("scheduling integrations are not configured")
	}

	// Ownership is advisory: read-then-act, not a lock. Two
	// near-simultaneous requests can both pass; the later field-service
	// write wins.
	prior, err := s.repo.LatestActive(ctx, projectID, scheduleType)
	if err != nil {
		return nil, err
	}
	if prior != nil && prior.CreatedBy != "" &&
		!strings.EqualFold(prior.CreatedBy, actor.Email) && !s.cfg.IsManager(actor.Roles) {
		return nil, apperr.Forbidden(fmt.Sprintf("already scheduled by %s", prior.CreatedBy))
	}

	deal, err := s.crm.GetDeal(ctx, projectID, []string{"dealname"})
	if err != nil {
		return nil, err
	}
	ident := parseDealIdentity(deal)

	var warnings []string

	resolved := s.resolveJob(ctx, projectID, cat, ident, req.ZuperJobUID, &warnings)

	var action transport.ScheduleAction
	jobUID := ""
	jobTitle := ""
	switch {
	case resolved != nil:
		in := zuper.ScheduleInput{
			JobUID:         resolved.UID,
			ScheduledStart: window.StartWire(),
			ScheduledEnd:   window.EndWire(),
		}
		if err := s.fsm.UpdateSchedule(ctx, in); err != nil {
			if resolved.MatchedBy == matchedByCache && apperr.Is(err, apperr.KindNotFound) {
				// Stale correlation; drop it so the next attempt searches again.
				if cerr := s.repo.DeleteJobCache(ctx, projectID, cat.DisplayName); cerr != nil {
					s.log.Warn("job_cache_delete_failed", "project_id", projectID, "error", cerr.Error())
				}
			}
			return nil, err
		}
		action = transport.ScheduleActionRescheduled
		jobUID = resolved.UID
		jobTitle = resolved.Title

	case req.CreateIfMissing:
		if cat.ZuperCategoryUID == "" {
			return nil, apperr.Unavailable(fmt.Sprintf("field-service category is not configured for %s", strings.ToLower(cat.DisplayName)))
		}
		in := s.buildCreateJob(cat, req, projectID, ident, window)
		uid, err := s.fsm.CreateJob(ctx, in)
		if err != nil {
			return nil, err
		}
		action = transport.ScheduleActionCreated
		jobUID = uid
		jobTitle = in.Title

	default:
		// Creating a duplicate job is a worse failure than a missed
		// schedule, so creation needs the explicit opt-in flag.
		warnings = append(warnings, "no matching field-service job found; calendar untouched")
		return &transport.ScheduleVisitResponse{
			Success:      true,
			Action:       transport.ScheduleActionNoJobFound,
			ProjectID:    projectID,
			ScheduleType: scheduleType,
			VisitDate:    window.StartLocalDate,
			StartTime:    window.StartLocalClock,
			EndTime:      window.EndLocalClock,
			Timezone:     zone,
			StartUTC:     window.Start,
			EndUTC:       window.End,
			Warnings:     warnings,
			TestMode:     req.TestMode,
		}, nil
	}

	matchedBy := matchedByCaller
	if resolved != nil {
		matchedBy = resolved.MatchedBy
	}
	if action == transport.ScheduleActionCreated {
		matchedBy = "created"
	}
	if err := s.repo.UpsertJobCache(ctx, &repository.JobCacheEntry{
		ProjectID:      projectID,
		CategoryName:   cat.DisplayName,
		JobUID:         jobUID,
		JobTitle:       jobTitle,
		ScheduledStart: window.StartWire(),
		ScheduledEnd:   window.EndWire(),
		MatchedBy:      matchedBy,
	}); err != nil {
		s.log.Warn("job_cache_update_failed", "project_id", projectID, "error", err.Error())
	}

	assignee, assigneeWarning := s.resolveAssignee(ctx, req)
	if assigneeWarning != "" {
		warnings = append(warnings, assigneeWarning)
	}
	assignmentFailed := false
	if assignee != nil {
		in := zuper.AssignInput{JobUID: jobUID, UserUID: assignee.UserUID, TeamUID: assignee.TeamUID}
		if err := s.fsm.AssignUser(ctx, in); err != nil {
			// The window is already booked; a failed assignment flags
			// the response instead of failing it.
			assignmentFailed = true
			warnings = append(warnings, "crew assignment failed: "+err.Error())
		}
	}

	assigneeName, assigneeEmail := "", ""
	if assignee != nil {
		assigneeName, assigneeEmail = assignee.Name, assignee.Email
	}

	first := firstNonEmptyStr(req.CustomerFirstName, ident.FirstName)
	last := firstNonEmptyStr(req.CustomerLastName, ident.LastName)
	customerName := strings.TrimSpace(first + " " + last)
	address := firstNonEmptyStr(req.Address, ident.Address)
	projectNumber := firstNonEmptyStr(req.ProjectNumber, ident.Number)
	customerPhone := phone.NormalizeE164(req.CustomerPhone)

	rec := &repository.ScheduleRecord{
		ProjectID:         projectID,
		ScheduleType:      scheduleType,
		Action:            string(action),
		ScheduledDate:     window.StartLocalDate,
		ScheduledStart:    window.StartLocalClock,
		ScheduledEnd:      window.EndLocalClock,
		Timezone:          zone,
		StartUTC:          window.Start,
		EndUTC:            window.End,
		ZuperJobUID:       jobUID,
		AssignedUser:      assigneeName,
		AssignedUserEmail: assigneeEmail,
		CustomerFirstName: first,
		CustomerLastName:  last,
		CustomerPhone:     customerPhone,
		Address:           address,
		ProjectNumber:     projectNumber,
		Notes:             req.Notes,
		TestMode:          req.TestMode,
		CreatedBy:         actor.Email,
	}
	if err := s.repo.SupersedeActive(ctx, projectID, scheduleType); err != nil {
		warnings = append(warnings, "schedule history update failed: "+err.Error())
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		warnings = append(warnings, "schedule record save failed: "+err.Error())
	}

	crmUpdated, crmWarnings := s.reflectSchedule(ctx, projectID, cat, window, assigneeName)
	warnings = append(warnings, crmWarnings...)
	for _, w := range crmWarnings {
		s.log.ReconcileWarning(projectID, cat.DisplayName, w)
	}

	if !req.TestMode && assigneeEmail != "" {
		details := email.VisitDetails{
			CustomerName:  customerName,
			Category:      cat.DisplayName,
			VisitDate:     visitDateLabel(window),
			VisitWindow:   window.StartLocalClock + " - " + window.EndLocalClock,
			Address:       address,
			CustomerPhone: phone.FormatNational(customerPhone),
			AssigneeName:  assigneeName,
			ScheduledBy:   firstNonEmptyStr(actor.Name, actor.Email),
			Notes:         req.Notes,
		}
		if err := s.sender.SendVisitScheduledEmail(ctx, assigneeEmail, details); err != nil {
			warnings = append(warnings, "crew notification failed")
			s.log.Warn("crew_notification_failed", "project_id", projectID, "error", err.Error())
		}
	}

	s.bus.Publish(ctx, events.VisitScheduled{
		BaseEvent:     events.NewBaseEvent(),
		RecordID:      rec.ID,
		DealID:        projectID,
		Category:      cat.DisplayName,
		Action:        string(action),
		JobUID:        jobUID,
		CustomerName:  customerName,
		Address:       address,
		StartUTC:      window.Start.Format(time.RFC3339),
		EndUTC:        window.End.Format(time.RFC3339),
		AssigneeName:  assigneeName,
		AssigneeEmail: assigneeEmail,
		ScheduledBy:   actor.Email,
		TestMode:      req.TestMode,
	})

	return &transport.ScheduleVisitResponse{
		Success:           true,
		Action:            action,
		RecordID:          rec.ID,
		ProjectID:         projectID,
		ScheduleType:      scheduleType,
		ZuperJobUID:       jobUID,
		VisitDate:         window.StartLocalDate,
		StartTime:         window.StartLocalClock,
		EndTime:           window.EndLocalClock,
		Timezone:          zone,
		StartUTC:          window.Start,
		EndUTC:            window.End,
		AssignedUser:      assigneeName,
		AssignedUserEmail: assigneeEmail,
		AssignmentFailed:  assignmentFailed,
		CRMUpdated:        crmUpdated,
		Warnings:          warnings,
		TestMode:          req.TestMode,
	}, nil
}

// LookupJob resolves a project's field-service job without scheduling
// anything. Used by the portal to pre-fill the scheduling form.
func (s *Service) LookupJob(ctx context.Context, req transport.LookupJobRequest) (*transport.LookupJobResponse, error) {
	targets, err := s.lookupTargets(req.ScheduleType)
	if err != nil {
		return nil, err
	}
	if s.fsm == nil || s.crm == nil {
		return nil, apperr.Unavailable("scheduling integrations are not configured")
	}

	projectID := strings.TrimSpace(req.ProjectID)
	deal, err := s.crm.GetDeal(ctx, projectID, []string{"dealname"})
	if err != nil {
		return nil, err
	}
	ident := parseDealIdentity(deal)

	var warnings []string
	resp := &transport.LookupJobResponse{}
	for _, t := range targets {
		resolved := s.resolveJob(ctx, projectID, t.cat, ident, "", &warnings)
		if resolved == nil {
			continue
		}
		match := transport.JobMatch{
			ScheduleType: t.key,
			JobUID:       resolved.UID,
			MatchedBy:    resolved.MatchedBy,
			Title:        resolved.Title,
		}
		job := resolved.Job
		if job == nil {
			job = s.fetchJob(ctx, resolved.UID)
		}
		if job != nil {
			match.Title = job.Title
			match.JobStatus = job.Status
			match.ScheduledStart = job.ScheduledStartTime
			match.ScheduledEnd = job.ScheduledEndTime
			for _, u := range job.AssignedUsers {
				match.AssignedUsers = append(match.AssignedUsers, u.DisplayName())
			}
		}
		resp.Matches = append(resp.Matches, match)
	}
	resp.Found = len(resp.Matches) > 0
	return resp, nil
}

type lookupTarget struct {
	key string
	cat CategoryConfig
}

// lookupTargets expands an optional schedule type into the categories a
// lookup should check, in stable order.
func (s *Service) lookupTargets(scheduleType string) ([]lookupTarget, error) {
	if key := strings.ToLower(strings.TrimSpace(scheduleType)); key != "" {
		cat, ok := s.cfg.Category(key)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("unknown schedule type %q", scheduleType))
		}
		return []lookupTarget{{key: key, cat: cat}}, nil
	}

	keys := make([]string, 0, len(s.cfg.Categories))
	for key := range s.cfg.Categories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	targets := make([]lookupTarget, 0, len(keys))
	for _, key := range keys {
		targets = append(targets, lookupTarget{key: key, cat: s.cfg.Categories[key]})
	}
	return targets, nil
}

// ListRecords returns a project's schedule history, newest first.
func (s *Service) ListRecords(ctx context.Context, req transport.ListRecordsRequest) (*transport.ListRecordsResponse, error) {
	scheduleType := ""
	if strings.TrimSpace(req.ScheduleType) != "" {
		if _, ok := s.cfg.Category(req.ScheduleType); !ok {
			return nil, apperr.Validation(fmt.Sprintf("unknown schedule type %q", req.ScheduleType))
		}
		scheduleType = normalizeType(req.ScheduleType)
	}

	records, err := s.repo.ListByProject(ctx, strings.TrimSpace(req.ProjectID), scheduleType)
	if err != nil {
		return nil, err
	}

	items := make([]transport.ScheduleRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, recordResponse(rec))
	}
	return &transport.ListRecordsResponse{Items: items, Total: len(items)}, nil
}

// assigneeRef is a resolved field-service assignee.
type assigneeRef struct {
	UserUID string
	TeamUID string
	Name    string
	Email   string
}

// resolveAssignee turns the request's assignee hints into a directory
// user. An id is trusted as-is; an email or name is looked up. An
// unresolvable assignee degrades to none with a warning.
func (s *Service) resolveAssignee(ctx context.Context, req transport.ScheduleVisitRequest) (*assigneeRef, string) {
	if uid := strings.TrimSpace(req.AssigneeID); uid != "" {
		return &assigneeRef{
			UserUID: uid,
			TeamUID: strings.TrimSpace(req.TeamUID),
			Name:    strings.TrimSpace(req.AssigneeName),
			Email:   strings.TrimSpace(req.AssigneeEmail),
		}, ""
	}

	keyword := firstNonEmptyStr(req.AssigneeEmail, req.AssigneeName)
	if keyword == "" {
		return nil, ""
	}

	users, err := s.fsm.SearchUsers(ctx, keyword)
	if err != nil {
		return nil, "assignee lookup failed: " + err.Error()
	}

	for _, u := range users {
		if req.AssigneeEmail != "" && strings.EqualFold(u.Email, req.AssigneeEmail) {
			return userRef(u, req.TeamUID), ""
		}
		if req.AssigneeEmail == "" && strings.EqualFold(u.DisplayName(), req.AssigneeName) {
			return userRef(u, req.TeamUID), ""
		}
	}
	return nil, fmt.Sprintf("assignee %q not found in the field-service directory", keyword)
}

func userRef(u zuper.User, teamOverride string) *assigneeRef {
	team := strings.TrimSpace(teamOverride)
	if team == "" {
		team = u.TeamUID
	}
	return &assigneeRef{UserUID: u.UserUID, TeamUID: team, Name: u.DisplayName(), Email: u.Email}
}

// buildCreateJob composes the create payload. The title leads with the
// customer name so it stays findable by the search heuristics other
// tools use.
func (s *Service) buildCreateJob(cat CategoryConfig, req transport.ScheduleVisitRequest, projectID string, ident dealIdentity, w timeconv.Window) zuper.CreateJobInput {
	first := firstNonEmptyStr(req.CustomerFirstName, ident.FirstName)
	last := firstNonEmptyStr(req.CustomerLastName, ident.LastName)

	name := last
	if first != "" && last != "" {
		name = last + ", " + first
	} else if last == "" {
		name = first
	}
	if name == "" {
		name = ident.DisplayName
	}
	title := strings.TrimSpace(name + " - " + cat.DisplayName)

	tags := []string{"hubspot-" + projectID}
	if number := firstNonEmptyStr(req.ProjectNumber, ident.Number); number != "" {
		tags = append(tags, number)
	}

	return zuper.CreateJobInput{
		Title:             title,
		CategoryUID:       cat.ZuperCategoryUID,
		ScheduledStart:    w.StartWire(),
		ScheduledEnd:      w.EndWire(),
		CustomerFirstName: first,
		CustomerLastName:  last,
		Tags:              tags,
		CustomFields:      []zuper.CustomField{{Label: s.cfg.DealIDFieldLabel, Value: projectID}},
	}
}

// fetchJob is a best-effort job read used to enrich responses and
// recover alternate deal ids. Failures are logged, never propagated.
func (s *Service) fetchJob(ctx context.Context, jobUID string) *zuper.Job {
	if s.fsm == nil || jobUID == "" {
		return nil
	}
	job, err := s.fsm.GetJob(ctx, jobUID)
	if err != nil {
		s.log.Warn("job_fetch_failed", "job_uid", jobUID, "error", err.Error())
		return nil
	}
	return job
}

func recordResponse(rec repository.ScheduleRecord) transport.ScheduleRecordResponse {
	return transport.ScheduleRecordResponse{
		ID:                rec.ID,
		ProjectID:         rec.ProjectID,
		ScheduleType:      rec.ScheduleType,
		Action:            rec.Action,
		Status:            rec.Status,
		ScheduledDate:     rec.ScheduledDate,
		ScheduledStart:    rec.ScheduledStart,
		ScheduledEnd:      rec.ScheduledEnd,
		Timezone:          rec.Timezone,
		StartUTC:          rec.StartUTC,
		EndUTC:            rec.EndUTC,
		ZuperJobUID:       rec.ZuperJobUID,
		AssignedUser:      rec.AssignedUser,
		AssignedUserEmail: rec.AssignedUserEmail,
		CustomerName:      strings.TrimSpace(rec.CustomerFirstName + " " + rec.CustomerLastName),
		Address:           rec.Address,
		ProjectNumber:     rec.ProjectNumber,
		Notes:             rec.Notes,
		TestMode:          rec.TestMode,
		CreatedBy:         rec.CreatedBy,
		CreatedAt:         rec.CreatedAt,
	}
}

func visitDateLabel(w timeconv.Window) string {
	if w.EndLocalDate != "" && w.EndLocalDate != w.StartLocalDate {
		return w.StartLocalDate + " to " + w.EndLocalDate
	}
	return w.StartLocalDate
}

func normalizeType(scheduleType string) string {
	return strings.ToLower(strings.TrimSpace(scheduleType))
}

func firstNonEmptyStr(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
