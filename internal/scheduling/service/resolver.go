package service

import (
	"context"
	"strings"
	"time"

	"fieldops_backend/internal/hubspot"
	"fieldops_backend/internal/scheduling/repository"
	"fieldops_backend/internal/timeconv"
	"fieldops_backend/internal/zuper"

	"golang.org/x/sync/errgroup"
)

// How a job correlation was established, recorded in the cache and the
// lookup response.
const (
	matchedByCaller      = "caller"
	matchedByCache       = "cache"
	matchedByCustomField = "custom_field"
	matchedByTag         = "tag"
	matchedByNumberTag   = "number_tag"
	matchedByTitleNumber = "title_number"
	matchedByTitleName   = "title_name"
)

// Search window bounds relative to now. Jobs live well before and after
// their visit, so the broad search looks back half a year and ahead one
// quarter.
const (
	searchLookbackDays  = 180
	searchLookaheadDays = 90
)

// resolvedJob is the resolver's answer. Job is populated only for
// search hits; caller and cache hits carry just the uid.
type resolvedJob struct {
	UID       string
	Title     string
	MatchedBy string
	Job       *zuper.Job
}

// dealIdentity is what the CRM deal's display name tells us about the
// project. Display names follow "<number> | <Last, First> | <address>".
type dealIdentity struct {
	DisplayName string
	Number      string
	NameSegment string
	LastName    string
	FirstName   string
	Address     string
}

func parseDealIdentity(deal *hubspot.Deal) dealIdentity {
	display := deal.Property("dealname")
	ident := dealIdentity{DisplayName: display}

	parts := strings.Split(display, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) > 0 {
		ident.Number = parts[0]
	}
	if len(parts) > 1 {
		ident.NameSegment = parts[1]
		if comma := strings.Index(ident.NameSegment, ","); comma >= 0 {
			ident.LastName = strings.TrimSpace(ident.NameSegment[:comma])
			ident.FirstName = strings.TrimSpace(ident.NameSegment[comma+1:])
		} else {
			ident.LastName = ident.NameSegment
		}
	}
	if len(parts) > 2 {
		ident.Address = strings.Join(parts[2:], " | ")
	}
	return ident
}

// resolveJob finds the field-service job for a project and category,
// trying in strict priority order and stopping at the first hit:
// caller-asserted uid, the local cache, then a merged search. Search
// failures degrade to warnings; a failed search side contributes no
// candidates.
func (s *Service) resolveJob(ctx context.Context, projectID string, cat CategoryConfig, ident dealIdentity, callerUID string, warnings *[]string) *resolvedJob {
	if uid := strings.TrimSpace(callerUID); uid != "" {
		return &resolvedJob{UID: uid, MatchedBy: matchedByCaller}
	}

	cached, err := s.repo.GetJobCache(ctx, projectID, cat.DisplayName)
	if err != nil {
		s.log.Warn("job_cache_read_failed", "project_id", projectID, "error", err.Error())
	}
	if cached != nil && cached.JobUID != "" {
		return &resolvedJob{UID: cached.JobUID, Title: cached.JobTitle, MatchedBy: matchedByCache}
	}

	candidates := filterByCategory(s.searchCandidates(ctx, ident, warnings), cat)
	match, how := pickJob(candidates, projectID, ident, s.cfg.DealIDFieldLabel)
	if match == nil {
		return nil
	}

	if err := s.repo.UpsertJobCache(ctx, &repository.JobCacheEntry{
		ProjectID:      projectID,
		CategoryName:   cat.DisplayName,
		JobUID:         match.JobUID,
		JobTitle:       match.Title,
		ScheduledStart: match.ScheduledStartTime,
		ScheduledEnd:   match.ScheduledEndTime,
		MatchedBy:      how,
	}); err != nil {
		s.log.Warn("job_cache_update_failed", "project_id", projectID, "error", err.Error())
	}

	return &resolvedJob{UID: match.JobUID, Title: match.Title, MatchedBy: how, Job: match}
}

// searchCandidates issues the fuzzy name search and the broad window
// search concurrently and merges the results. Both searches run to
// completion before merging; neither cancels the other.
func (s *Service) searchCandidates(ctx context.Context, ident dealIdentity, warnings *[]string) []zuper.Job {
	now := time.Now()
	from := now.AddDate(0, 0, -searchLookbackDays).Format(timeconv.DateLayout)
	to := now.AddDate(0, 0, searchLookaheadDays).Format(timeconv.DateLayout)

	var fuzzy, broad []zuper.Job
	var fuzzyErr, broadErr error

	var g errgroup.Group
	if ident.NameSegment != "" {
		g.Go(func() error {
			fuzzy, fuzzyErr = s.fsm.SearchJobs(ctx, zuper.SearchQuery{
				Keyword:  ident.NameSegment,
				FromDate: from,
				ToDate:   to,
			})
			return nil
		})
	}
	g.Go(func() error {
		broad, broadErr = s.fsm.SearchJobs(ctx, zuper.SearchQuery{FromDate: from, ToDate: to})
		return nil
	})
	// Goroutines report through the captured error vars, so Wait never
	// fails and never cancels the sibling search.
	_ = g.Wait()

	if fuzzyErr != nil {
		*warnings = append(*warnings, "field-service name search failed: "+fuzzyErr.Error())
	}
	if broadErr != nil {
		*warnings = append(*warnings, "field-service search failed: "+broadErr.Error())
	}

	return mergeJobs(fuzzy, broad)
}

// mergeJobs concatenates and deduplicates by job uid, keeping the first
// occurrence so fuzzy-search hits stay ahead of broad-search hits.
func mergeJobs(lists ...[]zuper.Job) []zuper.Job {
	seen := make(map[string]bool)
	var merged []zuper.Job
	for _, list := range lists {
		for _, job := range list {
			if job.JobUID == "" || seen[job.JobUID] {
				continue
			}
			seen[job.JobUID] = true
			merged = append(merged, job)
		}
	}
	return merged
}

// filterByCategory keeps jobs in the target category, matched by name
// case-insensitively or by uid, since the API returns either shape.
func filterByCategory(jobs []zuper.Job, cat CategoryConfig) []zuper.Job {
	var out []zuper.Job
	for _, job := range jobs {
		if strings.EqualFold(job.Category.Name, cat.DisplayName) {
			out = append(out, job)
			continue
		}
		if cat.ZuperCategoryUID != "" && job.Category.UID == cat.ZuperCategoryUID {
			out = append(out, job)
		}
	}
	return out
}

// pickJob applies the correlation ladder to the filtered candidates,
// stopping at the first match: deal-id custom field, synthetic
// hubspot-<id> tag, project-number tag, project number in the title,
// then the last-name title heuristic.
func pickJob(candidates []zuper.Job, projectID string, ident dealIdentity, dealIDLabel string) (*zuper.Job, string) {
	for i := range candidates {
		if jobDealID(candidates[i], dealIDLabel) == projectID {
			return &candidates[i], matchedByCustomField
		}
	}

	syntheticTag := "hubspot-" + projectID
	for i := range candidates {
		if candidates[i].HasTag(syntheticTag) {
			return &candidates[i], matchedByTag
		}
	}

	if ident.Number != "" {
		for i := range candidates {
			if candidates[i].HasTag(ident.Number) {
				return &candidates[i], matchedByNumberTag
			}
		}
		number := strings.ToLower(ident.Number)
		for i := range candidates {
			if strings.Contains(strings.ToLower(candidates[i].Title), number) {
				return &candidates[i], matchedByTitleNumber
			}
		}
	}

	// Short last names match too many titles to be trusted.
	last := strings.ToLower(strings.TrimSpace(ident.LastName))
	if len(last) > 2 {
		for i := range candidates {
			title := strings.ToLower(candidates[i].Title)
			if strings.HasPrefix(title, last) || strings.Contains(title, last+",") {
				return &candidates[i], matchedByTitleName
			}
		}
	}

	return nil, ""
}

// jobDealID extracts the CRM deal id stored on a job, locating the
// custom field by a label that contains the configured label text under
// any casing.
func jobDealID(job zuper.Job, dealIDLabel string) string {
	want := strings.ToLower(strings.TrimSpace(dealIDLabel))
	if want == "" {
		return ""
	}
	for _, f := range job.CustomFields {
		if strings.Contains(strings.ToLower(f.Label), want) {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}
