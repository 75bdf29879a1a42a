package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fieldops_backend/internal/timeconv"
)

// reflectSchedule mirrors a booked window onto the deal's CRM
// properties: the category's date property, the install boundary
// properties when configured, and the assignee name. Every failure is
// a warning; the field-service booking already stands.
func (s *Service) reflectSchedule(ctx context.Context, dealID string, cat CategoryConfig, w timeconv.Window, assigneeName string) (bool, []string) {
	var warnings []string

	dateOK, dateWarnings := s.writeDateProperty(ctx, dealID, cat.DateProperty, w.StartWire(), w.StartLocalDate, cat.AllowDateOnlyFallback)
	warnings = append(warnings, dateWarnings...)

	if cat.HasBoundaryProperties() {
		_, startWarnings := s.writeDateProperty(ctx, dealID, cat.BoundaryStartProperty, w.StartWire(), w.StartLocalDate, cat.AllowDateOnlyFallback)
		warnings = append(warnings, startWarnings...)
		_, endWarnings := s.writeDateProperty(ctx, dealID, cat.BoundaryEndProperty, w.EndWire(), w.EndLocalDate, cat.AllowDateOnlyFallback)
		warnings = append(warnings, endWarnings...)
	}

	if assigneeName != "" && cat.AssigneeProperty != "" {
		patch := map[string]interface{}{cat.AssigneeProperty: assigneeName}
		if err := s.crm.UpdateDealProperties(ctx, dealID, patch); err != nil {
			warnings = append(warnings, fmt.Sprintf("crm write failed for %s: %s", cat.AssigneeProperty, err.Error()))
		}
	}

	return dateOK, warnings
}

// writeDateProperty writes one scheduled-date property, trying an
// ordered list of representations of the same instant until the CRM
// accepts one, then verifies the readback. Which representation a
// property accepts depends on its type in the portal, which is not
// knowable in advance.
func (s *Service) writeDateProperty(ctx context.Context, dealID, property, wireUTC, localDate string, allowDateOnly bool) (bool, []string) {
	if property == "" {
		return false, nil
	}

	candidates := dateCandidates(wireUTC, localDate, allowDateOnly)

	var lastErr error
	accepted := ""
	for _, cand := range candidates {
		if err := s.crm.UpdateDealProperties(ctx, dealID, map[string]interface{}{property: cand}); err != nil {
			lastErr = err
			continue
		}
		accepted = cand
		break
	}
	if accepted == "" {
		msg := fmt.Sprintf("crm write failed for %s", property)
		if lastErr != nil {
			msg += ": " + lastErr.Error()
		}
		return false, []string{msg}
	}

	deal, err := s.crm.GetDeal(ctx, dealID, []string{property})
	if err != nil {
		return false, []string{fmt.Sprintf("crm verify read failed for %s: %s", property, err.Error())}
	}
	stored := deal.Property(property)
	if !matchesAnyCandidate(stored, candidates) {
		return false, []string{fmt.Sprintf("crm stored %s as %q, which matches no written value", property, stored)}
	}
	return true, nil
}

// dateCandidates builds the ordered representations of one instant:
// epoch milliseconds, the literal wire string, and, when the date-only
// fallback is allowed, the UTC calendar date, its midnight epoch, and
// the same two derived from the local calendar date. Duplicates are
// dropped, first occurrence wins.
func dateCandidates(wireUTC, localDate string, allowDateOnly bool) []string {
	var out []string

	inst, parsed := timeconv.ParseInstant(wireUTC)
	if parsed {
		out = append(out, strconv.FormatInt(inst.EpochMillis(), 10))
	}
	out = append(out, wireUTC)

	if allowDateOnly {
		if parsed {
			utcDate := inst.Time.UTC().Format(timeconv.DateLayout)
			out = append(out, utcDate, midnightMillis(inst.Time.UTC()))
		}
		if localDate != "" {
			out = append(out, localDate)
			if local, ok := timeconv.ParseInstant(localDate); ok {
				out = append(out, midnightMillis(local.Time.UTC()))
			}
		}
	}

	return dedupStrings(out)
}

func midnightMillis(t time.Time) string {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return strconv.FormatInt(midnight.UnixMilli(), 10)
}

// matchesAnyCandidate checks the stored value against every candidate
// under three equivalence tests: exact string, same epoch millisecond,
// and same UTC calendar day. The CRM may normalize a written value into
// any of these shapes.
func matchesAnyCandidate(stored string, candidates []string) bool {
	storedInst, storedParsed := timeconv.ParseInstant(stored)
	for _, cand := range candidates {
		if stored == cand {
			return true
		}
		if !storedParsed {
			continue
		}
		candInst, ok := timeconv.ParseInstant(cand)
		if !ok {
			continue
		}
		if storedInst.Equal(candInst) || storedInst.SameDay(candInst) {
			return true
		}
	}
	return false
}

func dedupStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
