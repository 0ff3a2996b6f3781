package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ignite/crm-tag-sync/internal/domain"
)

// Input is what a single category evaluator sees: one enrollment, its
// subject, and the normalized product family.
type Input struct {
	Subject    domain.Subject
	Enrollment domain.Enrollment
	Family     string
}

// evaluator is a pure function emitting zero or more label descriptions
// plus a human-readable reason for the audit trail.
type evaluator func(in Input, cfg Config) (labels []string, reason string)

type category struct {
	name string
	eval evaluator
}

// categories is the fixed priority order. Account-status signals come
// first; module-stuck is the most specific and runs last.
var categories = []category{
	{"account_status", evalAccountStatus},
	{"completion", evalCompletion},
	{"inactivity", evalInactivity},
	{"progress", evalProgress},
	{"engagement", evalEngagement},
	{"positive_signal", evalPositiveSignal},
	{"module_stuck", evalModuleStuck},
}

// recencyDays returns the platform-appropriate inactivity metric:
// login-based for primary-login families, last-action-based otherwise.
func recencyDays(in Input, cfg Config) int {
	if cfg.Groups.IsPrimaryLogin(in.Family) {
		return in.Enrollment.Engagement.DaysSinceLogin
	}
	return in.Enrollment.Engagement.DaysSinceAction
}

// evalAccountStatus emits one label per matching condition. The
// conditions are not mutually exclusive.
func evalAccountStatus(in Input, cfg Config) ([]string, string) {
	var labels []string
	var reasons []string

	if in.Enrollment.Status == domain.EnrollmentCancelled {
		labels = append(labels, "Cancelled")
		reasons = append(reasons, "status is cancelled")
	}
	if in.Enrollment.Refunded {
		labels = append(labels, "Refunded")
		reasons = append(reasons, "refund flag set")
	}
	if in.Subject.ManuallyInactivated && cfg.Groups.IsPrimaryLogin(in.Family) {
		labels = append(labels, "Manually Inactivated")
		reasons = append(reasons, "subject manually inactivated")
	}
	if in.Enrollment.Status == domain.EnrollmentSuspended {
		labels = append(labels, "Suspended")
		reasons = append(reasons, "status is suspended")
	}
	if in.Enrollment.MembershipStatus == domain.MembershipInactive && cfg.Groups.HasSecondaryMembership(in.Family) {
		labels = append(labels, "Membership Inactive")
		reasons = append(reasons, "secondary membership inactive")
	}
	if in.Enrollment.ReactivatedAt != nil && cfg.now().Sub(*in.Enrollment.ReactivatedAt) <= 7*24*time.Hour {
		labels = append(labels, "Reactivated")
		reasons = append(reasons, "reactivated within the last 7 days")
	}
	return labels, strings.Join(reasons, "; ")
}

// evalCompletion emits independent, non-exclusive completion signals.
func evalCompletion(in Input, cfg Config) ([]string, string) {
	var labels []string
	var reasons []string
	if in.Enrollment.CompletionPct == 100 {
		labels = append(labels, "Course Completed")
		reasons = append(reasons, "completion at 100%")
	}
	if in.Enrollment.Engagement.ActiveWeeks30d >= 4 {
		labels = append(labels, "Consistent Student")
		reasons = append(reasons, fmt.Sprintf("%d active weeks in trailing 30d", in.Enrollment.Engagement.ActiveWeeks30d))
	}
	return labels, strings.Join(reasons, "; ")
}

// evalInactivity emits at most one label from the ladder; the most
// severe match wins.
func evalInactivity(in Input, cfg Config) ([]string, string) {
	d := recencyDays(in, cfg)
	switch {
	case d >= 30:
		return []string{"Inactive 30d"}, fmt.Sprintf("%d days inactive", d)
	case d >= 21:
		return []string{"Inactive 21d"}, fmt.Sprintf("%d days inactive", d)
	case d >= 14:
		return []string{"Inactive 14d"}, fmt.Sprintf("%d days inactive", d)
	case d >= 7:
		return []string{"Inactive 7d"}, fmt.Sprintf("%d days inactive", d)
	}
	return nil, ""
}

// evalProgress emits exactly one band over completion percentage. The
// 100% case belongs to the completion evaluator, not here.
func evalProgress(in Input, cfg Config) ([]string, string) {
	pct := in.Enrollment.CompletionPct
	reason := fmt.Sprintf("completion at %.1f%%", pct)
	switch {
	case pct >= 100:
		return nil, ""
	case pct <= 0:
		return []string{"Not Started"}, reason
	case pct <= 20:
		return []string{"Abandoned Start"}, reason
	case pct <= 50:
		return []string{"Low Progress"}, reason
	case pct <= 90:
		return []string{"High Progress"}, reason
	default:
		return []string{"Almost Complete"}, reason
	}
}

// evalEngagement maps the engagement score to exactly one level band.
func evalEngagement(in Input, cfg Config) ([]string, string) {
	score := Score(recencyDays(in, cfg), in.Enrollment.Engagement.Logins30d, in.Enrollment.CompletionPct)
	return []string{"Engagement " + LevelFor(score)}, fmt.Sprintf("score %d", score)
}

// evalPositiveSignal emits independent positive markers.
func evalPositiveSignal(in Input, cfg Config) ([]string, string) {
	var labels []string
	var reasons []string
	d := recencyDays(in, cfg)
	if d <= 3 {
		labels = append(labels, "Active")
		reasons = append(reasons, fmt.Sprintf("active within %d days", d))
	}
	score := Score(d, in.Enrollment.Engagement.Logins30d, in.Enrollment.CompletionPct)
	if score >= 85 {
		labels = append(labels, "Super User")
		reasons = append(reasons, fmt.Sprintf("score %d", score))
	}
	return labels, strings.Join(reasons, "; ")
}

// moduleStuckWindowDays is both the minimum inactivity and the minimum
// time since module 1 completion for the stopped-after-module-1 signal.
const moduleStuckWindowDays = 5

// evalModuleStuck detects subjects who finished module 1 and never
// started module 2. Restricted to families that expose ordered module
// data; missing data short-circuits to no label.
func evalModuleStuck(in Input, cfg Config) ([]string, string) {
	if !cfg.Groups.TracksModules(in.Family) {
		return nil, ""
	}
	mods := in.Enrollment.Modules
	if len(mods) < 2 {
		return nil, ""
	}

	first, second, ok := firstTwoModules(mods)
	if !ok {
		return nil, ""
	}
	if !first.Completed() {
		return nil, ""
	}
	if second.CompletedPages != 0 {
		return nil, ""
	}
	if recencyDays(in, cfg) < moduleStuckWindowDays {
		return nil, ""
	}
	if first.CompletedAt != nil && cfg.now().Sub(*first.CompletedAt) < moduleStuckWindowDays*24*time.Hour {
		return nil, ""
	}

	return []string{"Stopped After Module 1"},
		fmt.Sprintf("module %q completed, %q untouched for %d+ days", first.Name, second.Name, moduleStuckWindowDays)
}

// firstTwoModules identifies module 1 and module 2. Known module names
// win; otherwise modules are ordered by sequence key, falling back to
// lexicographic name order.
func firstTwoModules(mods []domain.ModuleProgress) (first, second domain.ModuleProgress, ok bool) {
	sorted := make([]domain.ModuleProgress, len(mods))
	copy(sorted, mods)

	bySequence := false
	for _, m := range sorted {
		if m.Sequence > 0 {
			bySequence = true
			break
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if bySequence {
			return sorted[i].Sequence < sorted[j].Sequence
		}
		return sorted[i].Name < sorted[j].Name
	})

	for i, m := range sorted {
		if isModuleOneName(m.Name) {
			if i+1 < len(sorted) {
				return m, sorted[i+1], true
			}
			return m, domain.ModuleProgress{}, false
		}
	}
	return sorted[0], sorted[1], true
}

func isModuleOneName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, known := range []string{"module 1", "modulo 1", "módulo 1"} {
		if strings.HasPrefix(n, known) {
			return true
		}
	}
	return false
}
