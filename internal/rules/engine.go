// Package rules derives the canonical system-owned label set for a
// subject from behavioral metrics. Evaluation is pure and side-effect
// free: it performs no I/O and may run concurrently per subject.
package rules

import (
	"fmt"
	"time"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/labelfmt"
)

// Config carries the family group membership and an injectable clock for
// the time-window rules. Constructed once per run and threaded through;
// there is no package-level mutable state.
type Config struct {
	Groups labelfmt.FamilyGroups
	Now    func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Options control evaluation output detail.
type Options struct {
	Verbose          bool `json:"verbose"`
	IncludeDebugInfo bool `json:"include_debug_info"`
}

// CategoryAudit records what one category produced for one enrollment.
type CategoryAudit struct {
	Enrollment string   `json:"enrollment_id"`
	Family     string   `json:"family"`
	Category   string   `json:"category"`
	Labels     []string `json:"labels"`
	Reason     string   `json:"reason,omitempty"`
}

// EnrollmentInput pairs an enrollment with its product for evaluation.
type EnrollmentInput struct {
	Enrollment domain.Enrollment `json:"enrollment"`
	Product    domain.Product    `json:"product"`
}

// Result is the engine output for one subject.
type Result struct {
	SubjectID string          `json:"subject_id"`
	Labels    []string        `json:"labels"`
	Audit     []CategoryAudit `json:"per_category_audit"`
	Debug     map[string]any  `json:"debug,omitempty"`
}

// Engine runs the category evaluators in fixed priority order.
type Engine struct {
	cfg Config
}

// NewEngine creates a rule engine. A zero-value Config gets the default
// family groups and wall-clock time.
func NewEngine(cfg Config) *Engine {
	if cfg.Groups.PrimaryLogin == nil && cfg.Groups.SecondaryMembership == nil && cfg.Groups.ModuleTracked == nil {
		cfg.Groups = labelfmt.DefaultFamilyGroups()
	}
	return &Engine{cfg: cfg}
}

// Evaluate derives the canonical label set for a subject across all of
// its enrollments. Exempt (testimonial/review) labels found in the
// currently-synced sets are carried through untouched. The output is
// deduplicated preserving first-seen order.
func (e *Engine) Evaluate(subject domain.Subject, enrollments []EnrollmentInput, opts Options) (Result, error) {
	if subject.ID == "" {
		return Result{}, fmt.Errorf("subject id is required")
	}
	for _, in := range enrollments {
		if in.Product.Name == "" {
			return Result{}, fmt.Errorf("enrollment %s has no product reference", in.Enrollment.ID)
		}
	}

	result := Result{SubjectID: subject.ID}

	// Curated exempt labels survive regardless of rule outcomes.
	var exempt []string
	for _, in := range enrollments {
		for _, l := range in.Enrollment.SyncedLabels {
			if labelfmt.IsExempt(l) {
				exempt = append(exempt, l)
			}
		}
	}

	var labels []string
	for _, in := range enrollments {
		family := labelfmt.FamilyFor(in.Product.Name)
		input := Input{Subject: subject, Enrollment: in.Enrollment, Family: family}

		for _, cat := range categories {
			descs, reason := cat.eval(input, e.cfg)
			if len(descs) == 0 && !opts.Verbose {
				continue
			}
			formatted := make([]string, 0, len(descs))
			for _, d := range descs {
				formatted = append(formatted, labelfmt.Format(family, d))
			}
			labels = append(labels, formatted...)
			result.Audit = append(result.Audit, CategoryAudit{
				Enrollment: in.Enrollment.ID,
				Family:     family,
				Category:   cat.name,
				Labels:     formatted,
				Reason:     reason,
			})
		}
	}

	if global, reason := evalGlobal(enrollments); global != "" {
		labels = append(labels, global)
		result.Audit = append(result.Audit, CategoryAudit{
			Category: "global",
			Family:   labelfmt.GlobalFamily,
			Labels:   []string{global},
			Reason:   reason,
		})
	}

	labels = append(labels, exempt...)
	result.Labels = dedupe(labels)

	if opts.IncludeDebugInfo {
		result.Debug = map[string]any{
			"enrollments":  len(enrollments),
			"exempt":       exempt,
			"label_count":  len(result.Labels),
			"evaluated_at": e.cfg.now().UTC().Format(time.RFC3339),
		}
	}
	return result, nil
}

// evalGlobal is the cross-enrollment rule: every enrollment cancelled or
// inactive means the subject is globally inactive. One active, suspended
// or expired enrollment anywhere suppresses it.
func evalGlobal(enrollments []EnrollmentInput) (string, string) {
	if len(enrollments) == 0 {
		return "", ""
	}
	for _, in := range enrollments {
		if in.Enrollment.Status != domain.EnrollmentCancelled && in.Enrollment.Status != domain.EnrollmentInactive {
			return "", ""
		}
	}
	return labelfmt.Format(labelfmt.GlobalFamily, "Globally Inactive"),
		fmt.Sprintf("all %d enrollments cancelled or inactive", len(enrollments))
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
