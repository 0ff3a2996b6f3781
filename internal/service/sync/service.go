package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/crm-tag-sync/internal/diff"
	"github.com/ignite/crm-tag-sync/internal/pkg/logger"
	"github.com/ignite/crm-tag-sync/internal/rules"
	"github.com/ignite/crm-tag-sync/internal/service/protection"
)

// Plan is the full set of instructions for one subject, with the gate's
// verdicts already applied. Blocked removals are advisory output only.
type Plan struct {
	SubjectID string   `json:"subject_id"`
	Email     string   `json:"email"`
	Computed  []string `json:"computed"`
	ToAdd     []string `json:"to_add"`
	ToRemove  []string `json:"to_remove"`
	Blocked   []string `json:"blocked,omitempty"`
	// Reasons maps each blocked label to why the gate refused it.
	Reasons map[string]string     `json:"reasons,omitempty"`
	Audit   []rules.CategoryAudit `json:"audit,omitempty"`

	enrollments []rules.EnrollmentInput
}

// Outcome reports what an apply pass did.
type Outcome struct {
	Plan          Plan   `json:"plan"`
	Applied       bool   `json:"applied"`
	LabelsAdded   int    `json:"labels_added"`
	LabelsRemoved int    `json:"labels_removed"`
	Errors        int    `json:"errors"`
	Duration      string `json:"duration"`
}

// Service wires the rule engine, differ, protection gate and CRM client
// into the per-subject sync flow.
type Service struct {
	repo    Repository
	engine  *rules.Engine
	gate    *protection.Service
	mutator LabelMutator
	now     func() time.Time
}

// NewService creates a sync service.
func NewService(repo Repository, engine *rules.Engine, gate *protection.Service, mutator LabelMutator) *Service {
	return &Service{
		repo:    repo,
		engine:  engine,
		gate:    gate,
		mutator: mutator,
		now:     time.Now,
	}
}

// SetClock overrides the clock (useful for testing).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// BuildPlan computes the sync instructions for one subject without
// touching the CRM label set. The current state is read live from the
// CRM so the diff reflects reality, not the last recorded sync.
func (s *Service) BuildPlan(ctx context.Context, subjectID string, opts rules.Options) (Plan, error) {
	subject, err := s.repo.GetSubject(ctx, subjectID)
	if err != nil {
		return Plan{}, err
	}
	enrollments, err := s.repo.ListEnrollments(ctx, subjectID)
	if err != nil {
		return Plan{}, fmt.Errorf("load enrollments for %s: %w", subjectID, err)
	}

	result, err := s.engine.Evaluate(*subject, enrollments, opts)
	if err != nil {
		return Plan{}, fmt.Errorf("evaluate %s: %w", subjectID, err)
	}

	current, err := s.mutator.GetContactLabels(ctx, subject.Email)
	if err != nil {
		return Plan{}, fmt.Errorf("fetch current labels for %s: %w", subjectID, err)
	}

	instructions := diff.Diff(current, result.Labels)

	safe, err := s.gate.FilterSafeRemovals(ctx, subjectID, instructions.ToRemove)
	if err != nil {
		return Plan{}, fmt.Errorf("removal gate for %s: %w", subjectID, err)
	}

	return Plan{
		SubjectID:   subjectID,
		Email:       subject.Email,
		Computed:    result.Labels,
		ToAdd:       instructions.ToAdd,
		ToRemove:    safe.Safe,
		Blocked:     safe.Blocked,
		Reasons:     safe.Reasons,
		Audit:       result.Audit,
		enrollments: enrollments,
	}, nil
}

// Sync builds and applies a plan for one subject. With dryRun the plan
// is returned without any CRM mutation or state update. Individual label
// mutations that fail are counted and skipped so one CRM hiccup cannot
// strand the rest of the instruction set.
func (s *Service) Sync(ctx context.Context, subjectID string, dryRun bool) (Outcome, error) {
	start := s.now()
	plan, err := s.BuildPlan(ctx, subjectID, rules.Options{})
	if err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Plan: plan}

	if dryRun {
		outcome.Duration = s.now().Sub(start).Round(time.Millisecond).String()
		return outcome, nil
	}

	for _, label := range plan.ToAdd {
		if err := s.mutator.AddLabel(ctx, plan.Email, label); err != nil {
			outcome.Errors++
			logger.Error("label add failed", "subject", subjectID, "label", label, "error", err.Error())
			continue
		}
		outcome.LabelsAdded++
	}
	for _, label := range plan.ToRemove {
		if err := s.mutator.RemoveLabel(ctx, plan.Email, label); err != nil {
			outcome.Errors++
			logger.Error("label remove failed", "subject", subjectID, "label", label, "error", err.Error())
			continue
		}
		outcome.LabelsRemoved++
	}

	for _, in := range plan.enrollments {
		if err := s.repo.UpdateSyncedLabels(ctx, in.Enrollment.ID, plan.Computed); err != nil {
			outcome.Errors++
			logger.Error("synced-labels update failed", "enrollment", in.Enrollment.ID, "error", err.Error())
		}
	}

	// Re-capture the protection snapshot so the audit trail reflects the
	// post-sync state.
	subject, err := s.repo.GetSubject(ctx, subjectID)
	if err == nil {
		if _, err := s.gate.CaptureSnapshot(ctx, *subject, "sync"); err != nil {
			outcome.Errors++
			logger.Error("post-sync snapshot failed", "subject", subjectID, "error", err.Error())
		}
	}

	outcome.Applied = true
	outcome.Duration = s.now().Sub(start).Round(time.Millisecond).String()
	logger.Info("subject synced",
		"subject", subjectID, "added", outcome.LabelsAdded,
		"removed", outcome.LabelsRemoved, "blocked", len(plan.Blocked), "errors", outcome.Errors)
	return outcome, nil
}
