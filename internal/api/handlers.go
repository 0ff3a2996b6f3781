// Package api exposes the engine over HTTP: evaluation, diffing,
// per-subject sync, the protection audit trail, the critical label watch
// list and change notifications.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-tag-sync/internal/diff"
	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/pkg/httputil"
	"github.com/ignite/crm-tag-sync/internal/rules"
	"github.com/ignite/crm-tag-sync/internal/service/monitor"
	"github.com/ignite/crm-tag-sync/internal/service/protection"
	"github.com/ignite/crm-tag-sync/internal/service/registry"
	syncsvc "github.com/ignite/crm-tag-sync/internal/service/sync"
)

// Handlers holds the services the HTTP layer fronts.
type Handlers struct {
	engine     *rules.Engine
	syncSvc    *syncsvc.Service
	protection *protection.Service
	registry   *registry.Service
	monitorSvc *monitor.Service
	monitorCfg monitor.Config
}

// NewHandlers creates the API handler set.
func NewHandlers(engine *rules.Engine, syncSvc *syncsvc.Service, prot *protection.Service, reg *registry.Service, mon *monitor.Service, monCfg monitor.Config) *Handlers {
	return &Handlers{
		engine:     engine,
		syncSvc:    syncSvc,
		protection: prot,
		registry:   reg,
		monitorSvc: mon,
		monitorCfg: monCfg,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type evaluateRequest struct {
	Subject     domain.Subject          `json:"subject"`
	Enrollments []rules.EnrollmentInput `json:"enrollments"`
	Options     rules.Options           `json:"options"`
}

// HandleEvaluate runs the rule engine on a caller-supplied subject
// without touching any stored state.
func (h *Handlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	result, err := h.engine.Evaluate(req.Subject, req.Enrollments, req.Options)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, result)
}

type diffRequest struct {
	Current  []string `json:"current"`
	Computed []string `json:"computed"`
}

// HandleDiff computes add/remove instructions for two label sets. The
// protection gate is not consulted here; use the sync plan endpoint for
// gated output.
func (h *Handlers) HandleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	httputil.OK(w, diff.Diff(req.Current, req.Computed))
}

// HandleSyncPlan returns the gated sync plan for a subject.
func (h *Handlers) HandleSyncPlan(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	plan, err := h.syncSvc.BuildPlan(r.Context(), subjectID, rules.Options{Verbose: r.URL.Query().Get("verbose") == "true"})
	if err == syncsvc.ErrSubjectNotFound {
		httputil.NotFound(w, "subject not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, plan)
}

// HandleSync applies the sync plan for a subject. dry_run=true returns
// the plan without mutating anything.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	dryRun := r.URL.Query().Get("dry_run") == "true"
	outcome, err := h.syncSvc.Sync(r.Context(), subjectID, dryRun)
	if err == syncsvc.ErrSubjectNotFound {
		httputil.NotFound(w, "subject not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, outcome)
}

// HandleGetSnapshot returns a subject's protection snapshot with history.
func (h *Handlers) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	snap, err := h.protection.Snapshot(r.Context(), subjectID)
	if err == protection.ErrNotFound {
		httputil.NotFound(w, "no snapshot for subject")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, snap)
}

type canRemoveRequest struct {
	Label string `json:"label"`
}

// HandleCanRemove runs the removal gate for one label.
func (h *Handlers) HandleCanRemove(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	var req canRemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Label == "" {
		httputil.BadRequest(w, "label is required")
		return
	}
	decision, err := h.protection.CanRemove(r.Context(), subjectID, req.Label)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, decision)
}

// HandleRunMonitor triggers a weekly monitor run with the configured
// settings.
func (h *Handlers) HandleRunMonitor(w http.ResponseWriter, r *http.Request) {
	result, err := h.monitorSvc.Run(r.Context(), h.monitorCfg)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// HandleListCriticalLabels returns the watch list.
func (h *Handlers) HandleListCriticalLabels(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"
	labels, err := h.registry.ListCriticalLabels(r.Context(), onlyActive)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if labels == nil {
		labels = []domain.CriticalLabel{}
	}
	httputil.OK(w, map[string]any{"labels": labels, "total": len(labels)})
}

// HandleCreateCriticalLabel registers a label for monitoring.
func (h *Handlers) HandleCreateCriticalLabel(w http.ResponseWriter, r *http.Request) {
	var l domain.CriticalLabel
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	if err := h.registry.CreateCriticalLabel(r.Context(), &l); err != nil {
		if err == registry.ErrDuplicate {
			httputil.Error(w, http.StatusConflict, "label already registered")
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, l)
}

// HandleUpdateCriticalLabel modifies a watch list entry.
func (h *Handlers) HandleUpdateCriticalLabel(w http.ResponseWriter, r *http.Request) {
	var l domain.CriticalLabel
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	l.ID = chi.URLParam(r, "id")
	if err := h.registry.UpdateCriticalLabel(r.Context(), &l); err != nil {
		if err == registry.ErrNotFound {
			httputil.NotFound(w, "critical label not found")
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, l)
}

// HandleDeleteCriticalLabel removes a watch list entry.
func (h *Handlers) HandleDeleteCriticalLabel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.DeleteCriticalLabel(r.Context(), id); err != nil {
		if err == registry.ErrNotFound {
			httputil.NotFound(w, "critical label not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// HandleListNotifications returns change notifications, newest first.
func (h *Handlers) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	notifications, total, err := h.registry.ListNotifications(r.Context(), unreadOnly, limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if notifications == nil {
		notifications = []domain.ChangeNotification{}
	}
	httputil.OK(w, map[string]any{"notifications": notifications, "total": total})
}

// HandleGetNotification returns one notification with details.
func (h *Handlers) HandleGetNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.registry.GetNotification(r.Context(), id)
	if err == registry.ErrNotFound {
		httputil.NotFound(w, "notification not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, n)
}

type markReadRequest struct {
	Read *bool `json:"read"`
}

// HandleMarkNotificationRead flips the read flag; defaults to true.
func (h *Handlers) HandleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	read := true
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Read != nil {
		read = *req.Read
	}
	if err := h.registry.MarkNotificationRead(r.Context(), id, read); err != nil {
		if err == registry.ErrNotFound {
			httputil.NotFound(w, "notification not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"id": id, "read": read})
}
