// Package handler exposes the audited economy engines and the PSEE projection
// over HTTP. It holds no business rules; every decision comes from the adapter.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mgcore/internal/economy/adapter"
	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/eligibility"
	"mgcore/internal/economy/governance"
	"mgcore/internal/economy/models"
	"mgcore/internal/psee/readmodel"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
	"mgcore/pkg/platform/httputil"
	"mgcore/pkg/requestcontext"
)

// Evaluator is the audit-first adapter surface the handler needs.
type Evaluator interface {
	EvaluateEligibility(ctx context.Context, caller models.Caller, req adapter.EligibilityRequest) (eligibility.Result, error)
	EvaluateGovernance(ctx context.Context, caller models.Caller, req adapter.GovernanceRequest) (governance.GovernanceResult, error)
	AuditTrail(ctx context.Context, caller models.Caller, subjectID string) ([]audit.Event, error)
	RecentAudit(ctx context.Context, caller models.Caller, limit int) ([]audit.Event, error)
}

// Projection is the read side of the PSEE read model.
type Projection interface {
	Record(subjectID string) (readmodel.Record, bool)
	Snapshot(subjectID string, asOf time.Time) (models.WalletSnapshot, bool)
}

type Handler struct {
	evaluator  Evaluator
	projection Projection
	logger     *slog.Logger
}

func New(evaluator Evaluator, projection Projection, logger *slog.Logger) *Handler {
	return &Handler{evaluator: evaluator, projection: projection, logger: logger}
}

// Register mounts the economy and projection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/economy/eligibility", h.HandleEligibility)
	r.Post("/economy/governance", h.HandleGovernance)
	r.Get("/economy/audit/subjects/{subjectID}", h.HandleAuditTrail)
	r.Get("/economy/audit/recent", h.HandleRecentAudit)
	r.Get("/psee/subjects/{subjectID}", h.HandleRecord)
	r.Get("/psee/subjects/{subjectID}/snapshot", h.HandleSnapshot)
}

func callerFrom(ctx context.Context) models.Caller {
	role, id := requestcontext.Caller(ctx)
	return models.Caller{Role: models.Role(role), ID: id}
}

// HandleEligibility handles POST /economy/eligibility.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)
	caller := callerFrom(ctx)

	req, ok := httputil.DecodeAndPrepare[EligibilityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	now := requestcontext.Now(ctx)
	snapshot := models.WalletSnapshot{SubjectID: req.SubjectID, AsOf: now}
	if req.Snapshot != nil {
		snapshot = *req.Snapshot
	} else if projected, found := h.projection.Snapshot(req.SubjectID, now); found {
		snapshot = projected
	}

	result, err := h.evaluator.EvaluateEligibility(ctx, caller, adapter.EligibilityRequest{
		SubjectID:           req.SubjectID,
		Snapshot:            snapshot,
		IsSystemMaintenance: req.IsSystemMaintenance,
		IsRestricted:        req.IsRestricted,
		EvaluatedAt:         now,
	})
	if err != nil {
		h.fail(w, r, "eligibility", caller, err)
		return
	}

	h.logger.InfoContext(ctx, "eligibility evaluated",
		"request_id", requestID,
		"caller_id", caller.ID,
		"subject_id", req.SubjectID,
		"verdict", result.Decision.Verdict,
		"rule_id", result.Decision.RuleID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromEligibility(result))
}

// HandleGovernance handles POST /economy/governance.
func (h *Handler) HandleGovernance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)
	caller := callerFrom(ctx)

	req, ok := httputil.DecodeAndPrepare[GovernanceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.evaluator.EvaluateGovernance(ctx, caller, adapter.GovernanceRequest{
		Context: models.UsageContext{
			UsageContextID: req.UsageContextID,
			UserID:         req.UserID,
			Domain:         req.Domain,
			MCVolume:       req.MCVolume,
			OperationCount: req.OperationCount,
			WindowHours:    req.WindowHours,
			EvaluatedAt:    requestcontext.Now(ctx),
		},
	})
	if err != nil {
		h.fail(w, r, "governance", caller, err)
		return
	}

	h.logger.InfoContext(ctx, "governance evaluated",
		"request_id", requestID,
		"caller_id", caller.ID,
		"usage_context_id", req.UsageContextID,
		"status", result.Verdict,
		"review_level", result.ReviewLevel,
	)
	httputil.WriteJSON(w, http.StatusOK, FromGovernance(result))
}

// HandleAuditTrail handles GET /economy/audit/subjects/{subjectID}.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFrom(ctx)
	subjectID := chi.URLParam(r, "subjectID")

	events, err := h.evaluator.AuditTrail(ctx, caller, subjectID)
	if err != nil {
		h.fail(w, r, "audit", caller, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditTrailResponse{SubjectID: subjectID, Events: nonNil(events)})
}

// HandleRecentAudit handles GET /economy/audit/recent?limit=N.
func (h *Handler) HandleRecentAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFrom(ctx)

	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		limit = n
	}

	events, err := h.evaluator.RecentAudit(ctx, caller, limit)
	if err != nil {
		h.fail(w, r, "audit", caller, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditTrailResponse{Events: nonNil(events)})
}

// HandleRecord handles GET /psee/subjects/{subjectID}.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	rec, ok := h.projection.Record(subjectID)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "subject has no projected events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleSnapshot handles GET /psee/subjects/{subjectID}/snapshot.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	snap, ok := h.projection.Snapshot(subjectID, requestcontext.Now(r.Context()))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "subject has no projected events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, engine string, caller models.Caller, err error) {
	ctx := r.Context()
	mapped := toDomainError(err)
	level := slog.LevelWarn
	if httputil.StatusFor(dErrors.CodeOf(mapped)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "economy evaluation failed",
		"request_id", middleware.GetReqID(ctx),
		"engine", engine,
		"caller_role", caller.Role,
		"caller_id", caller.ID,
		"error", err,
	)
	httputil.WriteError(w, mapped)
}

// toDomainError gives adapter and canon failures a domain code. Domain
// rejections never reach here; they are 200 responses carrying a decision.
func toDomainError(err error) error {
	var (
		pf *adapter.PersistenceFailure
		de *dErrors.Error
	)
	switch {
	case errors.Is(err, adapter.ErrDeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "audit persistence timed out")
	case errors.As(err, &pf):
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit persistence failed")
	case errors.Is(err, canon.ErrCanonViolation):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, err.Error())
	case errors.As(err, &de):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "evaluation failed")
	}
}
