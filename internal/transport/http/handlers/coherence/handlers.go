package coherencehandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"contapyme/internal/domain/audit"
	"contapyme/internal/domain/coherence"
	"contapyme/internal/domain/payroll"
	"contapyme/internal/platform/jobs"
	"contapyme/internal/platform/metrics"
	"contapyme/internal/transport/http/api"
	"contapyme/internal/transport/http/middleware"
	"contapyme/internal/transport/http/shared"
)

// Service is the coherence orchestration. coherence.Service satisfies it.
type Service interface {
	Audit(ctx context.Context, companyID string, year, month int, extra ...coherence.DataSource) (coherence.AuditResult, error)
	ValidateUpload(ctx context.Context, companyID string, year, month int, upload coherence.Upload) (coherence.UploadResult, error)
	AutoFix(ctx context.Context, companyID string, year, month int, apply bool) (coherence.AutoFixResult, error)
}

// JobRunner records a synchronous job run. jobs.Service satisfies it.
type JobRunner interface {
	RunNow(ctx context.Context, jobType, companyID string, run func(context.Context) (any, error)) (any, error)
}

// IdempotencyStore replays the stored response of a retried mutation.
// middleware.IdempotencyStore satisfies it.
type IdempotencyStore interface {
	Check(ctx context.Context, companyID, actor, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, companyID, actor, endpoint, key, requestHash string, response json.RawMessage) error
}

const autoFixEndpoint = "coherence.auto_fix.apply"

type Handler struct {
	Service     Service
	Resolver    shared.CompanyResolver
	Jobs        JobRunner
	Audit       audit.Recorder
	Metrics     *metrics.Collector
	Idempotency IdempotencyStore
}

func NewHandler(service Service, resolver shared.CompanyResolver, runner JobRunner, recorder audit.Recorder, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Resolver: resolver, Jobs: runner, Audit: recorder, Metrics: collector}
}

func (h *Handler) WithIdempotency(store IdempotencyStore) *Handler {
	h.Idempotency = store
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/coherence", func(r chi.Router) {
		r.Get("/", h.handleAudit)
		r.Post("/upload", h.handleUpload)
		r.Post("/auto-fix", h.handleAutoFix)
	})
}

func (h *Handler) failDomain(w http.ResponseWriter, r *http.Request, scope shared.Scope, code string, err error) {
	requestID := middleware.GetRequestID(r.Context())
	if errors.Is(err, payroll.ErrNoLiquidations) {
		api.Fail(w, http.StatusNotFound, "no_liquidations", "no liquidations for period", requestID)
		return
	}
	slog.Error("coherence request failed", "code", code, "companyId", scope.CompanyID, "period", scope.Period(), "err", err)
	api.Fail(w, http.StatusInternalServerError, code, "coherence check failed", requestID)
}

func (h *Handler) recordValidation(v coherence.Validation) {
	h.Metrics.RecordCoherence(string(v.WorstSeverity))
}

func (h *Handler) record(r *http.Request, scope shared.Scope, action string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), scope.CompanyID, shared.Actor(r), action, "payroll_period", scope.Period(),
		middleware.GetRequestID(r.Context()), middleware.ClientIP(r), details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ResolveScope(w, r, h.Resolver)
	if !ok {
		return
	}
	result, err := h.Service.Audit(r.Context(), scope.CompanyID, scope.Year, scope.Month)
	if err != nil {
		h.failDomain(w, r, scope, "coherence_audit_failed", err)
		return
	}
	h.recordValidation(result.Validation)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

// uploadBody returns the CSV stream of a multipart "file" field or of the raw
// request body.
func uploadBody(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return r.Body, nil
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ResolveScope(w, r, h.Resolver)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	body, err := uploadBody(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_upload", "expected a CSV file in the \"file\" field", requestID)
		return
	}
	defer body.Close()

	upload, err := coherence.ParseUpload(body)
	if err != nil {
		if errors.Is(err, coherence.ErrEmptyUpload) {
			api.Fail(w, http.StatusBadRequest, "empty_upload", "upload has no data rows", requestID)
			return
		}
		api.Fail(w, http.StatusBadRequest, "invalid_upload", err.Error(), requestID)
		return
	}

	result, err := h.Service.ValidateUpload(r.Context(), scope.CompanyID, scope.Year, scope.Month, upload)
	if err != nil {
		h.failDomain(w, r, scope, "coherence_upload_failed", err)
		return
	}
	h.recordValidation(result.Audit.Validation)
	h.record(r, scope, audit.ActionUploadCheck, map[string]any{
		"rows":           len(upload.Rows),
		"rowErrors":      len(result.RowErrors),
		"inconsistent":   result.Inconsistent,
		"unknownRecords": result.UnknownRecords,
		"coherent":       result.Audit.Validation.IsCoherent,
	})
	api.Success(w, result, requestID)
}

func (h *Handler) handleAutoFix(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ResolveScope(w, r, h.Resolver)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	apply := false
	if raw := r.URL.Query().Get("apply"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "apply", Reason: "must be a boolean"}})
			return
		}
		apply = parsed
	}

	if !apply {
		result, err := h.Service.AutoFix(r.Context(), scope.CompanyID, scope.Year, scope.Month, false)
		if err != nil {
			h.failDomain(w, r, scope, "coherence_auto_fix_failed", err)
			return
		}
		api.Success(w, result, requestID)
		return
	}

	actor := shared.Actor(r)
	idempotencyKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash([]byte(scope.CompanyID + ":" + scope.Period()))
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), scope.CompanyID, actor, autoFixEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used for another period", requestID)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			w.Header().Set("Idempotent-Replayed", "true")
			api.Success(w, stored, requestID)
			return
		}
	}

	var result coherence.AutoFixResult
	run := func(ctx context.Context) (any, error) {
		var err error
		result, err = h.Service.AutoFix(ctx, scope.CompanyID, scope.Year, scope.Month, true)
		return result, err
	}
	var err error
	if h.Jobs != nil {
		_, err = h.Jobs.RunNow(r.Context(), jobs.JobAutoFix, scope.CompanyID, run)
	} else {
		_, err = run(r.Context())
	}
	if err != nil {
		h.failDomain(w, r, scope, "coherence_auto_fix_failed", err)
		return
	}

	h.Metrics.RecordCorrections(result.AppliedCount)
	h.record(r, scope, audit.ActionAutoFixApply, map[string]any{
		"fixedCount":       result.FixedCount,
		"appliedCount":     result.AppliedCount,
		"totalCorrections": result.TotalCorrections,
		"errors":           len(result.Errors),
	})
	if idempotencyKey != "" && h.Idempotency != nil {
		payload, err := json.Marshal(result)
		if err == nil {
			err = h.Idempotency.Save(r.Context(), scope.CompanyID, actor, autoFixEndpoint, idempotencyKey, requestHash, payload)
		}
		if err != nil {
			slog.Warn("idempotency save failed", "err", err)
		}
	}
	api.Success(w, result, requestID)
}
