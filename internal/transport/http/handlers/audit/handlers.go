package audithandler

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"contapyme/internal/domain/audit"
	"contapyme/internal/transport/http/api"
	"contapyme/internal/transport/http/middleware"
	"contapyme/internal/transport/http/shared"
)

const exportLimit = 10000

// Lister is the read side of the audit log. audit.Service satisfies it.
type Lister interface {
	Count(ctx context.Context, companyID string, filter audit.Filter) (int, error)
	List(ctx context.Context, companyID string, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error)
}

type Handler struct {
	Service Lister
}

func NewHandler(service Lister) *Handler {
	return &Handler{Service: service}
}

// RegisterRoutes mounts the handler under a /companies/{companyID} router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/audit-events", h.handleListEvents)
	r.Get("/audit-events/export", h.handleExportEvents)
}

var knownActions = []string{audit.ActionAutoFixApply, audit.ActionUploadCheck, audit.ActionResolverClear}

// parseFilter reads action, entityType, actor and since (RFC 3339 or
// YYYY-MM-DD) from the query string.
func parseFilter(w http.ResponseWriter, r *http.Request) (string, audit.Filter, bool) {
	q := r.URL.Query()
	companyID := strings.TrimSpace(chi.URLParam(r, "companyID"))
	filter := audit.Filter{
		Action:     strings.TrimSpace(q.Get("action")),
		EntityType: strings.TrimSpace(q.Get("entityType")),
		Actor:      strings.TrimSpace(q.Get("actor")),
	}

	v := shared.NewValidator()
	v.Required("companyID", companyID, "is required")
	v.Enum("action", filter.Action, knownActions, "unknown audit action")
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			v.Add("since", "must be an RFC 3339 timestamp or a YYYY-MM-DD date")
		}
		filter.Since = since
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return "", audit.Filter{}, false
	}
	return companyID, filter, true
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	companyID, filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	includeDetails := r.URL.Query().Get("includeDetails") == "true"

	total, err := h.Service.Count(r.Context(), companyID, filter)
	if err != nil {
		slog.Warn("audit count failed", "err", err)
	}
	events, err := h.Service.List(r.Context(), companyID, filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", requestID)
		return
	}

	api.Paged(w, events, page.Meta(total), requestID)
}

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	companyID, filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	events, err := h.Service.List(r.Context(), companyID, filter, false, exportLimit, 0)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit events", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-events-%s.csv", companyID))
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "actor", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}); err != nil {
		slog.Warn("audit export header failed", "err", err)
	}
	for _, evt := range events {
		if err := writer.Write([]string{evt.ID, evt.Actor, evt.Action, evt.EntityType, evt.EntityID, evt.RequestID, evt.IP, evt.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
			slog.Warn("audit export row failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("audit export flush failed", "err", err)
	}
}
