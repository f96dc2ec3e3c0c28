package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"contapyme/internal/domain/company"
	"contapyme/internal/requestctx"
	"contapyme/internal/transport/http/api"
)

// CompanyResolver maps a requested company id to the one holding data for a
// period. company.Resolver satisfies it.
type CompanyResolver interface {
	Resolve(ctx context.Context, requestedID string, year, month int) (string, error)
}

// Scope is the company and period a request under
// /companies/{companyID}/periods/{year}/{month} operates on.
type Scope struct {
	RequestedID string
	CompanyID   string
	Year        int
	Month       int
}

func (s Scope) Period() string {
	return fmt.Sprintf("%04d-%02d", s.Year, s.Month)
}

// ResolveScope validates the period path parameters and resolves the company
// id. On failure the response has been written and ok is false.
func ResolveScope(w http.ResponseWriter, r *http.Request, resolver CompanyResolver) (Scope, bool) {
	requestID := requestctx.GetRequestID(r.Context())
	requested := strings.TrimSpace(chi.URLParam(r, "companyID"))

	v := NewValidator()
	v.Required("companyID", requested, "is required")
	year, month := v.Period(chi.URLParam(r, "year"), chi.URLParam(r, "month"))
	if v.Reject(w, requestID) {
		return Scope{}, false
	}

	scope := Scope{RequestedID: requested, CompanyID: requested, Year: year, Month: month}
	if resolver == nil {
		return scope, true
	}
	resolved, err := resolver.Resolve(r.Context(), requested, year, month)
	if err != nil {
		if errors.Is(err, company.ErrCompanyNotResolved) {
			api.Fail(w, http.StatusNotFound, "company_not_resolved", "no payroll data for company and period", requestID)
			return Scope{}, false
		}
		slog.Error("company resolution failed", "companyId", requested, "period", scope.Period(), "err", err)
		api.Fail(w, http.StatusInternalServerError, "company_resolution_failed", "failed to resolve company", requestID)
		return Scope{}, false
	}
	scope.CompanyID = resolved
	return scope, true
}

// Actor names who triggered a mutation: the value set by middleware.Actor,
// else the X-Actor header, else "system".
func Actor(r *http.Request) string {
	if actor := requestctx.GetActor(r.Context()); actor != "" {
		return actor
	}
	if actor := strings.TrimSpace(r.Header.Get("X-Actor")); actor != "" {
		return actor
	}
	return "system"
}
