package payrollhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"contapyme/internal/domain/payroll"
	"contapyme/internal/transport/http/api"
	"contapyme/internal/transport/http/middleware"
	"contapyme/internal/transport/http/shared"
)

// Service is the read side of the payroll domain. payroll.Service satisfies it.
type Service interface {
	Liquidations(ctx context.Context, companyID string, year, month int) ([]payroll.Liquidation, error)
	Liquidation(ctx context.Context, companyID, liquidationID string) (payroll.Liquidation, error)
	ValidateExternal(ctx context.Context, companyID, liquidationID string, external payroll.Totals, tolerance float64) (payroll.ExternalValidation, error)
}

type Handler struct {
	Service   Service
	Resolver  shared.CompanyResolver
	Tolerance float64
}

func NewHandler(service Service, resolver shared.CompanyResolver, tolerance float64) *Handler {
	if tolerance <= 0 {
		tolerance = payroll.DefaultTolerance
	}
	return &Handler{Service: service, Resolver: resolver, Tolerance: tolerance}
}

type validatePayload struct {
	TotalEarnings   float64  `json:"totalEarnings"`
	TotalDeductions float64  `json:"totalDeductions"`
	NetPay          float64  `json:"netPay"`
	Tolerance       *float64 `json:"tolerance,omitempty"`
}

// RegisterRoutes mounts the handler under a
// /companies/{companyID}/periods/{year}/{month} router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/liquidations", h.handleListLiquidations)
	r.Get("/liquidations/{liquidationID}", h.handleGetLiquidation)
	r.Post("/liquidations/{liquidationID}/validate", h.handleValidateLiquidation)
	r.Get("/liquidations/{liquidationID}/payslip", h.handleDownloadPayslip)
	r.Get("/export", h.handleExportRegister)
}

func (h *Handler) handleListLiquidations(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ResolveScope(w, r, h.Resolver)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	liquidations, err := h.Service.Liquidations(r.Context(), scope.CompanyID, scope.Year, scope.Month)
	if err != nil {
		slog.Error("list liquidations failed", "companyId", scope.CompanyID, "period", scope.Period(), "err", err)
		api.Fail(w, http.StatusInternalServerError, "liquidations_failed", "failed to list liquidations", requestID)
		return
	}

	page := shared.ParsePagination(r, 50, 500)
	w.Header().Set("X-Company-ID", scope.CompanyID)
	api.Paged(w, shared.Page(liquidations, page), page.Meta(len(liquidations)), requestID)
}

// liquidation loads the path liquidation and checks it belongs to the period.
func (h *Handler) liquidation(w http.ResponseWriter, r *http.Request) (shared.Scope, payroll.Liquidation, bool) {
	scope, ok := shared.ResolveScope(w, r, h.Resolver)
	if !ok {
		return shared.Scope{}, payroll.Liquidation{}, false
	}
	requestID := middleware.GetRequestID(r.Context())
	liquidationID := strings.TrimSpace(chi.URLParam(r, "liquidationID"))

	l, err := h.Service.Liquidation(r.Context(), scope.CompanyID, liquidationID)
	if err == nil && (l.Components.Year != scope.Year || l.Components.Month != scope.Month) {
		err = payroll.ErrLiquidationNotFound
	}
	if err != nil {
		if errors.Is(err, payroll.ErrLiquidationNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "liquidation not found", requestID)
			return shared.Scope{}, payroll.Liquidation{}, false
		}
		slog.Error("load liquidation failed", "liquidationId", liquidationID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "liquidation_failed", "failed to load liquidation", requestID)
		return shared.Scope{}, payroll.Liquidation{}, false
	}
	return scope, l, true
}

func (h *Handler) handleGetLiquidation(w http.ResponseWriter, r *http.Request) {
	_, l, ok := h.liquidation(w, r)
	if !ok {
		return
	}
	api.Success(w, l, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleValidateLiquidation(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload validatePayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	v := shared.NewValidator()
	v.Amount("totalEarnings", payload.TotalEarnings)
	v.Amount("totalDeductions", payload.TotalDeductions)
	if payload.Tolerance != nil {
		v.Amount("tolerance", *payload.Tolerance)
	}
	if v.Reject(w, requestID) {
		return
	}

	scope, l, ok := h.liquidation(w, r)
	if !ok {
		return
	}
	tolerance := h.Tolerance
	if payload.Tolerance != nil && *payload.Tolerance > 0 {
		tolerance = *payload.Tolerance
	}
	external := payroll.Totals{
		TotalEarnings:   payload.TotalEarnings,
		TotalDeductions: payload.TotalDeductions,
		NetPay:          payload.NetPay,
	}
	result, err := h.Service.ValidateExternal(r.Context(), scope.CompanyID, l.ID, external, tolerance)
	if err != nil {
		slog.Error("validate liquidation failed", "liquidationId", l.ID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "validation_failed", "failed to validate liquidation", requestID)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	_, l, ok := h.liquidation(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := payroll.WritePayslipPDF(&buf, l); err != nil {
		slog.Error("payslip render failed", "liquidationId", l.ID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "payslip_failed", "failed to render payslip", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=liquidacion-%s.pdf", l.ID))
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportRegister(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ResolveScope(w, r, h.Resolver)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	liquidations, err := h.Service.Liquidations(r.Context(), scope.CompanyID, scope.Year, scope.Month)
	if err != nil {
		slog.Error("export liquidations failed", "companyId", scope.CompanyID, "period", scope.Period(), "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export liquidations", requestID)
		return
	}
	var buf bytes.Buffer
	if err := payroll.WriteRegister(&buf, liquidations); err != nil {
		slog.Error("export register failed", "companyId", scope.CompanyID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export liquidations", requestID)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=libro-remuneraciones-%s.csv", scope.Period()))
	_, _ = w.Write(buf.Bytes())
}
