package payrollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"contapyme/internal/domain/company"
	"contapyme/internal/domain/payroll"
	"contapyme/internal/transport/http/api"
	"contapyme/internal/transport/http/middleware"
)

type fakeService struct {
	rows    []payroll.LiquidationRow
	listErr error
}

func (f *fakeService) Liquidations(_ context.Context, companyID string, year, month int) ([]payroll.Liquidation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []payroll.Liquidation{}
	for _, row := range f.rows {
		if row.CompanyID == companyID && row.PeriodYear == year && row.PeriodMonth == month {
			out = append(out, payroll.ToLiquidation(row))
		}
	}
	return out, nil
}

func (f *fakeService) Liquidation(_ context.Context, companyID, liquidationID string) (payroll.Liquidation, error) {
	for _, row := range f.rows {
		if row.CompanyID == companyID && row.ID == liquidationID {
			return payroll.ToLiquidation(row), nil
		}
	}
	return payroll.Liquidation{}, payroll.ErrLiquidationNotFound
}

func (f *fakeService) ValidateExternal(ctx context.Context, companyID, liquidationID string, external payroll.Totals, tolerance float64) (payroll.ExternalValidation, error) {
	l, err := f.Liquidation(ctx, companyID, liquidationID)
	if err != nil {
		return payroll.ExternalValidation{}, err
	}
	return payroll.ValidateAgainstExternal(l.Components, external, tolerance), nil
}

type fakeResolver map[string]string

func (f fakeResolver) Resolve(_ context.Context, requestedID string, _, _ int) (string, error) {
	if id, ok := f[requestedID]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", company.ErrCompanyNotResolved, requestedID)
}

func testRows() []payroll.LiquidationRow {
	return []payroll.LiquidationRow{
		{
			ID: "l1", CompanyID: "c1", EmployeeID: "11.111.111-1", EmployeeName: "Ana Pérez",
			PeriodYear: 2025, PeriodMonth: 8,
			SueldoBase: payroll.Amount(2772923), Gratificacion: payroll.Amount(713366), AsignacionFamiliar: payroll.Amount(50292),
			AFP: payroll.Amount(399034), Salud: payroll.Amount(242048), Cesantia: payroll.Amount(20918),
		},
		{
			ID: "l2", CompanyID: "c1", EmployeeID: "22.222.222-2", EmployeeName: "Luis Soto",
			PeriodYear: 2025, PeriodMonth: 8,
			SueldoBase: payroll.Amount(1000), Comisiones: payroll.Amount(500), Prestamos: payroll.Amount(200),
		},
		{
			ID: "l3", CompanyID: "c1", EmployeeID: "11.111.111-1", PeriodYear: 2025, PeriodMonth: 7,
			SueldoBase: payroll.Amount(1000),
		},
	}
}

func newRouter(service Service) http.Handler {
	h := NewHandler(service, fakeResolver{"c1": "c1", "alias": "c1"}, 0)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Route("/companies/{companyID}/periods/{year}/{month}", h.RegisterRoutes)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) api.Envelope {
	t.Helper()
	env := api.Envelope{Data: data}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestListLiquidationsResolvesAndPaginates(t *testing.T) {
	router := newRouter(&fakeService{rows: testRows()})
	req := httptest.NewRequest(http.MethodGet, "/companies/alias/periods/2025/8/liquidations?limit=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Total-Count") != "2" || rec.Header().Get("X-Company-ID") != "c1" {
		t.Fatalf("unexpected headers %v", rec.Header())
	}
	var items []payroll.Liquidation
	env := decode(t, rec, &items)
	if !env.Success || len(items) != 1 {
		t.Fatalf("expected one liquidation, got %+v", items)
	}
	if items[0].Result.TotalEarnings != 3536581 || items[0].Result.NetPay != 2874581 {
		t.Fatalf("expected calculator totals, got %+v", items[0].Result.Totals)
	}
}

func TestListLiquidationsRejectsBadPeriod(t *testing.T) {
	router := newRouter(&fakeService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/c1/periods/1999/13/liquidations", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decode(t, rec, nil)
	if env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %+v", env.Error)
	}
}

func TestListLiquidationsUnknownCompany(t *testing.T) {
	router := newRouter(&fakeService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/nope/periods/2025/8/liquidations", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if env := decode(t, rec, nil); env.Error.Code != "company_not_resolved" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}

func TestListLiquidationsServiceError(t *testing.T) {
	router := newRouter(&fakeService{listErr: errors.New("db down")})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/c1/periods/2025/8/liquidations", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGetLiquidationChecksPeriod(t *testing.T) {
	router := newRouter(&fakeService{rows: testRows()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/c1/periods/2025/8/liquidations/l2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var l payroll.Liquidation
	decode(t, rec, &l)
	if l.Result.TotalEarnings != 1500 || l.Result.TotalDeductions != 200 || l.Result.NetPay != 1300 {
		t.Fatalf("expected commissions and loan to be counted, got %+v", l.Result.Totals)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/c1/periods/2025/8/liquidations/l3", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a liquidation from another period, got %d", rec.Code)
	}
}

func TestValidateLiquidation(t *testing.T) {
	router := newRouter(&fakeService{rows: testRows()})

	body := `{"totalEarnings":1505,"totalDeductions":200,"netPay":1305}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/companies/c1/periods/2025/8/liquidations/l2/validate", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result payroll.ExternalValidation
	decode(t, rec, &result)
	if result.IsConsistent || result.Differences.TotalEarnings != -5 {
		t.Fatalf("expected a -5 earnings difference, got %+v", result)
	}

	body = `{"totalEarnings":1505,"totalDeductions":200,"netPay":1305,"tolerance":10}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/companies/c1/periods/2025/8/liquidations/l2/validate", strings.NewReader(body)))
	result = payroll.ExternalValidation{}
	decode(t, rec, &result)
	if !result.IsConsistent || result.Tolerance != 10 {
		t.Fatalf("expected consistency within a 10 peso tolerance, got %+v", result)
	}
}

func TestValidateLiquidationRejectsPayload(t *testing.T) {
	router := newRouter(&fakeService{rows: testRows()})
	cases := []string{
		`{"totalEarnings":"x"}`,
		`{"totalEarnings":1,"unknown":true}`,
		`{"totalEarnings":-1,"totalDeductions":0,"netPay":0}`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/companies/c1/periods/2025/8/liquidations/l2/validate", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestDownloadPayslip(t *testing.T) {
	router := newRouter(&fakeService{rows: testRows()})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/c1/periods/2025/8/liquidations/l1/payslip", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/pdf" || !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("expected a PDF document, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestExportRegister(t *testing.T) {
	router := newRouter(&fakeService{rows: testRows()})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/c1/periods/2025/8/export", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "2025-08") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "3536581.00") {
		t.Fatalf("expected calculator earnings in export, got %q", lines[1])
	}
}
