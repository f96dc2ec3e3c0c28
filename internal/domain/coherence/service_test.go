package coherence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"contapyme/internal/domain/payroll"
)

type fakeStore struct {
	rows      []payroll.LiquidationRow
	cached    *payroll.CachedTotals
	cachedErr error
	saved     []payroll.CachedTotals
	updates   []payroll.TotalsUpdate
	updateErr error
}

func (f *fakeStore) ListLiquidations(context.Context, string, int, int) ([]payroll.LiquidationRow, error) {
	return f.rows, nil
}

func (f *fakeStore) CachedTotals(context.Context, string, int, int) (payroll.CachedTotals, error) {
	if f.cachedErr != nil {
		return payroll.CachedTotals{}, f.cachedErr
	}
	if f.cached == nil {
		return payroll.CachedTotals{}, payroll.ErrCachedTotalsNotFound
	}
	return *f.cached, nil
}

func (f *fakeStore) ApplyCorrections(_ context.Context, _ string, updates []payroll.TotalsUpdate, cached payroll.CachedTotals) (int, error) {
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.updates = append(f.updates, updates...)
	f.saved = append(f.saved, cached)
	return len(updates), nil
}

func periodRows() []payroll.LiquidationRow {
	return []payroll.LiquidationRow{
		{
			ID: "l1", CompanyID: "c1", EmployeeID: "e1", PeriodYear: 2025, PeriodMonth: 8,
			SueldoBase: payroll.Amount(1000), Salud: payroll.Amount(70),
			TotalHaberes: payroll.Amount(1000), TotalDescuentos: payroll.Amount(70), LiquidoPagar: payroll.Amount(930),
		},
		{
			ID: "l2", CompanyID: "c1", EmployeeID: "e2", PeriodYear: 2025, PeriodMonth: 8,
			SueldoBase: payroll.Amount(2000), Comisiones: payroll.Amount(500), Prestamos: payroll.Amount(300),
			TotalHaberes: payroll.Amount(2000), TotalDescuentos: payroll.Amount(0), LiquidoPagar: payroll.Amount(2000),
		},
	}
}

func TestServiceAuditWithoutCache(t *testing.T) {
	svc := NewService(&fakeStore{rows: periodRows()}, testEngine())

	result, err := svc.Audit(context.Background(), "c1", 2025, 8)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(result.Sources) != 1 || result.Sources[0].Origin != OriginCalculated {
		t.Fatalf("expected only the calculated source, got %+v", result.Sources)
	}
	if result.Sources[0].TotalNetPay != 3130 {
		t.Fatalf("expected calculated net 3130, got %v", result.Sources[0].TotalNetPay)
	}
	if !result.Validation.IsCoherent {
		t.Fatalf("expected a single source to be coherent")
	}
}

func TestServiceAuditDetectsStaleCache(t *testing.T) {
	store := &fakeStore{
		rows:   periodRows(),
		cached: &payroll.CachedTotals{CompanyID: "c1", Year: 2025, Month: 8, TotalEarnings: 3000, TotalDeductions: 70, TotalNetPay: 2930, LiquidationCount: 2},
	}
	svc := NewService(store, testEngine())

	result, err := svc.Audit(context.Background(), "c1", 2025, 8)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	v := result.Validation
	if v.IsCoherent || v.WorstSeverity != SeverityLow || v.Remediation != RemediationRefresh {
		t.Fatalf("expected low severity refresh, got %+v", v)
	}
	d := v.Discrepancies[0]
	if d.SourceA != OriginDatabaseCached || d.EarningsDiff != -500 || d.DeductionsDiff != -300 || d.NetPayDiff != -200 {
		t.Fatalf("unexpected discrepancy %+v", d)
	}
	if result.Report.Summary == "" {
		t.Fatal("expected a report summary")
	}
}

func TestServiceAuditErrors(t *testing.T) {
	svc := NewService(&fakeStore{}, testEngine())
	if _, err := svc.Audit(context.Background(), "c1", 2025, 8); !errors.Is(err, payroll.ErrNoLiquidations) {
		t.Fatalf("expected ErrNoLiquidations, got %v", err)
	}

	boom := errors.New("boom")
	svc = NewService(&fakeStore{rows: periodRows(), cachedErr: boom}, testEngine())
	if _, err := svc.Audit(context.Background(), "c1", 2025, 8); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cache error, got %v", err)
	}
}

func TestServiceAutoFixPreviewDoesNotWrite(t *testing.T) {
	store := &fakeStore{rows: periodRows()}
	svc := NewService(store, testEngine())

	result, err := svc.AutoFix(context.Background(), "c1", 2025, 8, false)
	if err != nil {
		t.Fatalf("auto-fix: %v", err)
	}
	if result.FixedCount != 1 || result.Corrections[0].LiquidationID != "l2" {
		t.Fatalf("expected l2 to need a correction, got %+v", result)
	}
	if result.Applied || len(store.updates) != 0 || len(store.saved) != 0 {
		t.Fatalf("preview must not write, got %+v", store)
	}
}

func TestServiceAutoFixApply(t *testing.T) {
	store := &fakeStore{rows: periodRows()}
	svc := NewService(store, testEngine())

	result, err := svc.AutoFix(context.Background(), "c1", 2025, 8, true)
	if err != nil {
		t.Fatalf("auto-fix: %v", err)
	}
	if !result.Applied || result.AppliedCount != 1 {
		t.Fatalf("expected one applied correction, got %+v", result)
	}
	want := payroll.Totals{TotalEarnings: 2500, TotalDeductions: 300, NetPay: 2200}
	if len(store.updates) != 1 || store.updates[0].LiquidationID != "l2" || store.updates[0].Totals != want {
		t.Fatalf("unexpected updates %+v", store.updates)
	}
	if len(store.saved) != 1 || store.saved[0].TotalNetPay != 3130 || store.saved[0].LiquidationCount != 2 {
		t.Fatalf("expected refreshed cache, got %+v", store.saved)
	}
}

func TestServiceAutoFixApplyError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeStore{rows: periodRows(), updateErr: boom}, testEngine())
	result, err := svc.AutoFix(context.Background(), "c1", 2025, 8, true)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped update error, got %v", err)
	}
	if result.Applied || result.AppliedCount != 0 {
		t.Fatal("failed apply must not be reported as applied")
	}
	if store := svc.store.(*fakeStore); len(store.updates) != 0 || len(store.saved) != 0 {
		t.Fatalf("failed apply must leave totals and cache untouched, got %+v", store)
	}
}

func TestServiceAutoFixApplyRefreshesCacheWithoutCorrections(t *testing.T) {
	rows := periodRows()[:1]
	store := &fakeStore{rows: rows}
	result, err := NewService(store, testEngine()).AutoFix(context.Background(), "c1", 2025, 8, true)
	if err != nil {
		t.Fatalf("auto-fix: %v", err)
	}
	if !result.Applied || result.AppliedCount != 0 || len(store.updates) != 0 {
		t.Fatalf("expected nothing to correct, got %+v", result)
	}
	if len(store.saved) != 1 || store.saved[0].TotalNetPay != 930 || store.saved[0].LiquidationCount != 1 {
		t.Fatalf("expected the cache to be written with the same transaction, got %+v", store.saved)
	}
}

func TestServiceValidateUpload(t *testing.T) {
	upload, err := ParseUpload(strings.NewReader("rut,sueldo_base,salud,liquido_pagar,total_haberes,total_descuentos\n" +
		"e1,1000,70,930,1000,70\n" +
		"e2,2000,0,1700,2500,800\n" +
		"e9,500,0,500,500,0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	svc := NewService(&fakeStore{rows: periodRows()}, testEngine())

	result, err := svc.ValidateUpload(context.Background(), "c1", 2025, 8, upload)
	if err != nil {
		t.Fatalf("validate upload: %v", err)
	}
	if len(result.Employees) != 3 || result.Inconsistent != 1 || result.UnknownRecords != 1 {
		t.Fatalf("unexpected per-employee result %+v", result)
	}
	if result.Employees[1].Line != 3 || result.Employees[1].Result.IsConsistent {
		t.Fatalf("expected e2 on line 3 to be inconsistent, got %+v", result.Employees[1])
	}
	sources := result.Audit.Sources
	if len(sources) != 2 || sources[1].Origin != OriginSpreadsheetUploaded {
		t.Fatalf("expected calculated and spreadsheet sources, got %+v", sources)
	}
	if result.Audit.Validation.IsCoherent {
		t.Fatal("expected the spreadsheet to disagree with the calculation")
	}
}

func TestServiceValidateUploadNetPayOnly(t *testing.T) {
	upload, err := ParseUpload(strings.NewReader("rut,sueldo_base,afp,liquido_pagar\n11-1,1000000,100000,900000\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rows := []payroll.LiquidationRow{{
		ID: "l1", CompanyID: "c1", EmployeeID: "11-1", PeriodYear: 2025, PeriodMonth: 8,
		SueldoBase: payroll.Amount(1000000), AFP: payroll.Amount(100000),
	}}
	result, err := NewService(&fakeStore{rows: rows}, testEngine()).ValidateUpload(context.Background(), "c1", 2025, 8, upload)
	if err != nil {
		t.Fatalf("validate upload: %v", err)
	}
	if result.Inconsistent != 0 || !result.Employees[0].Result.IsConsistent {
		t.Fatalf("expected net pay alone to be consistent, got %+v", result.Employees[0].Result)
	}
	v := result.Audit.Validation
	if !v.IsCoherent || v.WorstSeverity != SeverityNone || !v.AutoFixable {
		t.Fatalf("expected the spreadsheet source to agree, got %+v", v)
	}
	sheet := result.Audit.Sources[len(result.Audit.Sources)-1]
	if sheet.TotalEarnings != 1000000 || sheet.TotalDeductions != 100000 || sheet.TotalNetPay != 900000 {
		t.Fatalf("expected missing columns from the calculator, got %+v", sheet)
	}
}

func TestServiceValidateUploadDuplicateLiquidations(t *testing.T) {
	rows := periodRows()
	dup := rows[1]
	dup.ID = "l3"
	rows = append(rows, dup)
	upload, err := ParseUpload(strings.NewReader("rut,sueldo_base\ne1,1000\ne2,2500\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	result, err := NewService(&fakeStore{rows: rows}, testEngine()).ValidateUpload(context.Background(), "c1", 2025, 8, upload)
	if err != nil {
		t.Fatalf("validate upload: %v", err)
	}
	if len(result.Employees) != 1 || result.Employees[0].EmployeeID != "e1" {
		t.Fatalf("expected only e1 to be checked, got %+v", result.Employees)
	}
	if len(result.RowErrors) != 1 || result.RowErrors[0].Line != 3 || !strings.Contains(result.RowErrors[0].Message, "2 liquidations") {
		t.Fatalf("expected a duplicate row error on line 3, got %+v", result.RowErrors)
	}
	if len(upload.RowErrors) != 0 {
		t.Fatalf("parsed upload must not be modified, got %+v", upload.RowErrors)
	}
}
