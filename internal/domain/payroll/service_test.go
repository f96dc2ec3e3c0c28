package payroll

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	rows    []LiquidationRow
	listErr error
}

func (f *fakeStore) ListLiquidations(_ context.Context, companyID string, year, month int) ([]LiquidationRow, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []LiquidationRow
	for _, row := range f.rows {
		if row.CompanyID == companyID && row.PeriodYear == year && row.PeriodMonth == month {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) GetLiquidation(_ context.Context, companyID, liquidationID string) (LiquidationRow, error) {
	for _, row := range f.rows {
		if row.CompanyID == companyID && row.ID == liquidationID {
			return row, nil
		}
	}
	return LiquidationRow{}, ErrLiquidationNotFound
}

func (f *fakeStore) HasLiquidations(ctx context.Context, companyID string, year, month int) (bool, error) {
	rows, err := f.ListLiquidations(ctx, companyID, year, month)
	return len(rows) > 0, err
}

func (f *fakeStore) ListPeriodCompanies(context.Context, int, int) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) CachedTotals(context.Context, string, int, int) (CachedTotals, error) {
	return CachedTotals{}, ErrCachedTotalsNotFound
}

func (f *fakeStore) ApplyCorrections(context.Context, string, []TotalsUpdate, CachedTotals) (int, error) {
	return 0, nil
}

func TestServiceLiquidationsCalculatesEveryRow(t *testing.T) {
	store := &fakeStore{rows: []LiquidationRow{
		{ID: "a", CompanyID: "c1", PeriodYear: 2025, PeriodMonth: 8, SueldoBase: Amount(1000), Salud: Amount(70)},
		{ID: "b", CompanyID: "c1", PeriodYear: 2025, PeriodMonth: 8, SueldoBase: Amount(2000), Prestamos: Amount(500)},
		{ID: "c", CompanyID: "c1", PeriodYear: 2025, PeriodMonth: 7, SueldoBase: Amount(9999)},
	}}
	svc := NewService(store)

	liquidations, err := svc.Liquidations(context.Background(), "c1", 2025, 8)
	if err != nil {
		t.Fatalf("liquidations: %v", err)
	}
	if len(liquidations) != 2 {
		t.Fatalf("expected 2 liquidations, got %d", len(liquidations))
	}
	if liquidations[1].Result.NetPay != 1500 {
		t.Fatalf("expected loan to be deducted, got %v", liquidations[1].Result.NetPay)
	}
}

func TestServiceLiquidationsWrapsStoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeStore{listErr: boom})
	if _, err := svc.Liquidations(context.Background(), "c1", 2025, 8); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestServiceValidateExternal(t *testing.T) {
	store := &fakeStore{rows: []LiquidationRow{
		{ID: "a", CompanyID: "c1", SueldoBase: Amount(1000), AFP: Amount(100)},
	}}
	svc := NewService(store)

	result, err := svc.ValidateExternal(context.Background(), "c1", "a", Totals{TotalEarnings: 1000, TotalDeductions: 100, NetPay: 900}, 0)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.IsConsistent {
		t.Fatalf("expected consistent result, got %+v", result)
	}

	if _, err := svc.ValidateExternal(context.Background(), "c1", "missing", Totals{}, 0); !errors.Is(err, ErrLiquidationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
