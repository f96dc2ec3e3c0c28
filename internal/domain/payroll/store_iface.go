package payroll

import "context"

type StoreAPI interface {
	ListLiquidations(ctx context.Context, companyID string, year, month int) ([]LiquidationRow, error)
	GetLiquidation(ctx context.Context, companyID, liquidationID string) (LiquidationRow, error)
	HasLiquidations(ctx context.Context, companyID string, year, month int) (bool, error)
	ListPeriodCompanies(ctx context.Context, year, month int) ([]string, error)
	CachedTotals(ctx context.Context, companyID string, year, month int) (CachedTotals, error)
	ApplyCorrections(ctx context.Context, companyID string, updates []TotalsUpdate, cached CachedTotals) (int, error)
}
