package coherence

import (
	"context"
	"errors"
	"fmt"

	"contapyme/internal/domain/payroll"
)

// Store is the persistence the coherence service needs. payroll.Store
// satisfies it.
type Store interface {
	ListLiquidations(ctx context.Context, companyID string, year, month int) ([]payroll.LiquidationRow, error)
	CachedTotals(ctx context.Context, companyID string, year, month int) (payroll.CachedTotals, error)
	ApplyCorrections(ctx context.Context, companyID string, updates []payroll.TotalsUpdate, cached payroll.CachedTotals) (int, error)
}

type AuditResult struct {
	Validation Validation   `json:"validation"`
	Report     Report       `json:"report"`
	Sources    []DataSource `json:"sources"`
}

type EmployeeCheck struct {
	Line          int                        `json:"line"`
	EmployeeID    string                     `json:"employeeId"`
	LiquidationID string                     `json:"liquidationId,omitempty"`
	Found         bool                       `json:"found"`
	Result        payroll.ExternalValidation `json:"result"`
}

type UploadResult struct {
	Audit          AuditResult     `json:"audit"`
	Employees      []EmployeeCheck `json:"employees"`
	Inconsistent   int             `json:"inconsistent"`
	UnknownRecords int             `json:"unknownRecords"`
	RowErrors      []RowError      `json:"rowErrors"`
}

type Service struct {
	store  Store
	engine *Engine
}

func NewService(store Store, engine *Engine) *Service {
	if engine == nil {
		engine = NewEngine(DefaultThresholds())
	}
	return &Service{store: store, engine: engine}
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// sources loads the calculated snapshot and, when one exists, the cached
// period totals.
func (s *Service) sources(ctx context.Context, companyID string, year, month int) ([]payroll.LiquidationRow, []DataSource, error) {
	rows, err := s.store.ListLiquidations(ctx, companyID, year, month)
	if err != nil {
		return nil, nil, fmt.Errorf("list liquidations: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, payroll.ErrNoLiquidations
	}

	records := make([]payroll.ItemizedComponents, 0, len(rows))
	for _, row := range rows {
		records = append(records, payroll.FromLiquidationRow(row))
	}
	sources := []DataSource{}

	cached, err := s.store.CachedTotals(ctx, companyID, year, month)
	switch {
	case err == nil:
		sources = append(sources, SourceFromTotals(companyID, year, month, OriginDatabaseCached, payroll.Totals{
			TotalEarnings:   cached.TotalEarnings,
			TotalDeductions: cached.TotalDeductions,
			NetPay:          cached.TotalNetPay,
		}, cached.LiquidationCount, cached.UpdatedAt))
	case errors.Is(err, payroll.ErrCachedTotalsNotFound):
	default:
		return nil, nil, fmt.Errorf("load cached totals: %w", err)
	}

	sources = append(sources, s.engine.GenerateCoherentSource(records, companyID, year, month, OriginCalculated))
	return rows, sources, nil
}

// Audit compares the cached period totals with a fresh calculation plus any
// extra sources supplied by the caller.
func (s *Service) Audit(ctx context.Context, companyID string, year, month int, extra ...DataSource) (AuditResult, error) {
	_, sources, err := s.sources(ctx, companyID, year, month)
	if err != nil {
		return AuditResult{}, err
	}
	sources = append(sources, extra...)
	return s.audit(companyID, year, month, sources), nil
}

func (s *Service) audit(companyID string, year, month int, sources []DataSource) AuditResult {
	validation := s.engine.ValidateCoherence(companyID, year, month, sources)
	return AuditResult{
		Validation: validation,
		Report:     GenerateReport(validation, sources),
		Sources:    sources,
	}
}

// ValidateUpload checks an uploaded spreadsheet row by row against the
// stored components and then as an aggregate source.
func (s *Service) ValidateUpload(ctx context.Context, companyID string, year, month int, upload Upload) (UploadResult, error) {
	rows, sources, err := s.sources(ctx, companyID, year, month)
	if err != nil {
		return UploadResult{}, err
	}

	byEmployee := make(map[string][]payroll.LiquidationRow, len(rows))
	for _, row := range rows {
		byEmployee[row.EmployeeID] = append(byEmployee[row.EmployeeID], row)
	}

	result := UploadResult{
		Employees: make([]EmployeeCheck, 0, len(upload.Rows)),
		RowErrors: append([]RowError{}, upload.RowErrors...),
	}
	tolerance := s.engine.Thresholds().Tolerance
	for i, uploaded := range upload.Rows {
		check := EmployeeCheck{EmployeeID: uploaded.EmployeeID}
		if i < len(upload.Lines) {
			check.Line = upload.Lines[i]
		}
		matches := byEmployee[uploaded.EmployeeID]
		if len(matches) == 0 {
			result.UnknownRecords++
			result.Employees = append(result.Employees, check)
			continue
		}
		if len(matches) > 1 {
			result.RowErrors = append(result.RowErrors, RowError{
				Line:    check.Line,
				Message: fmt.Sprintf("employee %s has %d liquidations in the period", uploaded.EmployeeID, len(matches)),
			})
			continue
		}
		stored := matches[0]
		check.Found = true
		check.LiquidationID = stored.ID
		check.Result = payroll.ValidateAgainstExternal(payroll.FromLiquidationRow(stored), uploaded.ShownTotals(), tolerance)
		if !check.Result.IsConsistent {
			result.Inconsistent++
		}
		result.Employees = append(result.Employees, check)
	}

	sources = append(sources, s.engine.SpreadsheetSource(upload.Rows, companyID, year, month))
	result.Audit = s.audit(companyID, year, month, sources)
	return result, nil
}

// AutoFix computes the corrections for a period. With apply set, the
// corrected totals and the recalculated period cache are written in one
// transaction, so a failed apply leaves both untouched.
func (s *Service) AutoFix(ctx context.Context, companyID string, year, month int, apply bool) (AutoFixResult, error) {
	rows, err := s.store.ListLiquidations(ctx, companyID, year, month)
	if err != nil {
		return AutoFixResult{}, fmt.Errorf("list liquidations: %w", err)
	}
	if len(rows) == 0 {
		return AutoFixResult{}, payroll.ErrNoLiquidations
	}

	records := make([]StoredLiquidation, 0, len(rows))
	for _, row := range rows {
		records = append(records, StoredLiquidation{
			ID:         row.ID,
			Components: payroll.FromLiquidationRow(row),
			Stored:     row.Stored(),
		})
	}
	result := s.engine.AutoFixIncoherentData(records)
	if !apply {
		return result, nil
	}

	updates := make([]payroll.TotalsUpdate, 0, len(result.Corrections))
	for _, correction := range result.Corrections {
		updates = append(updates, payroll.TotalsUpdate{
			LiquidationID: correction.LiquidationID,
			Totals:        correction.Corrected,
		})
	}
	applied, err := s.store.ApplyCorrections(ctx, companyID, updates, s.cachedTotals(companyID, year, month, rows))
	if err != nil {
		return result, fmt.Errorf("apply corrections: %w", err)
	}
	result.Applied = true
	result.AppliedCount = applied
	return result, nil
}

// cachedTotals builds the period totals the cache should hold for rows.
func (s *Service) cachedTotals(companyID string, year, month int, rows []payroll.LiquidationRow) payroll.CachedTotals {
	records := make([]payroll.ItemizedComponents, 0, len(rows))
	for _, row := range rows {
		records = append(records, payroll.FromLiquidationRow(row))
	}
	source := s.engine.GenerateCoherentSource(records, companyID, year, month, OriginCalculated)
	return payroll.CachedTotals{
		CompanyID:        companyID,
		Year:             year,
		Month:            month,
		TotalEarnings:    source.TotalEarnings,
		TotalDeductions:  source.TotalDeductions,
		TotalNetPay:      source.TotalNetPay,
		LiquidationCount: source.LiquidationCount,
		UpdatedAt:        source.LastUpdated,
	}
}
