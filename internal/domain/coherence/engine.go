package coherence

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"contapyme/internal/domain/payroll"
)

const (
	actionNone       = "No action required: all sources agree within tolerance"
	actionRefresh    = "Refresh cached data and verify the inputs of the affected sources"
	actionUpdate     = "Update stored values with the recalculated values"
	actionRegenerate = "Regenerate all data through the unified calculator after human review"
)

// Engine compares totals snapshots. It holds configuration only and is safe
// for concurrent use.
type Engine struct {
	thresholds Thresholds
	now        func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an engine. Non-positive thresholds fall back to the
// defaults field by field.
func NewEngine(thresholds Thresholds, opts ...Option) *Engine {
	defaults := DefaultThresholds()
	if thresholds.Tolerance <= 0 {
		thresholds.Tolerance = defaults.Tolerance
	}
	if thresholds.Medium <= 0 {
		thresholds.Medium = defaults.Medium
	}
	if thresholds.High <= 0 {
		thresholds.High = defaults.High
	}
	if thresholds.Critical <= 0 {
		thresholds.Critical = defaults.Critical
	}
	e := &Engine{thresholds: thresholds, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Classify returns the severity of a pair given the largest absolute delta,
// or SeverityNone when the delta is within tolerance.
func (e *Engine) Classify(maxAbsDiff float64) Severity {
	d := decimal.NewFromFloat(math.Abs(maxAbsDiff))
	switch {
	case !d.GreaterThan(decimal.NewFromFloat(e.thresholds.Tolerance)):
		return SeverityNone
	case d.GreaterThan(decimal.NewFromFloat(e.thresholds.Critical)):
		return SeverityCritical
	case d.GreaterThan(decimal.NewFromFloat(e.thresholds.High)):
		return SeverityHigh
	case d.GreaterThan(decimal.NewFromFloat(e.thresholds.Medium)):
		return SeverityMedium
	}
	return SeverityLow
}

func diff(a, b float64) decimal.Decimal {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2)
}

func (e *Engine) compare(a, b DataSource) Discrepancy {
	earnings := diff(a.TotalEarnings, b.TotalEarnings)
	deductions := diff(a.TotalDeductions, b.TotalDeductions)
	net := diff(a.TotalNetPay, b.TotalNetPay)
	maxAbs := decimal.Max(earnings.Abs(), deductions.Abs(), net.Abs())

	return Discrepancy{
		SourceA:        a.Origin,
		SourceB:        b.Origin,
		EarningsDiff:   earnings.InexactFloat64(),
		DeductionsDiff: deductions.InexactFloat64(),
		NetPayDiff:     net.InexactFloat64(),
		MaxAbsDiff:     maxAbs.InexactFloat64(),
		Severity:       e.Classify(maxAbs.InexactFloat64()),
	}
}

// ValidateCoherence compares every unordered pair of sources. Deltas are
// signed as sources[i] - sources[j] for i < j.
func (e *Engine) ValidateCoherence(companyID string, year, month int, sources []DataSource) Validation {
	validation := Validation{
		CompanyID:     companyID,
		Year:          year,
		Month:         month,
		Discrepancies: []Discrepancy{},
		CheckedAt:     e.now().UTC(),
	}

	coherentPairs := 0
	worst := SeverityNone
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			validation.ComparedPairs++
			pair := e.compare(sources[i], sources[j])
			if pair.Severity == SeverityNone {
				coherentPairs++
				continue
			}
			validation.Discrepancies = append(validation.Discrepancies, pair)
			if pair.Severity.rank() > worst.rank() {
				worst = pair.Severity
			}
		}
	}

	validation.IsCoherent = len(validation.Discrepancies) == 0
	validation.ConfidenceScore = 100
	if validation.ComparedPairs > 0 {
		validation.ConfidenceScore = int(math.Round(100 * float64(coherentPairs) / float64(validation.ComparedPairs)))
	}
	validation.WorstSeverity = worst
	validation.Remediation, validation.RecommendedAction, validation.AutoFixable = remediationFor(worst)
	return validation
}

func remediationFor(worst Severity) (Remediation, string, bool) {
	switch worst {
	case SeverityCritical:
		return RemediationRegenerate, actionRegenerate, false
	case SeverityHigh:
		return RemediationUpdate, actionUpdate, true
	case SeverityMedium, SeverityLow:
		return RemediationRefresh, actionRefresh, true
	}
	return RemediationNone, actionNone, true
}

// GenerateCoherentSource aggregates itemized records through the calculator
// into a snapshot tagged with origin.
func (e *Engine) GenerateCoherentSource(records []payroll.ItemizedComponents, companyID string, year, month int, origin Origin) DataSource {
	earnings, deductions, net := decimal.Zero, decimal.Zero, decimal.Zero
	for _, record := range records {
		result := payroll.CalculateWithValidation(record)
		earnings = payroll.AddRounded(earnings, result.TotalEarnings)
		deductions = payroll.AddRounded(deductions, result.TotalDeductions)
		net = payroll.AddRounded(net, result.NetPay)
	}
	return DataSource{
		CompanyID:        companyID,
		Year:             year,
		Month:            month,
		Origin:           origin,
		TotalEarnings:    earnings.InexactFloat64(),
		TotalDeductions:  deductions.InexactFloat64(),
		TotalNetPay:      net.InexactFloat64(),
		LiquidationCount: len(records),
		LastUpdated:      e.now().UTC(),
	}
}

// SourceFromTotals wraps an already aggregated triple, such as a cached
// period row, as a data source.
func SourceFromTotals(companyID string, year, month int, origin Origin, totals payroll.Totals, count int, updated time.Time) DataSource {
	return DataSource{
		CompanyID:        companyID,
		Year:             year,
		Month:            month,
		Origin:           origin,
		TotalEarnings:    totals.TotalEarnings,
		TotalDeductions:  totals.TotalDeductions,
		TotalNetPay:      totals.NetPay,
		LiquidationCount: count,
		LastUpdated:      updated,
	}
}

// AutoFixIncoherentData computes the corrections that would bring every
// record's stored totals in line with the calculator. Nothing is written; a
// bad record is reported in Errors and the rest of the batch continues.
func (e *Engine) AutoFixIncoherentData(records []StoredLiquidation) AutoFixResult {
	result := AutoFixResult{
		Corrections: []Correction{},
		Errors:      []RecordError{},
	}
	earnings, deductions, net := decimal.Zero, decimal.Zero, decimal.Zero

	for _, record := range records {
		correction, needsFix, err := e.correctionFor(record)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{
				LiquidationID: record.ID,
				EmployeeID:    record.Components.EmployeeID,
				Message:       err.Error(),
			})
			continue
		}
		if !needsFix {
			continue
		}
		result.FixedCount++
		result.Corrections = append(result.Corrections, correction)
		earnings = payroll.AddRounded(earnings, correction.Delta.TotalEarnings)
		deductions = payroll.AddRounded(deductions, correction.Delta.TotalDeductions)
		net = payroll.AddRounded(net, correction.Delta.NetPay)
	}

	result.TotalCorrections = payroll.Totals{
		TotalEarnings:   earnings.InexactFloat64(),
		TotalDeductions: deductions.InexactFloat64(),
		NetPay:          net.InexactFloat64(),
	}
	result.Success = len(result.Errors) == 0
	return result
}

func (e *Engine) correctionFor(record StoredLiquidation) (Correction, bool, error) {
	if strings.TrimSpace(record.ID) == "" {
		return Correction{}, false, fmt.Errorf("record has no liquidation id")
	}
	if field, ok := nonFinite(record); ok {
		return Correction{}, false, fmt.Errorf("liquidation %s: %s is not a finite amount", record.ID, field)
	}

	corrected := payroll.CalculateWithValidation(record.Components).Totals
	delta := payroll.Totals{
		TotalEarnings:   diff(corrected.TotalEarnings, record.Stored.TotalEarnings).InexactFloat64(),
		TotalDeductions: diff(corrected.TotalDeductions, record.Stored.TotalDeductions).InexactFloat64(),
		NetPay:          diff(corrected.NetPay, record.Stored.NetPay).InexactFloat64(),
	}
	maxAbs := math.Max(math.Abs(delta.TotalEarnings), math.Max(math.Abs(delta.TotalDeductions), math.Abs(delta.NetPay)))
	if e.Classify(maxAbs) == SeverityNone {
		return Correction{}, false, nil
	}
	return Correction{
		LiquidationID: record.ID,
		EmployeeID:    record.Components.EmployeeID,
		Stored:        record.Stored,
		Corrected:     corrected,
		Delta:         delta,
	}, true, nil
}

func nonFinite(record StoredLiquidation) (string, bool) {
	c := record.Components
	amounts := map[string]float64{
		"baseSalary":              c.BaseSalary,
		"overtime":                c.Overtime,
		"legalGratification":      c.LegalGratification,
		"bonuses":                 c.Bonuses,
		"commissions":             c.Commissions,
		"familyAllowance":         c.FamilyAllowance,
		"mealAllowance":           c.MealAllowance,
		"transportAllowance":      c.TransportAllowance,
		"otherIncome":             c.OtherIncome,
		"pensionContribution":     c.PensionContribution,
		"pensionCommission":       c.PensionCommission,
		"healthContribution":      c.HealthContribution,
		"unemploymentInsurance":   c.UnemploymentInsurance,
		"incomeTax":               c.IncomeTax,
		"loanDeduction":           c.LoanDeduction,
		"advanceDeduction":        c.AdvanceDeduction,
		"voluntaryPensionSavings": c.VoluntaryPensionSavings,
		"otherDeductions":         c.OtherDeductions,
		"stored.totalEarnings":    record.Stored.TotalEarnings,
		"stored.totalDeductions":  record.Stored.TotalDeductions,
		"stored.netPay":           record.Stored.NetPay,
	}
	for field, amount := range amounts {
		if math.IsNaN(amount) || math.IsInf(amount, 0) {
			return field, true
		}
	}
	return "", false
}
