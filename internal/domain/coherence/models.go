package coherence

import (
	"time"

	"contapyme/internal/domain/payroll"
)

// Origin identifies which subsystem produced a totals snapshot. The set is
// open; the constants cover the origins this service produces or accepts.
type Origin string

const (
	OriginDatabaseCached      Origin = "database_cached"
	OriginCalculated          Origin = "calculated"
	OriginInterfaceDisplayed  Origin = "interface_displayed"
	OriginSpreadsheetUploaded Origin = "spreadsheet_uploaded"
)

type Severity string

const (
	SeverityNone     Severity = ""
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

type Remediation string

const (
	RemediationNone       Remediation = "none"
	RemediationRefresh    Remediation = "refresh_cache"
	RemediationUpdate     Remediation = "update_stored_values"
	RemediationRegenerate Remediation = "regenerate_all"
)

// Thresholds are expressed in currency units. Every comparison is strict:
// a delta equal to a threshold stays in the lower tier.
type Thresholds struct {
	Tolerance float64 `json:"tolerance"`
	Medium    float64 `json:"medium"`
	High      float64 `json:"high"`
	Critical  float64 `json:"critical"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Tolerance: payroll.DefaultTolerance,
		Medium:    1_000,
		High:      10_000,
		Critical:  50_000,
	}
}

// DataSource is an aggregate totals snapshot for one company and period,
// keyed by (CompanyID, Year, Month, Origin).
type DataSource struct {
	CompanyID        string    `json:"companyId"`
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	Origin           Origin    `json:"origin"`
	TotalEarnings    float64   `json:"totalEarnings"`
	TotalDeductions  float64   `json:"totalDeductions"`
	TotalNetPay      float64   `json:"totalNetPay"`
	LiquidationCount int       `json:"liquidationCount"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

type Discrepancy struct {
	SourceA        Origin   `json:"sourceA"`
	SourceB        Origin   `json:"sourceB"`
	EarningsDiff   float64  `json:"earningsDiff"`
	DeductionsDiff float64  `json:"deductionsDiff"`
	NetPayDiff     float64  `json:"netPayDiff"`
	MaxAbsDiff     float64  `json:"maxAbsDiff"`
	Severity       Severity `json:"severity"`
}

type Validation struct {
	CompanyID         string        `json:"companyId"`
	Year              int           `json:"year"`
	Month             int           `json:"month"`
	IsCoherent        bool          `json:"isCoherent"`
	Discrepancies     []Discrepancy `json:"discrepancies"`
	ComparedPairs     int           `json:"comparedPairs"`
	ConfidenceScore   int           `json:"confidenceScore"`
	WorstSeverity     Severity      `json:"worstSeverity,omitempty"`
	Remediation       Remediation   `json:"remediation"`
	RecommendedAction string        `json:"recommendedAction"`
	AutoFixable       bool          `json:"autoFixable"`
	CheckedAt         time.Time     `json:"checkedAt"`
}

// StoredLiquidation is a liquidation together with the totals currently
// persisted for it.
type StoredLiquidation struct {
	ID         string                     `json:"id"`
	Components payroll.ItemizedComponents `json:"components"`
	Stored     payroll.Totals             `json:"stored"`
}

type Correction struct {
	LiquidationID string         `json:"liquidationId"`
	EmployeeID    string         `json:"employeeId"`
	Stored        payroll.Totals `json:"stored"`
	Corrected     payroll.Totals `json:"corrected"`
	Delta         payroll.Totals `json:"delta"`
}

type RecordError struct {
	LiquidationID string `json:"liquidationId"`
	EmployeeID    string `json:"employeeId,omitempty"`
	Message       string `json:"message"`
}

type AutoFixResult struct {
	Success          bool           `json:"success"`
	FixedCount       int            `json:"fixedCount"`
	TotalCorrections payroll.Totals `json:"totalCorrections"`
	Corrections      []Correction   `json:"corrections"`
	Errors           []RecordError  `json:"errors"`
	Applied          bool           `json:"applied"`
	AppliedCount     int            `json:"appliedCount"`
}

type ConfidenceLevel string

const (
	ConfidenceExcellent ConfidenceLevel = "excellent"
	ConfidenceGood      ConfidenceLevel = "good"
	ConfidenceFair      ConfidenceLevel = "fair"
	ConfidencePoor      ConfidenceLevel = "poor"
)

type Report struct {
	Summary         string          `json:"summary"`
	Details         []string        `json:"details"`
	ActionPlan      []string        `json:"actionPlan"`
	ConfidenceLevel ConfidenceLevel `json:"confidenceLevel"`
}
