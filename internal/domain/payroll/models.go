package payroll

import "time"

// ItemizedComponents is one liquidation expressed as leaf amounts. Identity
// fields are informational and never take part in the arithmetic.
type ItemizedComponents struct {
	EmployeeID   string `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`

	BaseSalary         float64 `json:"baseSalary"`
	Overtime           float64 `json:"overtime"`
	LegalGratification float64 `json:"legalGratification"`
	Bonuses            float64 `json:"bonuses"`
	Commissions        float64 `json:"commissions"`
	FamilyAllowance    float64 `json:"familyAllowance"`
	MealAllowance      float64 `json:"mealAllowance"`
	TransportAllowance float64 `json:"transportAllowance"`
	OtherIncome        float64 `json:"otherIncome"`

	PensionContribution     float64 `json:"pensionContribution"`
	PensionCommission       float64 `json:"pensionCommission"`
	HealthContribution      float64 `json:"healthContribution"`
	UnemploymentInsurance   float64 `json:"unemploymentInsurance"`
	IncomeTax               float64 `json:"incomeTax"`
	LoanDeduction           float64 `json:"loanDeduction"`
	AdvanceDeduction        float64 `json:"advanceDeduction"`
	VoluntaryPensionSavings float64 `json:"voluntaryPensionSavings"`
	OtherDeductions         float64 `json:"otherDeductions"`
}

// Totals is the earnings/deductions/net triple every representation of a
// liquidation must agree on.
type Totals struct {
	TotalEarnings   float64 `json:"totalEarnings"`
	TotalDeductions float64 `json:"totalDeductions"`
	NetPay          float64 `json:"netPay"`
}

type CalculationValidation struct {
	ComponentsSumCorrect bool      `json:"componentsSumCorrect"`
	EarningsDifference   float64   `json:"earningsDifference"`
	DeductionsDifference float64   `json:"deductionsDifference"`
	NetPayDifference     float64   `json:"netPayDifference"`
	Method               string    `json:"method"`
	CalculatedAt         time.Time `json:"calculatedAt"`
}

type CalculationResult struct {
	Totals
	Validation CalculationValidation `json:"validation"`
}

type ExternalValidation struct {
	IsConsistent    bool     `json:"isConsistent"`
	Calculated      Totals   `json:"calculated"`
	External        Totals   `json:"external"`
	Differences     Totals   `json:"differences"`
	Tolerance       float64  `json:"tolerance"`
	Recommendations []string `json:"recommendations"`
}

// Liquidation pairs a persisted liquidation with its freshly calculated totals.
type Liquidation struct {
	ID         string             `json:"id"`
	CompanyID  string             `json:"companyId"`
	Components ItemizedComponents `json:"components"`
	Stored     Totals             `json:"stored"`
	Result     CalculationResult  `json:"result"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

type CachedTotals struct {
	CompanyID        string    `json:"companyId"`
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	TotalEarnings    float64   `json:"totalEarnings"`
	TotalDeductions  float64   `json:"totalDeductions"`
	TotalNetPay      float64   `json:"totalNetPay"`
	LiquidationCount int       `json:"liquidationCount"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TotalsUpdate overwrites the stored totals of one liquidation.
type TotalsUpdate struct {
	LiquidationID string
	Totals        Totals
}
