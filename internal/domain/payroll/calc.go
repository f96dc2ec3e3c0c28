package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Round2 rounds an amount to two decimal places.
func Round2(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

// AddRounded adds value to a running sum and rounds the result to cents.
// Every accumulation in this package goes through it so that all call sites
// drift identically.
func AddRounded(sum decimal.Decimal, value float64) decimal.Decimal {
	return sum.Add(decimal.NewFromFloat(value)).Round(2)
}

func (c ItemizedComponents) earnings() []float64 {
	return []float64{
		c.BaseSalary,
		c.Overtime,
		c.LegalGratification,
		c.Bonuses,
		c.Commissions,
		c.FamilyAllowance,
		c.MealAllowance,
		c.TransportAllowance,
		c.OtherIncome,
	}
}

func (c ItemizedComponents) deductions() []float64 {
	return []float64{
		c.PensionContribution,
		c.PensionCommission,
		c.HealthContribution,
		c.UnemploymentInsurance,
		c.IncomeTax,
		c.LoanDeduction,
		c.AdvanceDeduction,
		c.VoluntaryPensionSavings,
		c.OtherDeductions,
	}
}

func sum(values []float64) decimal.Decimal {
	total := decimal.Zero
	for _, value := range values {
		total = AddRounded(total, value)
	}
	return total
}

func earningsDecimal(c ItemizedComponents) decimal.Decimal {
	return sum(c.earnings())
}

func deductionsDecimal(c ItemizedComponents) decimal.Decimal {
	return sum(c.deductions())
}

func netDecimal(c ItemizedComponents) decimal.Decimal {
	return earningsDecimal(c).Sub(deductionsDecimal(c)).Round(2)
}

func TotalEarnings(c ItemizedComponents) float64 {
	return earningsDecimal(c).InexactFloat64()
}

func TotalDeductions(c ItemizedComponents) float64 {
	return deductionsDecimal(c).InexactFloat64()
}

func NetPay(c ItemizedComponents) float64 {
	return netDecimal(c).InexactFloat64()
}

// Calculate returns the totals triple derived from the components.
func Calculate(c ItemizedComponents) Totals {
	return Totals{
		TotalEarnings:   TotalEarnings(c),
		TotalDeductions: TotalDeductions(c),
		NetPay:          NetPay(c),
	}
}

// CalculateWithValidation is the entry point for every caller that needs
// payroll totals. The validation block always reports a correct sum since
// the totals can only be derived from the components.
func CalculateWithValidation(c ItemizedComponents) CalculationResult {
	return CalculationResult{
		Totals: Calculate(c),
		Validation: CalculationValidation{
			ComponentsSumCorrect: true,
			Method:               CalculationMethodItemized,
			CalculatedAt:         time.Now().UTC(),
		},
	}
}

// ValidateAgainstExternal compares the calculated totals with a triple
// supplied from outside (an uploaded spreadsheet, a displayed value). A
// tolerance <= 0 falls back to DefaultTolerance.
func ValidateAgainstExternal(c ItemizedComponents, external Totals, tolerance float64) ExternalValidation {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	calculated := Calculate(c)
	limit := decimal.NewFromFloat(tolerance)

	result := ExternalValidation{
		IsConsistent:    true,
		Calculated:      calculated,
		External:        external,
		Tolerance:       tolerance,
		Recommendations: []string{},
	}

	fields := []struct {
		name       string
		calculated float64
		external   float64
		diff       *float64
	}{
		{"total earnings", calculated.TotalEarnings, external.TotalEarnings, &result.Differences.TotalEarnings},
		{"total deductions", calculated.TotalDeductions, external.TotalDeductions, &result.Differences.TotalDeductions},
		{"net pay", calculated.NetPay, external.NetPay, &result.Differences.NetPay},
	}
	for _, field := range fields {
		diff := decimal.NewFromFloat(field.calculated).Sub(decimal.NewFromFloat(field.external)).Round(2)
		*field.diff = diff.InexactFloat64()
		if diff.Abs().GreaterThan(limit) {
			result.IsConsistent = false
			result.Recommendations = append(result.Recommendations,
				fmt.Sprintf("%s differs: calculated %.2f, external %.2f", field.name, field.calculated, field.external))
		}
	}
	return result
}
