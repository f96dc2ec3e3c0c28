package payroll

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func componentsFrom(amounts []float64) ItemizedComponents {
	get := func(i int) float64 {
		if i < len(amounts) {
			return amounts[i]
		}
		return 0
	}
	return ItemizedComponents{
		BaseSalary:              get(0),
		Overtime:                get(1),
		LegalGratification:      get(2),
		Bonuses:                 get(3),
		Commissions:             get(4),
		FamilyAllowance:         get(5),
		MealAllowance:           get(6),
		TransportAllowance:      get(7),
		OtherIncome:             get(8),
		PensionContribution:     get(9),
		PensionCommission:       get(10),
		HealthContribution:      get(11),
		UnemploymentInsurance:   get(12),
		IncomeTax:               get(13),
		LoanDeduction:           get(14),
		AdvanceDeduction:        get(15),
		VoluntaryPensionSavings: get(16),
		OtherDeductions:         get(17),
	}
}

func amountsGen() gopter.Gen {
	return gen.SliceOfN(18, gen.Float64Range(0, 5_000_000))
}

func TestCalculatorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("calculation is deterministic", prop.ForAll(
		func(amounts []float64) bool {
			c := componentsFrom(amounts)
			return Calculate(c) == Calculate(c)
		},
		amountsGen(),
	))

	properties.Property("net pay equals earnings minus deductions", prop.ForAll(
		func(amounts []float64) bool {
			c := componentsFrom(amounts)
			totals := Calculate(c)
			expected := decimal.NewFromFloat(totals.TotalEarnings).Sub(decimal.NewFromFloat(totals.TotalDeductions))
			return decimal.NewFromFloat(totals.NetPay).Equal(expected)
		},
		amountsGen(),
	))

	properties.Property("validation block always holds", prop.ForAll(
		func(amounts []float64) bool {
			result := CalculateWithValidation(componentsFrom(amounts))
			v := result.Validation
			return v.ComponentsSumCorrect && v.EarningsDifference == 0 && v.DeductionsDifference == 0 && v.NetPayDifference == 0
		},
		amountsGen(),
	))

	properties.Property("calculated totals are consistent with themselves", prop.ForAll(
		func(amounts []float64) bool {
			c := componentsFrom(amounts)
			return ValidateAgainstExternal(c, Calculate(c), DefaultTolerance).IsConsistent
		},
		amountsGen(),
	))

	properties.TestingRun(t)
}
