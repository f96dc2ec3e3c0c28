package payroll

const (
	// DefaultTolerance is one peso.
	DefaultTolerance = 1.0

	CalculationMethodItemized = "itemized_components"

	MinPeriodYear = 2000
	MaxPeriodYear = 2100
)
