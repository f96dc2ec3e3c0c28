package payroll

import "time"

// LiquidationRow is a liquidation as the database or an uploaded spreadsheet
// hands it over: nullable columns named after the local payroll vocabulary.
type LiquidationRow struct {
	ID           string
	CompanyID    string
	EmployeeID   string
	EmployeeName string
	PeriodYear   int
	PeriodMonth  int

	SueldoBase         *float64
	HorasExtras        *float64
	Gratificacion      *float64
	Bonos              *float64
	Comisiones         *float64
	AsignacionFamiliar *float64
	Colacion           *float64
	Movilizacion       *float64
	OtrosHaberes       *float64

	AFP             *float64
	ComisionAFP     *float64
	Salud           *float64
	Cesantia        *float64
	ImpuestoUnico   *float64
	Prestamos       *float64
	Anticipos       *float64
	APV             *float64
	OtrosDescuentos *float64

	TotalHaberes    *float64
	TotalDescuentos *float64
	LiquidoPagar    *float64

	UpdatedAt time.Time
}

// FromLiquidationRow is the only conversion from persistence-shaped rows to
// ItemizedComponents. Null columns become zero.
func FromLiquidationRow(row LiquidationRow) ItemizedComponents {
	return ItemizedComponents{
		EmployeeID:   row.EmployeeID,
		EmployeeName: row.EmployeeName,
		Year:         row.PeriodYear,
		Month:        row.PeriodMonth,

		BaseSalary:         value(row.SueldoBase),
		Overtime:           value(row.HorasExtras),
		LegalGratification: value(row.Gratificacion),
		Bonuses:            value(row.Bonos),
		Commissions:        value(row.Comisiones),
		FamilyAllowance:    value(row.AsignacionFamiliar),
		MealAllowance:      value(row.Colacion),
		TransportAllowance: value(row.Movilizacion),
		OtherIncome:        value(row.OtrosHaberes),

		PensionContribution:     value(row.AFP),
		PensionCommission:       value(row.ComisionAFP),
		HealthContribution:      value(row.Salud),
		UnemploymentInsurance:   value(row.Cesantia),
		IncomeTax:               value(row.ImpuestoUnico),
		LoanDeduction:           value(row.Prestamos),
		AdvanceDeduction:        value(row.Anticipos),
		VoluntaryPensionSavings: value(row.APV),
		OtherDeductions:         value(row.OtrosDescuentos),
	}
}

// Stored returns the totals cached on the row.
func (row LiquidationRow) Stored() Totals {
	return Totals{
		TotalEarnings:   value(row.TotalHaberes),
		TotalDeductions: value(row.TotalDescuentos),
		NetPay:          value(row.LiquidoPagar),
	}
}

// ShownTotals returns the totals the row itself carries. Each missing
// totals column is taken from the calculator, so a sheet that only shows
// net pay is compared on net pay alone.
func (row LiquidationRow) ShownTotals() Totals {
	calculated := Calculate(FromLiquidationRow(row))
	return Totals{
		TotalEarnings:   valueOr(row.TotalHaberes, calculated.TotalEarnings),
		TotalDeductions: valueOr(row.TotalDescuentos, calculated.TotalDeductions),
		NetPay:          valueOr(row.LiquidoPagar, calculated.NetPay),
	}
}

// ToLiquidation computes the row's totals through the calculator.
func ToLiquidation(row LiquidationRow) Liquidation {
	components := FromLiquidationRow(row)
	return Liquidation{
		ID:         row.ID,
		CompanyID:  row.CompanyID,
		Components: components,
		Stored:     row.Stored(),
		Result:     CalculateWithValidation(components),
		UpdatedAt:  row.UpdatedAt,
	}
}

// ColumnTarget returns a pointer to the amount column with the given name, or
// nil for unknown names. Both the snake_case column name and the camelCase
// JSON name of the matching component are accepted.
func (row *LiquidationRow) ColumnTarget(name string) **float64 {
	switch name {
	case "sueldo_base", "basesalary":
		return &row.SueldoBase
	case "horas_extras", "overtime":
		return &row.HorasExtras
	case "gratificacion", "legalgratification":
		return &row.Gratificacion
	case "bonos", "bonuses":
		return &row.Bonos
	case "comisiones", "commissions":
		return &row.Comisiones
	case "asignacion_familiar", "familyallowance":
		return &row.AsignacionFamiliar
	case "colacion", "mealallowance":
		return &row.Colacion
	case "movilizacion", "transportallowance":
		return &row.Movilizacion
	case "otros_haberes", "otherincome":
		return &row.OtrosHaberes
	case "afp", "pensioncontribution":
		return &row.AFP
	case "comision_afp", "pensioncommission":
		return &row.ComisionAFP
	case "salud", "healthcontribution":
		return &row.Salud
	case "cesantia", "unemploymentinsurance":
		return &row.Cesantia
	case "impuesto_unico", "incometax":
		return &row.ImpuestoUnico
	case "prestamos", "loandeduction":
		return &row.Prestamos
	case "anticipos", "advancededuction":
		return &row.Anticipos
	case "apv", "voluntarypensionsavings":
		return &row.APV
	case "otros_descuentos", "otherdeductions":
		return &row.OtrosDescuentos
	case "total_haberes", "totalearnings":
		return &row.TotalHaberes
	case "total_descuentos", "totaldeductions":
		return &row.TotalDescuentos
	case "liquido_pagar", "netpay":
		return &row.LiquidoPagar
	}
	return nil
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// Amount is a helper for building rows by hand.
func Amount(v float64) *float64 {
	return &v
}
