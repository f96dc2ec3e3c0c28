package payroll

import (
	"encoding/csv"
	"io"
	"strconv"
)

var registerHeader = []string{
	"employee_id", "employee_name", "period",
	"sueldo_base", "horas_extras", "gratificacion", "bonos", "comisiones",
	"asignacion_familiar", "colacion", "movilizacion", "otros_haberes",
	"afp", "comision_afp", "salud", "cesantia", "impuesto_unico",
	"prestamos", "anticipos", "apv", "otros_descuentos",
	"total_haberes", "total_descuentos", "liquido_pagar",
}

// WriteRegister writes the payroll register as CSV. Totals columns come from
// the calculation result, never from the stored row, so the export matches
// what the API returns.
func WriteRegister(w io.Writer, liquidations []Liquidation) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(registerHeader); err != nil {
		return err
	}
	for _, l := range liquidations {
		c := l.Components
		record := []string{c.EmployeeID, c.EmployeeName, periodLabel(c.Year, c.Month)}
		for _, amount := range append(c.earnings(), c.deductions()...) {
			record = append(record, formatAmount(amount))
		}
		record = append(record,
			formatAmount(l.Result.TotalEarnings),
			formatAmount(l.Result.TotalDeductions),
			formatAmount(l.Result.NetPay),
		)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func periodLabel(year, month int) string {
	if month < 10 {
		return strconv.Itoa(year) + "-0" + strconv.Itoa(month)
	}
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}
