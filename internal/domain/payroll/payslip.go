package payroll

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

type payslipLine struct {
	label  string
	amount float64
}

// WritePayslipPDF renders a single liquidation as a payslip. The totals are
// the calculated ones.
func WritePayslipPDF(w io.Writer, l Liquidation) error {
	c := l.Components

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, tr("Liquidación de sueldo"))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Trabajador: %s (%s)", c.EmployeeName, c.EmployeeID)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Periodo: %s", periodLabel(c.Year, c.Month)))
	pdf.Ln(10)

	writeSection(pdf, tr, "Haberes", []payslipLine{
		{"Sueldo base", c.BaseSalary},
		{"Horas extras", c.Overtime},
		{"Gratificación", c.LegalGratification},
		{"Bonos", c.Bonuses},
		{"Comisiones", c.Commissions},
		{"Asignación familiar", c.FamilyAllowance},
		{"Colación", c.MealAllowance},
		{"Movilización", c.TransportAllowance},
		{"Otros haberes", c.OtherIncome},
	}, l.Result.TotalEarnings)

	writeSection(pdf, tr, "Descuentos", []payslipLine{
		{"AFP", c.PensionContribution},
		{"Comisión AFP", c.PensionCommission},
		{"Salud", c.HealthContribution},
		{"Seguro de cesantía", c.UnemploymentInsurance},
		{"Impuesto único", c.IncomeTax},
		{"Préstamos", c.LoanDeduction},
		{"Anticipos", c.AdvanceDeduction},
		{"APV", c.VoluntaryPensionSavings},
		{"Otros descuentos", c.OtherDeductions},
	}, l.Result.TotalDeductions)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(120, 9, tr("Líquido a pagar"), "T", 0, "L", false, 0, "")
	pdf.CellFormat(50, 9, formatAmount(l.Result.NetPay), "T", 1, "R", false, 0, "")

	return pdf.Output(w)
}

func writeSection(pdf *gofpdf.Fpdf, tr func(string) string, title string, lines []payslipLine, total float64) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range lines {
		if line.amount == 0 {
			continue
		}
		pdf.CellFormat(120, 6, tr(line.label), "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, formatAmount(line.amount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, 7, "Total "+tr(title), "T", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, formatAmount(total), "T", 1, "R", false, 0, "")
	pdf.Ln(4)
}
