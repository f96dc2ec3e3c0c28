package payroll

import (
	"bytes"
	"testing"
)

func TestWritePayslipPDF(t *testing.T) {
	l := ToLiquidation(LiquidationRow{
		ID:           "liq-1",
		EmployeeID:   "12345678-9",
		EmployeeName: "María González",
		PeriodYear:   2025,
		PeriodMonth:  8,
		SueldoBase:   Amount(2772923),
		AFP:          Amount(399034),
	})

	var buf bytes.Buffer
	if err := WritePayslipPDF(&buf, l); err != nil {
		t.Fatalf("write payslip: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatal("expected pdf output")
	}
}
