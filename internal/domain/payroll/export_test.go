package payroll

import (
	"bytes"
	"encoding/csv"
	"testing"
)

func TestWriteRegisterUsesCalculatedTotals(t *testing.T) {
	row := LiquidationRow{
		ID:           "liq-1",
		EmployeeID:   "12345678-9",
		EmployeeName: "María González",
		PeriodYear:   2025,
		PeriodMonth:  8,
		SueldoBase:   Amount(1000),
		AFP:          Amount(100),
		ComisionAFP:  Amount(10),
		TotalHaberes: Amount(1),
	}

	var buf bytes.Buffer
	if err := WriteRegister(&buf, []Liquidation{ToLiquidation(row)}); err != nil {
		t.Fatalf("write register: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d", len(records))
	}
	header, record := records[0], records[1]
	if len(record) != len(header) {
		t.Fatalf("row has %d columns, header %d", len(record), len(header))
	}
	if record[2] != "2025-08" {
		t.Fatalf("unexpected period %q", record[2])
	}
	last := len(record) - 1
	if record[last-2] != "1000.00" || record[last-1] != "110.00" || record[last] != "890.00" {
		t.Fatalf("unexpected totals %v", record[last-2:])
	}
}
