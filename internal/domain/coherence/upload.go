package coherence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"contapyme/internal/domain/payroll"
)

var ErrEmptyUpload = errors.New("upload has no header row")

type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type Upload struct {
	Rows      []payroll.LiquidationRow `json:"-"`
	Lines     []int                    `json:"-"`
	RowErrors []RowError               `json:"rowErrors"`
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	h = strings.ToLower(h)
	return strings.ReplaceAll(h, " ", "_")
}

func parseAmount(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "$")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return &v, nil
}

// ParseUpload reads a CSV export of a payroll spreadsheet. Header names are
// matched case-insensitively against the liquidation column names and the
// component JSON names. Bad rows are collected in RowErrors; only an
// unreadable file is an error.
func ParseUpload(r io.Reader) (Upload, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Upload{}, ErrEmptyUpload
	}
	if err != nil {
		return Upload{}, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = normalizeHeader(header[i])
	}

	upload := Upload{Rows: []payroll.LiquidationRow{}, RowErrors: []RowError{}}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				upload.RowErrors = append(upload.RowErrors, RowError{Line: parseErr.Line, Message: parseErr.Err.Error()})
				continue
			}
			return Upload{}, fmt.Errorf("read upload: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}

		row, rowErr := parseRow(header, record)
		if rowErr != "" {
			upload.RowErrors = append(upload.RowErrors, RowError{Line: line, Message: rowErr})
			continue
		}
		upload.Rows = append(upload.Rows, row)
		upload.Lines = append(upload.Lines, line)
	}
	return upload, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func parseRow(header, record []string) (payroll.LiquidationRow, string) {
	var row payroll.LiquidationRow
	for i, name := range header {
		if i >= len(record) {
			break
		}
		cell := strings.TrimSpace(record[i])
		switch name {
		case "employee_id", "employeeid", "rut":
			row.EmployeeID = cell
			continue
		case "employee_name", "employeename", "nombre":
			row.EmployeeName = cell
			continue
		}
		target := row.ColumnTarget(name)
		if target == nil {
			continue
		}
		amount, err := parseAmount(cell)
		if err != nil {
			return payroll.LiquidationRow{}, fmt.Sprintf("%s: %v", name, err)
		}
		*target = amount
	}
	if row.EmployeeID == "" {
		return payroll.LiquidationRow{}, "missing employee id"
	}
	return row, ""
}

// SpreadsheetSource aggregates uploaded rows into a snapshot of what the
// spreadsheet shows. Totals columns a row leaves empty come from the
// calculator.
func (e *Engine) SpreadsheetSource(rows []payroll.LiquidationRow, companyID string, year, month int) DataSource {
	earnings, deductions, net := decimal.Zero, decimal.Zero, decimal.Zero
	for _, row := range rows {
		totals := row.ShownTotals()
		earnings = payroll.AddRounded(earnings, totals.TotalEarnings)
		deductions = payroll.AddRounded(deductions, totals.TotalDeductions)
		net = payroll.AddRounded(net, totals.NetPay)
	}
	return DataSource{
		CompanyID:        companyID,
		Year:             year,
		Month:            month,
		Origin:           OriginSpreadsheetUploaded,
		TotalEarnings:    earnings.InexactFloat64(),
		TotalDeductions:  deductions.InexactFloat64(),
		TotalNetPay:      net.InexactFloat64(),
		LiquidationCount: len(rows),
		LastUpdated:      e.now().UTC(),
	}
}
