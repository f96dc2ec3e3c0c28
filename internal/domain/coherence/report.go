package coherence

import (
	"fmt"
	"strings"
)

func confidenceLevel(score int) ConfidenceLevel {
	switch {
	case score >= 90:
		return ConfidenceExcellent
	case score >= 70:
		return ConfidenceGood
	case score >= 50:
		return ConfidenceFair
	}
	return ConfidencePoor
}

// GenerateReport renders a validation as human-readable text.
func GenerateReport(validation Validation, sources []DataSource) Report {
	report := Report{
		Details:         []string{},
		ActionPlan:      []string{},
		ConfidenceLevel: confidenceLevel(validation.ConfidenceScore),
	}

	period := fmt.Sprintf("%04d-%02d", validation.Year, validation.Month)
	if validation.IsCoherent {
		report.Summary = fmt.Sprintf("Company %s, period %s: %d source(s) coherent, confidence %d%%",
			validation.CompanyID, period, len(sources), validation.ConfidenceScore)
	} else {
		report.Summary = fmt.Sprintf("Company %s, period %s: %d discrepancy(ies) across %d pair(s), worst severity %s, confidence %d%%",
			validation.CompanyID, period, len(validation.Discrepancies), validation.ComparedPairs,
			validation.WorstSeverity, validation.ConfidenceScore)
	}

	for _, source := range sources {
		report.Details = append(report.Details, fmt.Sprintf("%s: earnings %.2f, deductions %.2f, net pay %.2f (%d liquidations)",
			source.Origin, source.TotalEarnings, source.TotalDeductions, source.TotalNetPay, source.LiquidationCount))
	}
	for _, d := range validation.Discrepancies {
		report.Details = append(report.Details, fmt.Sprintf("[%s] %s vs %s: earnings %+.2f, deductions %+.2f, net pay %+.2f",
			strings.ToUpper(string(d.Severity)), d.SourceA, d.SourceB, d.EarningsDiff, d.DeductionsDiff, d.NetPayDiff))
	}

	switch validation.Remediation {
	case RemediationNone:
		report.ActionPlan = append(report.ActionPlan, validation.RecommendedAction)
	case RemediationRefresh:
		report.ActionPlan = append(report.ActionPlan,
			"Refresh the cached period totals",
			"Verify the itemized inputs of the affected liquidations",
			"Run the coherence check again")
	case RemediationUpdate:
		report.ActionPlan = append(report.ActionPlan,
			"Run auto-fix to preview the corrections",
			"Apply the corrections to the stored totals",
			"Run the coherence check again")
	case RemediationRegenerate:
		report.ActionPlan = append(report.ActionPlan,
			"Stop distributing payslips and reports for this period",
			"Review the itemized inputs with the payroll team",
			"Regenerate all totals through the unified calculator",
			"Run the coherence check again")
	}
	return report
}
