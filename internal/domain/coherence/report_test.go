package coherence

import (
	"strings"
	"testing"
)

func TestConfidenceLevelBuckets(t *testing.T) {
	cases := map[int]ConfidenceLevel{
		100: ConfidenceExcellent,
		90:  ConfidenceExcellent,
		89:  ConfidenceGood,
		70:  ConfidenceGood,
		69:  ConfidenceFair,
		50:  ConfidenceFair,
		49:  ConfidencePoor,
		0:   ConfidencePoor,
	}
	for score, want := range cases {
		if got := confidenceLevel(score); got != want {
			t.Fatalf("confidenceLevel(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestGenerateReportCoherent(t *testing.T) {
	sources := []DataSource{
		source(OriginDatabaseCached, 1000, 100, 900),
		source(OriginCalculated, 1000, 100, 900),
	}
	v := testEngine().ValidateCoherence("c1", 2025, 8, sources)
	report := GenerateReport(v, sources)

	if report.ConfidenceLevel != ConfidenceExcellent {
		t.Fatalf("expected excellent, got %s", report.ConfidenceLevel)
	}
	if !strings.Contains(report.Summary, "2025-08") || !strings.Contains(report.Summary, "coherent") {
		t.Fatalf("unexpected summary %q", report.Summary)
	}
	if len(report.Details) != 2 || len(report.ActionPlan) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestGenerateReportCritical(t *testing.T) {
	sources := []DataSource{
		source(OriginDatabaseCached, 832103, 0, 832103),
		source(OriginCalculated, 524000, 0, 524000),
	}
	v := testEngine().ValidateCoherence("c1", 2025, 8, sources)
	report := GenerateReport(v, sources)

	if report.ConfidenceLevel != ConfidencePoor {
		t.Fatalf("expected poor, got %s", report.ConfidenceLevel)
	}
	if !strings.Contains(report.Summary, "critical") {
		t.Fatalf("expected severity in summary, got %q", report.Summary)
	}
	last := report.Details[len(report.Details)-1]
	if !strings.Contains(last, "[CRITICAL]") || !strings.Contains(last, "+308103.00") {
		t.Fatalf("unexpected discrepancy detail %q", last)
	}
	if !strings.Contains(report.ActionPlan[2], "unified calculator") {
		t.Fatalf("expected regenerate plan, got %v", report.ActionPlan)
	}
}
