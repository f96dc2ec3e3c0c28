package metrics

import (
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.Record(429, 0)

	snap := c.Snapshot()
	if snap["requestsTotal"] != uint64(3) || snap["errorsTotal"] != uint64(1) || snap["rateLimitedTotal"] != uint64(1) {
		t.Fatalf("unexpected request counters %v", snap)
	}
	if snap["avgDurationMs"] != float64(40)/3 {
		t.Fatalf("unexpected average %v", snap["avgDurationMs"])
	}
}

func TestCollectorCoherenceCounters(t *testing.T) {
	c := New()
	c.RecordCoherence("")
	c.RecordCoherence("critical")
	c.RecordCoherence("low")
	c.RecordCorrections(4)
	c.RecordCorrections(-1)

	snap := c.Snapshot()
	if snap["coherenceChecksTotal"] != uint64(3) {
		t.Fatalf("expected 3 checks, got %v", snap["coherenceChecksTotal"])
	}
	bySeverity := snap["discrepanciesBySeverity"].(map[string]uint64)
	if bySeverity["critical"] != 1 || bySeverity["low"] != 1 || bySeverity["high"] != 0 {
		t.Fatalf("unexpected severity counters %v", bySeverity)
	}
	if snap["correctionsAppliedTotal"] != uint64(4) {
		t.Fatalf("expected 4 corrections, got %v", snap["correctionsAppliedTotal"])
	}

	var nilCollector *Collector
	nilCollector.RecordCoherence("high")
}
