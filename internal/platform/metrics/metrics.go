// Package metrics keeps in-process counters for HTTP traffic and coherence
// checks, exposed as a JSON snapshot.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"
)

var severities = [...]string{"low", "medium", "high", "critical"}

type Collector struct {
	requests    atomic.Uint64
	serverErrs  atomic.Uint64
	rateLimited atomic.Uint64
	durationMs  atomic.Uint64

	checks      atomic.Uint64
	bySeverity  [len(severities)]atomic.Uint64
	corrections atomic.Uint64
}

func New() *Collector {
	return &Collector{}
}

// Record counts one finished HTTP request.
func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.requests.Add(1)
	switch {
	case status >= http.StatusInternalServerError:
		c.serverErrs.Add(1)
	case status == http.StatusTooManyRequests:
		c.rateLimited.Add(1)
	}
	c.durationMs.Add(uint64(max(duration.Milliseconds(), 0)))
}

// RecordCoherence counts one coherence check by its worst severity. An empty
// or "none" severity is a coherent check.
func (c *Collector) RecordCoherence(severity string) {
	if c == nil {
		return
	}
	c.checks.Add(1)
	for i, s := range severities {
		if s == severity {
			c.bySeverity[i].Add(1)
			return
		}
	}
}

func (c *Collector) RecordCorrections(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.corrections.Add(uint64(n))
}

func (c *Collector) Snapshot() map[string]any {
	total := c.requests.Load()
	totalMs := c.durationMs.Load()
	var avg float64
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	bySeverity := make(map[string]uint64, len(severities))
	for i, s := range severities {
		bySeverity[s] = c.bySeverity[i].Load()
	}
	return map[string]any{
		"requestsTotal":           total,
		"errorsTotal":             c.serverErrs.Load(),
		"rateLimitedTotal":        c.rateLimited.Load(),
		"avgDurationMs":           avg,
		"totalDurationMs":         totalMs,
		"coherenceChecksTotal":    c.checks.Load(),
		"discrepanciesBySeverity": bySeverity,
		"correctionsAppliedTotal": c.corrections.Load(),
	}
}
