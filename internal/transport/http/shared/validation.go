package shared

import (
	"cmp"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"contapyme/internal/domain/payroll"
	"contapyme/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field problems for a single request so they can be
// reported together as one 400 response.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

// Add records an issue. Blank reasons are dropped.
func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// Enum accepts an empty value or a case-insensitive match in allowed.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if !slices.ContainsFunc(allowed, func(candidate string) bool {
		return strings.EqualFold(value, strings.TrimSpace(candidate))
	}) {
		v.Add(field, reason)
	}
}

// Period parses a payroll period from path parameters.
func (v *Validator) Period(rawYear, rawMonth string) (year, month int) {
	year, yearErr := strconv.Atoi(strings.TrimSpace(rawYear))
	if yearErr != nil || year < payroll.MinPeriodYear || year > payroll.MaxPeriodYear {
		v.Add("year", fmt.Sprintf("must be a year between %d and %d", payroll.MinPeriodYear, payroll.MaxPeriodYear))
	}
	month, monthErr := strconv.Atoi(strings.TrimSpace(rawMonth))
	if monthErr != nil || month < 1 || month > 12 {
		v.Add("month", "must be a month between 1 and 12")
	}
	return year, month
}

// Amount rejects non-finite and negative values.
func (v *Validator) Amount(field string, value float64) {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		v.Add(field, "must be a finite amount")
	case value < 0:
		v.Add(field, "must not be negative")
	}
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns a copy ordered by field, then reason.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		if c := cmp.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return cmp.Compare(a.Reason, b.Reason)
	})
	return out
}

// Reject writes the collected issues and reports whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	details := map[string]any{"fields": issues}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "request validation failed", details, requestID)
}
