package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"contapyme/internal/domain/coherence"
	"contapyme/internal/platform/metrics"
)

const (
	JobCoherenceAudit = "coherence_audit"
	JobAutoFix        = "coherence_auto_fix"
)

// Auditor is the coherence audit the scheduler runs for each company.
type Auditor interface {
	Audit(ctx context.Context, companyID string, year, month int, extra ...coherence.DataSource) (coherence.AuditResult, error)
}

// CompanyLister lists the companies holding liquidations for a period.
type CompanyLister interface {
	ListPeriodCompanies(ctx context.Context, year, month int) ([]string, error)
}

// RunStore records job executions.
type RunStore interface {
	Start(ctx context.Context, companyID, jobType string) (string, error)
	Finish(ctx context.Context, runID, status string, details []byte) error
}

// Mailer sends alert messages. email.Mailer satisfies it.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	mailer    Mailer
	alertFrom string
	alertTo   string
	runs      RunStore
	auditor   Auditor
	companies CompanyLister
	metrics   *metrics.Collector
	interval  time.Duration
	now       func() time.Time
	queue     chan job
}

type job struct {
	Type      string
	CompanyID string
	Run       func(context.Context) (any, error)
}

func New(runs RunStore, auditor Auditor, companies CompanyLister, collector *metrics.Collector, interval time.Duration) *Service {
	return &Service{
		runs:      runs,
		auditor:   auditor,
		companies: companies,
		metrics:   collector,
		interval:  interval,
		now:       time.Now,
		queue:     make(chan job, 128),
	}
}

// WithAlerts mails the report of every scheduled audit that finds a
// critical discrepancy.
func (s *Service) WithAlerts(mailer Mailer, from, to string) *Service {
	s.mailer, s.alertFrom, s.alertTo = mailer, from, to
	return s
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.interval > 0 {
		go s.scheduleAudits(ctx, s.interval)
	}
}

func (s *Service) Enqueue(jobType, companyID string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, CompanyID: companyID, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType, "companyId", companyID)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, companyID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, CompanyID: companyID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "companyId", j.CompanyID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID, err := s.runs.Start(ctx, j.CompanyID, j.Type)
	if err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.runs.Finish(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleAudits(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EnqueuePeriodAudits(ctx)
		}
	}
}

// EnqueuePeriodAudits queues one coherence audit for every company with
// liquidations in the current period and returns how many were queued.
func (s *Service) EnqueuePeriodAudits(ctx context.Context) int {
	now := s.now()
	year, month := now.Year(), int(now.Month())
	companies, err := s.companies.ListPeriodCompanies(ctx, year, month)
	if err != nil {
		slog.Warn("audit scheduler company lookup failed", "err", err)
		return 0
	}
	queued := 0
	for _, companyID := range companies {
		company := companyID
		if s.Enqueue(JobCoherenceAudit, company, func(ctx context.Context) (any, error) {
			return s.audit(ctx, company, year, month)
		}) {
			queued++
		}
	}
	return queued
}

func (s *Service) audit(ctx context.Context, companyID string, year, month int) (any, error) {
	result, err := s.auditor.Audit(ctx, companyID, year, month)
	if err != nil {
		return nil, err
	}
	v := result.Validation
	s.metrics.RecordCoherence(string(v.WorstSeverity))
	if !v.IsCoherent {
		slog.Warn("coherence audit found discrepancies",
			"companyId", companyID, "year", year, "month", month,
			"worstSeverity", v.WorstSeverity, "confidence", v.ConfidenceScore, "remediation", v.Remediation)
	}
	if v.WorstSeverity == coherence.SeverityCritical {
		s.alert(ctx, result)
	}
	return map[string]any{
		"isCoherent":      v.IsCoherent,
		"worstSeverity":   v.WorstSeverity,
		"confidenceScore": v.ConfidenceScore,
		"remediation":     v.Remediation,
		"discrepancies":   len(v.Discrepancies),
	}, nil
}

func (s *Service) alert(ctx context.Context, result coherence.AuditResult) {
	if s.mailer == nil || strings.TrimSpace(s.alertTo) == "" {
		return
	}
	v := result.Validation
	subject := fmt.Sprintf("[contapyme] Critical payroll discrepancy %s %04d-%02d", v.CompanyID, v.Year, v.Month)

	var body strings.Builder
	body.WriteString(result.Report.Summary + "\n\n")
	for _, line := range result.Report.Details {
		body.WriteString(line + "\n")
	}
	body.WriteString("\nAction plan:\n")
	for i, step := range result.Report.ActionPlan {
		fmt.Fprintf(&body, "%d. %s\n", i+1, step)
	}
	if err := s.mailer.Send(ctx, s.alertFrom, s.alertTo, subject, body.String()); err != nil {
		slog.Warn("coherence alert failed", "companyId", v.CompanyID, "err", err)
	}
}

// PGRunStore keeps job runs in the job_runs table.
type PGRunStore struct {
	DB *pgxpool.Pool
}

func (p PGRunStore) Start(ctx context.Context, companyID, jobType string) (string, error) {
	runID := ""
	err := p.DB.QueryRow(ctx, `
    INSERT INTO job_runs (company_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, companyID, jobType, "running").Scan(&runID)
	return runID, err
}

func (p PGRunStore) Finish(ctx context.Context, runID, status string, details []byte) error {
	_, err := p.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, runID)
	return err
}
