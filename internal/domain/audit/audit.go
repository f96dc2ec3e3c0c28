package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionAutoFixApply  = "coherence.auto_fix.apply"
	ActionUploadCheck   = "coherence.upload.validate"
	ActionResolverClear = "resolver.cache.clear"
)

type Event struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"companyId"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	Action     string
	EntityType string
	Actor      string
	Since      time.Time
}

// Recorder is the write side used by handlers.
type Recorder interface {
	Record(ctx context.Context, companyID, actor, action, entityType, entityID, requestID, ip string, details any) error
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

const insertEvent = `INSERT INTO audit_events
  (company_id, actor, action, entity_type, entity_id, details_json, request_id, ip)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Record appends one event. details is stored as JSON when non-nil.
func (s *Service) Record(ctx context.Context, companyID, actor, action, entityType, entityID, requestID, ip string, details any) error {
	var raw json.RawMessage
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		raw = b
	}
	if _, err := s.DB.Exec(ctx, insertEvent, companyID, actor, action, entityType, entityID, raw, requestID, ip); err != nil {
		return fmt.Errorf("record audit event %s: %w", action, err)
	}
	return nil
}

func (s *Service) Count(ctx context.Context, companyID string, filter Filter) (int, error) {
	where, args := filter.where(companyID)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM audit_events"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return total, nil
}

const eventColumns = "id, company_id, actor, action, entity_type, entity_id, request_id, ip, created_at"

// List returns events newest first. Details are only loaded when asked for.
func (s *Service) List(ctx context.Context, companyID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	cols := eventColumns
	if includeDetails {
		cols += ", details_json"
	}
	where, args := filter.where(companyID)
	query := fmt.Sprintf("SELECT %s FROM audit_events%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		cols, where, len(args)+1, len(args)+2)

	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		dest := []any{&e.ID, &e.CompanyID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &e.RequestID, &e.IP, &e.CreatedAt}
		if includeDetails {
			dest = append(dest, &e.Details)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// where renders the WHERE clause for f, scoped to companyID.
func (f Filter) where(companyID string) (string, []any) {
	var b strings.Builder
	args := []any{companyID}
	b.WriteString(" WHERE company_id = $1")
	add := func(cond string, v any) {
		args = append(args, v)
		fmt.Fprintf(&b, " AND %s $%d", cond, len(args))
	}
	if f.Action != "" {
		add("action =", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type =", f.EntityType)
	}
	if f.Actor != "" {
		add("actor =", f.Actor)
	}
	if !f.Since.IsZero() {
		add("created_at >=", f.Since)
	}
	return b.String(), args
}
