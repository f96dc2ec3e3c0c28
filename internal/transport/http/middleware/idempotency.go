package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict means the key was already used with a different
// request body.
var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// DefaultReplayWindow bounds how long a stored response is replayed.
const DefaultReplayWindow = 24 * time.Hour

// IdempotencyStore remembers the response of a mutation per
// (company, actor, endpoint, key) so a retried request replays it.
// Entries older than the replay window are treated as absent and
// overwritten on the next save.
type IdempotencyStore struct {
	db     *pgxpool.Pool
	window time.Duration
}

func NewIdempotencyStore(db *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: db, window: DefaultReplayWindow}
}

// WithReplayWindow overrides DefaultReplayWindow. Non-positive values are ignored.
func (s *IdempotencyStore) WithReplayWindow(window time.Duration) *IdempotencyStore {
	if window > 0 {
		s.window = window
	}
	return s
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *IdempotencyStore) enabled() bool {
	return s != nil && s.db != nil
}

const selectReplay = `
SELECT request_hash, response_json
FROM idempotency_keys
WHERE company_id = $1 AND actor = $2 AND endpoint = $3 AND key = $4
  AND created_at > now() - make_interval(secs => $5)`

// Check returns the stored response for a live key. A key reused with a
// different request hash yields ErrIdempotencyConflict.
func (s *IdempotencyStore) Check(ctx context.Context, companyID, actor, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if !s.enabled() {
		return nil, false, nil
	}
	var (
		hash     string
		response json.RawMessage
	)
	row := s.db.QueryRow(ctx, selectReplay, companyID, actor, endpoint, key, s.window.Seconds())
	switch err := row.Scan(&hash, &response); {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("read idempotency key: %w", err)
	case hash != requestHash:
		return nil, false, ErrIdempotencyConflict
	}
	return response, true, nil
}

// Expired rows are replaced outright; live rows only when the hash matches.
const upsertReplay = `
INSERT INTO idempotency_keys (company_id, actor, endpoint, key, request_hash, response_json, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (company_id, actor, key, endpoint) DO UPDATE
SET request_hash = EXCLUDED.request_hash,
    response_json = EXCLUDED.response_json,
    created_at = EXCLUDED.created_at
WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
   OR idempotency_keys.created_at <= now() - make_interval(secs => $7)`

func (s *IdempotencyStore) Save(ctx context.Context, companyID, actor, endpoint, key, requestHash string, response json.RawMessage) error {
	if !s.enabled() {
		return nil
	}
	tag, err := s.db.Exec(ctx, upsertReplay, companyID, actor, endpoint, key, requestHash, response, s.window.Seconds())
	if err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}
