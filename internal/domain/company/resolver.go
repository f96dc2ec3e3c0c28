package company

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Lookup reports whether a company holds liquidations for a period.
// payroll.Store satisfies it.
type Lookup interface {
	HasLiquidations(ctx context.Context, companyID string, year, month int) (bool, error)
}

// Resolver maps the company id a client asks for to the id that actually
// holds payroll data for the period.
type Resolver struct {
	lookup    Lookup
	cache     Cache
	fallbacks []string
	group     singleflight.Group
	logger    *slog.Logger
}

func NewResolver(lookup Lookup, cache Cache, fallbacks []string, logger *slog.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cleaned := make([]string, 0, len(fallbacks))
	for _, id := range fallbacks {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	return &Resolver{lookup: lookup, cache: cache, fallbacks: cleaned, logger: logger}
}

func cacheKey(requestedID string, year, month int) string {
	return fmt.Sprintf("%s:%04d-%02d", requestedID, year, month)
}

// Resolve returns requestedID when it has liquidations for the period,
// otherwise the first fallback that does. Only successful resolutions are
// cached. A cache failure degrades to a direct lookup.
func (r *Resolver) Resolve(ctx context.Context, requestedID string, year, month int) (string, error) {
	requestedID = strings.TrimSpace(requestedID)
	key := cacheKey(requestedID, year, month)

	if id, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("resolver cache read failed", "key", key, "error", err)
	} else if ok {
		return id, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if id, ok, err := r.cache.Get(ctx, key); err == nil && ok {
			return id, nil
		}
		id, err := r.resolve(ctx, requestedID, year, month)
		if err != nil {
			return "", err
		}
		if err := r.cache.Set(ctx, key, id); err != nil {
			r.logger.Warn("resolver cache write failed", "key", key, "error", err)
		}
		if id != requestedID {
			r.logger.Info("company id resolved to fallback", "requested", requestedID, "resolved", id, "year", year, "month", month)
		}
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) resolve(ctx context.Context, requestedID string, year, month int) (string, error) {
	candidates := make([]string, 0, len(r.fallbacks)+1)
	if requestedID != "" {
		candidates = append(candidates, requestedID)
	}
	for _, id := range r.fallbacks {
		if id != requestedID {
			candidates = append(candidates, id)
		}
	}
	for _, id := range candidates {
		ok, err := r.lookup.HasLiquidations(ctx, id, year, month)
		if err != nil {
			return "", fmt.Errorf("lookup company %s: %w", id, err)
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q for %04d-%02d", ErrCompanyNotResolved, requestedID, year, month)
}

// Clear drops every memoized resolution and returns how many were removed.
func (r *Resolver) Clear(ctx context.Context) (int, error) {
	n, err := r.cache.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear resolver cache: %w", err)
	}
	return n, nil
}
