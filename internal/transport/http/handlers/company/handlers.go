package companyhandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"contapyme/internal/domain/audit"
	"contapyme/internal/transport/http/api"
	"contapyme/internal/transport/http/middleware"
	"contapyme/internal/transport/http/shared"
)

// CacheClearer drops memoized company resolutions. company.Resolver
// satisfies it.
type CacheClearer interface {
	Clear(ctx context.Context) (int, error)
}

type Handler struct {
	Resolver CacheClearer
	Audit    audit.Recorder
}

func NewHandler(resolver CacheClearer, recorder audit.Recorder) *Handler {
	return &Handler{Resolver: resolver, Audit: recorder}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Delete("/resolver/cache", h.handleClearCache)
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	cleared, err := h.Resolver.Clear(r.Context())
	if err != nil {
		slog.Error("resolver cache clear failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "resolver_cache_clear_failed", "failed to clear resolver cache", requestID)
		return
	}
	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), "", shared.Actor(r), audit.ActionResolverClear, "resolver_cache", "",
			requestID, middleware.ClientIP(r), map[string]int{"cleared": cleared}); err != nil {
			slog.Warn("audit resolver.cache.clear failed", "err", err)
		}
	}
	api.Success(w, map[string]int{"cleared": cleared}, requestID)
}
