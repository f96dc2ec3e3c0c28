package middleware

import (
	"net/http"
	"strings"

	"contapyme/internal/requestctx"
)

const defaultActor = "system"

// Actor stores the caller named by X-Actor, or "system", in the request
// context. Authentication is handled upstream of this service.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get("X-Actor"))
		if actor == "" {
			actor = defaultActor
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithActor(r.Context(), actor)))
	})
}
