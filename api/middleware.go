package api

import (
	"net/http"
	"strings"

	"github.com/warp/fleetlog/auth"
)

// RequireAuth resolves the Bearer token into an auth.Context and attaches it
// to the request. Requests without a valid session get 401.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Missing Authorization header", nil)
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "Invalid Authorization format", nil)
			return
		}

		caller, err := h.Auth.Authenticate(r.Context(), token)
		if err != nil {
			respondError(w, "Not authenticated", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), caller)))
	})
}

// RequireAdmin must run after RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
			return
		}
		if err := caller.RequireAdmin(); err != nil {
			respondError(w, "Admin access required", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRider must run after RequireAuth. Entries are always logged by the
// rider they belong to, so every entry joins against the rider directory.
func (h *Handler) RequireRider(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
			return
		}
		if err := caller.RequireRider(); err != nil {
			respondError(w, "Rider access required", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller returns the authenticated user of r. Only valid behind RequireAuth.
func caller(r *http.Request) *auth.Context {
	c, _ := auth.FromContext(r.Context())
	return c
}
