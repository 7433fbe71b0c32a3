package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/store"
)

// BearerTokenMiddleware authenticates API requests via Bearer token. Only
// access tokens are accepted; a refresh token is only good for
// /session/refresh.
type BearerTokenMiddleware struct {
	tokens TokenStore
	users  *store.UserStore
	log    logger.Logger
}

// NewBearerTokenMiddleware creates a new BearerTokenMiddleware.
func NewBearerTokenMiddleware(ts TokenStore, us *store.UserStore, log logger.Logger) *BearerTokenMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return &BearerTokenMiddleware{tokens: ts, users: us, log: log}
}

// Authenticate is an http.Handler middleware that extracts and validates a Bearer token.
// WHEN valid: injects the token owner's *store.User and the *TokenRecord into
// context and fires an async last_used_at update.
// WHEN invalid/missing/expired/revoked: returns 401 with {"error": "unauthorized"}.
func (m *BearerTokenMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plaintext, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w)
			return
		}

		rec, err := m.tokens.GetByHash(r.Context(), HashToken(plaintext))
		if err != nil {
			writeUnauthorized(w)
			return
		}
		if rec.Name == RefreshTokenName || !rec.Usable(time.Now()) {
			writeUnauthorized(w)
			return
		}

		user, err := m.users.GetByID(r.Context(), rec.UserID)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		go func(id string) {
			if err := m.tokens.UpdateLastUsed(context.Background(), id); err != nil {
				m.log.Warn("update token last_used_at", logger.String("token_id", id), logger.Error(err))
			}
		}(rec.ID)

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, TokenContextKey, rec)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	plaintext := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return plaintext, plaintext != ""
}

// writeUnauthorized writes a 401 JSON response with {"error": "unauthorized"}.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"}) //nolint:errcheck
}
