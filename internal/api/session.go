package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/store"
)

type sessionAPIHandler struct {
	issuer *auth.Issuer
	users  *store.UserStore
	log    logger.Logger
}

// Get returns the signed-in user and the access token's expiry.
// GET /api/v1/session
//
// @Summary      Current session
// @Tags         Session
// @Produce      json
// @Success      200  {object}  SessionResponse
// @Failure      401  {object}  ErrorResponse
// @Security     BearerToken
// @Router       /session [get]
func (h *sessionAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}
	resp := SessionResponse{User: toUserResponse(user)}
	if tok := auth.TokenFromContext(r.Context()); tok != nil && tok.ExpiresAt.Valid {
		exp := tok.ExpiresAt.Time
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh trades a refresh token for a new token pair.
// POST /api/v1/session/refresh
//
// @Summary      Refresh session
// @Tags         Session
// @Accept       json
// @Produce      json
// @Param        body  body      RefreshRequest  true  "Refresh token"
// @Success      200   {object}  SessionResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /session/refresh [post]
func (h *sessionAPIHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required", "BAD_REQUEST")
		return
	}

	tokens, userID, err := h.issuer.Refresh(r.Context(), req.RefreshToken)
	if errors.Is(err, auth.ErrInvalidRefreshToken) {
		writeError(w, http.StatusUnauthorized, err.Error(), "INVALID_REFRESH_TOKEN")
		return
	}
	if err != nil {
		h.log.Error("refresh session", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unknown user", "UNAUTHORIZED")
		return
	}

	exp := tokens.ExpiresAt
	writeJSON(w, http.StatusOK, SessionResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    &exp,
		User:         toUserResponse(user),
	})
}

// Revoke signs the session out: the presented access token and, if given,
// its refresh token stop working.
// POST /api/v1/session/revoke
func (h *sessionAPIHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	tok := auth.TokenFromContext(r.Context())
	if tok == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	var req RevokeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
	}

	if err := h.issuer.Revoke(r.Context(), tok, req.RefreshToken); err != nil {
		h.log.Error("revoke session", logger.String("user_id", tok.UserID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
