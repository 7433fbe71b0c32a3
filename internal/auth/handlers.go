package auth

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/store"
)

// Handlers provides HTTP handlers for the OIDC sign-in flow. A completed
// sign-in does not set a browser session; it hands an access/refresh token
// pair to the client at redirectTo.
type Handlers struct {
	provider   IdentityProvider
	sessions   *scs.SessionManager
	users      *store.UserStore
	issuer     *Issuer
	redirectTo string
	log        logger.Logger
}

// NewHandlers creates a new Handlers with the given dependencies.
func NewHandlers(p IdentityProvider, sm *scs.SessionManager, us *store.UserStore, is *Issuer, redirectTo string, log logger.Logger) *Handlers {
	if log == nil {
		log = logger.Nop()
	}
	return &Handlers{provider: p, sessions: sm, users: us, issuer: is, redirectTo: redirectTo, log: log}
}

// Login initiates the OIDC authorization code flow with PKCE. State and
// verifier live in the scs session until the callback.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := GenerateState()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	verifier, challenge, err := GeneratePKCE()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.sessions.Put(r.Context(), sessionStateKey, state)
	h.sessions.Put(r.Context(), sessionVerifierKey, verifier)

	http.Redirect(w, r, h.provider.AuthCodeURL(state, challenge), http.StatusFound)
}

// Callback handles the OIDC provider redirect after authentication.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := h.sessions.PopString(ctx, sessionStateKey)
	if state == "" || state != r.URL.Query().Get("state") {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	verifier := h.sessions.PopString(ctx, sessionVerifierKey)
	if verifier == "" {
		http.Error(w, "missing code verifier", http.StatusBadRequest)
		return
	}

	id, err := h.provider.Exchange(ctx, r.URL.Query().Get("code"), verifier)
	if err != nil {
		h.log.Warn("oidc exchange failed", logger.Error(err))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	user, err := h.users.Upsert(ctx, id.Issuer, id.Subject, id.Email, id.Name, id.Picture)
	if err != nil {
		h.log.Error("upsert user", logger.Error(err))
		http.Error(w, "user record error", http.StatusInternalServerError)
		return
	}

	tokens, err := h.issuer.Issue(ctx, user.ID)
	if err != nil {
		h.log.Error("issue session tokens", logger.String("user_id", user.ID), logger.Error(err))
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}

	// The login session has served its purpose.
	if err := h.sessions.Destroy(ctx); err != nil {
		h.log.Warn("destroy login session", logger.Error(err))
	}

	h.log.Info("user signed in", logger.String("user_id", user.ID))
	http.Redirect(w, r, h.completionURL(tokens), http.StatusFound)
}

// completionURL carries the tokens in the URL fragment so they never reach a
// server log on the receiving side.
func (h *Handlers) completionURL(t *SessionTokens) string {
	v := url.Values{}
	v.Set("access_token", t.AccessToken)
	v.Set("refresh_token", t.RefreshToken)
	v.Set("expires_in", strconv.FormatInt(int64(time.Until(t.ExpiresAt).Seconds()), 10))
	v.Set("token_type", "bearer")
	return h.redirectTo + "#" + v.Encode()
}
