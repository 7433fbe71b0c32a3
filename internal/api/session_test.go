package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joestump/bmrk/internal/api"
)

func TestSession_Get(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env, "alice@example.com")
	token := seedToken(t, env, user.ID)

	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, authRequest(httptest.NewRequest("GET", "/session", nil), token))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp api.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != user.ID || resp.User.Email != "alice@example.com" {
		t.Errorf("user = %+v", resp.User)
	}
	if resp.ExpiresAt == nil {
		t.Error("expected expires_at")
	}
	if resp.AccessToken != "" {
		t.Error("GET /session must not echo tokens")
	}
}

func TestSession_RefreshAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env, "alice@example.com")
	pair, err := env.Issuer.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Refresh needs no bearer token.
	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"refresh_token":"` + pair.RefreshToken + `"}`)
	env.Router.ServeHTTP(rec, httptest.NewRequest("POST", "/session/refresh", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var refreshed api.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&refreshed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Fatalf("refresh returned no tokens: %+v", refreshed)
	}

	// Spent refresh token.
	rec = httptest.NewRecorder()
	body = bytes.NewBufferString(`{"refresh_token":"` + pair.RefreshToken + `"}`)
	env.Router.ServeHTTP(rec, httptest.NewRequest("POST", "/session/refresh", body))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("replay status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	// Revoke the new session, then the access token stops working.
	rec = httptest.NewRecorder()
	body = bytes.NewBufferString(`{"refresh_token":"` + refreshed.RefreshToken + `"}`)
	env.Router.ServeHTTP(rec, authRequest(httptest.NewRequest("POST", "/session/revoke", body), refreshed.AccessToken))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d; body: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.Router.ServeHTTP(rec, authRequest(httptest.NewRequest("GET", "/session", nil), refreshed.AccessToken))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status after revoke = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
