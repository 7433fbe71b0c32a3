package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/bmrk/internal/bus"
)

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBridge_ActionClicked(t *testing.T) {
	e := newEnv(t, true)
	h := NewRouter(e.agent)

	rec := do(t, h, http.MethodPost, "/events/action-clicked", `{"id":4,"url":"https://go.dev","title":"Go"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Len(t, e.svc.inserted, 1)
	assert.Equal(t, bus.RefreshBookmarks, e.next(t).Type)

	rec = do(t, h, http.MethodPost, "/events/action-clicked", `{"id":4,"url":null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, "VALIDATION", er.Code)

	rec = do(t, h, http.MethodGet, "/badge", "")
	assert.Contains(t, rec.Body.String(), `"text":"!"`)

	rec = do(t, h, http.MethodPost, "/events/action-clicked", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBridge_SignedOutSave(t *testing.T) {
	e := newEnv(t, false)
	rec := do(t, NewRouter(e.agent), http.MethodPost, "/events/context-menu-clicked",
		`{"menu_item_id":"saveBookmark","tab":{"id":1,"url":"https://go.dev"}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBridge_Installed(t *testing.T) {
	e := newEnv(t, true)
	rec := do(t, NewRouter(e.agent), http.MethodPost, "/events/installed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"saveBookmark"`)
}

func TestBridge_TabUpdated(t *testing.T) {
	e := newEnv(t, false)
	h := NewRouter(e.agent)

	rec := do(t, h, http.MethodPost, "/events/tab-updated",
		`{"id":7,"url":"https://bmrk.cc/auth#access_token=bm_bad&refresh_token=r","status":"complete"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"close_tab":7}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/events/tab-updated", `{"id":7,"url":"https://example.com","status":"complete"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestBridge_External(t *testing.T) {
	e := newEnv(t, true)
	h := NewRouter(e.agent)

	rec := do(t, h, http.MethodPost, "/external", `{"refresh":true}`, "Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/external", `{"nope":1}`, "Origin", "https://app.bmrk.cc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/external", `{"logout":true}`, "Origin", "https://app.bmrk.cc")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, bus.ForceLogout, e.next(t).Type)
}

func TestBridge_AuthCallback(t *testing.T) {
	e := newEnv(t, false)
	h := NewRouter(e.agent)

	rec := do(t, h, http.MethodGet, "/auth/callback", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "location.hash")

	rec = do(t, h, http.MethodGet, "/auth/callback?access_token=bm_good&refresh_token=r&expires_in=60", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signed in as Alice.")
	assert.Equal(t, bus.RefreshBookmarks, e.next(t).Type)

	rec = do(t, h, http.MethodGet, "/auth/callback?error=access_denied", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not complete sign-in")
}

func TestBridge_LogoutAndHealth(t *testing.T) {
	e := newEnv(t, true)
	h := NewRouter(e.agent)

	rec := do(t, h, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, e.cache.invalidated)

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
