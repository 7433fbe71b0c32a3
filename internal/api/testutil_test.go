package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/joestump/bmrk/internal/api"
	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/store"
	"github.com/joestump/bmrk/internal/testutil"
)

// testEnv holds all stores and helpers needed for API integration tests.
type testEnv struct {
	Router        http.Handler
	BookmarkStore *store.BookmarkStore
	TagStore      *store.TagStore
	UsageStore    *store.UsageStore
	UserStore     *store.UserStore
	TokenStore    *auth.SQLTokenStore
	Issuer        *auth.Issuer
}

// newTestEnv creates an in-memory SQLite test database, runs migrations,
// and wires up the full API router with real stores.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)

	env := &testEnv{
		BookmarkStore: store.NewBookmarkStore(db),
		TagStore:      store.NewTagStore(db),
		UsageStore:    store.NewUsageStore(db),
		UserStore:     store.NewUserStore(db),
		TokenStore:    auth.NewSQLTokenStore(db),
	}
	env.Issuer = auth.NewIssuer(env.TokenStore, time.Hour, 24*time.Hour)

	env.Router = api.NewAPIRouter(api.Deps{
		BearerAuth:    auth.NewBearerTokenMiddleware(env.TokenStore, env.UserStore, nil),
		Issuer:        env.Issuer,
		BookmarkStore: env.BookmarkStore,
		TagStore:      env.TagStore,
		UsageStore:    env.UsageStore,
		UserStore:     env.UserStore,
	})
	return env
}

// seedUser creates a user and returns the user record.
func seedUser(t *testing.T, env *testEnv, email string) *store.User {
	t.Helper()
	u, err := env.UserStore.Upsert(context.Background(), "test", "sub-"+email, email, "Test User", "")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// seedToken signs the user in and returns the access token.
func seedToken(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	pair, err := env.Issuer.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return pair.AccessToken
}

// authRequest adds a Bearer token to the request.
func authRequest(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
