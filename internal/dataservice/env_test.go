package dataservice_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/joestump/bmrk/internal/api"
	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/dataservice"
	"github.com/joestump/bmrk/internal/kv"
	"github.com/joestump/bmrk/internal/session"
	"github.com/joestump/bmrk/internal/store"
	"github.com/joestump/bmrk/internal/testutil"
)

// env is a data service backed by an in-memory database, reachable both over
// HTTP (Client) and in-process (Local).
type env struct {
	Server    *httptest.Server
	Users     *store.UserStore
	Bookmarks *store.BookmarkStore
	Tags      *store.TagStore
	Usage     *store.UsageStore
	Tokens    *auth.SQLTokenStore
	Issuer    *auth.Issuer
	Sessions  *session.Store
	Client    *dataservice.Client
	Local     *dataservice.Local
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDB(t)

	e := &env{
		Users:     store.NewUserStore(db),
		Bookmarks: store.NewBookmarkStore(db),
		Tags:      store.NewTagStore(db),
		Usage:     store.NewUsageStore(db),
		Tokens:    auth.NewSQLTokenStore(db),
		Sessions:  session.NewStore(kv.NewMemory()),
	}
	e.Issuer = auth.NewIssuer(e.Tokens, time.Hour, 24*time.Hour)

	r := chi.NewRouter()
	r.Mount("/api/v1", api.NewAPIRouter(api.Deps{
		BearerAuth:    auth.NewBearerTokenMiddleware(e.Tokens, e.Users, nil),
		Issuer:        e.Issuer,
		BookmarkStore: e.Bookmarks,
		TagStore:      e.Tags,
		UsageStore:    e.Usage,
		UserStore:     e.Users,
	}))
	e.Server = httptest.NewServer(r)
	t.Cleanup(e.Server.Close)

	e.Client = dataservice.NewClient(e.Server.URL, 5*time.Second, e.Sessions, nil)
	e.Local = dataservice.NewLocal(dataservice.LocalDeps{
		Bookmarks: e.Bookmarks,
		Tags:      e.Tags,
		Usage:     e.Usage,
		Users:     e.Users,
		Tokens:    e.Tokens,
		Issuer:    e.Issuer,
		Sessions:  e.Sessions,
	})
	return e
}

// signIn creates a user, issues tokens and adopts them through svc.
func (e *env) signIn(t *testing.T, svc dataservice.Service, email string) *session.Session {
	t.Helper()
	ctx := context.Background()
	u, err := e.Users.Upsert(ctx, "test", "sub-"+email, email, "Test User", "https://example.com/a.png")
	require.NoError(t, err)
	pair, err := e.Issuer.Issue(ctx, u.ID)
	require.NoError(t, err)

	sess, err := svc.SetSession(ctx, session.Tokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    time.Hour,
	})
	require.NoError(t, err)
	return sess
}

// services runs fn against both implementations, each with a fresh database.
func services(t *testing.T, fn func(t *testing.T, e *env, svc dataservice.Service)) {
	t.Run("client", func(t *testing.T) {
		e := newEnv(t)
		fn(t, e, e.Client)
	})
	t.Run("local", func(t *testing.T) {
		e := newEnv(t)
		fn(t, e, e.Local)
	})
}

func hashOf(token string) string { return auth.HashToken(token) }
