package handler

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joestump/bmrk/internal/api"
	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/build"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/store"
	"github.com/joestump/bmrk/web"
)

// Deps holds all dependencies required to build the data service router.
type Deps struct {
	SessionManager *scs.SessionManager
	AuthHandlers   *auth.Handlers
	Issuer         *auth.Issuer
	TokenStore     auth.TokenStore
	BookmarkStore  *store.BookmarkStore
	TagStore       *store.TagStore
	UsageStore     *store.UsageStore
	UserStore      *store.UserStore
	Log            logger.Logger
}

// NewRouter assembles the data service: the sign-in pages, the JSON API at
// /api/v1 and the operational endpoints.
func NewRouter(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Handle("/static/*", web.StaticHandler("/static/"))
	r.Get("/healthz", Health)
	r.Handle("/metrics", promhttp.Handler())

	// Only the sign-in flow needs a cookie session.
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionManager.LoadAndSave)
		r.Get("/", NewLandingHandler().Index)
		r.Get("/auth/login", deps.AuthHandlers.Login)
		r.Get("/auth/callback", deps.AuthHandlers.Callback)
	})

	bearer := auth.NewBearerTokenMiddleware(deps.TokenStore, deps.UserStore, deps.Log)
	r.Mount("/api/v1", api.NewAPIRouter(api.Deps{
		BearerAuth:    bearer,
		Issuer:        deps.Issuer,
		BookmarkStore: deps.BookmarkStore,
		TagStore:      deps.TagStore,
		UsageStore:    deps.UsageStore,
		UserStore:     deps.UserStore,
		Log:           deps.Log,
	}))

	return r
}

// Health reports liveness and the running build.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok " + build.String() + "\n"))
}
