package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/metrics"
	"github.com/joestump/bmrk/internal/store"
)

// Deps holds all dependencies required to build the API router.
type Deps struct {
	BearerAuth    *auth.BearerTokenMiddleware
	Issuer        *auth.Issuer
	BookmarkStore *store.BookmarkStore
	TagStore      *store.TagStore
	UsageStore    *store.UsageStore
	UserStore     *store.UserStore
	Log           logger.Logger
}

// NewAPIRouter creates a chi sub-router for /api/v1. Everything except token
// refresh requires Bearer token authentication; all responses are JSON.
//
// @title       bmrk data service
// @version     1.0
// @BasePath    /api/v1
// @securityDefinitions.apikey BearerToken
// @in          header
// @name        Authorization
func NewAPIRouter(deps Deps) chi.Router {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	r := chi.NewRouter()

	r.Use(jsonContentType)
	r.Use(countRequests)

	sh := &sessionAPIHandler{issuer: deps.Issuer, users: deps.UserStore, log: deps.Log}
	r.Post("/session/refresh", sh.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(deps.BearerAuth.Authenticate)

		r.Get("/session", sh.Get)
		r.Post("/session/revoke", sh.Revoke)

		registerBookmarkRoutes(r, deps.BookmarkStore, deps.TagStore, deps.Log)
		registerTagRoutes(r, deps.TagStore, deps.Log)
		registerUsageRoutes(r, deps.UsageStore, deps.Log)
	})

	return r
}

// jsonContentType is a middleware that sets Content-Type: application/json on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// countRequests records bmrk_api_requests_total by matched route pattern.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// ownerMatches reports whether an optional owner ID in a request refers to
// the caller. Callers may only act on their own data.
func ownerMatches(user *store.User, ownerID string) bool {
	return ownerID == "" || ownerID == user.ID
}
