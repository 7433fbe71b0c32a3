package agent

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joestump/bmrk/internal/build"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/web"
)

// maxBody caps event bodies from the browser shim.
const maxBody = 64 << 10

// ErrorResponse is the body of every non-2xx bridge response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type menuClick struct {
	MenuItemID string `json:"menu_item_id"`
	Tab        Tab    `json:"tab"`
}

// NewRouter exposes the agent to the browser shim and the CLI. Browser events
// arrive as JSON POSTs under /events; web origins post to /external with
// their Origin header.
func NewRouter(a *Agent) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "build": build.String()})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", web.StaticHandler("/static/"))

	r.Route("/events", func(r chi.Router) {
		r.Post("/installed", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"context_menus": a.Installed(req.Context())})
		})
		r.Post("/action-clicked", func(w http.ResponseWriter, req *http.Request) {
			var tab Tab
			if !decode(w, req, &tab) {
				return
			}
			if err := a.ActionClicked(req.Context(), tab); err != nil {
				writeErr(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/context-menu-clicked", func(w http.ResponseWriter, req *http.Request) {
			var body menuClick
			if !decode(w, req, &body) {
				return
			}
			if err := a.ContextMenuClicked(req.Context(), body.MenuItemID, body.Tab); err != nil {
				writeErr(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/tab-updated", func(w http.ResponseWriter, req *http.Request) {
			var tab Tab
			if !decode(w, req, &tab) {
				return
			}
			fx, err := a.TabUpdated(req.Context(), tab)
			if err != nil && fx.CloseTab == nil {
				writeErr(w, err)
				return
			}
			// The tab closes even when sign-in failed.
			writeJSON(w, http.StatusOK, fx)
		})
	})

	r.Post("/external", func(w http.ResponseWriter, req *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(req.Body, maxBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read body", "BAD_REQUEST")
			return
		}
		if err := a.HandleExternal(req.Context(), req.Header.Get("Origin"), raw); err != nil {
			if errors.Is(err, ErrOriginNotAllowed) {
				writeError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
				return
			}
			if errs.KindOf(err) == errs.Unknown {
				writeError(w, http.StatusBadRequest, err.Error(), "BAD_MESSAGE")
				return
			}
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/auth/callback", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.RawQuery == "" {
			web.Render(w, http.StatusOK, "callback.html", web.Page{Title: "Signing in"})
			return
		}
		sess, err := a.CompleteOAuth(req.Context(), req.URL.String())
		if err != nil {
			web.Render(w, http.StatusUnauthorized, "signed_in.html", web.Page{
				Title: "Sign-in failed",
				Error: "Could not complete sign-in. Please try again.",
			})
			return
		}
		web.Render(w, http.StatusOK, "signed_in.html", web.Page{
			Title:   "Signed in",
			Message: "Signed in as " + displayName(sess.User.Name, sess.User.Email) + ".",
		})
	})
	r.Post("/auth/logout", func(w http.ResponseWriter, req *http.Request) {
		if err := a.SignOut(req.Context()); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/badge", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, a.Badge())
	})

	return r
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "BAD_REQUEST")
		return false
	}
	return true
}

// writeErr maps an errs.Kind to a status code.
func writeErr(w http.ResponseWriter, err error) {
	switch errs.KindOf(err) {
	case errs.Validation:
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION")
	case errs.Auth:
		writeError(w, http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errs.Fetch, errs.Write:
		writeError(w, http.StatusBadGateway, err.Error(), "DATA_SERVICE")
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
