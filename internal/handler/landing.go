package handler

import (
	"net/http"

	"github.com/joestump/bmrk/web"
)

// LandingHandler serves the public landing page.
type LandingHandler struct{}

// NewLandingHandler creates a new LandingHandler.
func NewLandingHandler() *LandingHandler { return &LandingHandler{} }

// Index serves GET /. Signing in starts at /auth/login.
func (h *LandingHandler) Index(w http.ResponseWriter, r *http.Request) {
	web.Render(w, http.StatusOK, "landing.html", web.Page{Title: "bmrk", LinkURL: "/auth/login"})
}
