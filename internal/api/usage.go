package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/store"
)

type usageAPIHandler struct {
	usage *store.UsageStore
	log   logger.Logger
}

func registerUsageRoutes(r chi.Router, usage *store.UsageStore, log logger.Logger) {
	h := &usageAPIHandler{usage: usage, log: log}
	r.Post("/usage/{kind}", h.Increment)
}

// Increment bumps one of the caller's usage counters.
// POST /api/v1/usage/{kind}
func (h *usageAPIHandler) Increment(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	kind := chi.URLParam(r, "kind")
	if err := store.ValidateUsageKind(kind); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_KIND")
		return
	}

	req := IncrementUsageRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
	}
	if req.Count <= 0 {
		writeError(w, http.StatusBadRequest, "count must be positive", "BAD_REQUEST")
		return
	}

	if err := h.usage.Increment(r.Context(), user.ID, kind, req.Count); err != nil {
		h.log.Error("increment usage", logger.String("kind", kind), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
