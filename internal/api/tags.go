package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/store"
)

// tagsAPIHandler provides REST handlers for tag endpoints.
type tagsAPIHandler struct {
	tags *store.TagStore
	log  logger.Logger
}

func registerTagRoutes(r chi.Router, tags *store.TagStore, log logger.Logger) {
	h := &tagsAPIHandler{tags: tags, log: log}
	r.Get("/tags", h.List)
	r.Post("/tags", h.Create)
	r.Patch("/tags/{id}", h.Touch)
}

// List returns the caller's tags, most recently used first.
// GET /api/v1/tags
func (h *tagsAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}
	if !ownerMatches(user, r.URL.Query().Get("owner_id")) {
		writeError(w, http.StatusForbidden, "cannot list another user's tags", "FORBIDDEN")
		return
	}

	tags, err := h.tags.ListByOwner(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list tags", logger.String("user_id", user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}

	resp := TagListResponse{Tags: make([]TagResponse, 0, len(tags))}
	for _, t := range tags {
		resp.Tags = append(resp.Tags, toTagResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a tag for the caller.
// POST /api/v1/tags
//
// @Summary      Create a tag
// @Tags         Tags
// @Accept       json
// @Produce      json
// @Param        body  body      CreateTagRequest  true  "Tag to create"
// @Success      201   {object}  TagResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Security     BearerToken
// @Router       /tags [post]
func (h *tagsAPIHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	var req CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if !ownerMatches(user, req.UserID) {
		writeError(w, http.StatusForbidden, "cannot create tags for another user", "FORBIDDEN")
		return
	}

	tag, err := h.tags.Create(r.Context(), user.ID, req.Name)
	switch {
	case errors.Is(err, store.ErrTagNameRequired):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_NAME")
		return
	case errors.Is(err, store.ErrDuplicateTag):
		writeError(w, http.StatusConflict, err.Error(), "DUPLICATE_TAG")
		return
	case err != nil:
		h.log.Error("create tag", logger.String("user_id", user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusCreated, toTagResponse(tag))
}

// Touch marks a tag as just used.
// PATCH /api/v1/tags/{id}
func (h *tagsAPIHandler) Touch(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	tag, err := h.tags.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || tag.UserID != user.ID {
		writeError(w, http.StatusNotFound, "tag not found", "NOT_FOUND")
		return
	}
	if err := h.tags.Touch(r.Context(), tag.ID); err != nil {
		h.log.Error("touch tag", logger.String("tag_id", tag.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
