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

// bookmarksAPIHandler provides REST handlers for bookmarks and their tag
// associations.
type bookmarksAPIHandler struct {
	bookmarks *store.BookmarkStore
	tags      *store.TagStore
	log       logger.Logger
}

func registerBookmarkRoutes(r chi.Router, bookmarks *store.BookmarkStore, tags *store.TagStore, log logger.Logger) {
	h := &bookmarksAPIHandler{bookmarks: bookmarks, tags: tags, log: log}
	r.Get("/bookmarks", h.List)
	r.Post("/bookmarks", h.Create)
	r.Delete("/bookmarks/{id}", h.Delete)
	r.Post("/bookmarks/{id}/tags", h.AttachTag)
	r.Delete("/bookmarks/{id}/tags/{tagID}", h.DetachTag)
}

// List returns the caller's bookmarks, newest first, with tags joined.
// GET /api/v1/bookmarks
//
// @Summary      List bookmarks
// @Tags         Bookmarks
// @Produce      json
// @Param        owner_id  query     string  false  "Must equal the caller's ID when set"
// @Success      200       {object}  BookmarkListResponse
// @Failure      401       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Security     BearerToken
// @Router       /bookmarks [get]
func (h *bookmarksAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}
	if !ownerMatches(user, r.URL.Query().Get("owner_id")) {
		writeError(w, http.StatusForbidden, "cannot list another user's bookmarks", "FORBIDDEN")
		return
	}

	bookmarks, err := h.bookmarks.ListByOwner(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list bookmarks", logger.String("user_id", user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}

	resp := BookmarkListResponse{Bookmarks: make([]BookmarkResponse, 0, len(bookmarks))}
	for _, b := range bookmarks {
		resp.Bookmarks = append(resp.Bookmarks, toBookmarkResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create saves a bookmark for the caller.
// POST /api/v1/bookmarks
//
// @Summary      Create a bookmark
// @Tags         Bookmarks
// @Accept       json
// @Produce      json
// @Param        body  body      CreateBookmarkRequest  true  "Bookmark to create"
// @Success      201   {object}  BookmarkResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Security     BearerToken
// @Router       /bookmarks [post]
func (h *bookmarksAPIHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	var req CreateBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if !ownerMatches(user, req.UserID) {
		writeError(w, http.StatusForbidden, "cannot create bookmarks for another user", "FORBIDDEN")
		return
	}
	if err := store.ValidateBookmarkURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_URL")
		return
	}

	b, err := h.bookmarks.Create(r.Context(), user.ID, req.URL, req.Title, store.Metadata(req.Metadata))
	if err != nil {
		h.log.Error("create bookmark", logger.String("user_id", user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusCreated, toBookmarkResponse(b))
}

// Delete removes one of the caller's bookmarks.
// DELETE /api/v1/bookmarks/{id}
func (h *bookmarksAPIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	err := h.bookmarks.Delete(r.Context(), chi.URLParam(r, "id"), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "bookmark not found", "NOT_FOUND")
		return
	}
	if err != nil {
		h.log.Error("delete bookmark", logger.String("user_id", user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AttachTag assigns one of the caller's tags to one of their bookmarks.
// POST /api/v1/bookmarks/{id}/tags
func (h *bookmarksAPIHandler) AttachTag(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	var req AttachTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TagID == "" {
		writeError(w, http.StatusBadRequest, "tag_id is required", "BAD_REQUEST")
		return
	}

	bookmarkID := chi.URLParam(r, "id")
	if !h.ownsBookmarkAndTag(w, r, user, bookmarkID, req.TagID) {
		return
	}

	err := h.bookmarks.AttachTag(r.Context(), bookmarkID, req.TagID, user.ID)
	if errors.Is(err, store.ErrAlreadyAttached) {
		writeError(w, http.StatusConflict, err.Error(), "ALREADY_ATTACHED")
		return
	}
	if err != nil {
		h.log.Error("attach tag", logger.String("bookmark_id", bookmarkID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DetachTag removes a tag from one of the caller's bookmarks.
// DELETE /api/v1/bookmarks/{id}/tags/{tagID}
func (h *bookmarksAPIHandler) DetachTag(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	bookmarkID, tagID := chi.URLParam(r, "id"), chi.URLParam(r, "tagID")
	if !h.ownsBookmarkAndTag(w, r, user, bookmarkID, tagID) {
		return
	}

	if err := h.bookmarks.DetachTag(r.Context(), bookmarkID, tagID); err != nil {
		h.log.Error("detach tag", logger.String("bookmark_id", bookmarkID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownsBookmarkAndTag writes a 404 and returns false unless both belong to user.
func (h *bookmarksAPIHandler) ownsBookmarkAndTag(w http.ResponseWriter, r *http.Request, user *store.User, bookmarkID, tagID string) bool {
	b, err := h.bookmarks.GetByID(r.Context(), bookmarkID)
	if err != nil || b.UserID != user.ID {
		writeError(w, http.StatusNotFound, "bookmark not found", "NOT_FOUND")
		return false
	}
	t, err := h.tags.GetByID(r.Context(), tagID)
	if err != nil || t.UserID != user.ID {
		writeError(w, http.StatusNotFound, "tag not found", "NOT_FOUND")
		return false
	}
	return true
}
