// Package api exposes generated post drafts over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"post_drafter/internal/domain"
)

type PostReader interface {
	ListPosts(ctx context.Context, platform string) ([]domain.PostRecord, error)
	MarkViewed(ctx context.Context, id string) (domain.PostRecord, error)
}

type PostHandler struct {
	posts  PostReader
	logger *slog.Logger
}

func NewPostHandler(posts PostReader, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:  posts,
		logger: logger.With("component", "api"),
	}
}

func NewRouter(h *PostHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/posts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/{id}/viewed", h.MarkViewed)
	})

	return r
}

// List returns every draft, or only those of ?platform= when given.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPosts(r.Context(), r.URL.Query().Get("platform"))
	if err != nil {
		h.logger.Error("failed to list posts", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	RespondWithJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	post, err := h.posts.MarkViewed(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, "post not found")
		return
	case err != nil:
		h.logger.Error("failed to mark post viewed", "post_id", id, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to mark post viewed")
		return
	}
	RespondWithJSON(w, http.StatusOK, post)
}
