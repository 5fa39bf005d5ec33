package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/httputil"
)

type postResponse struct {
	Message string       `json:"message,omitempty"`
	Post    *models.Post `json:"post"`
}

func (h *Handler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseListQuery(r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid post listing query")
		return
	}
	list, err := h.blog.ListPosts(ctx, q)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list posts")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// parseListQuery reads page, pageSize, status, category, tag, q and
// author_id. Absent or unparseable paging falls back to the defaults;
// explicit values are clamped.
func parseListQuery(r *http.Request) (models.ListPostsQuery, error) {
	q := models.ListPostsQuery{
		CategorySlug: httputil.QueryString(r, "category"),
		TagSlug:      httputil.QueryString(r, "tag"),
		Query:        httputil.QueryString(r, "q"),
	}
	q.Page, _ = strconv.Atoi(httputil.QueryString(r, "page"))
	if n, err := strconv.Atoi(httputil.QueryString(r, "pageSize")); err == nil {
		q.PageSize = max(n, 1)
	}
	if raw := httputil.QueryString(r, "status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return q, err
		}
		q.Status = status
	}
	if raw := httputil.QueryString(r, "author_id"); raw != "" {
		authorID, err := id.ParseUserID(raw)
		if err != nil {
			return q, err
		}
		q.AuthorID = authorID
	}
	q.Normalize()
	return q, nil
}

func (h *Handler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post, err := h.blog.GetPost(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(ctx, w, err, "failed to get post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, postResponse{Post: post})
}

func (h *Handler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeAndPrepare[models.CreatePostRequest](r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid create post request")
		return
	}
	post, err := h.blog.CreatePost(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err, "failed to create post")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, postResponse{Message: "post_created", Post: post})
}

func (h *Handler) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, err := id.ParsePostID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err, "invalid post id")
		return
	}
	req, err := httputil.DecodeAndPrepare[models.UpdatePostRequest](r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid update post request")
		return
	}
	post, err := h.blog.UpdatePost(ctx, postID, req)
	if err != nil {
		h.writeError(ctx, w, err, "failed to update post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, postResponse{Message: "post_updated", Post: post})
}

func (h *Handler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, err := id.ParsePostID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err, "invalid post id")
		return
	}
	if err := h.blog.DeletePost(ctx, postID); err != nil {
		h.writeError(ctx, w, err, "failed to delete post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "post_deleted"})
}

func (h *Handler) HandlePublishPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, err := id.ParsePostID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err, "invalid post id")
		return
	}
	post, err := h.blog.PublishPost(ctx, postID)
	if err != nil {
		h.writeError(ctx, w, err, "failed to publish post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, postResponse{Message: "post_published", Post: post})
}

func (h *Handler) HandleSchedulePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, err := id.ParsePostID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err, "invalid post id")
		return
	}
	req, err := httputil.DecodeAndPrepare[models.SchedulePostRequest](r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid schedule request")
		return
	}
	post, err := h.blog.SchedulePost(ctx, postID, req)
	if err != nil {
		h.writeError(ctx, w, err, "failed to schedule post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, postResponse{Message: "post_scheduled", Post: post})
}
