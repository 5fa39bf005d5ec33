package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/httputil"
)

type categoryResponse struct {
	Message  string           `json:"message,omitempty"`
	Category *models.Category `json:"category"`
}

type categoriesResponse struct {
	Categories []*models.CategoryWithCount `json:"categories"`
}

type tagResponse struct {
	Tag *models.Tag `json:"tag"`
}

type tagsResponse struct {
	Tags []*models.TagWithCount `json:"tags"`
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categories, err := h.blog.ListCategories(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list categories")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, categoriesResponse{Categories: categories})
}

func (h *Handler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category, err := h.blog.GetCategory(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(ctx, w, err, "failed to get category")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, categoryResponse{Category: category})
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeAndPrepare[models.CategoryRequest](r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid category request")
		return
	}
	category, err := h.blog.CreateCategory(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err, "failed to create category")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, categoryResponse{Message: "category_created", Category: category})
}

func (h *Handler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categoryID, err := id.ParseCategoryID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err, "invalid category id")
		return
	}
	req, err := httputil.DecodeAndPrepare[models.CategoryRequest](r)
	if err != nil {
		h.writeError(ctx, w, err, "invalid category request")
		return
	}
	category, err := h.blog.UpdateCategory(ctx, categoryID, req)
	if err != nil {
		h.writeError(ctx, w, err, "failed to update category")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, categoryResponse{Message: "category_updated", Category: category})
}

func (h *Handler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categoryID, err := id.ParseCategoryID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err, "invalid category id")
		return
	}
	if err := h.blog.DeleteCategory(ctx, categoryID); err != nil {
		h.writeError(ctx, w, err, "failed to delete category")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "category_deleted"})
}

func (h *Handler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tags, err := h.blog.ListTags(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list tags")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tagsResponse{Tags: tags})
}

func (h *Handler) HandleGetTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tag, err := h.blog.GetTag(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(ctx, w, err, "failed to get tag")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tagResponse{Tag: tag})
}
