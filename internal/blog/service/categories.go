package service

import (
	"context"
	"errors"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/audit"
	"quill/pkg/platform/sentinel"
)

var errCategoryNotFound = dErrors.New(dErrors.CodeNotFound, "category not found")

func (s *Service) ListCategories(ctx context.Context) ([]*models.CategoryWithCount, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list categories")
	}
	if categories == nil {
		categories = []*models.CategoryWithCount{}
	}
	return categories, nil
}

func (s *Service) GetCategory(ctx context.Context, categorySlug string) (*models.Category, error) {
	category, err := s.categories.FindCategoryBySlug(ctx, categorySlug)
	if err != nil {
		return nil, translateCategoryErr(err, "failed to load category")
	}
	return category, nil
}

func (s *Service) CreateCategory(ctx context.Context, req *models.CategoryRequest) (_ *models.Category, err error) {
	ctx, span := s.startSpan(ctx, "CreateCategory")
	defer func() { endSpan(span, err) }()

	if _, role := principal(ctx); !role.AtLeast(id.RoleEditor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "editors only")
	}
	category := &models.Category{
		ID:        id.NewCategoryID(),
		Name:      req.Name,
		Slug:      req.ResolvedSlug(),
		CreatedAt: now(ctx),
	}
	if err := s.categories.CreateCategory(ctx, category); err != nil {
		return nil, translateCategoryErr(err, "failed to create category")
	}
	s.logAudit(ctx, audit.EventCategoryCreated, category.ID.String(), "slug", category.Slug)
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, categoryID id.CategoryID, req *models.CategoryRequest) (_ *models.Category, err error) {
	ctx, span := s.startSpan(ctx, "UpdateCategory")
	defer func() { endSpan(span, err) }()

	if _, role := principal(ctx); !role.AtLeast(id.RoleEditor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "editors only")
	}
	category, err := s.categories.FindCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, translateCategoryErr(err, "failed to load category")
	}
	category.Name = req.Name
	category.Slug = req.ResolvedSlug()
	if err := s.categories.UpdateCategory(ctx, category); err != nil {
		return nil, translateCategoryErr(err, "failed to update category")
	}
	s.logAudit(ctx, audit.EventCategoryUpdated, category.ID.String(), "slug", category.Slug)
	return category, nil
}

// DeleteCategory removes an unused category. Admins only.
func (s *Service) DeleteCategory(ctx context.Context, categoryID id.CategoryID) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteCategory")
	defer func() { endSpan(span, err) }()

	if _, role := principal(ctx); !role.AtLeast(id.RoleAdmin) {
		return dErrors.New(dErrors.CodeForbidden, "admins only")
	}
	if err := s.categories.DeleteCategory(ctx, categoryID); err != nil {
		return translateCategoryErr(err, "failed to delete category")
	}
	s.logAudit(ctx, audit.EventCategoryDeleted, categoryID.String())
	return nil
}

// EnsureCategory creates the category unless its slug exists and reports
// whether it did. Used by the seed command.
func (s *Service) EnsureCategory(ctx context.Context, req *models.CategoryRequest) (*models.Category, bool, error) {
	existing, err := s.categories.FindCategoryBySlug(ctx, req.ResolvedSlug())
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load category")
	}
	category := &models.Category{
		ID:        id.NewCategoryID(),
		Name:      req.Name,
		Slug:      req.ResolvedSlug(),
		CreatedAt: now(ctx),
	}
	if err := s.categories.CreateCategory(ctx, category); err != nil {
		return nil, false, translateCategoryErr(err, "failed to create category")
	}
	return category, true, nil
}

func translateCategoryErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return errCategoryNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "a category with this name or slug already exists")
	case errors.Is(err, sentinel.ErrInUse):
		return dErrors.New(dErrors.CodeInUse, "category is still used by posts")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
