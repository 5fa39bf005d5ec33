package service

import (
	"go.uber.org/mock/gomock"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestCreateCategory() {
	s.Run("derives the slug from the name", func() {
		s.mockCategories.EXPECT().CreateCategory(gomock.Any(), gomock.Any()).Return(nil)
		category, err := s.service.CreateCategory(s.editorCtx(), &models.CategoryRequest{Name: "Cloud Native"})
		s.Require().NoError(err)
		s.Equal("cloud-native", category.Slug)
		s.Equal(fixedNow, category.CreatedAt)
	})

	s.Run("duplicates conflict", func() {
		s.mockCategories.EXPECT().CreateCategory(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		_, err := s.service.CreateCategory(s.editorCtx(), &models.CategoryRequest{Name: "Go"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("authors are forbidden", func() {
		_, err := s.service.CreateCategory(s.authorCtx(), &models.CategoryRequest{Name: "Go"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestUpdateCategory() {
	categoryID := id.NewCategoryID()
	s.Run("missing category", func() {
		s.mockCategories.EXPECT().FindCategoryByID(gomock.Any(), categoryID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.UpdateCategory(s.editorCtx(), categoryID, &models.CategoryRequest{Name: "Go"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("renames", func() {
		s.mockCategories.EXPECT().FindCategoryByID(gomock.Any(), categoryID).
			Return(&models.Category{ID: categoryID, Name: "Go", Slug: "go"}, nil)
		s.mockCategories.EXPECT().UpdateCategory(gomock.Any(), gomock.Any()).Return(nil)
		category, err := s.service.UpdateCategory(s.editorCtx(), categoryID, &models.CategoryRequest{Name: "Golang", Slug: "go"})
		s.Require().NoError(err)
		s.Equal("Golang", category.Name)
		s.Equal("go", category.Slug)
	})
}

func (s *ServiceSuite) TestDeleteCategory() {
	categoryID := id.NewCategoryID()
	admin := ctxAs(id.NewUserID(), id.RoleAdmin)

	s.Run("editors are forbidden", func() {
		err := s.service.DeleteCategory(s.editorCtx(), categoryID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("in use", func() {
		s.mockCategories.EXPECT().DeleteCategory(gomock.Any(), categoryID).Return(sentinel.ErrInUse)
		err := s.service.DeleteCategory(admin, categoryID)
		s.True(dErrors.HasCode(err, dErrors.CodeInUse))
	})

	s.Run("missing", func() {
		s.mockCategories.EXPECT().DeleteCategory(gomock.Any(), categoryID).Return(sentinel.ErrNotFound)
		err := s.service.DeleteCategory(admin, categoryID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("deleted", func() {
		s.mockCategories.EXPECT().DeleteCategory(gomock.Any(), categoryID).Return(nil)
		s.NoError(s.service.DeleteCategory(admin, categoryID))
	})
}

func (s *ServiceSuite) TestEnsureCategory() {
	s.Run("existing slug is reused", func() {
		s.mockCategories.EXPECT().FindCategoryBySlug(gomock.Any(), "go").Return(&models.Category{Slug: "go"}, nil)
		_, created, err := s.service.EnsureCategory(anonCtx(), &models.CategoryRequest{Name: "Go"})
		s.Require().NoError(err)
		s.False(created)
	})

	s.Run("missing slug is created", func() {
		s.mockCategories.EXPECT().FindCategoryBySlug(gomock.Any(), "rust").Return(nil, sentinel.ErrNotFound)
		s.mockCategories.EXPECT().CreateCategory(gomock.Any(), gomock.Any()).Return(nil)
		category, created, err := s.service.EnsureCategory(anonCtx(), &models.CategoryRequest{Name: "Rust"})
		s.Require().NoError(err)
		s.True(created)
		s.Equal("rust", category.Slug)
	})
}

func (s *ServiceSuite) TestTags() {
	s.Run("missing tag", func() {
		s.mockTags.EXPECT().FindTagBySlug(gomock.Any(), "nope").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.GetTag(anonCtx(), "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty list is not nil", func() {
		s.mockTags.EXPECT().ListTags(gomock.Any()).Return(nil, nil)
		tags, err := s.service.ListTags(anonCtx())
		s.Require().NoError(err)
		s.NotNil(tags)
	})

	s.Run("ensure rejects names without a slug", func() {
		_, err := s.service.EnsureTag(anonCtx(), "!!!")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
