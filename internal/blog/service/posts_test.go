package service

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestListPosts() {
	s.Run("anonymous callers see published posts only", func() {
		s.mockPosts.EXPECT().ListPosts(gomock.Any(), models.PostFilter{Limit: 12, Offset: 0}).
			Return([]*models.Post{s.post(models.StatusPublished)}, 1, nil)

		list, err := s.service.ListPosts(anonCtx(), models.ListPostsQuery{})
		s.Require().NoError(err)
		s.Len(list.Posts, 1)
		s.Equal(models.Pagination{Page: 1, PageSize: 12, Total: 1, TotalPages: 1}, list.Pagination)
	})

	s.Run("authors also see their own posts", func() {
		s.mockPosts.EXPECT().ListPosts(gomock.Any(), models.PostFilter{
			Visibility: models.Visibility{Owner: s.author},
			Status:     models.StatusDraft,
			Limit:      5,
			Offset:     10,
		}).Return(nil, 11, nil)

		list, err := s.service.ListPosts(s.authorCtx(), models.ListPostsQuery{Page: 3, PageSize: 5, Status: models.StatusDraft})
		s.Require().NoError(err)
		s.NotNil(list.Posts)
		s.Empty(list.Posts)
		s.Equal(3, list.Pagination.TotalPages)
	})

	s.Run("editors see every status and page size is clamped", func() {
		s.mockPosts.EXPECT().ListPosts(gomock.Any(), models.PostFilter{
			Visibility: models.Visibility{AllStatuses: true},
			Limit:      models.MaxPageSize,
		}).Return(nil, 0, nil)

		_, err := s.service.ListPosts(s.editorCtx(), models.ListPostsQuery{PageSize: 1000})
		s.Require().NoError(err)
	})

	s.Run("store failure is internal", func() {
		s.mockPosts.EXPECT().ListPosts(gomock.Any(), gomock.Any()).Return(nil, 0, errors.New("db down"))
		_, err := s.service.ListPosts(anonCtx(), models.ListPostsQuery{})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestGetPost() {
	s.Run("published post is public", func() {
		s.mockPosts.EXPECT().FindPostBySlug(gomock.Any(), "hello-world").Return(s.post(models.StatusPublished), nil)
		got, err := s.service.GetPost(anonCtx(), "hello-world")
		s.Require().NoError(err)
		s.Equal("hello-world", got.Slug)
	})

	s.Run("drafts are hidden from other users", func() {
		s.mockPosts.EXPECT().FindPostBySlug(gomock.Any(), "hello-world").Return(s.post(models.StatusDraft), nil)
		_, err := s.service.GetPost(ctxAs(id.NewUserID(), id.RoleAuthor), "hello-world")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("drafts are visible to their author", func() {
		s.mockPosts.EXPECT().FindPostBySlug(gomock.Any(), "hello-world").Return(s.post(models.StatusDraft), nil)
		_, err := s.service.GetPost(s.authorCtx(), "hello-world")
		s.NoError(err)
	})

	s.Run("missing post", func() {
		s.mockPosts.EXPECT().FindPostBySlug(gomock.Any(), "nope").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.GetPost(anonCtx(), "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCreatePost() {
	s.Run("uniquifies the slug, tags the post and stamps published_at", func() {
		categoryID := id.NewCategoryID()
		goTag := models.Tag{ID: id.NewTagID(), Name: "Go", Slug: "go"}
		webTag := models.Tag{ID: id.NewTagID(), Name: "Web", Slug: "web"}
		var stored *models.Post

		s.mockCategories.EXPECT().FindCategoryByID(gomock.Any(), categoryID).Return(&models.Category{ID: categoryID}, nil)
		gomock.InOrder(
			s.mockPosts.EXPECT().PostSlugExists(gomock.Any(), "hello-world", id.PostID{}).Return(true, nil),
			s.mockPosts.EXPECT().PostSlugExists(gomock.Any(), "hello-world-2", id.PostID{}).Return(false, nil),
		)
		s.mockPosts.EXPECT().CreatePost(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *models.Post) error {
			stored = p
			return nil
		})
		s.mockTags.EXPECT().FindOrCreateTag(gomock.Any(), "Go", "go", fixedNow).Return(&goTag, nil)
		s.mockTags.EXPECT().FindOrCreateTag(gomock.Any(), "Web", "web", fixedNow).Return(&webTag, nil)
		s.mockPosts.EXPECT().SetPostTags(gomock.Any(), gomock.Any(), []id.TagID{goTag.ID, webTag.ID}).Return(nil)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, postID id.PostID) (*models.Post, error) {
			s.Equal(stored.ID, postID)
			return stored, nil
		})

		req := &models.CreatePostRequest{
			Title: "Hello World", ContentMD: "# hi", Status: "published",
			CategoryID: &categoryID, Tags: []string{"Go", "Web"},
		}
		req.Normalize()
		s.Require().NoError(req.Validate())

		post, err := s.service.CreatePost(s.authorCtx(), req)
		s.Require().NoError(err)
		s.Equal("hello-world-2", post.Slug)
		s.Equal("<p>rendered</p>", post.ContentHTML)
		s.Equal(s.author, post.AuthorID)
		s.Require().NotNil(post.PublishedAt)
		s.Equal(fixedNow, *post.PublishedAt)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.PostsCreated))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.PostsPublished.WithLabelValues("manual")))
	})

	s.Run("viewers cannot create posts", func() {
		_, err := s.service.CreatePost(ctxAs(id.NewUserID(), id.RoleViewer), &models.CreatePostRequest{Title: "x", ContentMD: "x", Status: "draft"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("scheduled posts need a future time", func() {
		past := fixedNow.Add(-time.Hour)
		_, err := s.service.CreatePost(s.authorCtx(), &models.CreatePostRequest{
			Title: "x", ContentMD: "x", Status: "scheduled", PublishedAt: &past,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.CreatePost(s.authorCtx(), &models.CreatePostRequest{Title: "x", ContentMD: "x", Status: "scheduled"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown category is a validation error", func() {
		categoryID := id.NewCategoryID()
		s.mockCategories.EXPECT().FindCategoryByID(gomock.Any(), categoryID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.CreatePost(s.authorCtx(), &models.CreatePostRequest{
			Title: "x", ContentMD: "x", Status: "draft", CategoryID: &categoryID,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("slug race surfaces as conflict", func() {
		s.mockPosts.EXPECT().PostSlugExists(gomock.Any(), "racy", id.PostID{}).Return(false, nil)
		s.mockPosts.EXPECT().CreatePost(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		_, err := s.service.CreatePost(s.authorCtx(), &models.CreatePostRequest{Title: "Racy", ContentMD: "x", Status: "draft"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestUpdatePost() {
	s.Run("title change regenerates the slug and omitted tags are kept", func() {
		existing := s.post(models.StatusDraft)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil).Times(2)
		s.mockPosts.EXPECT().PostSlugExists(gomock.Any(), "new-title", existing.ID).Return(false, nil)
		s.mockPosts.EXPECT().UpdatePost(gomock.Any(), gomock.Any()).Return(nil)

		post, err := s.service.UpdatePost(s.authorCtx(), existing.ID, &models.UpdatePostRequest{Title: "New Title", ContentMD: "x"})
		s.Require().NoError(err)
		s.Equal("new-title", post.Slug)
		s.Equal(models.StatusDraft, post.Status)
		s.Nil(post.PublishedAt)
	})

	s.Run("unchanged title keeps the slug and an empty tag list clears tags", func() {
		existing := s.post(models.StatusPublished)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil).Times(2)
		s.mockPosts.EXPECT().UpdatePost(gomock.Any(), gomock.Any()).Return(nil)
		s.mockPosts.EXPECT().SetPostTags(gomock.Any(), existing.ID, []id.TagID{}).Return(nil)

		empty := []string{}
		post, err := s.service.UpdatePost(s.editorCtx(), existing.ID, &models.UpdatePostRequest{
			Title: existing.Title, ContentMD: "changed", Tags: &empty,
		})
		s.Require().NoError(err)
		s.Equal("hello-world", post.Slug)
		s.Equal(models.StatusPublished, post.Status)
	})

	s.Run("a due scheduled post keeps its time when edited", func() {
		existing := s.post(models.StatusScheduled)
		due := *existing.PublishedAt
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil).Times(2)
		s.mockPosts.EXPECT().UpdatePost(gomock.Any(), gomock.Any()).Return(nil)

		post, err := s.service.UpdatePost(s.editorCtx(), existing.ID, &models.UpdatePostRequest{
			Title: existing.Title, ContentMD: "typo fixed",
		})
		s.Require().NoError(err)
		s.Equal(models.StatusScheduled, post.Status)
		s.Equal(due, *post.PublishedAt)
	})

	s.Run("other authors are forbidden", func() {
		existing := s.post(models.StatusDraft)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil)
		_, err := s.service.UpdatePost(ctxAs(id.NewUserID(), id.RoleAuthor), existing.ID, &models.UpdatePostRequest{Title: "x", ContentMD: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing post", func() {
		postID := id.NewPostID()
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), postID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.UpdatePost(s.editorCtx(), postID, &models.UpdatePostRequest{Title: "x", ContentMD: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDeletePost() {
	s.Run("authors delete their own drafts", func() {
		existing := s.post(models.StatusDraft)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil)
		s.mockPosts.EXPECT().DeletePost(gomock.Any(), existing.ID).Return(nil)
		s.NoError(s.service.DeletePost(s.authorCtx(), existing.ID))
	})

	s.Run("authors cannot delete published posts", func() {
		existing := s.post(models.StatusPublished)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil)
		err := s.service.DeletePost(s.authorCtx(), existing.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("editors delete anything", func() {
		existing := s.post(models.StatusPublished)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil)
		s.mockPosts.EXPECT().DeletePost(gomock.Any(), existing.ID).Return(nil)
		s.NoError(s.service.DeletePost(s.editorCtx(), existing.ID))
	})
}

func (s *ServiceSuite) TestPublishAndSchedule() {
	s.Run("publish stamps now", func() {
		existing := s.post(models.StatusDraft)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil)
		s.mockPosts.EXPECT().UpdatePost(gomock.Any(), existing).Return(nil)

		post, err := s.service.PublishPost(s.editorCtx(), existing.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPublished, post.Status)
		s.Equal(fixedNow, *post.PublishedAt)
	})

	s.Run("authors cannot publish", func() {
		_, err := s.service.PublishPost(s.authorCtx(), id.NewPostID())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("schedule in the past is rejected", func() {
		past := fixedNow.Add(-time.Second)
		_, err := s.service.SchedulePost(s.editorCtx(), id.NewPostID(), &models.SchedulePostRequest{PublishedAt: &past})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("schedule in the future", func() {
		existing := s.post(models.StatusDraft)
		at := fixedNow.Add(24 * time.Hour)
		s.mockPosts.EXPECT().FindPostByID(gomock.Any(), existing.ID).Return(existing, nil)
		s.mockPosts.EXPECT().UpdatePost(gomock.Any(), existing).Return(nil)

		post, err := s.service.SchedulePost(s.editorCtx(), existing.ID, &models.SchedulePostRequest{PublishedAt: &at})
		s.Require().NoError(err)
		s.Equal(models.StatusScheduled, post.Status)
		s.Equal(at, *post.PublishedAt)
	})
}

func (s *ServiceSuite) TestPublishDue() {
	first := s.post(models.StatusScheduled)
	second := s.post(models.StatusScheduled)
	scheduledAt := *first.PublishedAt

	s.mockPosts.EXPECT().ListDueScheduled(gomock.Any(), fixedNow).Return([]*models.Post{first, second}, nil)
	s.mockPosts.EXPECT().UpdatePost(gomock.Any(), first).Return(nil)
	s.mockPosts.EXPECT().UpdatePost(gomock.Any(), second).Return(errors.New("write failed"))

	n, err := s.service.PublishDue(anonCtx())
	s.Error(err)
	s.Equal(1, n)
	s.Equal(models.StatusPublished, first.Status)
	s.Equal(scheduledAt, *first.PublishedAt, "the scheduled time becomes the publish time")
	s.Equal(fixedNow, first.UpdatedAt)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PostsPublished.WithLabelValues("scheduled")))
}

func (s *ServiceSuite) TestResolvePublishedAt() {
	future := fixedNow.Add(time.Hour)
	cases := []struct {
		name      string
		status    models.Status
		requested *time.Time
		current   *time.Time
		want      *time.Time
		wantErr   bool
	}{
		{name: "draft drops the time", status: models.StatusDraft, requested: &future, want: nil},
		{name: "published defaults to now", status: models.StatusPublished, want: &fixedNow},
		{name: "published keeps the current time", status: models.StatusPublished, current: &future, want: &future},
		{name: "scheduled needs a time", status: models.StatusScheduled, wantErr: true},
		{name: "scheduled at now is rejected", status: models.StatusScheduled, requested: &fixedNow, wantErr: true},
		{name: "scheduled in the future", status: models.StatusScheduled, requested: &future, want: &future},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			got, err := resolvePublishedAt(tc.status, tc.requested, tc.current, fixedNow)
			if tc.wantErr {
				s.Error(err)
				return
			}
			s.Require().NoError(err)
			if tc.want == nil {
				s.Nil(got)
				return
			}
			s.Require().NotNil(got)
			s.True(tc.want.Equal(*got))
		})
	}
}
