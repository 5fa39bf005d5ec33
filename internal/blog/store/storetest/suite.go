// Package storetest holds the behavioural suite every blog store backend
// must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	authmodels "quill/internal/auth/models"
	"quill/internal/blog/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

// Store is the full method set of a blog backend.
type Store interface {
	CreatePost(ctx context.Context, p *models.Post) error
	UpdatePost(ctx context.Context, p *models.Post) error
	DeletePost(ctx context.Context, postID id.PostID) error
	FindPostByID(ctx context.Context, postID id.PostID) (*models.Post, error)
	FindPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	PostSlugExists(ctx context.Context, slug string, exclude id.PostID) (bool, error)
	ListPosts(ctx context.Context, f models.PostFilter) ([]*models.Post, int, error)
	SetPostTags(ctx context.Context, postID id.PostID, tagIDs []id.TagID) error
	ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Post, error)

	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, categoryID id.CategoryID) error
	FindCategoryByID(ctx context.Context, categoryID id.CategoryID) (*models.Category, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.CategoryWithCount, error)

	FindOrCreateTag(ctx context.Context, name, slug string, now time.Time) (*models.Tag, error)
	FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error)
	ListTags(ctx context.Context) ([]*models.TagWithCount, error)
}

// Users is where the suite seeds post authors.
type Users interface {
	Create(ctx context.Context, user *authmodels.User) error
}

// Suite runs against a fresh backend per test.
type Suite struct {
	suite.Suite
	Setup func(t *testing.T) (Store, Users)

	store  Store
	users  Users
	ctx    context.Context
	now    time.Time
	author *authmodels.User
	other  *authmodels.User
}

func (s *Suite) SetupTest() {
	s.store, s.users = s.Setup(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.author = s.seedUser("Ada Author")
	s.other = s.seedUser("Otto Other")
}

func (s *Suite) seedUser(name string) *authmodels.User {
	u := &authmodels.User{
		ID:           id.NewUserID(),
		Name:         name,
		Email:        id.NewUserID().String() + "@example.com",
		PasswordHash: "hash",
		Role:         id.RoleAuthor,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u
}

func (s *Suite) newPost(author *authmodels.User, slug string, status models.Status, at time.Time) *models.Post {
	p := &models.Post{
		ID:          id.NewPostID(),
		Title:       "Post " + slug,
		Slug:        slug,
		Excerpt:     "about " + slug,
		ContentMD:   "# " + slug,
		ContentHTML: "<h1>" + slug + "</h1>",
		Status:      status,
		AuthorID:    author.ID,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if status != models.StatusDraft {
		published := at
		p.PublishedAt = &published
	}
	return p
}

func (s *Suite) mustCreatePost(p *models.Post) *models.Post {
	s.Require().NoError(s.store.CreatePost(s.ctx, p))
	return p
}

func (s *Suite) mustCategory(name, slug string) *models.Category {
	c := &models.Category{ID: id.NewCategoryID(), Name: name, Slug: slug, CreatedAt: s.now}
	s.Require().NoError(s.store.CreateCategory(s.ctx, c))
	return c
}

func (s *Suite) mustTag(name, slug string) *models.Tag {
	t, err := s.store.FindOrCreateTag(s.ctx, name, slug, s.now)
	s.Require().NoError(err)
	return t
}

func (s *Suite) TestPostRoundTrip() {
	cat := s.mustCategory("Go", "go")
	p := s.newPost(s.author, "hello-world", models.StatusPublished, s.now)
	p.CategoryID = &cat.ID
	s.mustCreatePost(p)
	s.Require().NoError(s.store.SetPostTags(s.ctx, p.ID, []id.TagID{s.mustTag("Zeta", "zeta").ID, s.mustTag("Alpha", "alpha").ID}))

	got, err := s.store.FindPostBySlug(s.ctx, "hello-world")
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal("Ada Author", got.AuthorName)
	s.Equal("Go", got.CategoryName)
	s.Equal("go", got.CategorySlug)
	s.Require().NotNil(got.PublishedAt)
	s.True(p.PublishedAt.Equal(*got.PublishedAt))
	s.Require().Len(got.Tags, 2)
	s.Equal("Alpha", got.Tags[0].Name)

	byID, err := s.store.FindPostByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("hello-world", byID.Slug)

	_, err = s.store.FindPostBySlug(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *Suite) TestPostSlugUniqueness() {
	first := s.mustCreatePost(s.newPost(s.author, "taken", models.StatusDraft, s.now))

	err := s.store.CreatePost(s.ctx, s.newPost(s.author, "taken", models.StatusDraft, s.now))
	s.ErrorIs(err, sentinel.ErrConflict)

	exists, err := s.store.PostSlugExists(s.ctx, "taken", id.PostID{})
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.PostSlugExists(s.ctx, "taken", first.ID)
	s.Require().NoError(err)
	s.False(exists, "a post does not collide with itself")
}

func (s *Suite) TestUpdateAndDeletePost() {
	p := s.mustCreatePost(s.newPost(s.author, "draft", models.StatusDraft, s.now))

	p.Title = "Renamed"
	p.Slug = "renamed"
	p.Publish(s.now.Add(time.Hour))
	p.UpdatedAt = s.now.Add(time.Hour)
	s.Require().NoError(s.store.UpdatePost(s.ctx, p))

	got, err := s.store.FindPostByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", got.Title)
	s.Equal(models.StatusPublished, got.Status)

	missing := s.newPost(s.author, "ghost", models.StatusDraft, s.now)
	s.ErrorIs(s.store.UpdatePost(s.ctx, missing), sentinel.ErrNotFound)

	s.Require().NoError(s.store.DeletePost(s.ctx, p.ID))
	s.ErrorIs(s.store.DeletePost(s.ctx, p.ID), sentinel.ErrNotFound)
	_, err = s.store.FindPostByID(s.ctx, p.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *Suite) TestListPostsVisibility() {
	s.mustCreatePost(s.newPost(s.author, "pub", models.StatusPublished, s.now))
	s.mustCreatePost(s.newPost(s.author, "mine", models.StatusDraft, s.now))
	s.mustCreatePost(s.newPost(s.other, "theirs", models.StatusDraft, s.now))
	s.mustCreatePost(s.newPost(s.other, "later", models.StatusScheduled, s.now.Add(48*time.Hour)))

	slugs := func(f models.PostFilter) []string {
		f.Limit = 50
		posts, total, err := s.store.ListPosts(s.ctx, f)
		s.Require().NoError(err)
		s.Equal(len(posts), total)
		out := make([]string, 0, len(posts))
		for _, p := range posts {
			out = append(out, p.Slug)
		}
		return out
	}

	s.ElementsMatch([]string{"pub"}, slugs(models.PostFilter{}))
	s.ElementsMatch([]string{"pub", "mine"}, slugs(models.PostFilter{Visibility: models.Visibility{Owner: s.author.ID}}))
	s.ElementsMatch([]string{"pub", "mine", "theirs", "later"}, slugs(models.PostFilter{Visibility: models.Visibility{AllStatuses: true}}))
	s.ElementsMatch([]string{"mine", "theirs"}, slugs(models.PostFilter{
		Visibility: models.Visibility{AllStatuses: true}, Status: models.StatusDraft,
	}))
	s.ElementsMatch([]string{"theirs", "later"}, slugs(models.PostFilter{
		Visibility: models.Visibility{AllStatuses: true}, AuthorID: s.other.ID,
	}))
}

func (s *Suite) TestListPostsFiltersAndPaging() {
	goCat := s.mustCategory("Go", "go")
	tag := s.mustTag("Testing", "testing")
	for i, slug := range []string{"a", "b", "c", "d", "e"} {
		p := s.newPost(s.author, slug, models.StatusPublished, s.now.Add(time.Duration(i)*time.Hour))
		if i%2 == 0 {
			p.CategoryID = &goCat.ID
		}
		s.mustCreatePost(p)
		if i < 2 {
			s.Require().NoError(s.store.SetPostTags(s.ctx, p.ID, []id.TagID{tag.ID}))
		}
	}
	odd := s.newPost(s.author, "percent", models.StatusPublished, s.now.Add(-time.Hour))
	odd.Title = "100% coverage"
	s.mustCreatePost(odd)

	posts, total, err := s.store.ListPosts(s.ctx, models.PostFilter{Limit: 2, Offset: 0})
	s.Require().NoError(err)
	s.Equal(6, total)
	s.Require().Len(posts, 2)
	s.Equal("e", posts[0].Slug, "newest first")
	s.Equal("d", posts[1].Slug)

	posts, _, err = s.store.ListPosts(s.ctx, models.PostFilter{Limit: 2, Offset: 4})
	s.Require().NoError(err)
	s.Require().Len(posts, 2)
	s.Equal("percent", posts[1].Slug)

	posts, total, err = s.store.ListPosts(s.ctx, models.PostFilter{CategorySlug: "go", Limit: 10})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(posts, 3)

	posts, total, err = s.store.ListPosts(s.ctx, models.PostFilter{TagSlug: "testing", Limit: 10})
	s.Require().NoError(err)
	s.Equal(2, total)
	for _, p := range posts {
		s.Require().Len(p.Tags, 1)
		s.Equal("testing", p.Tags[0].Slug)
	}

	posts, total, err = s.store.ListPosts(s.ctx, models.PostFilter{Query: "100%", Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("percent", posts[0].Slug)

	_, total, err = s.store.ListPosts(s.ctx, models.PostFilter{Query: "ABOUT C", Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total, "search is case-insensitive")

	accented := s.newPost(s.author, "creme", models.StatusPublished, s.now.Add(-2*time.Hour))
	accented.Title = "CRÈME BRÛLÉE at Ünicode Café"
	s.mustCreatePost(accented)
	posts, total, err = s.store.ListPosts(s.ctx, models.PostFilter{Query: "crème brûlée", Limit: 10})
	s.Require().NoError(err)
	s.Require().Equal(1, total, "case folding covers non-ASCII letters")
	s.Equal("creme", posts[0].Slug)

	posts, total, err = s.store.ListPosts(s.ctx, models.PostFilter{Limit: 10, Offset: 1 << 40})
	s.Require().NoError(err)
	s.Equal(7, total)
	s.Empty(posts, "offset past the end yields an empty page")
}

func (s *Suite) TestListDueScheduled() {
	due := s.mustCreatePost(s.newPost(s.author, "due", models.StatusScheduled, s.now.Add(-time.Minute)))
	s.mustCreatePost(s.newPost(s.author, "future", models.StatusScheduled, s.now.Add(time.Hour)))
	s.mustCreatePost(s.newPost(s.author, "done", models.StatusPublished, s.now.Add(-time.Hour)))

	posts, err := s.store.ListDueScheduled(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(posts, 1)
	s.Equal(due.ID, posts[0].ID)
}

func (s *Suite) TestCategories() {
	goCat := s.mustCategory("Go", "go")
	s.mustCategory("Rust", "rust")

	dup := &models.Category{ID: id.NewCategoryID(), Name: "GO", Slug: "golang", CreatedAt: s.now}
	s.ErrorIs(s.store.CreateCategory(s.ctx, dup), sentinel.ErrConflict, "names are unique regardless of case")
	dup = &models.Category{ID: id.NewCategoryID(), Name: "Golang", Slug: "go", CreatedAt: s.now}
	s.ErrorIs(s.store.CreateCategory(s.ctx, dup), sentinel.ErrConflict)

	pub := s.newPost(s.author, "pub", models.StatusPublished, s.now)
	pub.CategoryID = &goCat.ID
	s.mustCreatePost(pub)
	draft := s.newPost(s.author, "draft", models.StatusDraft, s.now)
	draft.CategoryID = &goCat.ID
	s.mustCreatePost(draft)

	list, err := s.store.ListCategories(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("Go", list[0].Name)
	s.Equal(1, list[0].PostCount, "only published posts are counted")
	s.Equal(0, list[1].PostCount)

	goCat.Name = "Golang"
	s.Require().NoError(s.store.UpdateCategory(s.ctx, goCat))
	got, err := s.store.FindCategoryBySlug(s.ctx, "go")
	s.Require().NoError(err)
	s.Equal("Golang", got.Name)

	s.ErrorIs(s.store.DeleteCategory(s.ctx, goCat.ID), sentinel.ErrInUse)

	s.Require().NoError(s.store.DeletePost(s.ctx, pub.ID))
	s.Require().NoError(s.store.DeletePost(s.ctx, draft.ID))
	s.Require().NoError(s.store.DeleteCategory(s.ctx, goCat.ID))
	_, err = s.store.FindCategoryByID(s.ctx, goCat.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.DeleteCategory(s.ctx, goCat.ID), sentinel.ErrNotFound)
}

func (s *Suite) TestTags() {
	first := s.mustTag("Go", "go")
	again := s.mustTag("GO", "go")
	s.Equal(first.ID, again.ID, "find-or-create reuses the existing slug")
	s.Equal("Go", again.Name)

	web := s.mustTag("Web", "web")
	s.mustTag("Unused", "unused")

	pub := s.mustCreatePost(s.newPost(s.author, "pub", models.StatusPublished, s.now))
	draft := s.mustCreatePost(s.newPost(s.author, "draft", models.StatusDraft, s.now))
	s.Require().NoError(s.store.SetPostTags(s.ctx, pub.ID, []id.TagID{first.ID, web.ID}))
	s.Require().NoError(s.store.SetPostTags(s.ctx, draft.ID, []id.TagID{web.ID}))

	list, err := s.store.ListTags(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("Go", list[0].Name)
	s.Equal(1, list[0].PostCount)
	s.Equal("Web", list[1].Name)
	s.Equal(1, list[1].PostCount, "draft links are not counted")
	s.Equal(0, list[2].PostCount)

	s.Require().NoError(s.store.SetPostTags(s.ctx, pub.ID, nil))
	got, err := s.store.FindPostByID(s.ctx, pub.ID)
	s.Require().NoError(err)
	s.Empty(got.Tags)

	_, err = s.store.FindTagBySlug(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
