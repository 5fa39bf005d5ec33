package service

import (
	"context"
	"errors"
	"time"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/audit"
	"quill/pkg/platform/sentinel"
	"quill/pkg/platform/slug"
)

const (
	publishPathManual    = "manual"
	publishPathScheduled = "scheduled"
)

var (
	errPostNotFound = dErrors.New(dErrors.CodeNotFound, "post not found")
	errSlugTaken    = dErrors.New(dErrors.CodeConflict, "slug is already taken")
)

// ListPosts pages through the posts the caller may see. Anonymous callers
// see published posts, authors also see their own, editors see everything.
// A status filter narrows within that.
func (s *Service) ListPosts(ctx context.Context, q models.ListPostsQuery) (_ *models.PostList, err error) {
	ctx, span := s.startSpan(ctx, "ListPosts")
	defer func() { endSpan(span, err) }()

	q.Normalize()
	userID, role := principal(ctx)
	filter := models.PostFilter{
		Status:       q.Status,
		CategorySlug: q.CategorySlug,
		TagSlug:      q.TagSlug,
		Query:        q.Query,
		AuthorID:     q.AuthorID,
		Limit:        q.PageSize,
		Offset:       (q.Page - 1) * q.PageSize,
	}
	switch {
	case role.AtLeast(id.RoleEditor):
		filter.Visibility.AllStatuses = true
	case !userID.IsNil():
		filter.Visibility.Owner = userID
	}

	posts, total, err := s.posts.ListPosts(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list posts")
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return &models.PostList{
		Posts:      posts,
		Pagination: models.NewPagination(q.Page, q.PageSize, total),
	}, nil
}

// GetPost returns a post by slug. Posts the caller may not see are reported
// as missing.
func (s *Service) GetPost(ctx context.Context, postSlug string) (_ *models.Post, err error) {
	ctx, span := s.startSpan(ctx, "GetPost")
	defer func() { endSpan(span, err) }()

	post, err := s.posts.FindPostBySlug(ctx, postSlug)
	if err != nil {
		return nil, translatePostErr(err, "failed to load post")
	}
	if !post.VisibleTo(principal(ctx)) {
		return nil, errPostNotFound
	}
	return post, nil
}

func (s *Service) CreatePost(ctx context.Context, req *models.CreatePostRequest) (_ *models.Post, err error) {
	ctx, span := s.startSpan(ctx, "CreatePost")
	defer func() { endSpan(span, err) }()

	userID, role := principal(ctx)
	if userID.IsNil() || !role.AtLeast(id.RoleAuthor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "authors only")
	}
	t := now(ctx)

	status, err := models.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	publishedAt, err := resolvePublishedAt(status, req.PublishedAt, nil, t)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	html, err := s.render(req.ContentMD)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:          id.NewPostID(),
		Title:       req.Title,
		CoverURL:    req.CoverURL,
		Excerpt:     req.Excerpt,
		ContentMD:   req.ContentMD,
		ContentHTML: html,
		Status:      status,
		PublishedAt: publishedAt,
		AuthorID:    userID,
		CategoryID:  req.CategoryID,
		CreatedAt:   t,
		UpdatedAt:   t,
	}
	base := slug.Slugify(req.Slug)
	if base == "" {
		base = slug.Slugify(req.Title)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		postSlug, err := s.uniqueSlug(ctx, base, id.PostID{})
		if err != nil {
			return err
		}
		post.Slug = postSlug
		if err := s.posts.CreatePost(ctx, post); err != nil {
			return translatePostErr(err, "failed to create post")
		}
		return s.replaceTags(ctx, post.ID, req.Tags, t)
	})
	if err != nil {
		return nil, err
	}

	created, err := s.posts.FindPostByID(ctx, post.ID)
	if err != nil {
		return nil, translatePostErr(err, "failed to load post")
	}
	if s.metrics != nil {
		s.metrics.IncrementPostsCreated()
		if created.IsPublished() {
			s.metrics.IncrementPostsPublished(publishPathManual, 1)
		}
	}
	s.logAudit(ctx, audit.EventPostCreated, created.ID.String(), "slug", created.Slug, "status", string(created.Status))
	return created, nil
}

// UpdatePost replaces a post's editable fields. The slug follows an explicit
// slug, else a changed title, else stays as it is.
func (s *Service) UpdatePost(ctx context.Context, postID id.PostID, req *models.UpdatePostRequest) (_ *models.Post, err error) {
	ctx, span := s.startSpan(ctx, "UpdatePost")
	defer func() { endSpan(span, err) }()

	post, err := s.posts.FindPostByID(ctx, postID)
	if err != nil {
		return nil, translatePostErr(err, "failed to load post")
	}
	if !post.CanEdit(principal(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "you cannot edit this post")
	}
	t := now(ctx)
	wasPublished := post.IsPublished()

	status := post.Status
	if req.Status != "" {
		if status, err = models.ParseStatus(req.Status); err != nil {
			return nil, err
		}
	}
	current := post.PublishedAt
	if req.Status != "" && status != post.Status {
		current = nil
	}
	var publishedAt *time.Time
	if status == models.StatusScheduled && status == post.Status && req.PublishedAt == nil {
		// A due post stays due until the scheduler picks it up.
		publishedAt = current
	} else if publishedAt, err = resolvePublishedAt(status, req.PublishedAt, current, t); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	html, err := s.render(req.ContentMD)
	if err != nil {
		return nil, err
	}

	base := ""
	switch {
	case req.Slug != "":
		base = slug.Slugify(req.Slug)
	case req.Title != post.Title:
		base = slug.Slugify(req.Title)
	}

	post.Title = req.Title
	post.CoverURL = req.CoverURL
	post.Excerpt = req.Excerpt
	post.ContentMD = req.ContentMD
	post.ContentHTML = html
	post.Status = status
	post.PublishedAt = publishedAt
	post.CategoryID = req.CategoryID
	post.UpdatedAt = t

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if base != "" && base != post.Slug {
			postSlug, err := s.uniqueSlug(ctx, base, post.ID)
			if err != nil {
				return err
			}
			post.Slug = postSlug
		}
		if err := s.posts.UpdatePost(ctx, post); err != nil {
			return translatePostErr(err, "failed to update post")
		}
		if req.Tags == nil {
			return nil
		}
		return s.replaceTags(ctx, post.ID, *req.Tags, t)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.posts.FindPostByID(ctx, post.ID)
	if err != nil {
		return nil, translatePostErr(err, "failed to load post")
	}
	if s.metrics != nil && !wasPublished && updated.IsPublished() {
		s.metrics.IncrementPostsPublished(publishPathManual, 1)
	}
	s.logAudit(ctx, audit.EventPostUpdated, updated.ID.String(), "slug", updated.Slug, "status", string(updated.Status))
	return updated, nil
}

// DeletePost lets editors delete any post and authors their own drafts.
func (s *Service) DeletePost(ctx context.Context, postID id.PostID) (err error) {
	ctx, span := s.startSpan(ctx, "DeletePost")
	defer func() { endSpan(span, err) }()

	post, err := s.posts.FindPostByID(ctx, postID)
	if err != nil {
		return translatePostErr(err, "failed to load post")
	}
	if !post.CanDelete(principal(ctx)) {
		return dErrors.New(dErrors.CodeForbidden, "you cannot delete this post")
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return translatePostErr(err, "failed to delete post")
	}
	s.logAudit(ctx, audit.EventPostDeleted, postID.String(), "slug", post.Slug)
	return nil
}

// PublishPost publishes a post now, whatever its current status.
func (s *Service) PublishPost(ctx context.Context, postID id.PostID) (_ *models.Post, err error) {
	ctx, span := s.startSpan(ctx, "PublishPost")
	defer func() { endSpan(span, err) }()

	if _, role := principal(ctx); !role.AtLeast(id.RoleEditor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "editors only")
	}
	post, err := s.posts.FindPostByID(ctx, postID)
	if err != nil {
		return nil, translatePostErr(err, "failed to load post")
	}
	post.Publish(now(ctx))
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, translatePostErr(err, "failed to publish post")
	}
	if s.metrics != nil {
		s.metrics.IncrementPostsPublished(publishPathManual, 1)
	}
	s.logAudit(ctx, audit.EventPostPublished, post.ID.String(), "slug", post.Slug, "path", publishPathManual)
	return post, nil
}

// SchedulePost sets a future publish time.
func (s *Service) SchedulePost(ctx context.Context, postID id.PostID, req *models.SchedulePostRequest) (_ *models.Post, err error) {
	ctx, span := s.startSpan(ctx, "SchedulePost")
	defer func() { endSpan(span, err) }()

	if _, role := principal(ctx); !role.AtLeast(id.RoleEditor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "editors only")
	}
	t := now(ctx)
	at, err := resolvePublishedAt(models.StatusScheduled, req.PublishedAt, nil, t)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.FindPostByID(ctx, postID)
	if err != nil {
		return nil, translatePostErr(err, "failed to load post")
	}
	post.Status = models.StatusScheduled
	post.PublishedAt = at
	post.UpdatedAt = t
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, translatePostErr(err, "failed to schedule post")
	}
	s.logAudit(ctx, audit.EventPostScheduled, post.ID.String(), "slug", post.Slug, "published_at", at.Format(time.RFC3339))
	return post, nil
}

// PublishDue publishes every scheduled post whose time has come and returns
// how many it published. The scheduled time becomes the publish time.
func (s *Service) PublishDue(ctx context.Context) (published int, err error) {
	ctx, span := s.startSpan(ctx, "PublishDue")
	defer func() { endSpan(span, err) }()

	t := now(ctx)
	due, err := s.posts.ListDueScheduled(ctx, t)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list scheduled posts")
	}
	var errs []error
	for _, post := range due {
		post.Publish(*post.PublishedAt)
		post.UpdatedAt = t
		if err := s.posts.UpdatePost(ctx, post); err != nil {
			errs = append(errs, err)
			continue
		}
		published++
		s.logAudit(ctx, audit.EventPostPublished, post.ID.String(), "slug", post.Slug, "path", publishPathScheduled)
	}
	if s.metrics != nil && published > 0 {
		s.metrics.IncrementPostsPublished(publishPathScheduled, published)
	}
	if len(errs) > 0 {
		return published, dErrors.Wrap(errors.Join(errs...), dErrors.CodeInternal, "failed to publish scheduled posts")
	}
	return published, nil
}

// resolvePublishedAt applies the status rules for the publish time:
// drafts have none, published posts default to now, scheduled posts need a
// future time.
func resolvePublishedAt(status models.Status, requested, current *time.Time, t time.Time) (*time.Time, error) {
	at := current
	if requested != nil && !requested.IsZero() {
		v := requested.UTC().Truncate(time.Microsecond)
		at = &v
	}
	switch status {
	case models.StatusDraft:
		return nil, nil
	case models.StatusPublished:
		if at == nil {
			return &t, nil
		}
		return at, nil
	case models.StatusScheduled:
		if at == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "published_at is required for scheduled posts")
		}
		if !at.After(t) {
			return nil, dErrors.New(dErrors.CodeValidation, "published_at must be in the future")
		}
		return at, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status")
	}
}

func (s *Service) checkCategory(ctx context.Context, categoryID *id.CategoryID) error {
	if categoryID == nil {
		return nil
	}
	if _, err := s.categories.FindCategoryByID(ctx, *categoryID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "category_id does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load category")
	}
	return nil
}

func (s *Service) render(md string) (string, error) {
	html, err := s.renderer.Render(md)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to render content")
	}
	return html, nil
}

func (s *Service) uniqueSlug(ctx context.Context, base string, exclude id.PostID) (string, error) {
	candidate, err := slug.Unique(base, func(c string) (bool, error) {
		return s.posts.PostSlugExists(ctx, c, exclude)
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check slug")
	}
	return candidate, nil
}

// replaceTags resolves tag names to tags, creating missing ones, and makes
// them the post's full tag set.
func (s *Service) replaceTags(ctx context.Context, postID id.PostID, names []string, t time.Time) error {
	tagIDs := make([]id.TagID, 0, len(names))
	for _, name := range names {
		tag, err := s.tags.FindOrCreateTag(ctx, name, slug.Slugify(name), t)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve tag")
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	if err := s.posts.SetPostTags(ctx, postID, tagIDs); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to tag post")
	}
	return nil
}

func translatePostErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return errPostNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return errSlugTaken
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
