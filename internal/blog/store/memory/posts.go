package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

func (s *Store) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTaken(post.Slug, id.PostID{}) {
		return sentinel.ErrConflict
	}
	if post.CategoryID != nil {
		if _, ok := s.categories[*post.CategoryID]; !ok {
			return sentinel.ErrNotFound
		}
	}
	cp := *post
	cp.Tags = nil
	s.posts[post.ID] = &cp
	return nil
}

func (s *Store) UpdatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.slugTaken(post.Slug, post.ID) {
		return sentinel.ErrConflict
	}
	cp := *post
	cp.Tags = nil
	s.posts[post.ID] = &cp
	return nil
}

func (s *Store) DeletePost(_ context.Context, postID id.PostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[postID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.posts, postID)
	delete(s.postTags, postID)
	return nil
}

func (s *Store) FindPostByID(ctx context.Context, postID id.PostID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.hydrate(ctx, p), nil
}

func (s *Store) FindPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.Slug == slug {
			return s.hydrate(ctx, p), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// PostSlugExists reports whether slug is used by a post other than exclude.
func (s *Store) PostSlugExists(_ context.Context, slug string, exclude id.PostID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slugTaken(slug, exclude), nil
}

func (s *Store) slugTaken(slug string, exclude id.PostID) bool {
	for pid, p := range s.posts {
		if p.Slug == slug && pid != exclude {
			return true
		}
	}
	return false
}

// ListPosts returns one page of matching posts, newest first, and the total match count.
func (s *Store) ListPosts(ctx context.Context, f models.PostFilter) ([]*models.Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Post
	for _, p := range s.posts {
		if s.matches(p, f) {
			matched = append(matched, p)
		}
	}
	slices.SortFunc(matched, func(a, b *models.Post) int {
		if c := sortTime(b).Compare(sortTime(a)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	page := make([]*models.Post, 0, end-start)
	for _, p := range matched[start:end] {
		page = append(page, s.hydrate(ctx, p))
	}
	return page, total, nil
}

func sortTime(p *models.Post) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

func (s *Store) matches(p *models.Post, f models.PostFilter) bool {
	if !f.Visibility.AllStatuses && !p.IsPublished() {
		if f.Visibility.Owner.IsNil() || p.AuthorID != f.Visibility.Owner {
			return false
		}
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if !f.AuthorID.IsNil() && p.AuthorID != f.AuthorID {
		return false
	}
	if f.CategorySlug != "" {
		if p.CategoryID == nil {
			return false
		}
		c, ok := s.categories[*p.CategoryID]
		if !ok || c.Slug != f.CategorySlug {
			return false
		}
	}
	if f.TagSlug != "" && !s.hasTag(p.ID, f.TagSlug) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Excerpt), q) &&
			!strings.Contains(strings.ToLower(p.ContentMD), q) {
			return false
		}
	}
	return true
}

func (s *Store) hasTag(postID id.PostID, slug string) bool {
	for _, tid := range s.postTags[postID] {
		if t, ok := s.tags[tid]; ok && t.Slug == slug {
			return true
		}
	}
	return false
}

// SetPostTags replaces the tag associations of a post.
func (s *Store) SetPostTags(_ context.Context, postID id.PostID, tagIDs []id.TagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[postID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, tid := range tagIDs {
		if _, ok := s.tags[tid]; !ok {
			return sentinel.ErrNotFound
		}
	}
	if len(tagIDs) == 0 {
		delete(s.postTags, postID)
		return nil
	}
	s.postTags[postID] = slices.Compact(slices.Clone(tagIDs))
	return nil
}

// ListDueScheduled returns scheduled posts whose publish time is at or before now.
func (s *Store) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*models.Post
	for _, p := range s.posts {
		if p.Status == models.StatusScheduled && p.PublishedAt != nil && !p.PublishedAt.After(now) {
			due = append(due, s.hydrate(ctx, p))
		}
	}
	slices.SortFunc(due, func(a, b *models.Post) int { return a.PublishedAt.Compare(*b.PublishedAt) })
	return due, nil
}
