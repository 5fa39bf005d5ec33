package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

// FindOrCreateTag returns the tag with slug, creating it with name if missing.
func (s *Store) FindOrCreateTag(_ context.Context, name, slug string, _ time.Time) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	t := &models.Tag{ID: id.NewTagID(), Name: name, Slug: slug}
	s.tags[t.ID] = t
	cp := *t
	return &cp, nil
}

func (s *Store) FindTagBySlug(_ context.Context, slug string) (*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tags {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListTags returns tags by published post count, then name.
func (s *Store) ListTags(_ context.Context) ([]*models.TagWithCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.TagID]int)
	for pid, tids := range s.postTags {
		p, ok := s.posts[pid]
		if !ok || !p.IsPublished() {
			continue
		}
		for _, tid := range tids {
			counts[tid]++
		}
	}
	out := make([]*models.TagWithCount, 0, len(s.tags))
	for tid, t := range s.tags {
		out = append(out, &models.TagWithCount{Tag: *t, PostCount: counts[tid]})
	}
	slices.SortFunc(out, func(a, b *models.TagWithCount) int {
		if a.PostCount != b.PostCount {
			return b.PostCount - a.PostCount
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}
