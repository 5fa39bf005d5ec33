package memory

import (
	"context"
	"slices"
	"strings"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

func (s *Store) CreateCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categoryTaken(c, id.CategoryID{}) {
		return sentinel.ErrConflict
	}
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.categoryTaken(c, c.ID) {
		return sentinel.ErrConflict
	}
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

// categoryTaken checks the case-insensitive name and slug uniqueness.
func (s *Store) categoryTaken(c *models.Category, exclude id.CategoryID) bool {
	for cid, existing := range s.categories {
		if cid == exclude {
			continue
		}
		if existing.Slug == c.Slug || strings.EqualFold(existing.Name, c.Name) {
			return true
		}
	}
	return false
}

// DeleteCategory refuses while any post, in any status, references the category.
func (s *Store) DeleteCategory(_ context.Context, categoryID id.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[categoryID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, p := range s.posts {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			return sentinel.ErrInUse
		}
	}
	delete(s.categories, categoryID)
	return nil
}

func (s *Store) FindCategoryByID(_ context.Context, categoryID id.CategoryID) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[categoryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) FindCategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListCategories returns every category with its published post count, by name.
func (s *Store) ListCategories(_ context.Context) ([]*models.CategoryWithCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.CategoryID]int)
	for _, p := range s.posts {
		if p.IsPublished() && p.CategoryID != nil {
			counts[*p.CategoryID]++
		}
	}
	out := make([]*models.CategoryWithCount, 0, len(s.categories))
	for cid, c := range s.categories {
		out = append(out, &models.CategoryWithCount{Category: *c, PostCount: counts[cid]})
	}
	slices.SortFunc(out, func(a, b *models.CategoryWithCount) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}
