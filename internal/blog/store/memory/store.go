// Package memory keeps posts, categories and tags in process. It is the
// default backend when no database URL is configured.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	authmodels "quill/internal/auth/models"
	"quill/internal/blog/models"
	id "quill/pkg/domain"
)

// Authors resolves author display names.
type Authors interface {
	FindByID(ctx context.Context, userID id.UserID) (*authmodels.User, error)
}

// Store implements the post, category and tag stores over shared maps so
// joins and counts stay consistent.
type Store struct {
	mu         sync.RWMutex
	posts      map[id.PostID]*models.Post
	categories map[id.CategoryID]*models.Category
	tags       map[id.TagID]*models.Tag
	postTags   map[id.PostID][]id.TagID
	authors    Authors
}

// New creates an empty store. authors may be nil, in which case author
// names are left blank.
func New(authors Authors) *Store {
	return &Store{
		posts:      make(map[id.PostID]*models.Post),
		categories: make(map[id.CategoryID]*models.Category),
		tags:       make(map[id.TagID]*models.Tag),
		postTags:   make(map[id.PostID][]id.TagID),
		authors:    authors,
	}
}

// hydrate returns a copy of p with read-side fields filled. Caller holds mu.
func (s *Store) hydrate(ctx context.Context, p *models.Post) *models.Post {
	out := *p
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		out.PublishedAt = &t
	}
	if p.CategoryID != nil {
		cid := *p.CategoryID
		out.CategoryID = &cid
		if c, ok := s.categories[cid]; ok {
			out.CategoryName = c.Name
			out.CategorySlug = c.Slug
		}
	}
	if s.authors != nil {
		if u, err := s.authors.FindByID(ctx, p.AuthorID); err == nil {
			out.AuthorName = u.Name
		}
	}
	out.Tags = s.tagsFor(p.ID)
	return &out
}

func (s *Store) tagsFor(postID id.PostID) []models.Tag {
	tags := make([]models.Tag, 0, len(s.postTags[postID]))
	for _, tid := range s.postTags[postID] {
		if t, ok := s.tags[tid]; ok {
			tags = append(tags, *t)
		}
	}
	slices.SortFunc(tags, func(a, b models.Tag) int { return strings.Compare(a.Name, b.Name) })
	return tags
}
