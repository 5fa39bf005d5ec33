package service

import (
	"context"
	"errors"

	"quill/internal/blog/models"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/sentinel"
	"quill/pkg/platform/slug"
)

func (s *Service) ListTags(ctx context.Context) ([]*models.TagWithCount, error) {
	tags, err := s.tags.ListTags(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tags")
	}
	if tags == nil {
		tags = []*models.TagWithCount{}
	}
	return tags, nil
}

func (s *Service) GetTag(ctx context.Context, tagSlug string) (*models.Tag, error) {
	tag, err := s.tags.FindTagBySlug(ctx, tagSlug)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tag not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tag")
	}
	return tag, nil
}

// EnsureTag finds or creates a tag by the slug of name.
func (s *Service) EnsureTag(ctx context.Context, name string) (*models.Tag, error) {
	tagSlug := slug.Slugify(name)
	if tagSlug == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tag name must contain letters or digits")
	}
	tag, err := s.tags.FindOrCreateTag(ctx, name, tagSlug, now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tag")
	}
	return tag, nil
}
