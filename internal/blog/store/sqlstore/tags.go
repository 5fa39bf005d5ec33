package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quill/internal/blog/models"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

// FindOrCreateTag inserts the tag unless its slug exists, then returns the stored row.
func (s *Store) FindOrCreateTag(ctx context.Context, name, slug string, now time.Time) (*models.Tag, error) {
	_, err := s.q(ctx).ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tags (id, name, slug, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (slug) DO NOTHING`),
		id.NewTagID(), name, slug, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	return s.FindTagBySlug(ctx, slug)
}

func (s *Store) FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var t models.Tag
	err := s.q(ctx).QueryRowContext(ctx, s.db.Rebind(`SELECT id, name, slug FROM tags WHERE slug = ?`), slug).
		Scan(&t.ID, &t.Name, &t.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tag: %w", err)
	}
	return &t, nil
}

// ListTags orders by published post count, then name.
func (s *Store) ListTags(ctx context.Context) ([]*models.TagWithCount, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT t.id, t.name, t.slug, COUNT(p.id) AS post_count
		FROM tags t
		LEFT JOIN post_tags pt ON pt.tag_id = t.id
		LEFT JOIN posts p ON p.id = pt.post_id AND p.status = 'published'
		GROUP BY t.id, t.name, t.slug
		ORDER BY post_count DESC, t.name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*models.TagWithCount
	for rows.Next() {
		var t models.TagWithCount
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.PostCount); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
