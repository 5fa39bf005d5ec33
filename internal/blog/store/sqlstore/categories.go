package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quill/internal/blog/models"
	"quill/internal/platform/database"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
)

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	_, err := s.q(ctx).ExecContext(ctx, s.db.Rebind(`
		INSERT INTO categories (id, name, slug, created_at) VALUES (?, ?, ?, ?)`),
		c.ID, c.Name, c.Slug, c.CreatedAt,
	)
	return translateWriteErr(err, "insert category")
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	res, err := s.q(ctx).ExecContext(ctx, s.db.Rebind(`UPDATE categories SET name = ?, slug = ? WHERE id = ?`),
		c.Name, c.Slug, c.ID)
	if err := translateWriteErr(err, "update category"); err != nil {
		return err
	}
	n, err := rowsAffected(res, "update category")
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// DeleteCategory refuses while any post references the category.
func (s *Store) DeleteCategory(ctx context.Context, categoryID id.CategoryID) error {
	return s.db.RunInTx(ctx, func(ctx context.Context) error {
		var refs int
		err := s.q(ctx).QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM posts WHERE category_id = ?`),
			categoryID).Scan(&refs)
		if err != nil {
			return fmt.Errorf("count category posts: %w", err)
		}
		if refs > 0 {
			return sentinel.ErrInUse
		}
		res, err := s.q(ctx).ExecContext(ctx, s.db.Rebind(`DELETE FROM categories WHERE id = ?`), categoryID)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return sentinel.ErrInUse
			}
			return fmt.Errorf("delete category: %w", err)
		}
		n, err := rowsAffected(res, "delete category")
		if err != nil {
			return err
		}
		if n == 0 {
			return sentinel.ErrNotFound
		}
		return nil
	})
}

func (s *Store) FindCategoryByID(ctx context.Context, categoryID id.CategoryID) (*models.Category, error) {
	return s.findCategory(ctx, `WHERE id = ?`, categoryID)
}

func (s *Store) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return s.findCategory(ctx, `WHERE slug = ?`, slug)
}

func (s *Store) findCategory(ctx context.Context, where string, arg any) (*models.Category, error) {
	var c models.Category
	err := s.q(ctx).QueryRowContext(ctx, s.db.Rebind(`SELECT id, name, slug, created_at FROM categories `+where), arg).
		Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// ListCategories counts published posts only.
func (s *Store) ListCategories(ctx context.Context) ([]*models.CategoryWithCount, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, c.created_at, COUNT(p.id)
		FROM categories c
		LEFT JOIN posts p ON p.category_id = c.id AND p.status = 'published'
		GROUP BY c.id, c.name, c.slug, c.created_at
		ORDER BY LOWER(c.name)`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*models.CategoryWithCount
	for rows.Next() {
		var c models.CategoryWithCount
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.PostCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, &c)
	}
	return out, rows.Err()
}
