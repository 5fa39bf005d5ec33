package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"quill/internal/blog/models"
	"quill/internal/platform/database"
	id "quill/pkg/domain"
	"quill/pkg/platform/sentinel"
	txcontext "quill/pkg/platform/tx"
)

const postSelect = `
	SELECT p.id, p.title, p.slug, p.cover_url, p.excerpt, p.content_md, p.content_html,
	       p.status, p.published_at, p.author_id, p.category_id, p.created_at, p.updated_at,
	       COALESCE(u.name, ''), COALESCE(c.name, ''), COALESCE(c.slug, '')
	FROM posts p
	LEFT JOIN users u ON u.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id`

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	_, err := s.q(ctx).ExecContext(ctx, s.db.Rebind(`
		INSERT INTO posts (id, title, slug, cover_url, excerpt, content_md, content_html,
		                   status, published_at, author_id, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Title, p.Slug, p.CoverURL, p.Excerpt, p.ContentMD, p.ContentHTML,
		string(p.Status), p.PublishedAt, p.AuthorID, p.CategoryID, p.CreatedAt, p.UpdatedAt,
	)
	return translateWriteErr(err, "insert post")
}

func (s *Store) UpdatePost(ctx context.Context, p *models.Post) error {
	res, err := s.q(ctx).ExecContext(ctx, s.db.Rebind(`
		UPDATE posts SET title = ?, slug = ?, cover_url = ?, excerpt = ?, content_md = ?,
		       content_html = ?, status = ?, published_at = ?, category_id = ?, updated_at = ?
		WHERE id = ?`),
		p.Title, p.Slug, p.CoverURL, p.Excerpt, p.ContentMD,
		p.ContentHTML, string(p.Status), p.PublishedAt, p.CategoryID, p.UpdatedAt,
		p.ID,
	)
	if err := translateWriteErr(err, "update post"); err != nil {
		return err
	}
	n, err := rowsAffected(res, "update post")
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func translateWriteErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return sentinel.ErrConflict
	case database.IsForeignKeyViolation(err):
		return sentinel.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// DeletePost removes a post; its tag links cascade.
func (s *Store) DeletePost(ctx context.Context, postID id.PostID) error {
	res, err := s.q(ctx).ExecContext(ctx, s.db.Rebind(`DELETE FROM posts WHERE id = ?`), postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	n, err := rowsAffected(res, "delete post")
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) FindPostByID(ctx context.Context, postID id.PostID) (*models.Post, error) {
	return s.findOne(ctx, postSelect+` WHERE p.id = ?`, postID)
}

func (s *Store) FindPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findOne(ctx, postSelect+` WHERE p.slug = ?`, slug)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*models.Post, error) {
	rows, err := s.q(ctx).QueryContext(ctx, s.db.Rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, sentinel.ErrNotFound
	}
	if err := s.attachTags(ctx, posts); err != nil {
		return nil, err
	}
	return posts[0], nil
}

func (s *Store) PostSlugExists(ctx context.Context, slug string, exclude id.PostID) (bool, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM posts WHERE slug = ? AND id <> ?`),
		slug, exclude).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check post slug: %w", err)
	}
	return n > 0, nil
}

func whereClause(dialect database.Dialect, f models.PostFilter) (string, []any) {
	var conds []string
	var args []any
	if !f.Visibility.AllStatuses {
		if f.Visibility.Owner.IsNil() {
			conds = append(conds, `p.status = 'published'`)
		} else {
			conds = append(conds, `(p.status = 'published' OR p.author_id = ?)`)
			args = append(args, f.Visibility.Owner)
		}
	}
	if f.Status != "" {
		conds = append(conds, `p.status = ?`)
		args = append(args, string(f.Status))
	}
	if !f.AuthorID.IsNil() {
		conds = append(conds, `p.author_id = ?`)
		args = append(args, f.AuthorID)
	}
	if f.CategorySlug != "" {
		conds = append(conds, `c.slug = ?`)
		args = append(args, f.CategorySlug)
	}
	if f.TagSlug != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.slug = ?)`)
		args = append(args, f.TagSlug)
	}
	if f.Query != "" {
		like := "%" + database.EscapeLike(strings.ToLower(f.Query)) + "%"
		lower := dialect.Lower()
		conds = append(conds, `(`+lower+`(p.title) LIKE ? ESCAPE '\' OR `+lower+`(p.excerpt) LIKE ? ESCAPE '\'
			OR `+lower+`(p.content_md) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPosts runs the page and count queries. Outside a transaction they run
// concurrently on separate connections.
func (s *Store) ListPosts(ctx context.Context, f models.PostFilter) ([]*models.Post, int, error) {
	where, args := whereClause(s.db.Dialect, f)
	countQuery := s.db.Rebind(`SELECT COUNT(*) FROM posts p LEFT JOIN categories c ON c.id = p.category_id` + where)
	pageQuery := s.db.Rebind(postSelect + where +
		` ORDER BY COALESCE(p.published_at, p.created_at) DESC, p.id DESC LIMIT ? OFFSET ?`)
	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)

	var (
		total int
		posts []*models.Post
	)
	count := func(ctx context.Context) error {
		if err := s.q(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("count posts: %w", err)
		}
		return nil
	}
	page := func(ctx context.Context) error {
		rows, err := s.q(ctx).QueryContext(ctx, pageQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("list posts: %w", err)
		}
		posts, err = scanPosts(rows)
		return err
	}

	if _, inTx := txcontext.From(ctx); inTx {
		if err := count(ctx); err != nil {
			return nil, 0, err
		}
		if err := page(ctx); err != nil {
			return nil, 0, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return count(gctx) })
		g.Go(func() error { return page(gctx) })
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
	}

	if err := s.attachTags(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListDueScheduled returns scheduled posts whose publish time has passed.
func (s *Store) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Post, error) {
	rows, err := s.q(ctx).QueryContext(ctx, s.db.Rebind(postSelect+`
		WHERE p.status = 'scheduled' AND p.published_at <= ?
		ORDER BY p.published_at`), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	return posts, s.attachTags(ctx, posts)
}

// SetPostTags replaces a post's tag links.
func (s *Store) SetPostTags(ctx context.Context, postID id.PostID, tagIDs []id.TagID) error {
	return s.db.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx, s.db.Rebind(`DELETE FROM post_tags WHERE post_id = ?`), postID); err != nil {
			return fmt.Errorf("clear post tags: %w", err)
		}
		insert := s.db.Rebind(`INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`)
		for _, tagID := range tagIDs {
			if _, err := s.q(ctx).ExecContext(ctx, insert, postID, tagID); err != nil {
				return translateWriteErr(err, "link post tag")
			}
		}
		return nil
	})
}

func (s *Store) attachTags(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[id.PostID]*models.Post, len(posts))
	placeholders := make([]string, 0, len(posts))
	args := make([]any, 0, len(posts))
	for _, p := range posts {
		p.Tags = []models.Tag{}
		byID[p.ID] = p
		placeholders = append(placeholders, "?")
		args = append(args, p.ID)
	}
	rows, err := s.q(ctx).QueryContext(ctx, s.db.Rebind(`
		SELECT pt.post_id, t.id, t.name, t.slug
		FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY t.name`), args...)
	if err != nil {
		return fmt.Errorf("load post tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var postID id.PostID
		var t models.Tag
		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug); err != nil {
			return fmt.Errorf("scan post tag: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Tags = append(p.Tags, t)
		}
	}
	return rows.Err()
}

func scanPosts(rows *sql.Rows) ([]*models.Post, error) {
	defer rows.Close()
	var posts []*models.Post
	for rows.Next() {
		var (
			p           models.Post
			status      string
			publishedAt sql.NullTime
		)
		err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.CoverURL, &p.Excerpt, &p.ContentMD, &p.ContentHTML,
			&status, &publishedAt, &p.AuthorID, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
			&p.AuthorName, &p.CategoryName, &p.CategorySlug)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, sentinel.ErrNotFound
			}
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Status = models.Status(status)
		if publishedAt.Valid {
			t := publishedAt.Time.UTC()
			p.PublishedAt = &t
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}
