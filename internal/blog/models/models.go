package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	id "quill/pkg/domain"
	dErrors "quill/pkg/domain-errors"
	"quill/pkg/platform/slug"
)

const (
	MaxTitleLength        = 200
	MaxExcerptLength      = 500
	MaxCategoryNameLength = 80
	MaxTagsPerPost        = 20

	DefaultPageSize = 12
	MaxPageSize     = 100
	// MaxPage keeps (Page-1)*PageSize far from int overflow. Pages past the
	// last one are simply empty.
	MaxPage = 1_000_000
)

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusDraft, StatusScheduled, StatusPublished:
		return st, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "status must be draft, scheduled or published")
	}
}

// Post is a blog article.
//
// Invariants:
//   - Slug is unique across posts
//   - Status published implies PublishedAt is set
//   - Status scheduled implies PublishedAt is set
//   - Status draft implies PublishedAt is nil
//   - ContentHTML is the sanitized rendering of ContentMD
type Post struct {
	ID          id.PostID      `json:"id"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug"`
	CoverURL    string         `json:"cover_url"`
	Excerpt     string         `json:"excerpt"`
	ContentMD   string         `json:"content_md"`
	ContentHTML string         `json:"content_html"`
	Status      Status         `json:"status"`
	PublishedAt *time.Time     `json:"published_at"`
	AuthorID    id.UserID      `json:"author_id"`
	CategoryID  *id.CategoryID `json:"category_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Read side, filled by stores.
	AuthorName   string `json:"author_name,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	CategorySlug string `json:"category_slug,omitempty"`
	Tags         []Tag  `json:"tags"`
}

func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// VisibleTo reports whether the principal may read the post. Published posts
// are public; others are visible to their author and to editors.
func (p *Post) VisibleTo(userID id.UserID, role id.Role) bool {
	if p.IsPublished() {
		return true
	}
	if userID.IsNil() {
		return false
	}
	return p.AuthorID == userID || role.AtLeast(id.RoleEditor)
}

func (p *Post) CanEdit(userID id.UserID, role id.Role) bool {
	return role.AtLeast(id.RoleEditor) || (!userID.IsNil() && p.AuthorID == userID && role.AtLeast(id.RoleAuthor))
}

// CanDelete lets editors delete anything and authors delete their own drafts.
func (p *Post) CanDelete(userID id.UserID, role id.Role) bool {
	if role.AtLeast(id.RoleEditor) {
		return true
	}
	return role.AtLeast(id.RoleAuthor) && !userID.IsNil() && p.AuthorID == userID && p.Status == StatusDraft
}

// Publish moves the post to published at t.
func (p *Post) Publish(t time.Time) {
	p.Status = StatusPublished
	p.PublishedAt = &t
	p.UpdatedAt = t
}

// Category groups posts. Name is unique case-insensitively.
type Category struct {
	ID        id.CategoryID `json:"id"`
	Name      string        `json:"name"`
	Slug      string        `json:"slug"`
	CreatedAt time.Time     `json:"created_at"`
}

// CategoryWithCount is a category and its number of published posts.
type CategoryWithCount struct {
	Category
	PostCount int `json:"post_count"`
}

type Tag struct {
	ID   id.TagID `json:"id"`
	Name string   `json:"name"`
	Slug string   `json:"slug"`
}

// TagWithCount is a tag and its number of published posts.
type TagWithCount struct {
	Tag
	PostCount int `json:"post_count"`
}

// Visibility limits which statuses a listing may return.
type Visibility struct {
	// AllStatuses is set for editors and above.
	AllStatuses bool
	// Owner may also see their own unpublished posts.
	Owner id.UserID
}

// PostFilter is the store-level query for listings.
type PostFilter struct {
	Visibility   Visibility
	Status       Status
	CategorySlug string
	TagSlug      string
	Query        string
	AuthorID     id.UserID
	Limit        int
	Offset       int
}

// ListPostsQuery is the parsed query string of GET /posts.
type ListPostsQuery struct {
	Page         int
	PageSize     int
	Status       Status
	CategorySlug string
	TagSlug      string
	Query        string
	AuthorID     id.UserID
}

// Normalize clamps paging into range. A zero PageSize means unset and
// takes the default; any other value is clamped to [1, MaxPageSize].
func (q *ListPostsQuery) Normalize() {
	q.Page = min(max(q.Page, 1), MaxPage)
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	q.PageSize = min(max(q.PageSize, 1), MaxPageSize)
	q.CategorySlug = strings.TrimSpace(q.CategorySlug)
	q.TagSlug = strings.TrimSpace(q.TagSlug)
	q.Query = strings.TrimSpace(q.Query)
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, pageSize, total int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

type PostList struct {
	Posts      []*Post    `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Title       string         `json:"title"`
	Slug        string         `json:"slug,omitempty"`
	CoverURL    string         `json:"cover_url,omitempty"`
	Excerpt     string         `json:"excerpt,omitempty"`
	ContentMD   string         `json:"content_md"`
	Status      string         `json:"status,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CategoryID  *id.CategoryID `json:"category_id,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

func (r *CreatePostRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Slug = strings.TrimSpace(r.Slug)
	r.CoverURL = strings.TrimSpace(r.CoverURL)
	r.Excerpt = strings.TrimSpace(r.Excerpt)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	if r.Status == "" {
		r.Status = string(StatusDraft)
	}
	r.Tags = slug.DedupeNames(r.Tags)
}

func (r *CreatePostRequest) Validate() error {
	return validatePostFields(r.Title, r.Slug, r.CoverURL, r.Excerpt, r.ContentMD, r.Status, r.Tags)
}

// UpdatePostRequest is the body of PUT /posts/{id}. Title and content are
// replaced. An omitted status keeps the current one and omitted tags keep
// the current associations; an empty tags array clears them.
type UpdatePostRequest struct {
	Title       string         `json:"title"`
	Slug        string         `json:"slug,omitempty"`
	CoverURL    string         `json:"cover_url,omitempty"`
	Excerpt     string         `json:"excerpt,omitempty"`
	ContentMD   string         `json:"content_md"`
	Status      string         `json:"status,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CategoryID  *id.CategoryID `json:"category_id,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
}

func (r *UpdatePostRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Slug = strings.TrimSpace(r.Slug)
	r.CoverURL = strings.TrimSpace(r.CoverURL)
	r.Excerpt = strings.TrimSpace(r.Excerpt)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	if r.Tags != nil {
		tags := slug.DedupeNames(*r.Tags)
		r.Tags = &tags
	}
}

func (r *UpdatePostRequest) Validate() error {
	var tags []string
	if r.Tags != nil {
		tags = *r.Tags
	}
	return validatePostFields(r.Title, r.Slug, r.CoverURL, r.Excerpt, r.ContentMD, r.Status, tags)
}

func validatePostFields(title, rawSlug, coverURL, excerpt, contentMD, status string, tags []string) error {
	if title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title must be 200 characters or less")
	}
	if strings.TrimSpace(contentMD) == "" {
		return dErrors.New(dErrors.CodeValidation, "content_md is required")
	}
	if rawSlug != "" && slug.Slugify(rawSlug) == "" {
		return dErrors.New(dErrors.CodeValidation, "slug must contain letters or digits")
	}
	if rawSlug == "" && slug.Slugify(title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title must contain letters or digits to derive a slug")
	}
	if coverURL != "" && !govalidator.IsRequestURL(coverURL) {
		return dErrors.New(dErrors.CodeValidation, "cover_url must be an absolute URL")
	}
	if utf8.RuneCountInString(excerpt) > MaxExcerptLength {
		return dErrors.New(dErrors.CodeValidation, "excerpt must be 500 characters or less")
	}
	if status != "" {
		if _, err := ParseStatus(status); err != nil {
			return err
		}
	}
	if len(tags) > MaxTagsPerPost {
		return dErrors.New(dErrors.CodeValidation, "a post can have at most 20 tags")
	}
	return nil
}

// SchedulePostRequest is the body of PATCH /posts/{id}/schedule.
type SchedulePostRequest struct {
	PublishedAt *time.Time `json:"published_at"`
}

func (r *SchedulePostRequest) Normalize() {}

func (r *SchedulePostRequest) Validate() error {
	if r.PublishedAt == nil || r.PublishedAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "published_at is required")
	}
	return nil
}

// CategoryRequest is the body of POST /categories and PUT /categories/{id}.
type CategoryRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

func (r *CategoryRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = strings.TrimSpace(r.Slug)
}

func (r *CategoryRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if utf8.RuneCountInString(r.Name) > MaxCategoryNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 80 characters or less")
	}
	if r.ResolvedSlug() == "" {
		return dErrors.New(dErrors.CodeValidation, "slug must contain letters or digits")
	}
	return nil
}

// ResolvedSlug is the explicit slug if given, else one derived from the name.
func (r *CategoryRequest) ResolvedSlug() string {
	if r.Slug != "" {
		return slug.Slugify(r.Slug)
	}
	return slug.Slugify(r.Name)
}
