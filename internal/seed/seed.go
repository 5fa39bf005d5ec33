// Package seed loads bootstrap data from YAML and applies it idempotently.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	authmodels "quill/internal/auth/models"
	"quill/internal/blog/models"
	id "quill/pkg/domain"
)

// AdminPasswordEnv overrides admin.password from the file.
const AdminPasswordEnv = "QUILL_ADMIN_PASSWORD"

type File struct {
	Admin      Admin      `yaml:"admin"`
	Categories []Category `yaml:"categories"`
	Tags       []string   `yaml:"tags"`
}

type Admin struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Category struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

// Load reads and decodes a seed file. Unknown keys are rejected.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var file File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if pw := os.Getenv(AdminPasswordEnv); pw != "" {
		file.Admin.Password = pw
	}
	return &file, nil
}

type Users interface {
	EnsureUser(ctx context.Context, name, email, plaintext string, role id.Role) (*authmodels.User, bool, error)
}

type Blog interface {
	EnsureCategory(ctx context.Context, req *models.CategoryRequest) (*models.Category, bool, error)
	EnsureTag(ctx context.Context, name string) (*models.Tag, error)
}

// Result counts what Apply created.
type Result struct {
	AdminCreated      bool
	CategoriesCreated int
	TagsEnsured       int
}

// Apply creates the admin unless the email is taken, then inserts the
// categories and tags that do not exist yet.
func Apply(ctx context.Context, file *File, users Users, blog Blog) (Result, error) {
	var res Result
	if file.Admin.Email != "" {
		if file.Admin.Password == "" {
			return res, errors.New("admin password is required (set admin.password or " + AdminPasswordEnv + ")")
		}
		name := file.Admin.Name
		if name == "" {
			name = "Administrator"
		}
		_, created, err := users.EnsureUser(ctx, name, file.Admin.Email, file.Admin.Password, id.RoleAdmin)
		if err != nil {
			return res, fmt.Errorf("seed admin: %w", err)
		}
		res.AdminCreated = created
	}

	for _, c := range file.Categories {
		req := &models.CategoryRequest{Name: c.Name, Slug: c.Slug}
		req.Normalize()
		if err := req.Validate(); err != nil {
			return res, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		_, created, err := blog.EnsureCategory(ctx, req)
		if err != nil {
			return res, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		if created {
			res.CategoriesCreated++
		}
	}

	for _, name := range file.Tags {
		if _, err := blog.EnsureTag(ctx, name); err != nil {
			return res, fmt.Errorf("seed tag %q: %w", name, err)
		}
		res.TagsEnsured++
	}
	return res, nil
}
