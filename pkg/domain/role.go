package domain

import dErrors "quill/pkg/domain-errors"

// Role is a position on the permission ladder viewer < author < editor < admin.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAuthor Role = "author"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer: 0,
	RoleAuthor: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// ParseRole accepts only the four known roles.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "role must be one of viewer, author, editor, admin")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r is min or above. Unknown roles rank below viewer.
func (r Role) AtLeast(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[min]
}

func (r Role) String() string { return string(r) }
