package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleLadder(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleEditor))
	assert.True(t, RoleEditor.AtLeast(RoleEditor))
	assert.True(t, RoleAuthor.AtLeast(RoleViewer))
	assert.False(t, RoleAuthor.AtLeast(RoleEditor))
	assert.False(t, RoleViewer.AtLeast(RoleAuthor))
	assert.False(t, Role("superuser").AtLeast(RoleViewer))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("editor")
	require.NoError(t, err)
	assert.Equal(t, RoleEditor, r)

	_, err = ParseRole("owner")
	require.Error(t, err)
}
