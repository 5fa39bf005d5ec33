package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	userstore "quill/internal/auth/store/user"
	"quill/internal/blog/store/storetest"
)

func TestInMemoryBlogStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{Setup: func(*testing.T) (storetest.Store, storetest.Users) {
		users := userstore.New()
		return New(users), users
	}})
}
