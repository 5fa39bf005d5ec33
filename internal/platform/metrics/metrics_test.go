package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementUsersCreated()
	m.IncrementLogin("success")
	m.IncrementLogin("locked")
	m.IncrementLogin("locked")
	m.IncrementPostsPublished("scheduled", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsersCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues("locked")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lockouts))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PostsPublished.WithLabelValues("scheduled")))
}
