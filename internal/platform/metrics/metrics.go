package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application-level Prometheus collectors.
type Metrics struct {
	UsersCreated    prometheus.Counter
	Logins          *prometheus.CounterVec
	Lockouts        prometheus.Counter
	PostsCreated    prometheus.Counter
	PostsPublished  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "quill_users_created_total",
			Help: "Total number of users created",
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		Lockouts: f.NewCounter(prometheus.CounterOpts{
			Name: "quill_login_lockouts_total",
			Help: "Login attempts rejected by the lockout window",
		}),
		PostsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "quill_posts_created_total",
			Help: "Total number of posts created",
		}),
		PostsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_posts_published_total",
			Help: "Posts moved to published, by path (manual or scheduled)",
		}, []string{"path"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quill_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementUsersCreated() { m.UsersCreated.Inc() }

// IncrementLogin records a login outcome: success, failure or locked.
func (m *Metrics) IncrementLogin(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
	if outcome == "locked" {
		m.Lockouts.Inc()
	}
}

func (m *Metrics) IncrementPostsCreated() { m.PostsCreated.Inc() }

// IncrementPostsPublished records a publish via "manual" or "scheduled".
func (m *Metrics) IncrementPostsPublished(path string, n int) {
	m.PostsPublished.WithLabelValues(path).Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route, status string, start time.Time) {
	m.RequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}

// Handler exposes the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
