package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "quill/pkg/platform/audit"
	"quill/pkg/requestcontext"
)

var (
	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_audit_events_emitted_total",
		Help: "Audit events accepted by the publisher, by category",
	}, []string{"category"})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_audit_events_dropped_total",
		Help: "Audit events dropped because the async buffer was full",
	})
	appendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_audit_append_failures_total",
		Help: "Audit events the backing store failed to persist",
	})
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// Publisher fills in request metadata and hands events to a Store, either
// inline or through a bounded buffer drained by a single goroutine.
type Publisher struct {
	store         audit.Store
	logger        *slog.Logger
	appendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	buf    chan audit.Event
	done   chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking. Events beyond size are dropped.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buf = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithAppendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.appendTimeout = d
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		logger:        slog.Default(),
		appendTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buf != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit records an event. Missing timestamp, request id and client ip are
// taken from ctx; the category is derived from the action when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	eventsEmitted.WithLabelValues(string(event.Category)).Inc()

	if p.buf == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buf <- event:
	default:
		eventsDropped.Inc()
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"event", event.Action,
			"request_id", event.RequestID,
		)
	}
	return nil
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.buf {
		ctx, cancel := context.WithTimeout(context.Background(), p.appendTimeout)
		if err := p.store.Append(ctx, event); err != nil {
			appendFailures.Inc()
			p.logger.ErrorContext(ctx, "failed to append audit event",
				"error", err,
				"event", event.Action,
				"request_id", event.RequestID,
			)
		}
		cancel()
	}
}

// Close stops accepting events and, in async mode, waits for the buffer to drain.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.buf != nil {
		close(p.buf)
	}
	p.mu.Unlock()

	if p.done != nil {
		<-p.done
	}
}
