package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	id "quill/pkg/domain"
	audit "quill/pkg/platform/audit"
	"quill/pkg/platform/audit/store/memory"
	"quill/pkg/requestcontext"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.NewUserID()
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx = requestcontext.WithTime(ctx, now)

	err := pub.Emit(ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventUserCreated),
	})
	require.NoError(t, err)

	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventUserCreated), events[0].Action)
	assert.Equal(t, audit.CategoryAccount, events[0].Category)
	assert.Equal(t, "req-42", events[0].RequestID)
	assert.Equal(t, now, events[0].Timestamp)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	userID := id.NewUserID()
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			UserID: userID,
			Action: string(audit.EventPostCreated),
		}))
	}

	pub.Close()

	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventPostDeleted)})
	assert.ErrorIs(t, err, ErrClosed)
}

type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (s *blockingStore) Append(context.Context, audit.Event) error {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return nil
}

func TestPublisher_DropsWhenBufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))

	// One event may be held by the drain goroutine and one by the buffer;
	// the rest are dropped without blocking.
	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventAuthFailed)}))
	}
	close(store.release)
	pub.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.LessOrEqual(t, store.count, 2)
	assert.GreaterOrEqual(t, store.count, 1)
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("sink down") }

func TestPublisher_SyncPropagatesStoreError(t *testing.T) {
	pub := NewPublisher(failingStore{})
	defer pub.Close()
	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventPostCreated)})
	require.Error(t, err)
}

func TestPublisher_AsyncSwallowsStoreError(t *testing.T) {
	pub := NewPublisher(failingStore{}, WithAsyncBuffer(4))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventPostCreated)}))
	pub.Close()
}
