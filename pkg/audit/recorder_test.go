package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingStorage parks every Store call until release is closed.
type blockingStorage struct {
	*MemoryStorage
	release chan struct{}
}

func (s *blockingStorage) Store(ctx context.Context, event *Event) error {
	<-s.release
	return s.MemoryStorage.Store(ctx, event)
}

func TestRecorder_WritesAsync(t *testing.T) {
	store := NewMemoryStorage()
	rec := NewRecorder(store, DefaultRecorderConfig())

	for i := 0; i < 10; i++ {
		rec.Record(context.Background(), NewEvent(KindDenied, "api"))
	}
	require.NoError(t, rec.Close())

	n, err := store.Count(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, int64(10), rec.Written())
	assert.Zero(t, rec.Dropped())
}

func TestRecorder_FillsIDAndTime(t *testing.T) {
	store := NewMemoryStorage()
	rec := NewRecorder(store, nil)

	rec.Record(context.Background(), &Event{Kind: KindReset, Limiter: "api"})
	require.NoError(t, rec.Close())

	events, err := store.Query(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.WithinDuration(t, time.Now(), events[0].Time, time.Minute)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	store := &blockingStorage{MemoryStorage: NewMemoryStorage(), release: make(chan struct{})}
	rec := NewRecorder(store, &RecorderConfig{Enabled: true, AsyncBuffer: 2, WriteTimeout: time.Second})

	// One event parked in the worker, two buffered, the rest dropped.
	for i := 0; i < 10; i++ {
		rec.Record(context.Background(), NewEvent(KindDenied, "api"))
		time.Sleep(time.Millisecond)
	}

	close(store.release)
	require.NoError(t, rec.Close())

	assert.Equal(t, int64(10), rec.Written()+rec.Dropped())
	assert.GreaterOrEqual(t, rec.Dropped(), int64(7))
}

func TestRecorder_Disabled(t *testing.T) {
	store := NewMemoryStorage()
	rec := NewRecorder(store, &RecorderConfig{Enabled: false})

	rec.Record(context.Background(), NewEvent(KindDenied, "api"))
	require.NoError(t, rec.Close())

	n, _ := store.Count(context.Background(), Filter{})
	assert.Zero(t, n)
}

func TestRecorder_RecordAfterClose(t *testing.T) {
	rec := NewRecorder(NewMemoryStorage(), nil)
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	rec.Record(context.Background(), NewEvent(KindDenied, "api"))
	assert.Equal(t, int64(1), rec.Dropped())
}

func TestPruner(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStorage()

	require.NoError(t, store.Store(ctx, eventAt(KindDenied, "api", now.Add(-40*24*time.Hour))))
	require.NoError(t, store.Store(ctx, eventAt(KindDenied, "api", now.Add(-10*24*time.Hour))))

	pruner := NewPruner(store, 30)
	pruner.now = func() time.Time { return now }

	deleted, err := pruner.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	keepForever := NewPruner(store, 0)
	deleted, err = keepForever.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
