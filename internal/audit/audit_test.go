package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	block  chan struct{}
}

func (m *memStore) InsertEvent(ctx context.Context, ev Event) error {
	if m.block != nil {
		<-m.block
	}
	if m.fail {
		return errors.New("audit_log is gone")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestSinkWritesEvents(t *testing.T) {
	store := &memStore{}
	sink := NewSink(store, 8, zerolog.Nop())

	ctx := WithClientIP(context.Background(), "10.0.0.7")
	user := uuid.New()
	bed := uuid.New()
	sink.Record(NewEvent(ctx, &user, ActionAssign, "beds", bed))

	require.NoError(t, sink.Close(context.Background()))
	require.Equal(t, 1, store.len())

	ev := store.events[0]
	assert.Equal(t, "beds", ev.Table)
	assert.Equal(t, bed.String(), ev.RecordID)
	assert.Equal(t, "10.0.0.7", ev.IP)
	assert.Equal(t, &user, ev.UserID)
}

func TestSinkSwallowsStoreFailures(t *testing.T) {
	store := &memStore{fail: true}
	sink := NewSink(store, 4, zerolog.Nop())

	sink.Record(NewEvent(context.Background(), nil, ActionCreate, "appointments", uuid.New()))
	require.NoError(t, sink.Close(context.Background()))
	assert.Zero(t, store.len())
}

func TestSinkDropsWhenFull(t *testing.T) {
	store := &memStore{block: make(chan struct{})}
	sink := NewSink(store, 1, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			sink.Record(NewEvent(context.Background(), nil, ActionCreate, "patients", uuid.New()))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(store.block)
	require.NoError(t, sink.Close(context.Background()))
	assert.Less(t, store.len(), 10)
}

func TestSinkIgnoresRecordAfterClose(t *testing.T) {
	store := &memStore{}
	sink := NewSink(store, 4, zerolog.Nop())
	require.NoError(t, sink.Close(context.Background()))

	assert.NotPanics(t, func() {
		sink.Record(NewEvent(context.Background(), nil, ActionDelete, "beds", uuid.New()))
	})
	assert.Zero(t, store.len())
}
