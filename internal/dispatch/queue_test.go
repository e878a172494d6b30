package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoter/pkg/exception"
)

func TestQueuePublishBeyondCapacityFails(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.TryPublish(Event{Kind: EventBookDelta}))
	require.NoError(t, q.TryPublish(Event{Kind: EventBookDelta}))
	assert.ErrorIs(t, q.TryPublish(Event{Kind: EventBookDelta}), exception.ErrEventQueueFull)
}

func TestQueuePublishAfterCloseFails(t *testing.T) {
	q := NewQueue(2)
	q.Close()
	assert.ErrorIs(t, q.TryPublish(Event{Kind: EventBookDelta}), exception.ErrEventQueueClosed)
}

func TestQueueDrainsQueuedEventsAfterClose(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.TryPublish(Event{RecvTsNano: 1}))
	require.NoError(t, q.TryPublish(Event{RecvTsNano: 2}))
	q.Close()

	var got []int64
	q.Run(context.Background(), func(e Event) { got = append(got, e.RecvTsNano) })
	assert.Equal(t, []int64{1, 2}, got)
}

func TestQueueRunStopsOnContextCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(Event) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
