// internal/service/flashsale/infrastructure/memory_queue_test.go
package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecart/internal/service/flashsale/domain"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	first := domain.NewPurchaseIntent("p-1", 1, "u-1")
	second := domain.NewPurchaseIntent("p-2", 2, "u-2")
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	assert.Equal(t, 2, q.Len())

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.TrackingID, got.TrackingID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.TrackingID, got.TrackingID)
	assert.Zero(t, q.Len())
}

func TestMemoryQueueDequeueHonoursContext(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueClosedRejectsOperations(t *testing.T) {
	q := NewMemoryQueue(8)
	q.Close()
	q.Close() // 重复关闭无害

	err := q.Enqueue(context.Background(), domain.NewPurchaseIntent("p-1", 1, "u-1"))
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

// 关闭判定不能依赖 select 的随机分支选择：每一次 Enqueue 都必须失败。
func TestMemoryQueueClosedRejectsEnqueueDeterministically(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		q := NewMemoryQueue(8)
		q.Close()
		err := q.Enqueue(ctx, domain.NewPurchaseIntent("p-1", 1, "u-1"))
		require.ErrorIs(t, err, ErrQueueClosed)
	}
}

func TestMemoryQueueCloseDrainsBacklogBeforeRejecting(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	first := domain.NewPurchaseIntent("p-1", 1, "u-1")
	second := domain.NewPurchaseIntent("p-2", 2, "u-2")
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	q.Close()

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.TrackingID, got.TrackingID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.TrackingID, got.TrackingID)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryDeadLetterSinkCollects(t *testing.T) {
	sink := NewMemoryDeadLetterSink()
	intent := domain.NewPurchaseIntent("p-1", 1, "u-1")

	require.NoError(t, sink.Receive(context.Background(), &domain.DeadLetter{
		Intent:             *intent,
		FinalFailureReason: "broker unreachable",
		LastAttemptAt:      time.Now(),
	}))

	letters := sink.Letters()
	require.Len(t, letters, 1)
	assert.Equal(t, intent.TrackingID, letters[0].Intent.TrackingID)
	assert.Equal(t, "broker unreachable", letters[0].FinalFailureReason)
}
