// internal/service/flashsale/application/retry_test.go
package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecart/internal/service/flashsale/domain"
	"pulsecart/internal/service/flashsale/infrastructure"
)

// 重入队失败直接进死信：这次失败的尝试 MarkRetry 已经记过，
// 死信记录里的尝试次数不能被多算一次。
func TestRetryCoordinatorRequeueFailureKeepsAttemptCount(t *testing.T) {
	queue := infrastructure.NewMemoryQueue(8)
	sink := infrastructure.NewMemoryDeadLetterSink()
	outcomes := &capturePublisher{}
	retry := NewRetryCoordinator(queue, sink, outcomes, 3, time.Millisecond)

	intent := domain.NewPurchaseIntent("p-1", 2, "u-1")
	require.NoError(t, intent.MarkProcessing())

	queue.Close()
	retry.HandleTransientFailure(context.Background(), intent, errors.New("broker flapping"))
	retry.Drain()

	letters := sink.Letters()
	require.Len(t, letters, 1)
	assert.Equal(t, domain.IntentDeadLettered, letters[0].Intent.State)
	assert.Equal(t, 1, letters[0].Intent.Attempt)
	assert.Contains(t, letters[0].FinalFailureReason, "closed")

	outcome := outcomes.last()
	require.NotNil(t, outcome)
	assert.Equal(t, intent.TrackingID, outcome.TrackingID)
	assert.Equal(t, 1, outcome.Attempt)
}

func TestRetryCoordinatorRequeuesWithinBudget(t *testing.T) {
	queue := infrastructure.NewMemoryQueue(8)
	sink := infrastructure.NewMemoryDeadLetterSink()
	retry := NewRetryCoordinator(queue, sink, &capturePublisher{}, 3, time.Millisecond)

	intent := domain.NewPurchaseIntent("p-1", 2, "u-1")
	require.NoError(t, intent.MarkProcessing())

	retry.HandleTransientFailure(context.Background(), intent, errors.New("broker flapping"))
	retry.Drain()

	requeued, err := queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, intent.TrackingID, requeued.TrackingID)
	assert.Equal(t, 1, requeued.Attempt)
	assert.Equal(t, domain.IntentQueued, requeued.State)
	assert.Empty(t, sink.Letters())
}
