// internal/service/flashsale/infrastructure/outcome_hub_test.go
package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecart/internal/service/flashsale/domain"
)

func TestOutcomeHubFansOutToAllSubscribers(t *testing.T) {
	hub := NewOutcomeHub(4)
	ch1, unsub1 := hub.Subscribe()
	ch2, unsub2 := hub.Subscribe()
	defer unsub1()
	defer unsub2()

	outcome := domain.NewFailureOutcome("p-1", "u-1", "t-1", 3, domain.ErrOutOfStock, 1)
	require.NoError(t, hub.Publish(context.Background(), outcome))

	assert.Equal(t, outcome, <-ch1)
	assert.Equal(t, outcome, <-ch2)
}

func TestOutcomeHubWithoutSubscribers(t *testing.T) {
	hub := NewOutcomeHub(4)
	outcome := domain.NewFailureOutcome("p-1", "u-1", "t-1", 0, domain.ErrOutOfStock, 1)

	// 没人订阅时发布仍然成功，核心流程不依赖听众
	assert.NoError(t, hub.Publish(context.Background(), outcome))
}

func TestOutcomeHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewOutcomeHub(1)
	ch, unsub := hub.Subscribe()
	defer unsub()

	outcome := domain.NewFailureOutcome("p-1", "u-1", "t-1", 0, domain.ErrOutOfStock, 1)
	require.NoError(t, hub.Publish(context.Background(), outcome))
	require.NoError(t, hub.Publish(context.Background(), outcome)) // 缓冲已满，丢弃

	assert.Equal(t, int64(1), hub.Dropped())
	assert.Len(t, ch, 1)
}

func TestOutcomeHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewOutcomeHub(4)
	ch, unsub := hub.Subscribe()
	unsub()
	unsub() // 重复退订无害

	_, open := <-ch
	assert.False(t, open)

	// 退订之后发布不会写已关闭的通道
	assert.NoError(t, hub.Publish(context.Background(),
		domain.NewFailureOutcome("p-1", "u-1", "t-1", 0, domain.ErrOutOfStock, 1)))
}

func TestCompositeOutcomePublisherFansOut(t *testing.T) {
	hub1 := NewOutcomeHub(4)
	hub2 := NewOutcomeHub(4)
	ch1, unsub1 := hub1.Subscribe()
	ch2, unsub2 := hub2.Subscribe()
	defer unsub1()
	defer unsub2()

	composite := NewCompositeOutcomePublisher(hub1, hub2)
	outcome := domain.NewFailureOutcome("p-1", "u-1", "t-1", 2, domain.ErrOutOfStock, 1)
	require.NoError(t, composite.Publish(context.Background(), outcome))

	assert.Equal(t, outcome, <-ch1)
	assert.Equal(t, outcome, <-ch2)
}
