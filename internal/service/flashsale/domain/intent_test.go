// internal/service/flashsale/domain/intent_test.go
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPurchaseIntentStartsQueued(t *testing.T) {
	intent := NewPurchaseIntent("p-1", 2, "u-1")

	assert.NotEmpty(t, intent.TrackingID)
	assert.Equal(t, IntentQueued, intent.State)
	assert.Equal(t, 0, intent.Attempt)
	assert.False(t, intent.IsTerminal())
}

func TestIntentLifecycleTransitions(t *testing.T) {
	t.Run("成功路径", func(t *testing.T) {
		intent := NewPurchaseIntent("p-1", 1, "u-1")
		require.NoError(t, intent.MarkProcessing())
		require.NoError(t, intent.MarkSucceeded())
		assert.True(t, intent.IsTerminal())
	})

	t.Run("重试递增尝试次数并回到队列态", func(t *testing.T) {
		intent := NewPurchaseIntent("p-1", 1, "u-1")
		require.NoError(t, intent.MarkProcessing())
		require.NoError(t, intent.MarkRetry())
		assert.Equal(t, 1, intent.Attempt)
		assert.Equal(t, IntentQueued, intent.State)
		assert.False(t, intent.IsTerminal())

		// 重试后的意向可以再次被消费
		require.NoError(t, intent.MarkProcessing())
	})

	t.Run("重入队失败的放弃不再累加尝试次数", func(t *testing.T) {
		intent := NewPurchaseIntent("p-1", 1, "u-1")
		require.NoError(t, intent.MarkProcessing())
		require.NoError(t, intent.MarkRetry())
		require.NoError(t, intent.MarkAbandoned())
		assert.Equal(t, 1, intent.Attempt)
		assert.Equal(t, IntentDeadLettered, intent.State)
		assert.True(t, intent.IsTerminal())
	})

	t.Run("死信记入最后一次失败的尝试", func(t *testing.T) {
		intent := NewPurchaseIntent("p-1", 1, "u-1")
		require.NoError(t, intent.MarkProcessing())
		require.NoError(t, intent.MarkRetry())
		require.NoError(t, intent.MarkProcessing())
		require.NoError(t, intent.MarkDeadLettered())
		assert.Equal(t, 2, intent.Attempt)
		assert.Equal(t, IntentDeadLettered, intent.State)
		assert.True(t, intent.IsTerminal())
	})
}

func TestIntentGuardsIllegalTransitions(t *testing.T) {
	intent := NewPurchaseIntent("p-1", 1, "u-1")

	// 队列态不能直接到任何终态
	assert.Error(t, intent.MarkSucceeded())
	assert.Error(t, intent.MarkRejectedTerminal())
	assert.Error(t, intent.MarkRetry())
	assert.Error(t, intent.MarkDeadLettered())

	require.NoError(t, intent.MarkProcessing())
	assert.Error(t, intent.MarkAbandoned(), "abandon only applies to queued intents")
	assert.Error(t, intent.MarkProcessing(), "processing is not re-entrant")

	require.NoError(t, intent.MarkSucceeded())
	assert.Error(t, intent.MarkRetry(), "terminal states admit no further transitions")
}

func TestFailureReasonMapping(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"数量非法":  {ErrInvalidQuantity, "INVALID_QUANTITY"},
		"商品不存在": {ErrProductNotFound, "PRODUCT_NOT_FOUND"},
		"库存不足":  {ErrOutOfStock, "OUT_OF_STOCK"},
		"策略拒绝":  {ErrPolicyViolation, "POLICY_VIOLATION"},
		"已取消":   {ErrIntentCancelled, "CANCELLED"},
		"账本损坏":  {ErrLedgerCorrupted, "LEDGER_CORRUPTED"},
		"未知错误":  {assert.AnError, "INTERNAL_ERROR"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, FailureReason(tc.err))
		})
	}
	assert.Empty(t, FailureReason(nil))
}

func TestIsBusinessRejection(t *testing.T) {
	assert.True(t, IsBusinessRejection(ErrOutOfStock))
	assert.True(t, IsBusinessRejection(ErrPolicyViolation))
	assert.True(t, IsBusinessRejection(ErrIntentCancelled))

	// 基础设施错误和账本损坏都不是业务拒绝
	assert.False(t, IsBusinessRejection(ErrLedgerCorrupted))
	assert.False(t, IsBusinessRejection(assert.AnError))
}

func TestOutcomeClampsNegativeRemainingStock(t *testing.T) {
	outcome := NewFailureOutcome("p-1", "u-1", "t-1", -3, ErrOutOfStock, 1)
	assert.Equal(t, int64(0), outcome.RemainingStock)
	assert.False(t, outcome.Success())
}
