// internal/service/flashsale/application/retry.go
package application

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/service/flashsale/domain"
	"pulsecart/internal/service/flashsale/domain/port"
)

// RetryCoordinator 负责瞬时失败的重试和死信路由。
// 每条意向最多处理 maxAttempts 次；固定退避后重入队，
// 耗尽后整条消息进入死信槽，从此不再自动重试。
type RetryCoordinator struct {
	queue       port.IntentQueue
	deadLetters port.DeadLetterSink
	outcomes    port.OutcomePublisher
	maxAttempts int
	backoff     time.Duration

	pending sync.WaitGroup // 等待中的延迟重入队
}

func NewRetryCoordinator(
	queue port.IntentQueue,
	deadLetters port.DeadLetterSink,
	outcomes port.OutcomePublisher,
	maxAttempts int,
	backoff time.Duration,
) *RetryCoordinator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RetryCoordinator{
		queue:       queue,
		deadLetters: deadLetters,
		outcomes:    outcomes,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// HandleTransientFailure 处理一次瞬时失败：
// 还有配额就退避后重入队，否则送入死信槽。
func (c *RetryCoordinator) HandleTransientFailure(ctx context.Context, intent *domain.PurchaseIntent, cause error) {
	// intent.Attempt 是已经失败过的次数，刚刚这次还没记入
	if intent.Attempt+1 >= c.maxAttempts {
		c.DeadLetterNow(ctx, intent, cause)
		return
	}

	if err := intent.MarkRetry(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("trackingId", intent.TrackingID).Msg("Cannot retry intent in unexpected state")
		return
	}
	intentRetries.Inc()

	logger.Ctx(ctx).Warn().Err(cause).
		Str("trackingId", intent.TrackingID).
		Int("attempt", intent.Attempt).
		Dur("backoff", c.backoff).
		Msg("Transient failure, scheduling retry")

	// 重入队挂在后台定时器上，只保留链路信息、不继承调用方的超时，
	// 否则退避窗口可能被上游 ctx 提前掐断
	requeueCtx := trace.ContextWithRemoteSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
	c.pending.Add(1)
	time.AfterFunc(c.backoff, func() {
		defer c.pending.Done()
		if err := c.queue.Enqueue(requeueCtx, intent); err != nil {
			// 队列不可用时不再空转，直接把意向送进死信槽。
			// 这次失败的尝试 MarkRetry 已经记过，不能再递增一次。
			logger.Ctx(requeueCtx).Error().Err(err).Str("trackingId", intent.TrackingID).Msg("Re-enqueue failed")
			if markErr := intent.MarkAbandoned(); markErr != nil {
				logger.Ctx(requeueCtx).Error().Err(markErr).Str("trackingId", intent.TrackingID).Msg("Cannot abandon intent in unexpected state")
				return
			}
			c.emitDeadLetter(requeueCtx, intent, err)
		}
	})
}

// DeadLetterNow 立即把意向送入死信槽并发布终态失败事件。
func (c *RetryCoordinator) DeadLetterNow(ctx context.Context, intent *domain.PurchaseIntent, cause error) {
	if err := intent.MarkDeadLettered(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("trackingId", intent.TrackingID).Msg("Cannot dead-letter intent in unexpected state")
		return
	}
	c.emitDeadLetter(ctx, intent, cause)
}

// emitDeadLetter 写入死信槽并发布终态失败事件，要求意向已处于死信态。
func (c *RetryCoordinator) emitDeadLetter(ctx context.Context, intent *domain.PurchaseIntent, cause error) {
	intentsDeadLettered.Inc()

	letter := &domain.DeadLetter{
		Intent:             *intent,
		FinalFailureReason: cause.Error(),
		LastAttemptAt:      time.Now(),
	}
	if err := c.deadLetters.Receive(ctx, letter); err != nil {
		// 死信槽也收不下只能靠日志留痕了
		logger.Ctx(ctx).Error().Err(err).
			Str("trackingId", intent.TrackingID).
			Str("finalFailureReason", letter.FinalFailureReason).
			Msg("🚨 CRITICAL: failed to store dead letter")
	}

	logger.Ctx(ctx).Error().
		Str("trackingId", intent.TrackingID).
		Str("productId", intent.ProductID).
		Int("attempts", intent.Attempt).
		Str("finalFailureReason", letter.FinalFailureReason).
		Msg("🚨 Purchase intent dead-lettered")

	if c.outcomes != nil {
		outcome := domain.NewFailureOutcome(intent.ProductID, intent.RequesterID, intent.TrackingID, 0, cause, intent.Attempt)
		if err := c.outcomes.Publish(ctx, outcome); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Failed to publish dead-letter outcome event")
		}
	}
}

// Drain 等待所有挂起的延迟重入队完成，关停时调用。
func (c *RetryCoordinator) Drain() {
	c.pending.Wait()
}
