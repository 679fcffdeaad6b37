// internal/service/flashsale/interfaces/dlt_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/pkg/mq"
	"pulsecart/internal/service/flashsale/domain"
)

// DltConsumer 订阅死信主题并逐条落日志，供人工排障。
// 它不做任何自动恢复：进了死信的意向只能由运营介入。
type DltConsumer struct {
	reader  *kafka.Reader
	stopped atomic.Bool
}

// 参数顺序与 mq.NewReader 保持一致，避免 groupID 和 topic 被调用方写反。
func NewDltConsumer(brokers []string, groupID, topic string) *DltConsumer {
	return &DltConsumer{reader: mq.NewReader(brokers, groupID, topic)}
}

// Start 持续消费死信主题直到 ctx 取消或 Stop 被调用。
func (c *DltConsumer) Start(ctx context.Context) {
	logger.Ctx(ctx).Info().Str("topic", c.reader.Config().Topic).Msg("✅ DLT consumer started")
	for !c.stopped.Load() {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || c.stopped.Load() {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to fetch dead letter")
			continue
		}

		c.logDeadLetter(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit dead letter offset")
		}
	}
}

func (c *DltConsumer) Stop() error {
	c.stopped.Store(true)
	return c.reader.Close()
}

func (c *DltConsumer) logDeadLetter(ctx context.Context, msg kafka.Message) {
	var letter domain.DeadLetter
	if err := json.Unmarshal(msg.Value, &letter); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", string(msg.Key)).
			Msg("🚨 Dead letter with unparseable payload")
		return
	}

	logger.Ctx(ctx).Error().
		Str("trackingId", letter.Intent.TrackingID).
		Str("productId", letter.Intent.ProductID).
		Int("attempt", letter.Intent.Attempt).
		Str("reason", letter.FinalFailureReason).
		Str("originalTopic", mq.HeaderValue(msg, mq.HeaderOriginalTopic)).
		Str("exception", mq.HeaderValue(msg, mq.HeaderExceptionMessage)).
		Msg("🚨 Purchase intent dead-lettered, manual intervention required")
}
