// internal/service/flashsale/infrastructure/adapter/outcome_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"pulsecart/internal/pkg/mq"
	"pulsecart/internal/service/flashsale/domain"
)

// KafkaOutcomePublisher 把结果事件发布到 Kafka，
// 供外部协作方（通知服务、报表等）订阅。
type KafkaOutcomePublisher struct {
	writer *kafka.Writer
}

func NewKafkaOutcomePublisher(writer *kafka.Writer) *KafkaOutcomePublisher {
	return &KafkaOutcomePublisher{writer: writer}
}

func (p *KafkaOutcomePublisher) Publish(ctx context.Context, outcome *domain.ReservationOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return errors.Wrap(err, "failed to marshal outcome event")
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(outcome.ProductID), payload)
}

func (p *KafkaOutcomePublisher) Close() error {
	return p.writer.Close()
}
