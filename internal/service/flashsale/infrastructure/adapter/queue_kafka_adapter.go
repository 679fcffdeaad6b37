// internal/service/flashsale/infrastructure/adapter/queue_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"pulsecart/internal/pkg/mq"
	"pulsecart/internal/service/flashsale/domain"
)

// KafkaIntentQueue 是 port.IntentQueue 的 Kafka 实现。
// 消息按商品 ID 哈希到分区，同一商品的意向保持相对有序；
// 重试由应用层重新发布，不依赖 Kafka 的重投递。
type KafkaIntentQueue struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaIntentQueue(writer *kafka.Writer, reader *kafka.Reader) *KafkaIntentQueue {
	return &KafkaIntentQueue{writer: writer, reader: reader}
}

func (q *KafkaIntentQueue) Enqueue(ctx context.Context, intent *domain.PurchaseIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "failed to marshal purchase intent")
	}
	attemptHeader := kafka.Header{
		Key:   mq.HeaderRetryAttempt,
		Value: []byte(strconv.Itoa(intent.Attempt)),
	}
	if err := mq.ProduceMessage(ctx, q.writer, []byte(intent.ProductID), payload, attemptHeader); err != nil {
		return errors.Wrap(err, "failed to produce purchase intent")
	}
	return nil
}

func (q *KafkaIntentQueue) Dequeue(ctx context.Context) (*domain.PurchaseIntent, error) {
	msg, err := q.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	var intent domain.PurchaseIntent
	if err := json.Unmarshal(msg.Value, &intent); err != nil {
		// 解析不了的消息提交掉并报错，让调用方记日志后继续
		_ = q.reader.CommitMessages(ctx, msg)
		return nil, errors.Wrap(err, "failed to unmarshal purchase intent")
	}
	intent.State = domain.IntentQueued

	if err := q.reader.CommitMessages(ctx, msg); err != nil {
		return nil, errors.Wrap(err, "failed to commit intent message")
	}
	return &intent, nil
}

func (q *KafkaIntentQueue) Close() error {
	if err := q.writer.Close(); err != nil {
		return err
	}
	return q.reader.Close()
}

// KafkaDeadLetterSink 把死信发布到 DLT topic，
// 消息头携带来源和失败原因，便于检视工具直接读取。
type KafkaDeadLetterSink struct {
	writer        *kafka.Writer
	originalTopic string
}

func NewKafkaDeadLetterSink(writer *kafka.Writer, originalTopic string) *KafkaDeadLetterSink {
	return &KafkaDeadLetterSink{writer: writer, originalTopic: originalTopic}
}

func (s *KafkaDeadLetterSink) Receive(ctx context.Context, letter *domain.DeadLetter) error {
	payload, err := json.Marshal(letter)
	if err != nil {
		return errors.Wrap(err, "failed to marshal dead letter")
	}
	headers := []kafka.Header{
		{Key: mq.HeaderOriginalTopic, Value: []byte(s.originalTopic)},
		{Key: mq.HeaderExceptionMessage, Value: []byte(letter.FinalFailureReason)},
		{Key: mq.HeaderRetryAttempt, Value: []byte(strconv.Itoa(letter.Intent.Attempt))},
	}
	return mq.ProduceMessage(ctx, s.writer, []byte(letter.Intent.ProductID), payload, headers...)
}

func (s *KafkaDeadLetterSink) Close() error {
	return s.writer.Close()
}
