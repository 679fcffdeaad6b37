// internal/pkg/mq/kafka.go
package mq

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// 死信消息附带的诊断头，记录消息的来源和失败原因。
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionMessage  = "x-exception-message"
	HeaderRetryAttempt      = "x-retry-attempt"
)

// NewWriter 创建一个指向单个 topic 的 Kafka writer。
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{}, // 按 Key 哈希，同一商品的消息落在同一分区
	}
}

// NewReader 创建一个消费组 reader。
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// ProduceMessage 发送一条消息，并把当前的追踪上下文注入到消息头中，
// 这样消费端可以恢复出完整的调用链路。
func ProduceMessage(ctx context.Context, writer *kafka.Writer, key, value []byte, headers ...kafka.Header) error {
	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
	}

	propagator := otel.GetTextMapPropagator()
	carrier := KafkaHeaderCarrier(msg.Headers)
	propagator.Inject(ctx, &carrier)
	msg.Headers = carrier

	return writer.WriteMessages(ctx, msg)
}

// KafkaHeaderCarrier 让 kafka.Header 切片实现 otel 的 TextMapCarrier 接口。
type KafkaHeaderCarrier []kafka.Header

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

// HeaderValue 从消息头中取出指定 Key 的值，不存在时返回空串。
func HeaderValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
