// internal/service/flashsale/domain/port/queue.go
package port

import (
	"context"

	"pulsecart/internal/service/flashsale/domain"
)

// IntentQueue 是购买意向的有序投递通道，at-least-once 语义。
// 重试消息可能排在后入队的消息之后，不承诺严格 FIFO。
type IntentQueue interface {
	Enqueue(ctx context.Context, intent *domain.PurchaseIntent) error

	// Dequeue 阻塞等待下一条意向；ctx 取消时返回 ctx.Err()。
	Dequeue(ctx context.Context) (*domain.PurchaseIntent, error)
}

// DeadLetterSink 接收重试耗尽的意向，等待人工检视。
type DeadLetterSink interface {
	Receive(ctx context.Context, letter *domain.DeadLetter) error
}
