// internal/service/flashsale/infrastructure/memory_queue.go
package infrastructure

import (
	"context"
	"errors"
	"sync"

	"pulsecart/internal/service/flashsale/domain"
)

// MemoryQueue 是 port.IntentQueue 的进程内实现，基于带缓冲的 channel。
// 单机部署和测试场景使用；生产部署换成 Kafka 适配器。
type MemoryQueue struct {
	ch     chan *domain.PurchaseIntent
	closed chan struct{}
	once   sync.Once
}

var ErrQueueClosed = errors.New("intent queue is closed")

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		ch:     make(chan *domain.PurchaseIntent, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue 在关闭后必须确定性拒绝：select 在多分支就绪时随机选择，
// 所以先做一次只看关闭状态的非阻塞检查，不能让已关闭的队列继续受理。
func (q *MemoryQueue) Enqueue(ctx context.Context, intent *domain.PurchaseIntent) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- intent:
		return nil
	}
}

// Dequeue 在关闭后先清空积压再拒绝：已被 Enqueue 受理的请求
// 不能因为关闭而静默丢弃。
func (q *MemoryQueue) Dequeue(ctx context.Context) (*domain.PurchaseIntent, error) {
	select {
	case intent := <-q.ch:
		return intent, nil
	default:
	}
	select {
	case <-q.closed:
		select {
		case intent := <-q.ch:
			return intent, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case intent := <-q.ch:
		return intent, nil
	}
}

// Len 返回当前积压量，仅用于监控和测试。
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Close() {
	q.once.Do(func() { close(q.closed) })
}

// MemoryDeadLetterSink 把死信保存在内存里，供测试和人工检视。
type MemoryDeadLetterSink struct {
	mu      sync.Mutex
	letters []*domain.DeadLetter
}

func NewMemoryDeadLetterSink() *MemoryDeadLetterSink {
	return &MemoryDeadLetterSink{}
}

func (s *MemoryDeadLetterSink) Receive(_ context.Context, letter *domain.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, letter)
	return nil
}

// Letters 返回已收到死信的快照。
func (s *MemoryDeadLetterSink) Letters() []*domain.DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.DeadLetter, len(s.letters))
	copy(out, s.letters)
	return out
}
