// internal/service/flashsale/infrastructure/outcome_hub.go
package infrastructure

import (
	"context"
	"sync"
	"sync/atomic"

	"pulsecart/internal/service/flashsale/domain"
	"pulsecart/internal/service/flashsale/domain/port"
)

// OutcomeHub 是进程内的结果事件扇出器。
// 零个订阅者也完全合法：核心流程不依赖任何人在听。
// 慢订阅者不会拖住发布方——缓冲满了就丢弃并计入丢弃数。
type OutcomeHub struct {
	mu      sync.RWMutex
	subs    map[chan *domain.ReservationOutcome]struct{}
	dropped atomic.Int64
	bufSize int
}

func NewOutcomeHub(bufSize int) *OutcomeHub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &OutcomeHub{
		subs:    make(map[chan *domain.ReservationOutcome]struct{}),
		bufSize: bufSize,
	}
}

// Publish 实现 port.OutcomePublisher。
func (h *OutcomeHub) Publish(_ context.Context, outcome *domain.ReservationOutcome) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- outcome:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe 注册一个订阅者，返回事件通道和退订函数。
func (h *OutcomeHub) Subscribe() (<-chan *domain.ReservationOutcome, func()) {
	ch := make(chan *domain.ReservationOutcome, h.bufSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, unsubscribe
}

// Dropped 返回因订阅者缓冲满而被丢弃的事件数。
func (h *OutcomeHub) Dropped() int64 {
	return h.dropped.Load()
}

// CompositeOutcomePublisher 把一个事件同时发布到多个下游
// （典型组合：进程内 Hub + Kafka topic）。
type CompositeOutcomePublisher struct {
	publishers []port.OutcomePublisher
}

func NewCompositeOutcomePublisher(publishers ...port.OutcomePublisher) *CompositeOutcomePublisher {
	return &CompositeOutcomePublisher{publishers: publishers}
}

func (c *CompositeOutcomePublisher) Publish(ctx context.Context, outcome *domain.ReservationOutcome) error {
	var firstErr error
	for _, p := range c.publishers {
		if err := p.Publish(ctx, outcome); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
