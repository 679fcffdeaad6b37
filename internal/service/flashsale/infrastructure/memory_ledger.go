// internal/service/flashsale/infrastructure/memory_ledger.go
package infrastructure

import (
	"context"
	"sync"

	"pulsecart/internal/service/flashsale/domain"
)

// MemoryLedger 是 port.StockLedger 的进程内实现。
// 每个商品一把独立的互斥锁，保证同一 Key 上调整和读取是一个不可分步骤；
// 不同商品互不影响，没有全局锁。
type MemoryLedger struct {
	counters sync.Map // productID -> *stockCounter
}

type stockCounter struct {
	mu    sync.Mutex
	value int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// Get 返回当前计数。
func (l *MemoryLedger) Get(_ context.Context, productID string) (int64, error) {
	v, ok := l.counters.Load(productID)
	if !ok {
		return 0, domain.ErrStockNotInitialized
	}
	c := v.(*stockCounter)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

// Seed 幂等初始化：已存在的计数器保持原样。
func (l *MemoryLedger) Seed(_ context.Context, productID string, quantity int64) error {
	l.counters.LoadOrStore(productID, &stockCounter{value: quantity})
	return nil
}

// Reset 显式覆盖，计数器不存在时创建。
func (l *MemoryLedger) Reset(_ context.Context, productID string, quantity int64) error {
	v, _ := l.counters.LoadOrStore(productID, &stockCounter{value: quantity})
	c := v.(*stockCounter)
	c.mu.Lock()
	c.value = quantity
	c.mu.Unlock()
	return nil
}

// AtomicAdjust 原子地调整并返回新值。
func (l *MemoryLedger) AtomicAdjust(_ context.Context, productID string, delta int64) (int64, error) {
	v, ok := l.counters.Load(productID)
	if !ok {
		return 0, domain.ErrStockNotInitialized
	}
	c := v.(*stockCounter)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
	return c.value, nil
}
