// internal/service/flashsale/domain/port/ledger.go
package port

import "context"

// StockLedger 是准入判定的唯一事实来源：商品 ID 到剩余数量的原子映射。
//
// AtomicAdjust 的调整和读取对同一商品的所有并发调用者必须是一个不可分步骤，
// 这是无超卖不变量成立的前提。跨商品不要求也不提供原子性；
// 实现禁止用一把全局锁串行化所有商品。
// 后端如果是弱一致存储，这个契约就被破坏，不变量随之失效——
// 选择实现时必须把"真正串行化"当作硬性要求而不是默认假设。
type StockLedger interface {
	// Get 返回当前计数，未初始化时返回 domain.ErrStockNotInitialized。
	Get(ctx context.Context, productID string) (int64, error)

	// Seed 幂等初始化：计数器已存在时不做任何事。
	Seed(ctx context.Context, productID string, quantity int64) error

	// Reset 显式覆盖计数器，仅限管理操作使用。
	Reset(ctx context.Context, productID string, quantity int64) error

	// AtomicAdjust 原子地调整计数并返回调整后的值。
	AtomicAdjust(ctx context.Context, productID string, delta int64) (int64, error)
}
