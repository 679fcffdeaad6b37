// internal/service/flashsale/domain/repository.go
package domain

import "context"

// ProductRepository 是商品持久层的出站端口。
// 找不到商品时返回 ErrProductNotFound。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)

	// DecrementStock 把已售出的数量回写到静态库存。
	// 由 Durable Sync 异步调用，永远不在预订的关键路径上。
	DecrementStock(ctx context.Context, id string, quantity int64) error

	// UpdateStockQuantity 对账时用账本的实时值覆盖静态库存。
	UpdateStockQuantity(ctx context.Context, id string, quantity int64) error
}
