// internal/service/flashsale/domain/product.go
package domain

import "time"

// Product 是商品在持久层的权威记录。
// StockQuantity 是静态库存，只会被对账任务或管理员重置修改；
// 抢购期间的实时扣减走 Stock Ledger，预订引擎从不直接写这里。
type Product struct {
	ID            string
	Name          string
	UnitPrice     int64 // 单位：分
	StockQuantity int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
