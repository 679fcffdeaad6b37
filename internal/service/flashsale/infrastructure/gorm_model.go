// internal/service/flashsale/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"pulsecart/internal/service/flashsale/domain"
)

// ProductModel 对应数据库中的 product 表
type ProductModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:128;not null"`
	UnitPrice     int64  `gorm:"not null"` // 单位：分
	StockQuantity int64  `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "product"
}

// ToDomainProduct 将数据库模型转换为领域模型
func ToDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:            m.ID,
		Name:          m.Name,
		UnitPrice:     m.UnitPrice,
		StockQuantity: m.StockQuantity,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ReservationModel 对应数据库中的 reservation 表，
// 由 Durable Sync 异步写入，仅用于崩溃恢复和报表。
type ReservationModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	ProductID      string `gorm:"size:64;index;not null"`
	RequesterID    string `gorm:"size:64;not null"`
	Quantity       int64  `gorm:"not null"`
	RemainingStock int64  `gorm:"not null"`
	CreatedAt      time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ReservationModel) TableName() string {
	return "reservation"
}
