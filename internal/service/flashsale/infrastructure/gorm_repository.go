// internal/service/flashsale/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"pulsecart/internal/service/flashsale/domain"
)

// GormProductRepository 是 domain.ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewMysqlDB 按 DSN 建立 MySQL 连接并自动迁移表结构。
func NewMysqlDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ProductModel{}, &ReservationModel{}); err != nil {
		return nil, err
	}
	return db, nil
}

// NewGormProductRepository 创建一个新的 GORM 仓储实例
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return ToDomainProduct(&model), nil
}

func (r *GormProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	products := make([]*domain.Product, 0, len(models))
	for i := range models {
		products = append(products, ToDomainProduct(&models[i]))
	}
	return products, nil
}

// DecrementStock 把已售数量回写到静态库存。
// WHERE 条件带上 stock_quantity >= ? 防止把静态库存写成负数；
// 回写落后于实时账本是预期内的，对账任务会补齐。
func (r *GormProductRepository) DecrementStock(ctx context.Context, id string, quantity int64) error {
	result := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("stock decrement did not apply, manual sync may be required")
	}
	return nil
}

func (r *GormProductRepository) UpdateStockQuantity(ctx context.Context, id string, quantity int64) error {
	return r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", quantity).Error
}

// SaveReservation 持久化一条预订记录。
func (r *GormProductRepository) SaveReservation(ctx context.Context, res *domain.Reservation) error {
	model := &ReservationModel{
		ID:             res.ID,
		ProductID:      res.ProductID,
		RequesterID:    res.RequesterID,
		Quantity:       res.Quantity,
		RemainingStock: res.RemainingStock,
		CreatedAt:      res.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(model).Error
}
