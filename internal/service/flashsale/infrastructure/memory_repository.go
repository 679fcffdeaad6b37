// internal/service/flashsale/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"pulsecart/internal/service/flashsale/domain"
)

// MemoryProductRepository 是商品目录的内存实现，
// 用于本地开发和测试，也是 MySQL 不可用时的兜底目录。
type MemoryProductRepository struct {
	mu           sync.RWMutex
	products     map[string]*domain.Product
	reservations []*domain.Reservation
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{products: make(map[string]*domain.Product)}
}

// AddProduct 注册一个商品。重复注册覆盖旧值。
func (r *MemoryProductRepository) AddProduct(p *domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.products[p.ID] = &cp
}

func (r *MemoryProductRepository) FindByID(_ context.Context, productID string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrProductNotFound, "product %s", productID)
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryProductRepository) ListAll(_ context.Context) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryProductRepository) DecrementStock(_ context.Context, productID string, quantity int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return errors.Wrapf(domain.ErrProductNotFound, "product %s", productID)
	}
	if p.StockQuantity < quantity {
		return errors.Errorf("insufficient persisted stock for product %s: have %d, want %d", productID, p.StockQuantity, quantity)
	}
	p.StockQuantity -= quantity
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryProductRepository) UpdateStockQuantity(_ context.Context, productID string, quantity int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return errors.Wrapf(domain.ErrProductNotFound, "product %s", productID)
	}
	p.StockQuantity = quantity
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryProductRepository) SaveReservation(_ context.Context, res *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations = append(r.reservations, res)
	return nil
}

// Reservations 返回已持久化预订的快照，测试用。
func (r *MemoryProductRepository) Reservations() []*domain.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Reservation, len(r.reservations))
	copy(out, r.reservations)
	return out
}
