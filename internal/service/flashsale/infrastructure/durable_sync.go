// internal/service/flashsale/infrastructure/durable_sync.go
package infrastructure

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/service/flashsale/domain"
	"pulsecart/internal/service/flashsale/domain/port"
)

// reservationStore 是 Durable Sync 需要的持久层能力。
// GormProductRepository 同时满足 domain.ProductRepository 和这里的要求。
type reservationStore interface {
	domain.ProductRepository
	SaveReservation(ctx context.Context, res *domain.Reservation) error
}

// Locker 抽象对账用的互斥锁，生产部署注入 ZooKeeper 分布式锁。
type Locker interface {
	Lock() error
	Unlock() error
}

// DurableSync 把成功的预订异步镜像到持久存储。
// 它只读已提交的 Reservation，绝不反向修改实时账本；
// 写入永远不在预订的关键路径上，缓冲满了宁可丢弃等对账补齐。
type DurableSync struct {
	store  reservationStore
	ledger port.StockLedger

	ch      chan *domain.Reservation
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dropped atomic.Int64
}

func NewDurableSync(store reservationStore, ledger port.StockLedger, bufSize int) *DurableSync {
	if bufSize <= 0 {
		bufSize = 1024
	}
	return &DurableSync{
		store:  store,
		ledger: ledger,
		ch:     make(chan *domain.Reservation, bufSize),
	}
}

// RecordReservation 实现 port.DurableSync，非阻塞。
func (s *DurableSync) RecordReservation(r *domain.Reservation) {
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
		logger.Logger().Warn().
			Str("reservationId", r.ID).
			Msg("Durable sync buffer full, reservation dropped (reconciliation will catch up)")
	}
}

// Dropped 返回因缓冲满而被丢弃、等待对账补齐的预订数。
func (s *DurableSync) Dropped() int64 {
	return s.dropped.Load()
}

// Start 启动后台写入协程。
func (s *DurableSync) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				s.drain()
				return
			case r := <-s.ch:
				s.persist(ctx, r)
			}
		}
	}()
	logger.Ctx(ctx).Info().Msg("✅ Durable sync started.")
}

// Stop 停止后台协程并把缓冲里剩余的记录写完。
func (s *DurableSync) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logger.Ctx(ctx).Info().Msg("✅ Durable sync stopped.")
}

func (s *DurableSync) persist(ctx context.Context, r *domain.Reservation) {
	if err := s.store.SaveReservation(ctx, r); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("reservationId", r.ID).Msg("Failed to persist reservation")
	}
	if err := s.store.DecrementStock(ctx, r.ProductID, r.Quantity); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("productId", r.ProductID).Msg("Failed to sync stock to durable store")
	}
}

func (s *DurableSync) drain() {
	// 关停时用独立的短超时把缓冲写完
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case r := <-s.ch:
			s.persist(ctx, r)
		default:
			return
		}
	}
}

// Reconciler 周期性地把实时账本的值回写到静态库存，
// 修复 Durable Sync 丢弃或进程崩溃造成的偏差。
// 多实例部署时通过分布式锁保证同一时刻只有一个实例在对账。
type Reconciler struct {
	store    reservationStore
	ledger   port.StockLedger
	lock     Locker // 可以为 nil（单实例部署）
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReconciler(store reservationStore, ledger port.StockLedger, lock Locker, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{store: store, ledger: ledger, lock: lock, interval: interval}
}

func (r *Reconciler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.ReconcileOnce(ctx); err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("Stock reconciliation failed")
				}
			}
		}
	}()
}

func (r *Reconciler) Stop(ctx context.Context) {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	logger.Ctx(ctx).Info().Msg("✅ Reconciler stopped.")
}

// ReconcileOnce 执行一轮对账：逐个商品把账本值覆盖到静态库存。
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	if r.lock != nil {
		if err := r.lock.Lock(); err != nil {
			return err
		}
		defer r.lock.Unlock()
	}

	products, err := r.store.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		current, err := r.ledger.Get(ctx, p.ID)
		if err != nil {
			if errors.Is(err, domain.ErrStockNotInitialized) {
				continue // 还没开卖的商品无需对账
			}
			return err
		}
		if current == p.StockQuantity {
			continue
		}
		if err := r.store.UpdateStockQuantity(ctx, p.ID, current); err != nil {
			return err
		}
		logger.Ctx(ctx).Info().
			Str("productId", p.ID).
			Int64("durable", p.StockQuantity).
			Int64("live", current).
			Msg("Reconciled durable stock with live ledger")
	}
	return nil
}
