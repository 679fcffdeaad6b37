// internal/service/flashsale/infrastructure/durable_sync_test.go
package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecart/internal/service/flashsale/domain"
)

func TestDurableSyncPersistsReservations(t *testing.T) {
	repo := NewMemoryProductRepository()
	repo.AddProduct(&domain.Product{ID: "p-1", StockQuantity: 10})
	ledger := NewMemoryLedger()
	sync := NewDurableSync(repo, ledger, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sync.Start(ctx)

	reservation := domain.NewReservation("p-1", "u-1", 2, 8)
	sync.RecordReservation(reservation)

	require.Eventually(t, func() bool {
		return len(repo.Reservations()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sync.Stop(ctx)

	saved := repo.Reservations()[0]
	assert.Equal(t, reservation.ID, saved.ID)

	// 静态库存跟着预订一起扣
	p, err := repo.FindByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), p.StockQuantity)
}

func TestDurableSyncDropsWhenBufferFull(t *testing.T) {
	repo := NewMemoryProductRepository()
	repo.AddProduct(&domain.Product{ID: "p-1", StockQuantity: 100})
	sync := NewDurableSync(repo, NewMemoryLedger(), 1)

	// 故意不 Start：缓冲只有一格，第二条必须被丢弃而不是阻塞预订路径
	sync.RecordReservation(domain.NewReservation("p-1", "u-1", 1, 99))
	done := make(chan struct{})
	go func() {
		sync.RecordReservation(domain.NewReservation("p-1", "u-2", 1, 98))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordReservation must never block the reservation path")
	}
	assert.Equal(t, int64(1), sync.Dropped())
}

func TestReconcileOnceSyncsLedgerToDurableStore(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProductRepository()
	repo.AddProduct(&domain.Product{ID: "p-1", StockQuantity: 100})
	repo.AddProduct(&domain.Product{ID: "p-2", StockQuantity: 50})
	repo.AddProduct(&domain.Product{ID: "p-cold", StockQuantity: 7})

	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Seed(ctx, "p-1", 60)) // 卖掉了 40 件
	require.NoError(t, ledger.Seed(ctx, "p-2", 50)) // 没有偏差

	reconciler := NewReconciler(repo, ledger, nil, time.Minute)
	require.NoError(t, reconciler.ReconcileOnce(ctx))

	p1, err := repo.FindByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), p1.StockQuantity)

	p2, err := repo.FindByID(ctx, "p-2")
	require.NoError(t, err)
	assert.Equal(t, int64(50), p2.StockQuantity)

	// 账本里没有计数器的商品保持原样
	cold, err := repo.FindByID(ctx, "p-cold")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cold.StockQuantity)
}

type countingLock struct {
	locks   int
	unlocks int
}

func (l *countingLock) Lock() error   { l.locks++; return nil }
func (l *countingLock) Unlock() error { l.unlocks++; return nil }

func TestReconcileOnceTakesAndReleasesLock(t *testing.T) {
	repo := NewMemoryProductRepository()
	lock := &countingLock{}

	reconciler := NewReconciler(repo, NewMemoryLedger(), lock, time.Minute)
	require.NoError(t, reconciler.ReconcileOnce(context.Background()))

	assert.Equal(t, 1, lock.locks)
	assert.Equal(t, 1, lock.unlocks)
}
