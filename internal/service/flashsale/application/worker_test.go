// internal/service/flashsale/application/worker_test.go
package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"pulsecart/internal/service/flashsale/domain"
	"pulsecart/internal/service/flashsale/domain/port"
	"pulsecart/internal/service/flashsale/infrastructure"
)

// flakyLedger 包装真实账本，按计划在扣减时注入失败。
// failures < 0 表示永远失败。
type flakyLedger struct {
	port.StockLedger
	mu       sync.Mutex
	failures int
	failErr  error
}

func (l *flakyLedger) AtomicAdjust(ctx context.Context, productID string, delta int64) (int64, error) {
	if delta < 0 {
		l.mu.Lock()
		if l.failures != 0 {
			if l.failures > 0 {
				l.failures--
			}
			l.mu.Unlock()
			return 0, l.failErr
		}
		l.mu.Unlock()
	}
	return l.StockLedger.AtomicAdjust(ctx, productID, delta)
}

type pipelineFixture struct {
	service  *ReservationService
	ledger   port.StockLedger
	queue    *infrastructure.MemoryQueue
	outcomes *capturePublisher
	dlq      *infrastructure.MemoryDeadLetterSink
	cancels  *CancelRegistry
}

// startPipeline 装配完整的异步流水线：队列、引擎、工作池和重试协调器。
func startPipeline(t *testing.T, ledger port.StockLedger, stock int64) *pipelineFixture {
	t.Helper()
	tracer := otel.Tracer("test")

	if ledger == nil {
		ledger = infrastructure.NewMemoryLedger()
	}
	repo := infrastructure.NewMemoryProductRepository()
	repo.AddProduct(&domain.Product{ID: "p-1", StockQuantity: stock})
	queue := infrastructure.NewMemoryQueue(64)
	outcomes := &capturePublisher{}
	dlq := infrastructure.NewMemoryDeadLetterSink()
	cancels := NewCancelRegistry()

	service := NewReservationService(ledger, repo, queue, outcomes, nil, nil, tracer)
	require.NoError(t, service.WarmStock(context.Background()))

	retry := NewRetryCoordinator(queue, dlq, outcomes, 3, 5*time.Millisecond)
	pool := NewWorkerPool(queue, service, retry, cancels, outcomes, 2, tracer)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		pool.Stop(context.Background())
		cancel()
	})

	return &pipelineFixture{service: service, ledger: ledger, queue: queue, outcomes: outcomes, dlq: dlq, cancels: cancels}
}

func (f *pipelineFixture) outcomeFor(trackingID string) *domain.ReservationOutcome {
	for _, o := range f.outcomes.all() {
		if o.TrackingID == trackingID {
			return o
		}
	}
	return nil
}

func TestPipelineReservesAsyncIntent(t *testing.T) {
	f := startPipeline(t, nil, 5)
	ctx := context.Background()

	resp, err := f.service.AcceptPurchase(ctx, &PurchaseRequest{ProductID: "p-1", Quantity: 2, RequesterID: "u-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		o := f.outcomeFor(resp.TrackingID)
		return o != nil && o.Success()
	}, 2*time.Second, 10*time.Millisecond)

	outcome := f.outcomeFor(resp.TrackingID)
	assert.Equal(t, 1, outcome.Attempt)
	assert.Equal(t, int64(3), outcome.RemainingStock)

	stock, err := f.ledger.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stock)
}

func TestPipelineRetriesTransientFailureThenSucceeds(t *testing.T) {
	ledger := &flakyLedger{
		StockLedger: infrastructure.NewMemoryLedger(),
		failures:    2,
		failErr:     errors.New("ledger temporarily unreachable"),
	}
	f := startPipeline(t, ledger, 5)
	ctx := context.Background()

	resp, err := f.service.AcceptPurchase(ctx, &PurchaseRequest{ProductID: "p-1", Quantity: 1, RequesterID: "u-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		o := f.outcomeFor(resp.TrackingID)
		return o != nil && o.Success()
	}, 2*time.Second, 10*time.Millisecond)

	// 前两次尝试瞬时失败，第三次成功
	outcome := f.outcomeFor(resp.TrackingID)
	assert.Equal(t, 3, outcome.Attempt)

	stock, err := f.ledger.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stock)
	assert.Empty(t, f.dlq.Letters())
}

func TestPipelineDeadLettersAfterRetriesExhausted(t *testing.T) {
	ledger := &flakyLedger{
		StockLedger: infrastructure.NewMemoryLedger(),
		failures:    -1,
		failErr:     errors.New("ledger permanently unreachable"),
	}
	f := startPipeline(t, ledger, 5)
	ctx := context.Background()

	resp, err := f.service.AcceptPurchase(ctx, &PurchaseRequest{ProductID: "p-1", Quantity: 1, RequesterID: "u-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(f.dlq.Letters()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	letter := f.dlq.Letters()[0]
	assert.Equal(t, resp.TrackingID, letter.Intent.TrackingID)
	assert.Equal(t, 3, letter.Intent.Attempt, "intent must be dead-lettered after exactly three attempts")
	assert.Equal(t, domain.IntentDeadLettered, letter.Intent.State)
	assert.Contains(t, letter.FinalFailureReason, "permanently unreachable")

	outcome := f.outcomeFor(resp.TrackingID)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Success())
	assert.Equal(t, "INTERNAL_ERROR", outcome.Reason)
	assert.Equal(t, 3, outcome.Attempt)

	// 失败的意向绝不能消耗库存
	stock, err := f.ledger.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock)
}

func TestPipelineDeadLettersCorruptedLedgerImmediately(t *testing.T) {
	ledger := &flakyLedger{
		StockLedger: infrastructure.NewMemoryLedger(),
		failures:    -1,
		failErr:     errors.Wrap(domain.ErrLedgerCorrupted, "counter holds garbage"),
	}
	f := startPipeline(t, ledger, 5)

	resp, err := f.service.AcceptPurchase(context.Background(), &PurchaseRequest{ProductID: "p-1", Quantity: 1, RequesterID: "u-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(f.dlq.Letters()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 致命错误不走重试配额，第一次尝试就进死信
	letter := f.dlq.Letters()[0]
	assert.Equal(t, 1, letter.Intent.Attempt)

	outcome := f.outcomeFor(resp.TrackingID)
	require.NotNil(t, outcome)
	assert.Equal(t, "LEDGER_CORRUPTED", outcome.Reason)
}

func TestPipelineSkipsCancelledIntent(t *testing.T) {
	f := startPipeline(t, nil, 5)
	ctx := context.Background()

	// 先打取消标记再入队，保证消费时一定能看到标记
	intent := domain.NewPurchaseIntent("p-1", 1, "u-1")
	f.cancels.Cancel(intent.TrackingID)
	require.NoError(t, f.queue.Enqueue(ctx, intent))

	require.Eventually(t, func() bool {
		o := f.outcomeFor(intent.TrackingID)
		return o != nil && o.Reason == "CANCELLED"
	}, 2*time.Second, 10*time.Millisecond)

	stock, err := f.ledger.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock, "cancelled intents must not touch the ledger")
}
