// internal/service/flashsale/application/worker.go
package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/service/flashsale/domain"
	"pulsecart/internal/service/flashsale/domain/port"
)

// WorkerPool 是请求队列的消费侧：固定数量的并发工作协程，
// 每个协程循环地出队一条购买意向、交给预订引擎、再按结果分流。
// 只有这里区分"瞬时失败"和"终态失败"并驱动重试状态机。
type WorkerPool struct {
	queue    port.IntentQueue
	service  *ReservationService
	retry    *RetryCoordinator
	cancels  *CancelRegistry
	outcomes port.OutcomePublisher
	workers  int
	tracer   trace.Tracer

	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewWorkerPool(
	queue port.IntentQueue,
	service *ReservationService,
	retry *RetryCoordinator,
	cancels *CancelRegistry,
	outcomes port.OutcomePublisher,
	workers int,
	tracer trace.Tracer,
) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		queue:    queue,
		service:  service,
		retry:    retry,
		cancels:  cancels,
		outcomes: outcomes,
		workers:  workers,
		tracer:   tracer,
	}
}

// Start 启动所有工作协程。这是一个非阻塞调用。
func (p *WorkerPool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		workerID := i
		p.group.Go(func() error {
			return p.runWorker(ctx, workerID)
		})
	}
	logger.Ctx(ctx).Info().Int("workers", p.workers).Msg("✅ Worker pool started.")
}

// Stop 优雅地停止消费：取消上下文并等所有协程退出，
// 再等重试协调器里还挂着的延迟重入队完成。
func (p *WorkerPool) Stop(ctx context.Context) {
	if p.cancel != nil {
		p.cancel()
	}
	if p.group != nil {
		_ = p.group.Wait()
	}
	p.retry.Drain()
	logger.Ctx(ctx).Info().Msg("✅ Worker pool stopped.")
}

func (p *WorkerPool) runWorker(ctx context.Context, id int) error {
	for {
		intent, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Int("worker", id).Msg("🛑 Worker shutting down.")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Int("worker", id).Msg("Failed to dequeue intent, retrying...")
			time.Sleep(time.Second) // 避免快速失败循环
			continue
		}
		p.processIntent(ctx, intent)
	}
}

// processIntent 处理一条意向并驱动它的状态机走到下一站。
func (p *WorkerPool) processIntent(ctx context.Context, intent *domain.PurchaseIntent) {
	ctx, span := p.tracer.Start(ctx, "flashsale.ProcessIntent", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	span.SetAttributes(
		attribute.String("intent.tracking_id", intent.TrackingID),
		attribute.String("product.id", intent.ProductID),
		attribute.Int("intent.attempt", intent.Attempt),
	)

	if err := intent.MarkProcessing(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("trackingId", intent.TrackingID).Msg("Dropping intent in unexpected state")
		return
	}

	// 取消标记在预订之前检查：长时间排队的意向必须支持显式取消，
	// 而不是靠丢弃队列消息
	if p.cancels != nil && p.cancels.IsCancelled(intent.TrackingID) {
		_ = intent.MarkRejectedTerminal()
		span.AddEvent("Intent cancelled by requester before reservation.")
		p.emit(ctx, domain.NewFailureOutcome(intent.ProductID, intent.RequesterID, intent.TrackingID, 0, domain.ErrIntentCancelled, intent.Attempt+1))
		return
	}

	_, err := p.service.Reserve(ctx, &ReserveCommand{
		ProductID:   intent.ProductID,
		Quantity:    intent.Quantity,
		RequesterID: intent.RequesterID,
		TrackingID:  intent.TrackingID,
		Attempt:     intent.Attempt,
	})

	switch {
	case err == nil:
		_ = intent.MarkSucceeded()

	case domain.IsBusinessRejection(err):
		// 终态业务失败：引擎已经发过结果事件，这里只落状态
		_ = intent.MarkRejectedTerminal()
		span.SetStatus(codes.Error, "terminal business rejection")

	case errors.Is(err, domain.ErrLedgerCorrupted):
		// 致命错误不重试：重试只会继续撞上坏掉的计数器
		span.SetStatus(codes.Error, "ledger corrupted")
		p.retry.DeadLetterNow(ctx, intent, err)

	default:
		// 基础设施瞬时失败，移交重试协调器
		span.RecordError(err)
		span.SetStatus(codes.Error, "transient failure")
		p.retry.HandleTransientFailure(ctx, intent, err)
	}
}

func (p *WorkerPool) emit(ctx context.Context, outcome *domain.ReservationOutcome) {
	if p.outcomes == nil {
		return
	}
	if err := p.outcomes.Publish(ctx, outcome); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Failed to publish outcome event")
	}
}

// CancelRegistry 记录被请求方显式取消的意向。
// 工作协程在预订前查询它；队列里的消息本身从不被丢弃。
type CancelRegistry struct {
	cancelled sync.Map // trackingID -> struct{}
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{}
}

// Cancel 标记一条在途意向为已取消。
func (r *CancelRegistry) Cancel(trackingID string) {
	r.cancelled.Store(trackingID, struct{}{})
}

// IsCancelled 查询某条意向是否已被取消。
func (r *CancelRegistry) IsCancelled(trackingID string) bool {
	_, ok := r.cancelled.Load(trackingID)
	return ok
}
