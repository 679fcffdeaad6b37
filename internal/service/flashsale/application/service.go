// internal/service/flashsale/application/service.go
package application

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/service/flashsale/domain"
	"pulsecart/internal/service/flashsale/domain/port"
)

// ReservationService 是预订引擎和两个网关共享的应用服务。
// 所有对 Stock Ledger 的变更都必须经过这里的原子调整，
// 任何组件都不允许在这条边界之外读后写计数器。
type ReservationService struct {
	ledger   port.StockLedger
	products domain.ProductRepository
	queue    port.IntentQueue
	outcomes port.OutcomePublisher
	policy   port.PurchasePolicy
	durable  port.DurableSync
	tracer   trace.Tracer
}

func NewReservationService(
	ledger port.StockLedger,
	products domain.ProductRepository,
	queue port.IntentQueue,
	outcomes port.OutcomePublisher,
	policy port.PurchasePolicy,
	durable port.DurableSync,
	tracer trace.Tracer,
) *ReservationService {
	return &ReservationService{
		ledger:   ledger,
		products: products,
		queue:    queue,
		outcomes: outcomes,
		policy:   policy,
		durable:  durable,
		tracer:   tracer,
	}
}

// Reserve 尝试原子地占用 N 件库存。
//
// 算法是"乐观扣减 + 失败补偿"：先 AtomicAdjust(-qty)，结果为负说明超扣，
// 立刻 AtomicAdjust(+qty) 补回并拒绝。相比 CAS 循环只需要一次原子整数操作，
// 代价是计数器内部会出现对外不可见的瞬时负值。
// 这依赖账本对同一 Key 的调整是真正串行化的。
//
// 返回的错误只会是三类业务拒绝（ErrInvalidQuantity / ErrProductNotFound /
// ErrOutOfStock）或基础设施错误；后者对异步路径意味着可以重试。
func (s *ReservationService) Reserve(ctx context.Context, cmd *ReserveCommand) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "flashsale.Reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("product.id", cmd.ProductID),
		attribute.Int64("reserve.quantity", cmd.Quantity),
		attribute.Int("reserve.attempt", cmd.Attempt),
	)

	// 1. 数量校验，不触碰账本
	if cmd.Quantity <= 0 {
		span.SetStatus(codes.Error, "invalid quantity")
		s.emitFailure(ctx, cmd, 0, domain.ErrInvalidQuantity)
		return nil, domain.ErrInvalidQuantity
	}

	// 2. 懒加载：账本没有计数器时从持久库存播种
	if err := s.ensureSeeded(ctx, cmd.ProductID); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			span.SetStatus(codes.Error, "product not found")
			s.emitFailure(ctx, cmd, 0, err)
			return nil, err
		}
		span.RecordError(err)
		return nil, err // 基础设施错误，交给调用方决定是否重试
	}

	// 3. 乐观扣减
	remaining, err := s.ledger.AtomicAdjust(ctx, cmd.ProductID, -cmd.Quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger adjust failed")
		return nil, err
	}

	// 4. 超扣：补偿并拒绝
	if remaining < 0 {
		restored, compErr := s.ledger.AtomicAdjust(ctx, cmd.ProductID, +cmd.Quantity)
		if compErr != nil {
			// 补偿失败意味着计数器已不可信，该商品必须停止准入
			logger.Ctx(ctx).Error().Err(compErr).
				Str("productId", cmd.ProductID).
				Msg("🚨 CRITICAL: rollback failed, ledger is corrupted for this product")
			span.RecordError(compErr)
			span.SetStatus(codes.Error, "rollback failed")
			return nil, domain.ErrLedgerCorrupted
		}
		span.AddEvent("Overcommit detected, decrement rolled back.")
		span.SetStatus(codes.Error, "out of stock")
		s.emitFailure(ctx, cmd, restored, domain.ErrOutOfStock)
		return nil, domain.ErrOutOfStock
	}

	// 5. 成功：铸造凭证，发事件，异步落库
	reservation := domain.NewReservation(cmd.ProductID, cmd.RequesterID, cmd.Quantity, remaining)
	span.SetAttributes(attribute.String("reservation.id", reservation.ID))
	span.AddEvent("Reservation committed.")

	reservationsGranted.Inc()
	s.emit(ctx, domain.NewSuccessOutcome(reservation, cmd.TrackingID, cmd.Attempt+1))
	if s.durable != nil {
		s.durable.RecordReservation(reservation)
	}

	logger.Ctx(ctx).Info().
		Str("reservationId", reservation.ID).
		Str("productId", cmd.ProductID).
		Int64("quantity", cmd.Quantity).
		Int64("remainingStock", remaining).
		Msg("Reservation granted")

	return reservation, nil
}

// ProcessPurchase 是同步网关的入口：单次尝试，阻塞到引擎返回。
func (s *ReservationService) ProcessPurchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "flashsale.ProcessPurchase")
	defer span.End()

	if s.policy != nil {
		intent := req.ToIntent()
		if err := s.policy.Evaluate(ctx, intent); err != nil {
			span.SetStatus(codes.Error, "policy rejected")
			return &PurchaseResponse{Success: false, Reason: domain.FailureReason(err)}, err
		}
	}

	reservation, err := s.Reserve(ctx, &ReserveCommand{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		RequesterID: req.RequesterID,
	})
	if err != nil {
		return &PurchaseResponse{Success: false, Reason: domain.FailureReason(err)}, err
	}

	return &PurchaseResponse{
		Success:        true,
		ReservationID:  reservation.ID,
		RemainingStock: reservation.RemainingStock,
	}, nil
}

// AcceptPurchase 是异步网关的入口：只做形状校验和入队，从不调用预订引擎。
// 入队失败是这条路径唯一能同步暴露的错误（ErrAcceptanceFailed）。
func (s *ReservationService) AcceptPurchase(ctx context.Context, req *PurchaseRequest) (*AsyncPurchaseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "flashsale.AcceptPurchase")
	defer span.End()

	// 校验类错误立即拒绝，永不入队
	if req.Quantity <= 0 {
		span.SetStatus(codes.Error, "invalid quantity")
		return &AsyncPurchaseResponse{Accepted: false, Reason: domain.FailureReason(domain.ErrInvalidQuantity)}, domain.ErrInvalidQuantity
	}

	intent := req.ToIntent()

	if s.policy != nil {
		if err := s.policy.Evaluate(ctx, intent); err != nil {
			span.SetStatus(codes.Error, "policy rejected")
			return &AsyncPurchaseResponse{Accepted: false, Reason: domain.FailureReason(err)}, err
		}
	}

	if err := s.queue.Enqueue(ctx, intent); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		logger.Ctx(ctx).Error().Err(err).Str("productId", req.ProductID).Msg("Failed to enqueue purchase intent")
		return &AsyncPurchaseResponse{Accepted: false, Reason: "ACCEPTANCE_FAILED"}, domain.ErrAcceptanceFailed
	}

	span.AddEvent("Purchase intent enqueued.")
	logger.Ctx(ctx).Info().
		Str("trackingId", intent.TrackingID).
		Str("productId", intent.ProductID).
		Msg("Purchase intent accepted")

	return &AsyncPurchaseResponse{Accepted: true, TrackingID: intent.TrackingID}, nil
}

// GetStock 返回某个商品当前的实时库存，未播种时从持久库存懒加载。
func (s *ReservationService) GetStock(ctx context.Context, productID string) (int64, error) {
	if err := s.ensureSeeded(ctx, productID); err != nil {
		return 0, err
	}
	return s.ledger.Get(ctx, productID)
}

// SeedStock 幂等播种，管理入口。
func (s *ReservationService) SeedStock(ctx context.Context, productID string, quantity int64) error {
	return s.ledger.Seed(ctx, productID, quantity)
}

// ResetStock 显式覆盖计数器，管理入口。播种语义和覆盖语义是两个操作：
// 已经开卖之后的 Seed 不会悄悄冲掉在途状态，想覆盖必须走这里。
func (s *ReservationService) ResetStock(ctx context.Context, productID string, quantity int64) error {
	logger.Ctx(ctx).Warn().Str("productId", productID).Int64("quantity", quantity).Msg("Stock counter reset by administrator")
	return s.ledger.Reset(ctx, productID, quantity)
}

// WarmStock 在启动时为所有商品预热账本，避免首单路径上的懒加载抖动。
func (s *ReservationService) WarmStock(ctx context.Context) error {
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := s.ledger.Seed(ctx, p.ID, p.StockQuantity); err != nil {
			return err
		}
	}
	logger.Ctx(ctx).Info().Int("products", len(products)).Msg("✅ Stock ledger warmed from durable store")
	return nil
}

// ensureSeeded 保证商品的计数器存在；商品本身不存在时返回 ErrProductNotFound。
func (s *ReservationService) ensureSeeded(ctx context.Context, productID string) error {
	_, err := s.ledger.Get(ctx, productID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrStockNotInitialized) {
		return err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	return s.ledger.Seed(ctx, productID, product.StockQuantity)
}

// emitFailure 发布一次失败事件，剩余库存取账本当前值（取不到时退回 0）。
func (s *ReservationService) emitFailure(ctx context.Context, cmd *ReserveCommand, remaining int64, cause error) {
	reservationsRejected.WithLabelValues(domain.FailureReason(cause)).Inc()
	s.emit(ctx, domain.NewFailureOutcome(cmd.ProductID, cmd.RequesterID, cmd.TrackingID, remaining, cause, cmd.Attempt+1))
}

func (s *ReservationService) emit(ctx context.Context, outcome *domain.ReservationOutcome) {
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.Publish(ctx, outcome); err != nil {
		// 事件流只服务于可见性，发布失败不影响预订本身
		logger.Ctx(ctx).Warn().Err(err).Str("productId", outcome.ProductID).Msg("Failed to publish outcome event")
	}
}
