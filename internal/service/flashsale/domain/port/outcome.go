// internal/service/flashsale/domain/port/outcome.go
package port

import (
	"context"

	"pulsecart/internal/service/flashsale/domain"
)

// OutcomePublisher 发布预订结果事件。
// 发布失败不影响预订本身的正确性，调用方记日志后继续。
type OutcomePublisher interface {
	Publish(ctx context.Context, outcome *domain.ReservationOutcome) error
}
