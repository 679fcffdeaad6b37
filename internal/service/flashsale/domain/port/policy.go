// internal/service/flashsale/domain/port/policy.go
package port

import (
	"context"

	"pulsecart/internal/service/flashsale/domain"
)

// PurchasePolicy 是下单前的准入规则（例如单笔限购数量）。
// 违反规则返回 domain.ErrPolicyViolation（可包装），属于校验类错误：
// 立即拒绝，既不入队也不重试。
type PurchasePolicy interface {
	Evaluate(ctx context.Context, intent *domain.PurchaseIntent) error
}
