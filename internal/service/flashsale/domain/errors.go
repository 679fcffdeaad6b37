// internal/service/flashsale/domain/errors.go
package domain

import "errors"

// 预定义的业务错误。它们是预期内的业务结果，调用方用 errors.Is 判别，
// 而不是当作需要中断流程的异常。
var (
	ErrInvalidQuantity     = errors.New("quantity must be greater than zero")
	ErrProductNotFound     = errors.New("product not found")
	ErrOutOfStock          = errors.New("product is out of stock")
	ErrPolicyViolation     = errors.New("purchase rejected by admission policy")
	ErrStockNotInitialized = errors.New("stock counter not initialized")
	ErrAcceptanceFailed    = errors.New("purchase intent could not be enqueued")
	ErrIntentCancelled     = errors.New("purchase intent was cancelled by requester")

	// ErrLedgerCorrupted 表示某个商品的计数器已不可信，
	// 该商品的准入必须停止，等待人工介入。
	ErrLedgerCorrupted = errors.New("stock ledger corrupted")
)

// IsBusinessRejection 判断一个错误是否是终态业务拒绝。
// 业务拒绝不重试：重试不会让库存凭空变多。
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrPolicyViolation) ||
		errors.Is(err, ErrIntentCancelled)
}

// FailureReason 把业务错误翻译为对外暴露的原因码。
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, ErrPolicyViolation):
		return "POLICY_VIOLATION"
	case errors.Is(err, ErrIntentCancelled):
		return "CANCELLED"
	case errors.Is(err, ErrLedgerCorrupted):
		return "LEDGER_CORRUPTED"
	default:
		return "INTERNAL_ERROR"
	}
}
