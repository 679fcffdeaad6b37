// internal/service/flashsale/application/dto.go
package application

import "pulsecart/internal/service/flashsale/domain"

// PurchaseRequest 是两个网关共用的购买提交载体。
type PurchaseRequest struct {
	ProductID   string `json:"productId"`
	Quantity    int64  `json:"quantity"`
	RequesterID string `json:"requesterId"`
}

// PurchaseResponse 是同步路径的最终应答。
type PurchaseResponse struct {
	Success        bool   `json:"success"`
	ReservationID  string `json:"reservationId,omitempty"`
	RemainingStock int64  `json:"remainingStock,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// AsyncPurchaseResponse 只说明请求是否被接收；
// 真正的结果通过 Outcome Event 流异步送达。
type AsyncPurchaseResponse struct {
	Accepted   bool   `json:"accepted"`
	TrackingID string `json:"trackingId,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ReserveCommand 是预订引擎的输入。TrackingID/Attempt 只在异步路径有值。
type ReserveCommand struct {
	ProductID   string
	Quantity    int64
	RequesterID string
	TrackingID  string
	Attempt     int
}

// ToIntent 从请求构造一个新的购买意向。
func (r *PurchaseRequest) ToIntent() *domain.PurchaseIntent {
	return domain.NewPurchaseIntent(r.ProductID, r.Quantity, r.RequesterID)
}
