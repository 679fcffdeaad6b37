// internal/service/flashsale/domain/event.go
package domain

import "time"

// ReservationOutcome 是每次预订尝试落定后发布的事件（成功或终态失败）。
// 它只服务于实时可见性，核心正确性不依赖任何订阅者的存在。
type ReservationOutcome struct {
	ProductID      string    `json:"productId"`
	RemainingStock int64     `json:"remainingStock"` // 对外展示值，已钳制为非负
	ReservationID  string    `json:"reservationId,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	RequesterID    string    `json:"requesterId,omitempty"`
	TrackingID     string    `json:"trackingId,omitempty"`
	Attempt        int       `json:"attempt"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Success 判断这次事件是否对应一次成功的预订。
func (o *ReservationOutcome) Success() bool {
	return o.ReservationID != ""
}

// NewSuccessOutcome 由一个成功的预订构造事件。
func NewSuccessOutcome(r *Reservation, trackingID string, attempt int) *ReservationOutcome {
	return &ReservationOutcome{
		ProductID:      r.ProductID,
		RemainingStock: r.RemainingStock,
		ReservationID:  r.ID,
		RequesterID:    r.RequesterID,
		TrackingID:     trackingID,
		Attempt:        attempt,
		OccurredAt:     r.CreatedAt,
	}
}

// NewFailureOutcome 由一次失败的预订尝试构造事件。
// remaining 为展示值，调用方负责把瞬时负值钳制为零。
func NewFailureOutcome(productID, requesterID, trackingID string, remaining int64, err error, attempt int) *ReservationOutcome {
	if remaining < 0 {
		remaining = 0
	}
	return &ReservationOutcome{
		ProductID:      productID,
		RemainingStock: remaining,
		Reason:         FailureReason(err),
		RequesterID:    requesterID,
		TrackingID:     trackingID,
		Attempt:        attempt,
		OccurredAt:     time.Now(),
	}
}
