// internal/service/flashsale/domain/reservation.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reservation 是一次成功的库存占用，创建后不可变。
// RemainingStock 是提交那一刻的库存快照，不保证仍然是当前值。
type Reservation struct {
	ID             string
	ProductID      string
	RequesterID    string
	Quantity       int64
	RemainingStock int64
	CreatedAt      time.Time
}

// NewReservation 铸造一个新的预订凭证。
func NewReservation(productID, requesterID string, quantity, remaining int64) *Reservation {
	return &Reservation{
		ID:             uuid.New().String(),
		ProductID:      productID,
		RequesterID:    requesterID,
		Quantity:       quantity,
		RemainingStock: remaining,
		CreatedAt:      time.Now(),
	}
}
