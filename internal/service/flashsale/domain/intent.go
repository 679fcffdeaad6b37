// internal/service/flashsale/domain/intent.go
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// IntentState 定义了购买意向的生命周期状态。
type IntentState string

const (
	IntentQueued           IntentState = "QUEUED"            // 已入队，等待消费
	IntentProcessing       IntentState = "PROCESSING"        // 工作协程正在处理
	IntentSucceeded        IntentState = "SUCCEEDED"         // 预订成功（终态）
	IntentRejectedTerminal IntentState = "REJECTED_TERMINAL" // 业务拒绝（终态）
	IntentDeadLettered     IntentState = "DEAD_LETTERED"     // 重试耗尽进入死信（终态）
)

// PurchaseIntent 是请求队列上的工作单元。
// Attempt 从 0 开始，只有重试协调器会递增它。
type PurchaseIntent struct {
	TrackingID  string      `json:"trackingId"`
	ProductID   string      `json:"productId"`
	Quantity    int64       `json:"quantity"`
	RequesterID string      `json:"requesterId"`
	Attempt     int         `json:"attempt"`
	EnqueuedAt  time.Time   `json:"enqueuedAt"`
	State       IntentState `json:"state"`
}

// NewPurchaseIntent 创建一个处于初始 QUEUED 状态的购买意向。
func NewPurchaseIntent(productID string, quantity int64, requesterID string) *PurchaseIntent {
	return &PurchaseIntent{
		TrackingID:  uuid.New().String(),
		ProductID:   productID,
		Quantity:    quantity,
		RequesterID: requesterID,
		Attempt:     0,
		EnqueuedAt:  time.Now(),
		State:       IntentQueued,
	}
}

// MarkProcessing 把意向从队列态转入处理态。
func (i *PurchaseIntent) MarkProcessing() error {
	if i.State != IntentQueued {
		return errors.New("intent can only start processing from queued state")
	}
	i.State = IntentProcessing
	return nil
}

// MarkSucceeded 标记预订成功，终态。
func (i *PurchaseIntent) MarkSucceeded() error {
	if i.State != IntentProcessing {
		return errors.New("intent can only succeed from processing state")
	}
	i.State = IntentSucceeded
	return nil
}

// MarkRejectedTerminal 标记业务拒绝，终态，不会重试。
func (i *PurchaseIntent) MarkRejectedTerminal() error {
	if i.State != IntentProcessing {
		return errors.New("intent can only be rejected from processing state")
	}
	i.State = IntentRejectedTerminal
	return nil
}

// MarkRetry 在瞬时失败后把意向送回队列态，并累加尝试次数。
func (i *PurchaseIntent) MarkRetry() error {
	if i.State != IntentProcessing {
		return errors.New("intent can only be retried from processing state")
	}
	i.Attempt++
	i.State = IntentQueued
	return nil
}

// MarkDeadLettered 标记重试耗尽，终态。
// 和 MarkRetry 一样记入最后这次失败的尝试，死信记录里能看到总尝试次数。
func (i *PurchaseIntent) MarkDeadLettered() error {
	if i.State != IntentProcessing {
		return errors.New("intent can only be dead-lettered from processing state")
	}
	i.Attempt++
	i.State = IntentDeadLettered
	return nil
}

// MarkAbandoned 把已回到队列态、却无法重新入队的意向直接转入死信。
// 这次失败的尝试已由 MarkRetry 记入，这里不再累加。
func (i *PurchaseIntent) MarkAbandoned() error {
	if i.State != IntentQueued {
		return errors.New("intent can only be abandoned from queued state")
	}
	i.State = IntentDeadLettered
	return nil
}

// IsTerminal 判断意向是否已到达终态。
func (i *PurchaseIntent) IsTerminal() bool {
	switch i.State {
	case IntentSucceeded, IntentRejectedTerminal, IntentDeadLettered:
		return true
	}
	return false
}

// DeadLetter 是死信槽中的一条记录：原始消息加上最终失败原因。
// 死信不会被自动重试，需要人工检视后回放。
type DeadLetter struct {
	Intent             PurchaseIntent `json:"intent"`
	FinalFailureReason string         `json:"finalFailureReason"`
	LastAttemptAt      time.Time      `json:"lastAttemptAt"`
}
