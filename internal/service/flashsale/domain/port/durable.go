// internal/service/flashsale/domain/port/durable.go
package port

import "pulsecart/internal/service/flashsale/domain"

// DurableSync 把成功的预订镜像到持久存储，用于崩溃恢复和报表。
// RecordReservation 必须是非阻塞的：持久化永远不做准入的门槛。
type DurableSync interface {
	RecordReservation(r *domain.Reservation)
}
