// internal/service/flashsale/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/service/flashsale/application"
	"pulsecart/internal/service/flashsale/domain"
)

const serviceName = "flashsale-service"

var tracer = otel.Tracer(serviceName)

// PurchaseHandler 封装了 flashsale 服务的 HTTP 处理器。
// 同步与异步两条路径是同一个预订引擎前面的两扇门。
type PurchaseHandler struct {
	service     *application.ReservationService
	cancels     *application.CancelRegistry
	syncTimeout time.Duration
}

// NewPurchaseHandler 创建一个新的 HTTP 处理器实例
func NewPurchaseHandler(service *application.ReservationService, cancels *application.CancelRegistry, syncTimeout time.Duration) *PurchaseHandler {
	if syncTimeout <= 0 {
		syncTimeout = 2 * time.Second
	}
	return &PurchaseHandler{service: service, cancels: cancels, syncTimeout: syncTimeout}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *PurchaseHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/sync/purchase", h.handleSyncPurchase)
	mux.HandleFunc("/api/v1/async/purchase", h.handleAsyncPurchase)
	mux.HandleFunc("/api/v1/async/cancel", h.handleCancelIntent)
	mux.HandleFunc("/api/v1/stock", h.handleGetStock)
	mux.HandleFunc("/api/v1/admin/stock/seed", h.handleSeedStock)
	mux.HandleFunc("/api/v1/admin/stock/reset", h.handleResetStock)
}

// handleSyncPurchase 同步下单：在调用方可见的超时内阻塞到引擎返回。
// 超时返回 504，但调用方必须把超时理解为"结果未知"——
// 内部的预订尝试可能已经发生，at-most-once 在这里不被承诺。
func (h *PurchaseHandler) handleSyncPurchase(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "http.SyncPurchase")
	defer span.End()

	var req application.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.syncTimeout)
	defer cancel()

	type result struct {
		resp *application.PurchaseResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := h.service.ProcessPurchase(ctx, &req)
		done <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		// 超时竞态下预订可能已经完成；只告知未知，不断言失败
		writeJSON(w, http.StatusGatewayTimeout, map[string]interface{}{
			"success": false,
			"reason":  "TIMEOUT",
			"message": "outcome unknown: query current stock, do not assume failure",
		})
	case res := <-done:
		if res.err != nil {
			writeJSON(w, statusForError(res.err), res.resp)
			return
		}
		writeJSON(w, http.StatusOK, res.resp)
	}
}

// handleAsyncPurchase 异步下单：校验、入队、立即返回跟踪号。
func (h *PurchaseHandler) handleAsyncPurchase(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "http.AsyncPurchase")
	defer span.End()

	var req application.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.AcceptPurchase(ctx, &req)
	if err != nil {
		if errors.Is(err, domain.ErrAcceptanceFailed) {
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, statusForError(err), resp)
		return
	}

	// 202: 请求已接收，真正的结果通过事件流送达
	writeJSON(w, http.StatusAccepted, resp)
}

// handleCancelIntent 显式取消一条在途意向。
// 只是打标记：消息仍然会被消费，由工作协程在预订前识别并终止。
func (h *PurchaseHandler) handleCancelIntent(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("trackingId")
	if trackingID == "" {
		http.Error(w, "trackingId is required", http.StatusBadRequest)
		return
	}
	h.cancels.Cancel(trackingID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"trackingId": trackingID,
		"cancelled":  true,
	})
}

func (h *PurchaseHandler) handleGetStock(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	productID := r.URL.Query().Get("productId")
	if productID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}

	stock, err := h.service.GetStock(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"productId": productID,
		"stock":     stock,
	})
}

func (h *PurchaseHandler) handleSeedStock(w http.ResponseWriter, r *http.Request) {
	h.handleAdminStockOp(w, r, h.service.SeedStock)
}

func (h *PurchaseHandler) handleResetStock(w http.ResponseWriter, r *http.Request) {
	h.handleAdminStockOp(w, r, h.service.ResetStock)
}

// handleAdminStockOp 是 seed/reset 两个管理口的公共部分，纯透传无业务逻辑。
func (h *PurchaseHandler) handleAdminStockOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string, int64) error) {
	productID := r.URL.Query().Get("productId")
	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if productID == "" || err != nil || quantity < 0 {
		http.Error(w, "productId and non-negative quantity are required", http.StatusBadRequest)
		return
	}

	if err := op(r.Context(), productID, quantity); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Str("productId", productID).Msg("Admin stock operation failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"productId": productID,
		"quantity":  quantity,
	})
}

// statusForError 把业务错误映射为 HTTP 状态码：
// 校验类 4xx，库存冲突 409。
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrPolicyViolation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
