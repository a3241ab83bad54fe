package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/go-chi/chi/v5"
)

// OrderHandler обрабатывает админские операции над заказами.
type OrderHandler struct {
	service OrderService
	log     *logger.Logger
}

// NewOrderHandler создает новый обработчик заказов
func NewOrderHandler(service OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		log:     log,
	}
}

// OrderResponse оборачивает заказ после перехода статуса.
type OrderResponse struct {
	Order *models.Order `json:"order"`
}

// ListOrders возвращает заказы с фильтром по статусу.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, h.log, err, "Invalid pagination")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list orders")
		return
	}

	writeJSONResponse(w, http.StatusOK, orders)
}

// GetOrder возвращает заказ по ID.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}

	writeJSONResponse(w, http.StatusOK, order)
}

// CancelOrder отменяет заказ.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CancelOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Invalid request body")
		return
	}

	order, err := h.service.CancelOrder(r.Context(), chi.URLParam(r, "orderID"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to cancel order")
		return
	}

	writeJSONResponse(w, http.StatusOK, OrderResponse{Order: order})
}

// RefundOrder оформляет возврат денег по заказу.
func (h *OrderHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	var req models.RefundOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Invalid request body")
		return
	}

	order, err := h.service.RefundOrder(r.Context(), chi.URLParam(r, "orderID"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to refund order")
		return
	}

	writeJSONResponse(w, http.StatusOK, OrderResponse{Order: order})
}

// ReturnOrder оформляет возврат товара.
func (h *OrderHandler) ReturnOrder(w http.ResponseWriter, r *http.Request) {
	var req models.ReturnOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Invalid request body")
		return
	}

	order, err := h.service.ReturnOrder(r.Context(), chi.URLParam(r, "orderID"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to return order")
		return
	}

	writeJSONResponse(w, http.StatusOK, OrderResponse{Order: order})
}

// GetOrderHistory возвращает журнал статусов, новые записи первыми.
func (h *OrderHandler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.GetOrderHistory(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load order history")
		return
	}
	if history == nil {
		history = []*models.OrderStatusHistory{}
	}

	writeJSONResponse(w, http.StatusOK, history)
}
