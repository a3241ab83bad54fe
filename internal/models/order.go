package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
	OrderStatusReturned   OrderStatus = "RETURNED"
)

// HistoryCreatedByAdmin и HistoryCreatedByReconciler задают авторов записей истории.
const (
	HistoryCreatedByAdmin      = "admin"
	HistoryCreatedByReconciler = "reconciler"
)

// Valid сообщает, известен ли статус системе.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusRefunded, OrderStatusReturned:
		return true
	}
	return false
}

// Order представляет заказ в системе
type Order struct {
	ID             string      `json:"id" db:"id"`
	Status         OrderStatus `json:"status" db:"status"`
	SubtotalAmount float64     `json:"subtotal_amount" db:"subtotal_amount"`
	ShippingCost   float64     `json:"shipping_cost" db:"shipping_cost"`
	TotalAmount    float64     `json:"total_amount" db:"total_amount"`
	RefundAmount   *float64    `json:"refund_amount,omitempty" db:"refund_amount"`
	CancelReason   *string     `json:"cancel_reason,omitempty" db:"cancel_reason"`
	ReturnReason   *string     `json:"return_reason,omitempty" db:"return_reason"`
	RefundReason   *string     `json:"refund_reason,omitempty" db:"refund_reason"`
	AdminNotes     *string     `json:"admin_notes,omitempty" db:"admin_notes"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderUpdate описывает изменения, которые переход статуса вносит в заказ.
// Nil-поля не изменяются.
type OrderUpdate struct {
	Status       OrderStatus
	RefundAmount *float64
	CancelReason *string
	ReturnReason *string
	RefundReason *string
	AdminNotes   *string
	UpdatedAt    time.Time
}

// OrderStatusHistory описывает запись журнала переходов статуса. Только добавляется.
type OrderStatusHistory struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	OrderID   string      `json:"order_id" db:"order_id"`
	OldStatus OrderStatus `json:"old_status" db:"old_status"`
	NewStatus OrderStatus `json:"new_status" db:"new_status"`
	Reason    *string     `json:"reason,omitempty" db:"reason"`
	AdminNote *string     `json:"admin_note,omitempty" db:"admin_note"`
	CreatedBy string      `json:"created_by" db:"created_by"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// CancelOrderRequest представляет запрос на отмену заказа
type CancelOrderRequest struct {
	CancelReason string `json:"cancelReason"`
	AdminNote    string `json:"adminNote"`
}

// RefundOrderRequest представляет запрос на возврат средств
type RefundOrderRequest struct {
	RefundAmount *float64 `json:"refundAmount"`
	RefundReason string   `json:"refundReason"`
	AdminNote    string   `json:"adminNote"`
}

// ReturnOrderRequest представляет запрос на возврат товара
type ReturnOrderRequest struct {
	ReturnReason string `json:"returnReason"`
	AdminNote    string `json:"adminNote"`
}
