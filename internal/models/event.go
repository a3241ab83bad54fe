package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события, публикуемого в Kafka
type EventType string

const (
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeCouponRedeemed     EventType = "coupon.redeemed"
)

// Event представляет событие в системе
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// OrderStatusChangedData содержит полезную нагрузку события смены статуса.
type OrderStatusChangedData struct {
	OrderID      string      `json:"order_id"`
	OldStatus    OrderStatus `json:"old_status"`
	NewStatus    OrderStatus `json:"new_status"`
	Reason       string      `json:"reason,omitempty"`
	RefundAmount *float64    `json:"refund_amount,omitempty"`
}

// CouponRedeemedData содержит полезную нагрузку события применения купона.
type CouponRedeemedData struct {
	Code           string  `json:"code"`
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	OrderID        *string `json:"order_id,omitempty"`
	SessionID      *string `json:"session_id,omitempty"`
}
