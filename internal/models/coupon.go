package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponType описывает тип скидки купона.
type CouponType string

const (
	CouponTypePercent CouponType = "percent"
	CouponTypeFlat    CouponType = "flat"
)

// Coupon представляет купон на скидку. Code всегда хранится в верхнем регистре.
type Coupon struct {
	Code      string     `json:"code" db:"code"`
	Type      CouponType `json:"type" db:"type"`
	Value     float64    `json:"value" db:"value"`
	Active    bool       `json:"active" db:"active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// CouponRedemption фиксирует факт применения купона к корзине или заказу.
type CouponRedemption struct {
	ID             uuid.UUID `json:"id" db:"id"`
	RedemptionKey  string    `json:"-" db:"redemption_key"`
	Code           string    `json:"code" db:"code"`
	Subtotal       float64   `json:"subtotal" db:"subtotal"`
	DiscountAmount float64   `json:"discount_amount" db:"discount_amount"`
	OrderID        *string   `json:"order_id,omitempty" db:"order_id"`
	SessionID      *string   `json:"session_id,omitempty" db:"session_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ValidateCouponRequest описывает запрос на проверку купона.
type ValidateCouponRequest struct {
	Code     string  `json:"code"`
	Subtotal float64 `json:"subtotal"`
}

// ValidateCouponResponse описывает результат применения купона к подытогу.
type ValidateCouponResponse struct {
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discountAmount"`
	Message        string  `json:"message"`
}

// RecordRedemptionRequest описывает запрос на фиксацию применения купона.
type RecordRedemptionRequest struct {
	Code           string  `json:"code"`
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	OrderID        *string `json:"orderId,omitempty"`
	SessionID      *string `json:"sessionId,omitempty"`
}

// CreateCouponRequest описывает запрос на создание купона.
type CreateCouponRequest struct {
	Code   string     `json:"code"`
	Type   CouponType `json:"type"`
	Value  float64    `json:"value"`
	Active bool       `json:"active"`
}

// UpdateCouponRequest описывает запрос на обновление купона.
type UpdateCouponRequest struct {
	Type   CouponType `json:"type"`
	Value  float64    `json:"value"`
	Active bool       `json:"active"`
}
