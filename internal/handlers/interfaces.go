package handlers

import (
	"context"

	"storefront/internal/models"
)

// ----- Coupons -----

type CouponService interface {
	ValidateCoupon(ctx context.Context, req *models.ValidateCouponRequest) (*models.ValidateCouponResponse, error)
	RecordCouponRedemption(ctx context.Context, req *models.RecordRedemptionRequest) error
	CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error)
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	UpdateCoupon(ctx context.Context, code string, req *models.UpdateCouponRequest) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
	ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error)
}

// ----- Orders -----

type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, status string, limit, offset int) ([]*models.Order, error)
	CancelOrder(ctx context.Context, orderID string, req *models.CancelOrderRequest) (*models.Order, error)
	RefundOrder(ctx context.Context, orderID string, req *models.RefundOrderRequest) (*models.Order, error)
	ReturnOrder(ctx context.Context, orderID string, req *models.ReturnOrderRequest) (*models.Order, error)
	GetOrderHistory(ctx context.Context, orderID string) ([]*models.OrderStatusHistory, error)
}

// ----- Reports -----

type ReportProvider interface {
	GetLifecycleReport(ctx context.Context, filter *models.ReportFilter) (*models.LifecycleReport, error)
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}

// KafkaHealthCheck проверяет доступность брокеров.
type KafkaHealthCheck func(brokers []string) error
