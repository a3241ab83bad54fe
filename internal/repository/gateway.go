// Package repository содержит шлюз к PostgreSQL для заказов, истории статусов и купонов.
package repository

import (
	"context"
	"database/sql"
	"time"

	"storefront/internal/models"
)

// querier покрывает общие методы *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// OrderGateway описывает операции чтения и записи заказов и их истории.
type OrderGateway interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, status *models.OrderStatus, limit, offset int) ([]*models.Order, error)
	UpdateOrder(ctx context.Context, orderID string, upd *models.OrderUpdate) (*models.Order, error)
	InsertHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID string) ([]*models.OrderStatusHistory, error)
}

// TxOrderGateway умеет выполнять несколько вызовов в одной транзакции.
type TxOrderGateway interface {
	OrderGateway
	WithinTx(ctx context.Context, fn func(gw OrderGateway) error) error
}

// UnreconciledOrder: заказ, последний статус которого не отражён в истории.
type UnreconciledOrder struct {
	OrderID           string
	Status            models.OrderStatus
	LastHistoryStatus *models.OrderStatus
	UpdatedAt         time.Time
}

// HistoryReconciler находит и дописывает пропущенные записи истории.
type HistoryReconciler interface {
	FindUnreconciled(ctx context.Context, updatedBefore time.Time, limit int) ([]UnreconciledOrder, error)
	InsertHistory(ctx context.Context, entry *models.OrderStatusHistory) error
}

// CouponGateway описывает операции над купонами и журналом их применений.
type CouponGateway interface {
	FindActiveByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	UpdateCoupon(ctx context.Context, code string, req *models.UpdateCouponRequest, updatedAt time.Time) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
	ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error)
	InsertRedemption(ctx context.Context, r *models.CouponRedemption) (bool, error)
}

// ReportGateway описывает агрегирующие выборки для отчёта по жизненному циклу.
type ReportGateway interface {
	StatusCounts(ctx context.Context, from, to time.Time) (map[string]int, error)
	RefundedAmount(ctx context.Context, from, to time.Time) (float64, error)
	CouponUsage(ctx context.Context, from, to time.Time) ([]models.CouponUsageReport, error)
}
