package repository

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/database"
	"storefront/internal/models"
)

// ReportRepository выполняет агрегирующие выборки для отчётов.
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository создает репозиторий отчётов.
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// StatusCounts считает заказы, созданные в интервале, по текущему статусу.
func (r *ReportRepository) StatusCounts(ctx context.Context, from, to time.Time) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM orders
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return counts, nil
}

// RefundedAmount суммирует возвраты средств, оформленные в интервале.
func (r *ReportRepository) RefundedAmount(ctx context.Context, from, to time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(refund_amount), 0)
		FROM orders
		WHERE status = $1 AND updated_at BETWEEN $2 AND $3
	`

	var total float64
	if err := r.db.QueryRowContext(ctx, query, models.OrderStatusRefunded, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum refunds: %w", err)
	}
	return total, nil
}

// CouponUsage агрегирует применения купонов в интервале.
func (r *ReportRepository) CouponUsage(ctx context.Context, from, to time.Time) ([]models.CouponUsageReport, error) {
	query := `
		SELECT code, COUNT(*) AS redemptions, COALESCE(SUM(discount_amount), 0) AS total_discount
		FROM coupon_redemptions
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY code
		ORDER BY redemptions DESC, code
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate coupon usage: %w", err)
	}
	defer rows.Close()

	usage := []models.CouponUsageReport{}
	for rows.Next() {
		var u models.CouponUsageReport
		if err := rows.Scan(&u.Code, &u.Redemptions, &u.TotalDiscount); err != nil {
			return nil, fmt.Errorf("failed to scan coupon usage: %w", err)
		}
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupon usage: %w", err)
	}
	return usage, nil
}
