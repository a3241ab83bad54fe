package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// CouponRepository реализует CouponGateway поверх PostgreSQL.
type CouponRepository struct {
	db *database.DB
}

// NewCouponRepository создает репозиторий купонов.
func NewCouponRepository(db *database.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func couponNotFound(err error) error {
	return apperror.WithCode(apperror.KindNotFound, apperror.CodeCouponNotFound, "coupon not found", err)
}

// FindActiveByCode ищет активный купон по нормализованному коду.
// Отсутствующий и неактивный купоны неразличимы для вызывающего кода.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `
		SELECT code, type, value, active, created_at, updated_at
		FROM coupons
		WHERE code = $1 AND active = TRUE
	`

	c := &models.Coupon{}
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&c.Code, &c.Type, &c.Value, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.WithCode(apperror.KindNotFound, apperror.CodeInvalidCoupon, "invalid or inactive coupon code", err)
		}
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}
	return c, nil
}

// GetCoupon возвращает купон по коду независимо от активности.
func (r *CouponRepository) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	query := `
		SELECT code, type, value, active, created_at, updated_at
		FROM coupons
		WHERE code = $1
	`

	c := &models.Coupon{}
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&c.Code, &c.Type, &c.Value, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, couponNotFound(err)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

// CreateCoupon сохраняет новый купон.
func (r *CouponRepository) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	query := `
		INSERT INTO coupons (code, type, value, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query, c.Code, c.Type, c.Value, c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperror.WithCode(apperror.KindConflict, apperror.CodeCouponExists, "coupon code already exists", err)
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

// UpdateCoupon обновляет параметры купона и возвращает новую версию.
func (r *CouponRepository) UpdateCoupon(ctx context.Context, code string, req *models.UpdateCouponRequest, updatedAt time.Time) (*models.Coupon, error) {
	query := `
		UPDATE coupons
		SET type = $1, value = $2, active = $3, updated_at = $4
		WHERE code = $5
		RETURNING code, type, value, active, created_at, updated_at
	`

	c := &models.Coupon{}
	err := r.db.QueryRowContext(ctx, query, req.Type, req.Value, req.Active, updatedAt, code).
		Scan(&c.Code, &c.Type, &c.Value, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, couponNotFound(err)
		}
		return nil, fmt.Errorf("failed to update coupon: %w", err)
	}
	return c, nil
}

// DeleteCoupon удаляет купон.
func (r *CouponRepository) DeleteCoupon(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM coupons WHERE code = $1", code)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return couponNotFound(nil)
	}
	return nil
}

// ListCoupons возвращает список купонов, новые первыми.
func (r *CouponRepository) ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT code, type, value, active, created_at, updated_at
		FROM coupons
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*models.Coupon{}
	for rows.Next() {
		c := &models.Coupon{}
		if err := rows.Scan(&c.Code, &c.Type, &c.Value, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}
	return coupons, nil
}

// InsertRedemption записывает применение купона. Повтор с тем же ключом ничего не меняет,
// возвращаемый флаг сообщает, была ли вставлена новая строка.
func (r *CouponRepository) InsertRedemption(ctx context.Context, red *models.CouponRedemption) (bool, error) {
	query := `
		INSERT INTO coupon_redemptions (id, redemption_key, code, subtotal, discount_amount, order_id, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (redemption_key) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		red.ID, red.RedemptionKey, red.Code, red.Subtotal, red.DiscountAmount, red.OrderID, red.SessionID, red.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record coupon redemption: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
