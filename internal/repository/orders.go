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
)

const orderColumns = `id, status, subtotal_amount, shipping_cost, total_amount, refund_amount,
	cancel_reason, return_reason, refund_reason, admin_notes, created_at, updated_at`

// OrderRepository реализует OrderGateway поверх PostgreSQL.
type OrderRepository struct {
	db *database.DB
	q  querier
}

// NewOrderRepository создает репозиторий заказов.
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db, q: db}
}

// WithinTx выполняет fn с репозиторием, привязанным к одной транзакции.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(gw OrderGateway) error) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		return fn(&OrderRepository{db: r.db, q: tx})
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID, &o.Status, &o.SubtotalAmount, &o.ShippingCost, &o.TotalAmount, &o.RefundAmount,
		&o.CancelReason, &o.ReturnReason, &o.RefundReason, &o.AdminNotes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func orderNotFound(err error) error {
	return apperror.WithCode(apperror.KindNotFound, apperror.CodeOrderNotFound, "order not found", err)
}

// GetOrder возвращает заказ по ID
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orderNotFound(err)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListOrders возвращает заказы, новые первыми, с необязательным фильтром по статусу
func (r *OrderRepository) ListOrders(ctx context.Context, status *models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// UpdateOrder применяет изменения перехода статуса и возвращает обновлённый заказ.
// Nil-поля OrderUpdate сохраняют текущее значение колонки.
func (r *OrderRepository) UpdateOrder(ctx context.Context, orderID string, upd *models.OrderUpdate) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = $1,
		    refund_amount = COALESCE($2, refund_amount),
		    cancel_reason = COALESCE($3, cancel_reason),
		    return_reason = COALESCE($4, return_reason),
		    refund_reason = COALESCE($5, refund_reason),
		    admin_notes = COALESCE($6, admin_notes),
		    updated_at = $7
		WHERE id = $8
		RETURNING ` + orderColumns

	order, err := scanOrder(r.q.QueryRowContext(ctx, query,
		upd.Status, upd.RefundAmount, upd.CancelReason, upd.ReturnReason, upd.RefundReason, upd.AdminNotes,
		upd.UpdatedAt, orderID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orderNotFound(err)
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return order, nil
}

// InsertHistory добавляет запись в журнал статусов
func (r *OrderRepository) InsertHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	query := `
		INSERT INTO order_status_history (id, order_id, old_status, new_status, reason, admin_note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.ExecContext(ctx, query,
		entry.ID, entry.OrderID, entry.OldStatus, entry.NewStatus, entry.Reason, entry.AdminNote, entry.CreatedBy, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order status history: %w", err)
	}
	return nil
}

// ListHistory возвращает историю статусов заказа, новые записи первыми
func (r *OrderRepository) ListHistory(ctx context.Context, orderID string) ([]*models.OrderStatusHistory, error) {
	query := `
		SELECT id, order_id, old_status, new_status, reason, admin_note, created_by, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order status history: %w", err)
	}
	defer rows.Close()

	entries := []*models.OrderStatusHistory{}
	for rows.Next() {
		e := &models.OrderStatusHistory{}
		if err := rows.Scan(&e.ID, &e.OrderID, &e.OldStatus, &e.NewStatus, &e.Reason, &e.AdminNote, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order status history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order status history: %w", err)
	}
	return entries, nil
}

// FindUnreconciled находит заказы, чей текущий статус не совпадает с последней записью истории.
// Заказы, обновлённые не раньше updatedBefore, пропускаются: их запись истории может быть ещё в пути.
func (r *OrderRepository) FindUnreconciled(ctx context.Context, updatedBefore time.Time, limit int) ([]UnreconciledOrder, error) {
	query := `
		SELECT o.id, o.status, h.new_status, o.updated_at
		FROM orders o
		LEFT JOIN LATERAL (
			SELECT new_status
			FROM order_status_history
			WHERE order_id = o.id
			ORDER BY created_at DESC
			LIMIT 1
		) h ON TRUE
		WHERE o.status <> $1
		  AND (h.new_status IS NULL OR h.new_status <> o.status)
		  AND o.updated_at < $2
		ORDER BY o.updated_at
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, models.OrderStatusPending, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find unreconciled orders: %w", err)
	}
	defer rows.Close()

	var result []UnreconciledOrder
	for rows.Next() {
		var u UnreconciledOrder
		if err := rows.Scan(&u.OrderID, &u.Status, &u.LastHistoryStatus, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unreconciled order: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unreconciled orders: %w", err)
	}
	return result, nil
}
