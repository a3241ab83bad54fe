package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/redis"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultOrderCacheTTL = 15 * time.Minute

// PartialFailureWarning описывает обновлённый заказ, для которого не удалось записать историю.
// Запрос при этом считается успешным, пропуск восстанавливает Reconciler.
type PartialFailureWarning struct {
	OrderID   string
	OldStatus models.OrderStatus
	NewStatus models.OrderStatus
	Err       error
}

func (w *PartialFailureWarning) Error() string {
	return "status updated but history append failed for order " + w.OrderID + ": " + w.Err.Error()
}

func (w *PartialFailureWarning) Unwrap() error { return w.Err }

// OrderService выполняет админские переходы статуса заказа и ведёт журнал переходов.
type OrderService struct {
	orders    repository.TxOrderGateway
	cache     Cache
	publisher EventPublisher
	log       *logger.Logger

	atomic   bool
	strict   bool
	cacheTTL time.Duration
	now      func() time.Time
}

// NewOrderService создает сервис заказов. cache и publisher могут быть nil.
func NewOrderService(orders repository.TxOrderGateway, cache Cache, publisher EventPublisher, log *logger.Logger, cfg *config.OrdersConfig) *OrderService {
	s := &OrderService{
		orders:    orders,
		cache:     cache,
		publisher: publisher,
		log:       log,
		atomic:    true,
		cacheTTL:  defaultOrderCacheTTL,
		now:       time.Now,
	}
	if cfg != nil {
		s.atomic = cfg.AtomicHistory
		s.strict = cfg.StrictTransitions
		if cfg.CacheTTLMinutes > 0 {
			s.cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
		}
	}
	return s
}

// transition описывает один админский переход статуса
type transition struct {
	orderID   string
	target    models.OrderStatus
	reason    *string
	adminNote *string
	operation string
	apply     func(upd *models.OrderUpdate)
}

// CancelOrder отменяет заказ
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, req *models.CancelOrderRequest) (*models.Order, error) {
	reason := optional(req.CancelReason)
	return s.transition(ctx, transition{
		orderID:   orderID,
		target:    models.OrderStatusCancelled,
		reason:    reason,
		adminNote: optional(req.AdminNote),
		operation: "cancel_order",
		apply: func(upd *models.OrderUpdate) {
			upd.CancelReason = reason
		},
	})
}

// RefundOrder оформляет возврат средств. Сумма возврата обязательна.
func (s *OrderService) RefundOrder(ctx context.Context, orderID string, req *models.RefundOrderRequest) (*models.Order, error) {
	if req.RefundAmount == nil {
		return nil, missingField("refundAmount is required")
	}
	amount := *req.RefundAmount
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, malformed("refundAmount must be a non-negative number")
	}

	reason := optional(req.RefundReason)
	return s.transition(ctx, transition{
		orderID:   orderID,
		target:    models.OrderStatusRefunded,
		reason:    reason,
		adminNote: optional(req.AdminNote),
		operation: "refund_order",
		apply: func(upd *models.OrderUpdate) {
			upd.RefundAmount = &amount
			upd.RefundReason = reason
		},
	})
}

// ReturnOrder оформляет возврат товара
func (s *OrderService) ReturnOrder(ctx context.Context, orderID string, req *models.ReturnOrderRequest) (*models.Order, error) {
	reason := optional(req.ReturnReason)
	return s.transition(ctx, transition{
		orderID:   orderID,
		target:    models.OrderStatusReturned,
		reason:    reason,
		adminNote: optional(req.AdminNote),
		operation: "return_order",
		apply: func(upd *models.OrderUpdate) {
			upd.ReturnReason = reason
		},
	})
}

// transition читает заказ, применяет изменения и добавляет ровно одну запись истории.
func (s *OrderService) transition(ctx context.Context, t transition) (*models.Order, error) {
	t.orderID = strings.TrimSpace(t.orderID)
	if t.orderID == "" {
		return nil, missingField("orderId is required")
	}

	log := s.log.WithFields(map[string]interface{}{
		"order_id":   t.orderID,
		"new_status": t.target,
		"operation":  t.operation,
	})

	var updated *models.Order
	var oldStatus models.OrderStatus

	step := func(gw repository.OrderGateway) (*models.OrderStatusHistory, error) {
		current, err := gw.GetOrder(ctx, t.orderID)
		if err != nil {
			return nil, err
		}
		oldStatus = current.Status

		if current.Status != models.OrderStatusPending {
			if s.strict {
				return nil, apperror.WithCode(apperror.KindConflict, apperror.CodeInvalidTransition,
					"order status "+string(current.Status)+" does not allow this transition", nil)
			}
			log.WithField("old_status", current.Status).Warn("Transition applied to non-pending order")
		}

		now := s.now().UTC()
		upd := &models.OrderUpdate{
			Status:     t.target,
			AdminNotes: t.adminNote,
			UpdatedAt:  now,
		}
		t.apply(upd)

		updated, err = gw.UpdateOrder(ctx, t.orderID, upd)
		if err != nil {
			return nil, err
		}

		return &models.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   t.orderID,
			OldStatus: oldStatus,
			NewStatus: t.target,
			Reason:    t.reason,
			AdminNote: t.adminNote,
			CreatedBy: models.HistoryCreatedByAdmin,
			CreatedAt: now,
		}, nil
	}

	if s.atomic {
		err := s.orders.WithinTx(ctx, func(gw repository.OrderGateway) error {
			entry, err := step(gw)
			if err != nil {
				return err
			}
			return gw.InsertHistory(ctx, entry)
		})
		if err != nil {
			return nil, s.transitionError(log, t.operation, err)
		}
	} else {
		entry, err := step(s.orders)
		if err != nil {
			return nil, s.transitionError(log, t.operation, err)
		}
		if err := s.orders.InsertHistory(ctx, entry); err != nil {
			warning := &PartialFailureWarning{OrderID: t.orderID, OldStatus: oldStatus, NewStatus: t.target, Err: err}
			metrics.HistoryAppendFailuresTotal.Inc()
			log.WithError(warning).WithField("old_status", oldStatus).Warn("Order status history append failed")
		}
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(t.target)).Inc()
	log.WithField("old_status", oldStatus).Info("Order status changed")

	s.afterTransition(ctx, updated, oldStatus, t)
	return updated, nil
}

func (s *OrderService) transitionError(log *logrus.Entry, operation string, err error) error {
	if apperror.Is(err, apperror.KindNotFound) || apperror.Is(err, apperror.KindConflict) || apperror.Is(err, apperror.KindValidation) {
		log.WithError(err).Info("Order transition rejected")
		return err
	}
	metrics.OperationErrorsTotal.WithLabelValues(operation).Inc()
	log.WithError(err).Error("Order transition failed")
	return apperror.Persistence("failed to update order status", err)
}

// afterTransition выполняет побочные эффекты, которые не влияют на результат перехода.
func (s *OrderService) afterTransition(ctx context.Context, order *models.Order, oldStatus models.OrderStatus, t transition) {
	if s.cache != nil {
		keys := []string{
			redis.GenerateKey(redis.KeyPrefixOrder, t.orderID),
			redis.GenerateKey(redis.KeyPrefixHistory, t.orderID),
		}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			s.log.WithError(err).WithField("order_id", t.orderID).Warn("Failed to invalidate order cache")
		}
	}
	invalidateReports(ctx, s.cache, s.log)

	if s.publisher != nil {
		err := s.publisher.PublishOrderStatusChanged(models.OrderStatusChangedData{
			OrderID:      t.orderID,
			OldStatus:    oldStatus,
			NewStatus:    t.target,
			Reason:       deref(t.reason),
			RefundAmount: order.RefundAmount,
		})
		if err != nil {
			metrics.EventPublishFailuresTotal.WithLabelValues(string(models.EventTypeOrderStatusChanged)).Inc()
			s.log.WithError(err).WithField("order_id", t.orderID).Warn("Failed to publish order status event")
		}
	}
}

// GetOrder возвращает заказ, сначала пытаясь прочитать его из кеша
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, missingField("orderId is required")
	}

	key := redis.GenerateKey(redis.KeyPrefixOrder, orderID)
	if s.cache != nil {
		var cached models.Order
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithError(err).WithField("order_id", orderID).Warn("Failed to read order cache")
		}
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, err
		}
		return nil, apperror.Persistence("failed to get order", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, order, s.cacheTTL); err != nil {
			s.log.WithError(err).WithField("order_id", orderID).Warn("Failed to cache order")
		}
	}
	return order, nil
}

// ListOrders возвращает страницу заказов с необязательным фильтром по статусу
func (s *OrderService) ListOrders(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	if limit < 0 || offset < 0 {
		return nil, malformed("limit and offset must be non-negative")
	}

	var filter *models.OrderStatus
	if status != "" {
		st := models.OrderStatus(strings.ToUpper(strings.TrimSpace(status)))
		if !st.Valid() {
			return nil, malformed("unknown order status " + status)
		}
		filter = &st
	}

	orders, err := s.orders.ListOrders(ctx, filter, limit, offset)
	if err != nil {
		return nil, apperror.Persistence("failed to list orders", err)
	}
	return orders, nil
}

// GetOrderHistory возвращает журнал переходов заказа, новые записи первыми
func (s *OrderService) GetOrderHistory(ctx context.Context, orderID string) ([]*models.OrderStatusHistory, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, missingField("orderId is required")
	}

	key := redis.GenerateKey(redis.KeyPrefixHistory, orderID)
	if s.cache != nil {
		var cached []*models.OrderStatusHistory
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	if _, err := s.orders.GetOrder(ctx, orderID); err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, err
		}
		return nil, apperror.Persistence("failed to get order", err)
	}

	history, err := s.orders.ListHistory(ctx, orderID)
	if err != nil {
		return nil, apperror.Persistence("failed to get order history", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, history, s.cacheTTL); err != nil {
			s.log.WithError(err).WithField("order_id", orderID).Warn("Failed to cache order history")
		}
	}
	return history, nil
}

func missingField(msg string) error {
	return apperror.WithCode(apperror.KindValidation, apperror.CodeMissingField, msg, nil)
}

func optional(s string) *string {
	return trimmedOrNil(&s)
}
