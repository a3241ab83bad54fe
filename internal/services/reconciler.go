package services

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/redis"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultReconcileBatch = 100
	defaultReconcileGrace = time.Minute
	reconciledReason      = "reconciled"
)

// Reconciler дописывает записи истории для заказов, чей текущий статус в ней не отражён.
type Reconciler struct {
	store     repository.HistoryReconciler
	cache     Cache
	log       *logger.Logger
	batchSize int
	interval  time.Duration
	grace     time.Duration
	now       func() time.Time
}

// NewReconciler создает Reconciler. cache может быть nil.
func NewReconciler(store repository.HistoryReconciler, cache Cache, log *logger.Logger, cfg *config.ReconcileConfig) *Reconciler {
	r := &Reconciler{
		store:     store,
		cache:     cache,
		log:       log,
		batchSize: defaultReconcileBatch,
		grace:     defaultReconcileGrace,
		now:       time.Now,
	}
	if cfg != nil {
		if cfg.GraceSeconds > 0 {
			r.grace = time.Duration(cfg.GraceSeconds) * time.Second
		}
		if cfg.BatchSize > 0 {
			r.batchSize = cfg.BatchSize
		}
		if cfg.IntervalSeconds > 0 {
			r.interval = time.Duration(cfg.IntervalSeconds) * time.Second
		}
	}
	return r
}

// Enabled сообщает, настроен ли периодический запуск
func (r *Reconciler) Enabled() bool {
	return r.interval > 0
}

// RunOnce обрабатывает одну пачку расхождений и возвращает число дописанных записей.
// Заказы моложе grace пропускаются, чтобы не дублировать запись, которую переход ещё не успел вставить.
// Ошибка вставки по одному заказу не прерывает обработку остальных.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.store.FindUnreconciled(ctx, r.now().Add(-r.grace), r.batchSize)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("reconcile").Inc()
		return 0, fmt.Errorf("failed to find unreconciled orders: %w", err)
	}

	backfilled := 0
	var firstErr error
	for _, o := range pending {
		oldStatus := models.OrderStatusPending
		if o.LastHistoryStatus != nil {
			oldStatus = *o.LastHistoryStatus
		}
		reason := reconciledReason
		entry := &models.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   o.OrderID,
			OldStatus: oldStatus,
			NewStatus: o.Status,
			Reason:    &reason,
			CreatedBy: models.HistoryCreatedByReconciler,
			CreatedAt: r.now().UTC(),
		}

		log := r.log.WithFields(map[string]interface{}{
			"order_id":   o.OrderID,
			"old_status": oldStatus,
			"new_status": o.Status,
		})
		if err := r.store.InsertHistory(ctx, entry); err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("reconcile").Inc()
			log.WithError(err).Error("Failed to backfill order status history")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to backfill history for order %s: %w", o.OrderID, err)
			}
			continue
		}

		backfilled++
		metrics.HistoryBackfilledTotal.Inc()
		log.Info("Order status history backfilled")

		if r.cache != nil {
			if err := r.cache.Delete(ctx, redis.GenerateKey(redis.KeyPrefixHistory, o.OrderID)); err != nil {
				log.WithError(err).Warn("Failed to invalidate order history cache")
			}
		}
	}

	if backfilled > 0 {
		invalidateReports(ctx, r.cache, r.log)
	}
	return backfilled, firstErr
}

// Run запускает RunOnce с заданным интервалом до отмены ctx.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.Enabled() {
		r.log.Info("History reconciliation disabled")
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.WithField("interval", r.interval.String()).Info("History reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("History reconciler stopped")
			return nil
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.log.WithError(err).Warn("Reconciliation pass finished with errors")
				continue
			}
			if n > 0 {
				r.log.WithField("backfilled", n).Info("Reconciliation pass finished")
			}
		}
	}
}
