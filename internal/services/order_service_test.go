package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderService(gw *fakeOrderGateway, cfg *config.OrdersConfig) (*OrderService, *fakePublisher) {
	pub := &fakePublisher{}
	if cfg == nil {
		cfg = &config.OrdersConfig{AtomicHistory: true}
	}
	return NewOrderService(gw, nil, pub, newTestLogger(), cfg), pub
}

func TestOrderService_RefundPendingOrder(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("Y"))
	svc, pub := newOrderService(gw, nil)

	order, err := svc.RefundOrder(context.Background(), "Y", &models.RefundOrderRequest{
		RefundAmount: floatPtr(150),
		RefundReason: "damaged",
		AdminNote:    "approved by support",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, order.Status)
	require.NotNil(t, order.RefundAmount)
	assert.Equal(t, 150.0, *order.RefundAmount)
	assert.Equal(t, "damaged", *order.RefundReason)
	assert.Equal(t, "approved by support", *order.AdminNotes)

	history := gw.historyFor("Y")
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderStatusPending, history[0].OldStatus)
	assert.Equal(t, models.OrderStatusRefunded, history[0].NewStatus)
	assert.Equal(t, models.HistoryCreatedByAdmin, history[0].CreatedBy)
	assert.Equal(t, "damaged", *history[0].Reason)

	require.Len(t, pub.statusChanged, 1)
	assert.Equal(t, "Y", pub.statusChanged[0].OrderID)
	assert.Equal(t, 150.0, *pub.statusChanged[0].RefundAmount)
}

func TestOrderService_CancelMissingOrder(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		gw := newFakeOrderGateway()
		svc, pub := newOrderService(gw, &config.OrdersConfig{AtomicHistory: atomic})

		_, err := svc.CancelOrder(context.Background(), "X", &models.CancelOrderRequest{CancelReason: "dup"})
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeOrderNotFound))
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
		assert.Empty(t, gw.history)
		assert.Equal(t, 0, gw.updateCalls)
		assert.Empty(t, pub.statusChanged)
	}
}

func TestOrderService_TransitionsAppendExactlyOneRow(t *testing.T) {
	ops := map[models.OrderStatus]func(svc *OrderService, id string) (*models.Order, error){
		models.OrderStatusCancelled: func(svc *OrderService, id string) (*models.Order, error) {
			return svc.CancelOrder(context.Background(), id, &models.CancelOrderRequest{CancelReason: "customer request", AdminNote: "n"})
		},
		models.OrderStatusRefunded: func(svc *OrderService, id string) (*models.Order, error) {
			return svc.RefundOrder(context.Background(), id, &models.RefundOrderRequest{RefundAmount: floatPtr(10)})
		},
		models.OrderStatusReturned: func(svc *OrderService, id string) (*models.Order, error) {
			return svc.ReturnOrder(context.Background(), id, &models.ReturnOrderRequest{ReturnReason: "wrong size"})
		},
	}

	for target, op := range ops {
		for _, atomic := range []bool{true, false} {
			gw := newFakeOrderGateway(pendingOrder("A"))
			svc, _ := newOrderService(gw, &config.OrdersConfig{AtomicHistory: atomic})

			order, err := op(svc, "A")
			require.NoError(t, err)
			assert.Equal(t, target, order.Status)

			history := gw.historyFor("A")
			require.Len(t, history, 1, "target=%s atomic=%v", target, atomic)
			assert.Equal(t, models.OrderStatusPending, history[0].OldStatus)
			assert.Equal(t, target, history[0].NewStatus)
		}
	}
}

func TestOrderService_CancelStoresReasonAndNote(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("A"))
	svc, _ := newOrderService(gw, nil)

	order, err := svc.CancelOrder(context.Background(), "A", &models.CancelOrderRequest{CancelReason: " out of stock ", AdminNote: "called customer"})
	require.NoError(t, err)
	assert.Equal(t, "out of stock", *order.CancelReason)
	assert.Equal(t, "called customer", *order.AdminNotes)
	assert.True(t, order.UpdatedAt.After(pendingOrder("A").UpdatedAt))

	history := gw.historyFor("A")
	require.Len(t, history, 1)
	assert.Equal(t, "called customer", *history[0].AdminNote)
}

func TestOrderService_ValidationTouchesNothing(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("A"))
	svc, _ := newOrderService(gw, nil)
	ctx := context.Background()

	_, err := svc.CancelOrder(ctx, " ", &models.CancelOrderRequest{})
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingField))

	_, err = svc.RefundOrder(ctx, "A", &models.RefundOrderRequest{})
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingField))

	_, err = svc.RefundOrder(ctx, "A", &models.RefundOrderRequest{RefundAmount: floatPtr(-5)})
	assert.True(t, apperror.HasCode(err, apperror.CodeMalformedInput))

	assert.Equal(t, 0, gw.getCalls)
	assert.Equal(t, 0, gw.updateCalls)
	assert.Equal(t, 0, gw.historyCalls)
}

func TestOrderService_RefundZeroAmountAllowed(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("A"))
	svc, _ := newOrderService(gw, nil)

	order, err := svc.RefundOrder(context.Background(), "A", &models.RefundOrderRequest{RefundAmount: floatPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, *order.RefundAmount)
}

func TestOrderService_AtomicRollsBackOnHistoryFailure(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("A"))
	gw.historyErr = errors.New("insert failed")
	svc, pub := newOrderService(gw, &config.OrdersConfig{AtomicHistory: true})

	_, err := svc.CancelOrder(context.Background(), "A", &models.CancelOrderRequest{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPersistence))
	assert.Equal(t, models.OrderStatusPending, gw.order("A").Status)
	assert.Empty(t, gw.history)
	assert.Empty(t, pub.statusChanged)
	assert.Equal(t, 1, gw.txCalls)
}

func TestOrderService_SequentialHistoryFailureIsWarning(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("A"))
	gw.historyErr = errors.New("insert failed")
	svc, pub := newOrderService(gw, &config.OrdersConfig{AtomicHistory: false})

	order, err := svc.CancelOrder(context.Background(), "A", &models.CancelOrderRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, models.OrderStatusCancelled, gw.order("A").Status)
	assert.Empty(t, gw.history)
	assert.Equal(t, 0, gw.txCalls)
	assert.Len(t, pub.statusChanged, 1)
}

func TestOrderService_UpdateFailureSkipsHistory(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		gw := newFakeOrderGateway(pendingOrder("A"))
		gw.updateErr = errors.New("deadlock detected")
		svc, _ := newOrderService(gw, &config.OrdersConfig{AtomicHistory: atomic})

		_, err := svc.ReturnOrder(context.Background(), "A", &models.ReturnOrderRequest{})
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.KindPersistence))
		assert.True(t, apperror.HasCode(err, apperror.CodePersistence))
		assert.Equal(t, 0, gw.historyCalls)
	}
}

func TestOrderService_NonPendingOrder(t *testing.T) {
	cancelled := pendingOrder("A")
	cancelled.Status = models.OrderStatusCancelled

	t.Run("override by default", func(t *testing.T) {
		c := *cancelled
		gw := newFakeOrderGateway(&c)
		svc, _ := newOrderService(gw, nil)

		order, err := svc.RefundOrder(context.Background(), "A", &models.RefundOrderRequest{RefundAmount: floatPtr(20)})
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusRefunded, order.Status)

		history := gw.historyFor("A")
		require.Len(t, history, 1)
		assert.Equal(t, models.OrderStatusCancelled, history[0].OldStatus)
	})

	t.Run("strict mode rejects", func(t *testing.T) {
		c := *cancelled
		gw := newFakeOrderGateway(&c)
		svc, _ := newOrderService(gw, &config.OrdersConfig{AtomicHistory: true, StrictTransitions: true})

		_, err := svc.RefundOrder(context.Background(), "A", &models.RefundOrderRequest{RefundAmount: floatPtr(20)})
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
		assert.Equal(t, 0, gw.updateCalls)
		assert.Empty(t, gw.history)
	})
}

func TestOrderService_PublishFailureDoesNotFailTransition(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("A"))
	svc := NewOrderService(gw, nil, &fakePublisher{err: errors.New("broker down")}, newTestLogger(), nil)

	_, err := svc.CancelOrder(context.Background(), "A", &models.CancelOrderRequest{})
	require.NoError(t, err)
	assert.Len(t, gw.historyFor("A"), 1)
}

func TestOrderService_GetOrderUsesCache(t *testing.T) {
	client, mr := newTestRedis(t)
	gw := newFakeOrderGateway(pendingOrder("A"))
	svc := NewOrderService(gw, client, nil, newTestLogger(), &config.OrdersConfig{AtomicHistory: true, CacheTTLMinutes: 1})
	ctx := context.Background()

	first, err := svc.GetOrder(ctx, "A")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redis.GenerateKey(redis.KeyPrefixOrder, "A")))

	second, err := svc.GetOrder(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, gw.getCalls, "second read must come from cache")

	_, err = svc.CancelOrder(ctx, "A", &models.CancelOrderRequest{})
	require.NoError(t, err)
	assert.False(t, mr.Exists(redis.GenerateKey(redis.KeyPrefixOrder, "A")), "transition invalidates cache")

	third, err := svc.GetOrder(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, third.Status)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(redis.GenerateKey(redis.KeyPrefixOrder, "A")))
}

func TestOrderService_TransitionInvalidatesReports(t *testing.T) {
	client, mr := newTestRedis(t)
	gw := newFakeOrderGateway(pendingOrder("A"))
	svc := NewOrderService(gw, client, nil, newTestLogger(), &config.OrdersConfig{AtomicHistory: true})
	march := redis.GenerateKey(redis.KeyPrefixReport, "2026-03-01", "2026-03-31")
	april := redis.GenerateKey(redis.KeyPrefixReport, "2026-04-01", "2026-04-30")
	rateKey := redis.GenerateKey(redis.KeyPrefixRateLimit, "10.0.0.1")
	for _, key := range []string{march, april, rateKey} {
		require.NoError(t, mr.Set(key, "{}"))
	}

	_, err := svc.RefundOrder(context.Background(), "A", &models.RefundOrderRequest{RefundAmount: floatPtr(20)})
	require.NoError(t, err)

	assert.False(t, mr.Exists(march))
	assert.False(t, mr.Exists(april))
	assert.True(t, mr.Exists(rateKey))
}

func TestOrderService_GetOrderNotFound(t *testing.T) {
	svc, _ := newOrderService(newFakeOrderGateway(), nil)

	_, err := svc.GetOrder(context.Background(), "missing")
	assert.True(t, apperror.HasCode(err, apperror.CodeOrderNotFound))

	_, err = svc.GetOrder(context.Background(), "")
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingField))
}

func TestOrderService_GetOrderHistory(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("A"))
	svc, _ := newOrderService(gw, nil)
	ctx := context.Background()

	_, err := svc.CancelOrder(ctx, "A", &models.CancelOrderRequest{})
	require.NoError(t, err)
	_, err = svc.RefundOrder(ctx, "A", &models.RefundOrderRequest{RefundAmount: floatPtr(5)})
	require.NoError(t, err)

	history, err := svc.GetOrderHistory(ctx, "A")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OrderStatusRefunded, history[0].NewStatus, "newest first")
	assert.Equal(t, models.OrderStatusCancelled, history[1].NewStatus)
	assert.Equal(t, models.OrderStatusCancelled, history[0].OldStatus)

	_, err = svc.GetOrderHistory(ctx, "missing")
	assert.True(t, apperror.HasCode(err, apperror.CodeOrderNotFound))
}

func TestOrderService_GetOrderHistoryPersistenceError(t *testing.T) {
	gw := newFakeOrderGateway(pendingOrder("A"))
	gw.getErr = errors.New("timeout")
	svc, _ := newOrderService(gw, nil)

	_, err := svc.GetOrderHistory(context.Background(), "A")
	assert.True(t, apperror.Is(err, apperror.KindPersistence))
}

func TestOrderService_ListOrders(t *testing.T) {
	cancelled := pendingOrder("B")
	cancelled.Status = models.OrderStatusCancelled
	gw := newFakeOrderGateway(pendingOrder("A"), cancelled)
	svc, _ := newOrderService(gw, nil)
	ctx := context.Background()

	all, err := svc.ListOrders(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyCancelled, err := svc.ListOrders(ctx, "cancelled", 10, 0)
	require.NoError(t, err)
	require.Len(t, onlyCancelled, 1)
	assert.Equal(t, "B", onlyCancelled[0].ID)

	_, err = svc.ListOrders(ctx, "LOST", 10, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeMalformedInput))
}

func TestPartialFailureWarning(t *testing.T) {
	base := errors.New("insert failed")
	w := &PartialFailureWarning{OrderID: "A", OldStatus: models.OrderStatusPending, NewStatus: models.OrderStatusCancelled, Err: base}
	assert.ErrorIs(t, w, base)
	assert.Contains(t, w.Error(), "A")
}
