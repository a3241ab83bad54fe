package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/redis"
	"storefront/internal/repository"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.Logger {
	return logger.NewDiscard()
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.Connect(&config.RedisConfig{Host: "127.0.0.1", Port: mr.Port()}, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// fakeOrderGateway хранит заказы и историю в памяти; WithinTx откатывает изменения при ошибке.
type fakeOrderGateway struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	history []*models.OrderStatusHistory

	getErr     error
	updateErr  error
	historyErr error

	getCalls     int
	updateCalls  int
	historyCalls int
	txCalls      int

	// beforeHistory срабатывает один раз перед следующей вставкой истории.
	beforeHistory func()
}

var _ repository.TxOrderGateway = (*fakeOrderGateway)(nil)

func newFakeOrderGateway(orders ...*models.Order) *fakeOrderGateway {
	gw := &fakeOrderGateway{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		gw.orders[o.ID] = o
	}
	return gw
}

func pendingOrder(id string) *models.Order {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Order{
		ID:             id,
		Status:         models.OrderStatusPending,
		SubtotalAmount: 500,
		ShippingCost:   50,
		TotalAmount:    550,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func (f *fakeOrderGateway) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperror.WithCode(apperror.KindNotFound, apperror.CodeOrderNotFound, "order not found", nil)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderGateway) ListOrders(ctx context.Context, status *models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.Order{}
	for _, o := range f.orders {
		if status != nil && o.Status != *status {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeOrderGateway) UpdateOrder(ctx context.Context, orderID string, upd *models.OrderUpdate) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperror.WithCode(apperror.KindNotFound, apperror.CodeOrderNotFound, "order not found", nil)
	}
	o.Status = upd.Status
	if upd.RefundAmount != nil {
		o.RefundAmount = upd.RefundAmount
	}
	if upd.CancelReason != nil {
		o.CancelReason = upd.CancelReason
	}
	if upd.ReturnReason != nil {
		o.ReturnReason = upd.ReturnReason
	}
	if upd.RefundReason != nil {
		o.RefundReason = upd.RefundReason
	}
	if upd.AdminNotes != nil {
		o.AdminNotes = upd.AdminNotes
	}
	o.UpdatedAt = upd.UpdatedAt
	cp := *o
	return &cp, nil
}

func (f *fakeOrderGateway) InsertHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	f.mu.Lock()
	hook := f.beforeHistory
	f.beforeHistory = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if f.historyErr != nil {
		return f.historyErr
	}
	cp := *entry
	f.history = append(f.history, &cp)
	return nil
}

func (f *fakeOrderGateway) ListHistory(ctx context.Context, orderID string) ([]*models.OrderStatusHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.OrderStatusHistory{}
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].OrderID == orderID {
			cp := *f.history[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (f *fakeOrderGateway) WithinTx(ctx context.Context, fn func(gw repository.OrderGateway) error) error {
	f.mu.Lock()
	f.txCalls++
	snapshot := make(map[string]models.Order, len(f.orders))
	for id, o := range f.orders {
		snapshot[id] = *o
	}
	historyLen := len(f.history)
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		for id, o := range snapshot {
			restored := o
			f.orders[id] = &restored
		}
		f.history = f.history[:historyLen]
		return err
	}
	return nil
}

func (f *fakeOrderGateway) order(id string) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.orders[id]
	return &cp
}

func (f *fakeOrderGateway) historyFor(id string) []*models.OrderStatusHistory {
	h, _ := f.ListHistory(context.Background(), id)
	return h
}

// fakeCouponGateway хранит купоны и применения в памяти.
type fakeCouponGateway struct {
	mu          sync.Mutex
	coupons     map[string]*models.Coupon
	redemptions map[string]*models.CouponRedemption

	findErr   error
	insertErr error
	calls     int
}

var _ repository.CouponGateway = (*fakeCouponGateway)(nil)

func newFakeCouponGateway(coupons ...*models.Coupon) *fakeCouponGateway {
	gw := &fakeCouponGateway{
		coupons:     make(map[string]*models.Coupon),
		redemptions: make(map[string]*models.CouponRedemption),
	}
	for _, c := range coupons {
		gw.coupons[c.Code] = c
	}
	return gw
}

func couponNotFoundErr() error {
	return apperror.WithCode(apperror.KindNotFound, apperror.CodeCouponNotFound, "coupon not found", nil)
}

func (f *fakeCouponGateway) FindActiveByCode(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.coupons[code]
	if !ok || !c.Active {
		return nil, apperror.WithCode(apperror.KindNotFound, apperror.CodeInvalidCoupon, "invalid or inactive coupon code", nil)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouponGateway) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	c, ok := f.coupons[code]
	if !ok {
		return nil, couponNotFoundErr()
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouponGateway) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.coupons[c.Code]; ok {
		return apperror.WithCode(apperror.KindConflict, apperror.CodeCouponExists, "coupon code already exists", nil)
	}
	cp := *c
	f.coupons[c.Code] = &cp
	return nil
}

func (f *fakeCouponGateway) UpdateCoupon(ctx context.Context, code string, req *models.UpdateCouponRequest, updatedAt time.Time) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	c, ok := f.coupons[code]
	if !ok {
		return nil, couponNotFoundErr()
	}
	c.Type, c.Value, c.Active, c.UpdatedAt = req.Type, req.Value, req.Active, updatedAt
	cp := *c
	return &cp, nil
}

func (f *fakeCouponGateway) DeleteCoupon(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.coupons[code]; !ok {
		return couponNotFoundErr()
	}
	delete(f.coupons, code)
	return nil
}

func (f *fakeCouponGateway) ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	result := []*models.Coupon{}
	for _, c := range f.coupons {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (f *fakeCouponGateway) InsertRedemption(ctx context.Context, r *models.CouponRedemption) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if _, ok := f.redemptions[r.RedemptionKey]; ok {
		return false, nil
	}
	cp := *r
	f.redemptions[r.RedemptionKey] = &cp
	return true, nil
}

// fakePublisher запоминает опубликованные события.
type fakePublisher struct {
	mu            sync.Mutex
	statusChanged []models.OrderStatusChangedData
	redeemed      []models.CouponRedeemedData
	err           error
}

func (p *fakePublisher) PublishOrderStatusChanged(data models.OrderStatusChangedData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.statusChanged = append(p.statusChanged, data)
	return nil
}

func (p *fakePublisher) PublishCouponRedeemed(data models.CouponRedeemedData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.redeemed = append(p.redeemed, data)
	return nil
}
