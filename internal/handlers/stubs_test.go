package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/stretchr/testify/require"
)

type stubCouponService struct {
	validate   func(*models.ValidateCouponRequest) (*models.ValidateCouponResponse, error)
	redeem     func(*models.RecordRedemptionRequest) error
	create     func(*models.CreateCouponRequest) (*models.Coupon, error)
	get        func(code string) (*models.Coupon, error)
	update     func(code string, req *models.UpdateCouponRequest) (*models.Coupon, error)
	remove     func(code string) error
	list       func(limit, offset int) ([]*models.Coupon, error)
	calls      int
	lastCode   string
	lastLimit  int
	lastOffset int
}

func (s *stubCouponService) ValidateCoupon(_ context.Context, req *models.ValidateCouponRequest) (*models.ValidateCouponResponse, error) {
	s.calls++
	return s.validate(req)
}

func (s *stubCouponService) RecordCouponRedemption(_ context.Context, req *models.RecordRedemptionRequest) error {
	s.calls++
	return s.redeem(req)
}

func (s *stubCouponService) CreateCoupon(_ context.Context, req *models.CreateCouponRequest) (*models.Coupon, error) {
	s.calls++
	return s.create(req)
}

func (s *stubCouponService) GetCoupon(_ context.Context, code string) (*models.Coupon, error) {
	s.calls++
	s.lastCode = code
	return s.get(code)
}

func (s *stubCouponService) UpdateCoupon(_ context.Context, code string, req *models.UpdateCouponRequest) (*models.Coupon, error) {
	s.calls++
	s.lastCode = code
	return s.update(code, req)
}

func (s *stubCouponService) DeleteCoupon(_ context.Context, code string) error {
	s.calls++
	s.lastCode = code
	return s.remove(code)
}

func (s *stubCouponService) ListCoupons(_ context.Context, limit, offset int) ([]*models.Coupon, error) {
	s.calls++
	s.lastLimit, s.lastOffset = limit, offset
	return s.list(limit, offset)
}

type stubOrderService struct {
	get        func(id string) (*models.Order, error)
	list       func(status string, limit, offset int) ([]*models.Order, error)
	cancel     func(id string, req *models.CancelOrderRequest) (*models.Order, error)
	refund     func(id string, req *models.RefundOrderRequest) (*models.Order, error)
	ret        func(id string, req *models.ReturnOrderRequest) (*models.Order, error)
	history    func(id string) ([]*models.OrderStatusHistory, error)
	calls      int
	lastID     string
	lastStatus string
}

func (s *stubOrderService) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.calls++
	s.lastID = id
	return s.get(id)
}

func (s *stubOrderService) ListOrders(_ context.Context, status string, limit, offset int) ([]*models.Order, error) {
	s.calls++
	s.lastStatus = status
	return s.list(status, limit, offset)
}

func (s *stubOrderService) CancelOrder(_ context.Context, id string, req *models.CancelOrderRequest) (*models.Order, error) {
	s.calls++
	s.lastID = id
	return s.cancel(id, req)
}

func (s *stubOrderService) RefundOrder(_ context.Context, id string, req *models.RefundOrderRequest) (*models.Order, error) {
	s.calls++
	s.lastID = id
	return s.refund(id, req)
}

func (s *stubOrderService) ReturnOrder(_ context.Context, id string, req *models.ReturnOrderRequest) (*models.Order, error) {
	s.calls++
	s.lastID = id
	return s.ret(id, req)
}

func (s *stubOrderService) GetOrderHistory(_ context.Context, id string) ([]*models.OrderStatusHistory, error) {
	s.calls++
	s.lastID = id
	return s.history(id)
}

type stubReportService struct {
	report     func(*models.ReportFilter) (*models.LifecycleReport, error)
	lastFilter *models.ReportFilter
	hasCtxDL   bool
}

func (s *stubReportService) GetLifecycleReport(ctx context.Context, filter *models.ReportFilter) (*models.LifecycleReport, error) {
	s.lastFilter = filter
	_, s.hasCtxDL = ctx.Deadline()
	return s.report(filter)
}

// newTestRouter собирает роутер со всеми заглушками; лимитер выключен.
func newTestRouter(coupons *stubCouponService, orders *stubOrderService, reports *stubReportService) http.Handler {
	log := logger.NewDiscard()
	if coupons == nil {
		coupons = &stubCouponService{}
	}
	if orders == nil {
		orders = &stubOrderService{}
	}
	if reports == nil {
		reports = &stubReportService{}
	}
	return NewRouter(Router{
		Coupons:     NewCouponHandler(coupons, log),
		Orders:      NewOrderHandler(orders, log),
		Reports:     NewReportHandler(reports, log, &config.ReportConfig{RequestTimeoutSeconds: 2}),
		Health:      NewHealthHandler(&stubDB{}, &stubRedisHealth{}, nil, kafkaOK),
		RateLimit:   NewRateLimitHandler(nil, log, &config.RateLimitConfig{}),
		RateLimiter: &stubLimiter{},
		Log:         log,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}
