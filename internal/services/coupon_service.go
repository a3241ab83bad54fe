package services

import (
	"context"
	"math"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/coupon"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// CouponService проверяет купоны, фиксирует их применение и управляет справочником купонов.
type CouponService struct {
	coupons   repository.CouponGateway
	cache     Cache
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewCouponService создает сервис купонов. cache и publisher могут быть nil.
func NewCouponService(coupons repository.CouponGateway, cache Cache, publisher EventPublisher, log *logger.Logger) *CouponService {
	return &CouponService{
		coupons:   coupons,
		cache:     cache,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// anonymousRedemption помечает ключ применения без заказа и сессии.
const anonymousRedemption = "anon"

func missingCode() error {
	return apperror.WithCode(apperror.KindValidation, apperror.CodeMissingCode, "coupon code is required", nil)
}

func malformed(msg string) error {
	return apperror.WithCode(apperror.KindValidation, apperror.CodeMalformedInput, msg, nil)
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// ValidateCoupon рассчитывает скидку активного купона для подытога корзины.
// Пустой код отклоняется до обращения к хранилищу.
func (s *CouponService) ValidateCoupon(ctx context.Context, req *models.ValidateCouponRequest) (*models.ValidateCouponResponse, error) {
	code := coupon.NormalizeCode(req.Code)
	if code == "" {
		metrics.CouponValidationsTotal.WithLabelValues(metrics.ResultMissing).Inc()
		return nil, missingCode()
	}
	if !validAmount(req.Subtotal) {
		metrics.CouponValidationsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, malformed("subtotal must be a non-negative number")
	}

	c, err := s.coupons.FindActiveByCode(ctx, code)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			metrics.CouponValidationsTotal.WithLabelValues(metrics.ResultRejected).Inc()
			s.log.WithField("code", code).Info("Coupon rejected")
			return nil, err
		}
		metrics.CouponValidationsTotal.WithLabelValues(metrics.ResultError).Inc()
		s.log.WithError(err).WithField("code", code).Error("Failed to look up coupon")
		return nil, apperror.Persistence("failed to validate coupon", err)
	}

	discount := coupon.Evaluate(c, req.Subtotal)
	metrics.CouponValidationsTotal.WithLabelValues(metrics.ResultApplied).Inc()

	s.log.WithFields(map[string]interface{}{
		"code":     c.Code,
		"subtotal": req.Subtotal,
		"discount": discount,
	}).Debug("Coupon applied")

	return &models.ValidateCouponResponse{
		Code:           c.Code,
		DiscountAmount: discount,
		Message:        coupon.Message(c),
	}, nil
}

// RecordCouponRedemption фиксирует применение купона.
// Повторный вызов с теми же кодом, заказом и сессией не создаёт новую запись.
// Применения без заказа и сессии не дедуплицируются.
func (s *CouponService) RecordCouponRedemption(ctx context.Context, req *models.RecordRedemptionRequest) error {
	code := coupon.NormalizeCode(req.Code)
	if code == "" {
		return missingCode()
	}
	if !validAmount(req.Subtotal) || !validAmount(req.DiscountAmount) {
		return malformed("subtotal and discountAmount must be non-negative numbers")
	}
	if req.DiscountAmount > req.Subtotal {
		return malformed("discountAmount must not exceed subtotal")
	}

	orderID := trimmedOrNil(req.OrderID)
	sessionID := trimmedOrNil(req.SessionID)

	id := uuid.New()
	redemption := &models.CouponRedemption{
		ID:             id,
		RedemptionKey:  RedemptionKey(code, orderID, sessionID, id),
		Code:           code,
		Subtotal:       req.Subtotal,
		DiscountAmount: req.DiscountAmount,
		OrderID:        orderID,
		SessionID:      sessionID,
		CreatedAt:      s.now().UTC(),
	}

	inserted, err := s.coupons.InsertRedemption(ctx, redemption)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("record_redemption").Inc()
		return apperror.Persistence("failed to record coupon redemption", err)
	}

	entry := s.log.WithFields(map[string]interface{}{
		"code":       code,
		"order_id":   deref(orderID),
		"session_id": deref(sessionID),
	})
	if !inserted {
		entry.Info("Coupon redemption already recorded")
		return nil
	}
	entry.Info("Coupon redemption recorded")
	metrics.CouponRedemptionsTotal.Inc()
	invalidateReports(ctx, s.cache, s.log)

	if s.publisher != nil {
		err := s.publisher.PublishCouponRedeemed(models.CouponRedeemedData{
			Code:           code,
			Subtotal:       req.Subtotal,
			DiscountAmount: req.DiscountAmount,
			OrderID:        orderID,
			SessionID:      sessionID,
		})
		if err != nil {
			metrics.EventPublishFailuresTotal.WithLabelValues(string(models.EventTypeCouponRedeemed)).Inc()
			entry.WithError(err).Warn("Failed to publish coupon redeemed event")
		}
	}
	return nil
}

// RedemptionKey строит ключ идемпотентности применения купона.
// Без заказа и сессии повтор не распознать, поэтому ключом служит id записи.
func RedemptionKey(code string, orderID, sessionID *string, id uuid.UUID) string {
	if orderID == nil && sessionID == nil {
		return strings.Join([]string{code, anonymousRedemption, id.String()}, "|")
	}
	return strings.Join([]string{code, deref(orderID), deref(sessionID)}, "|")
}

// CreateCoupon создает купон
func (s *CouponService) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error) {
	code := coupon.NormalizeCode(req.Code)
	if code == "" {
		return nil, missingCode()
	}
	if err := validateCouponValue(req.Type, req.Value); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &models.Coupon{
		Code:      code,
		Type:      req.Type,
		Value:     req.Value,
		Active:    req.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.coupons.CreateCoupon(ctx, c); err != nil {
		return nil, persistenceUnlessTyped("failed to create coupon", err)
	}

	s.log.WithFields(map[string]interface{}{"code": code, "type": c.Type, "value": c.Value}).Info("Coupon created")
	return c, nil
}

// GetCoupon возвращает купон по коду
func (s *CouponService) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	code = coupon.NormalizeCode(code)
	if code == "" {
		return nil, missingCode()
	}
	c, err := s.coupons.GetCoupon(ctx, code)
	if err != nil {
		return nil, persistenceUnlessTyped("failed to get coupon", err)
	}
	return c, nil
}

// UpdateCoupon заменяет тип, значение и активность купона
func (s *CouponService) UpdateCoupon(ctx context.Context, code string, req *models.UpdateCouponRequest) (*models.Coupon, error) {
	code = coupon.NormalizeCode(code)
	if code == "" {
		return nil, missingCode()
	}
	if err := validateCouponValue(req.Type, req.Value); err != nil {
		return nil, err
	}

	c, err := s.coupons.UpdateCoupon(ctx, code, req, s.now().UTC())
	if err != nil {
		return nil, persistenceUnlessTyped("failed to update coupon", err)
	}

	s.log.WithFields(map[string]interface{}{"code": code, "active": c.Active}).Info("Coupon updated")
	return c, nil
}

// DeleteCoupon удаляет купон
func (s *CouponService) DeleteCoupon(ctx context.Context, code string) error {
	code = coupon.NormalizeCode(code)
	if code == "" {
		return missingCode()
	}
	if err := s.coupons.DeleteCoupon(ctx, code); err != nil {
		return persistenceUnlessTyped("failed to delete coupon", err)
	}
	s.log.WithField("code", code).Info("Coupon deleted")
	return nil
}

// ListCoupons возвращает страницу купонов
func (s *CouponService) ListCoupons(ctx context.Context, limit, offset int) ([]*models.Coupon, error) {
	if limit < 0 || offset < 0 {
		return nil, malformed("limit and offset must be non-negative")
	}
	coupons, err := s.coupons.ListCoupons(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Persistence("failed to list coupons", err)
	}
	return coupons, nil
}

func validateCouponValue(t models.CouponType, value float64) error {
	if !validAmount(value) {
		return malformed("coupon value must be a non-negative number")
	}
	switch t {
	case models.CouponTypePercent:
		if value > 100 {
			return malformed("percent coupon value must be between 0 and 100")
		}
	case models.CouponTypeFlat:
	default:
		return malformed("coupon type must be percent or flat")
	}
	return nil
}

// persistenceUnlessTyped оставляет ошибки apperror как есть, остальные считает ошибками хранилища.
func persistenceUnlessTyped(msg string, err error) error {
	if apperror.CodeOf(err) != "" || apperror.Is(err, apperror.KindNotFound) || apperror.Is(err, apperror.KindConflict) {
		return err
	}
	return apperror.Persistence(msg, err)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
