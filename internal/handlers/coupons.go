package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/go-chi/chi/v5"
)

// CouponHandler обрабатывает проверку купонов и их администрирование.
type CouponHandler struct {
	service CouponService
	log     *logger.Logger
}

// NewCouponHandler создаёт новый обработчик купонов.
func NewCouponHandler(service CouponService, log *logger.Logger) *CouponHandler {
	return &CouponHandler{
		service: service,
		log:     log,
	}
}

// SuccessResponse возвращается операциями без собственного тела ответа.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// Validate применяет купон к подытогу корзины.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Invalid request body")
		return
	}

	resp, err := h.service.ValidateCoupon(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to validate coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// RecordRedemption фиксирует применение купона.
func (h *CouponHandler) RecordRedemption(w http.ResponseWriter, r *http.Request) {
	var req models.RecordRedemptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Invalid request body")
		return
	}

	if err := h.service.RecordCouponRedemption(r.Context(), &req); err != nil {
		writeServiceError(w, h.log, err, "Failed to record coupon redemption")
		return
	}

	writeJSONResponse(w, http.StatusOK, SuccessResponse{Success: true})
}

// Create создаёт купон.
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Invalid request body")
		return
	}

	coupon, err := h.service.CreateCoupon(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create coupon")
		return
	}

	writeJSONResponse(w, http.StatusCreated, coupon)
}

// List возвращает страницу купонов.
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, h.log, err, "Invalid pagination")
		return
	}

	coupons, err := h.service.ListCoupons(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupons")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupons)
}

// Get возвращает купон по коду.
func (h *CouponHandler) Get(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.service.GetCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// Update обновляет тип, значение и активность купона.
func (h *CouponHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Invalid request body")
		return
	}

	coupon, err := h.service.UpdateCoupon(r.Context(), chi.URLParam(r, "code"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// Delete удаляет купон.
func (h *CouponHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCoupon(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete coupon")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
