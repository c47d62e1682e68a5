package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/coupon"
)

type CreateCouponRequest struct {
	Code            string           `json:"code" validate:"required,max=50"`
	Description     string           `json:"description"`
	Type            string           `json:"coupon_type" validate:"required,oneof=percentage fixed"`
	Value           decimal.Decimal  `json:"value"`
	MinimumAmount   *decimal.Decimal `json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal `json:"maximum_discount"`
	UsageLimit      *int             `json:"usage_limit" validate:"omitempty,gte=0"`
	IsActive        *bool            `json:"is_active"`
	ValidFrom       time.Time        `json:"valid_from" validate:"required"`
	ValidUntil      time.Time        `json:"valid_until" validate:"required"`
}

type ValidateCouponRequest struct {
	CouponCode  string          `json:"coupon_code" validate:"required,max=50"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

type CouponResponse struct {
	coupon.Coupon
	IsValid bool `json:"is_valid"`
}

type PreviewResponse struct {
	Valid          bool            `json:"valid"`
	Error          string          `json:"error,omitempty"`
	Coupon         *CouponResponse `json:"coupon,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

type CouponHandler struct {
	service  coupon.Service
	guard    *Guard
	validate *validator.Validate
	now      func() time.Time
}

func NewCouponHandler(service coupon.Service, guard *Guard) *CouponHandler {
	return &CouponHandler{
		service:  service,
		guard:    guard,
		validate: newValidator(),
		now:      time.Now,
	}
}

func (h *CouponHandler) RegisterRoutes(router chi.Router) {
	router.Get("/coupons", h.handleListCoupons)
	router.With(h.guard.RequireUser).Post("/coupons/validate", h.handleValidateCoupon)
	router.With(h.guard.RequireStaff).Post("/coupons", h.handleCreateCoupon)
}

func (h *CouponHandler) toResponse(c *coupon.Coupon) *CouponResponse {
	return &CouponResponse{Coupon: *c, IsValid: c.IsValid(h.now())}
}

func (h *CouponHandler) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.service.ListActive(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list coupons")
		return
	}

	response := make([]*CouponResponse, 0, len(coupons))
	for i := range coupons {
		response = append(response, h.toResponse(&coupons[i]))
	}
	respondWithJSON(w, http.StatusOK, response)
}

func (h *CouponHandler) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateCouponRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.Create(r.Context(), &coupon.Coupon{
		Code:            requestPayload.Code,
		Description:     requestPayload.Description,
		Type:            coupon.Type(requestPayload.Type),
		Value:           requestPayload.Value,
		MinimumAmount:   requestPayload.MinimumAmount,
		MaximumDiscount: requestPayload.MaximumDiscount,
		UsageLimit:      requestPayload.UsageLimit,
		IsActive:        boolOr(requestPayload.IsActive, true),
		ValidFrom:       requestPayload.ValidFrom,
		ValidUntil:      requestPayload.ValidUntil,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create coupon")
		return
	}

	respondWithJSON(w, http.StatusCreated, h.toResponse(created))
}

// handleValidateCoupon previews a discount without redeeming the coupon.
// An unusable code is reported in the body with valid=false.
func (h *CouponHandler) handleValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var requestPayload ValidateCouponRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	preview, err := h.service.Validate(r.Context(), requestPayload.CouponCode, requestPayload.OrderAmount)
	if err != nil {
		respondWithServiceError(w, err, "Failed to validate coupon")
		return
	}

	response := PreviewResponse{
		Valid:          preview.Valid,
		Error:          preview.Error,
		DiscountAmount: preview.DiscountAmount,
		FinalAmount:    preview.FinalAmount,
	}
	if preview.Coupon != nil {
		response.Coupon = h.toResponse(preview.Coupon)
	}
	respondWithJSON(w, http.StatusOK, response)
}
