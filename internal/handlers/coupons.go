package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/detalia/storefront-api/internal/platform/httpx"
	"github.com/detalia/storefront-api/internal/services"
)

const maxCouponBodySize = 32 * 1024

// CouponHandlers exposes the public coupon validation endpoint. Validation is
// read-only; usage capacity is only consumed when checkout commits.
type CouponHandlers struct {
	pricing services.PricingService
	coupons services.CouponService
	limiter RateLimiter
}

// NewCouponHandlers constructs a new CouponHandlers instance. The rate
// limiter is optional; code probing is the abuse surface it guards.
func NewCouponHandlers(pricing services.PricingService, coupons services.CouponService, limiter RateLimiter) *CouponHandlers {
	return &CouponHandlers{
		pricing: pricing,
		coupons: coupons,
		limiter: limiter,
	}
}

// Routes registers the /coupons endpoints.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validateCoupon)
}

type validateCouponRequest struct {
	Code  string            `json:"code"`
	Items []cartLineRequest `json:"items"`
}

type validateCouponResponse struct {
	Valid  bool                `json:"valid"`
	Coupon couponResultPayload `json:"coupon"`
}

func (h *CouponHandlers) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil || h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity := identityFromRequest(ctx)
	if h.limiter != nil {
		key := identity.Key()
		if key == "" {
			key = r.RemoteAddr
		}
		if !h.limiter.Allow(key) {
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many validation attempts", http.StatusTooManyRequests))
			return
		}
	}

	body, err := readLimitedBody(r, maxCouponBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req validateCouponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code is required", http.StatusBadRequest))
		return
	}

	snapshot, err := h.pricing.PriceLines(ctx, cartLinesFromRequest(req.Items))
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}

	redemption, err := h.coupons.Validate(ctx, services.ValidateCouponCommand{
		Code:     req.Code,
		Snapshot: snapshot,
		Identity: identity,
	})
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, validateCouponResponse{
		Valid:  true,
		Coupon: buildCouponResultPayload(redemption.Application),
	})
}
