package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/platform/auth"
	"github.com/detalia/storefront-api/internal/services"
)

type stubCouponService struct {
	redemption services.CouponRedemption
	err        error

	lastCmd services.ValidateCouponCommand
}

func (s *stubCouponService) Validate(_ context.Context, cmd services.ValidateCouponCommand) (services.CouponRedemption, error) {
	s.lastCmd = cmd
	if s.err != nil {
		return services.CouponRedemption{}, s.err
	}
	return s.redemption, nil
}

func (s *stubCouponService) CreateCoupon(context.Context, services.UpsertCouponCommand) (services.Coupon, error) {
	return services.Coupon{}, nil
}

func (s *stubCouponService) UpdateCoupon(context.Context, services.UpsertCouponCommand) (services.Coupon, error) {
	return services.Coupon{}, nil
}

func (s *stubCouponService) SoftDeleteCoupon(context.Context, services.DeleteCouponCommand) error {
	return nil
}

func (s *stubCouponService) GetCoupon(context.Context, string) (services.Coupon, error) {
	return services.Coupon{}, nil
}

func (s *stubCouponService) ListCoupons(context.Context, services.CouponListFilter) (domain.CursorPage[services.Coupon], error) {
	return domain.CursorPage[services.Coupon]{}, nil
}

func newCouponRouter(pricing services.PricingService, coupons services.CouponService, limiter RateLimiter) http.Handler {
	h := NewCouponHandlers(pricing, coupons, limiter)
	r := chi.NewRouter()
	r.Use(auth.Middleware())
	r.Route("/coupons", h.Routes)
	return r
}

func TestValidateCouponSuccess(t *testing.T) {
	pricing := &stubPricingService{snapshot: services.CartSnapshot{Subtotal: 8300}}
	coupons := &stubCouponService{
		redemption: services.CouponRedemption{
			Coupon: domain.Coupon{ID: "cpn_1", Code: "BIENVENIDO10"},
			Application: domain.CouponApplication{
				Code:           "BIENVENIDO10",
				Label:          "BIENVENIDO10",
				Type:           domain.DiscountTypePercentage,
				Value:          10,
				Amount:         830,
				AppliedLineIDs: []string{"prod_mug"},
			},
		},
	}
	router := newCouponRouter(pricing, coupons, nil)

	payload := `{"code":"bienvenido10","items":[{"productId":"prod_mug","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/coupons/validate", strings.NewReader(payload))
	req.Header.Set("X-User-Id", "usr_ana")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body validateCouponResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !body.Valid || body.Coupon.Amount != 830 || body.Coupon.Code != "BIENVENIDO10" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if body.Coupon.Type != string(domain.DiscountTypePercentage) || body.Coupon.Value != 10 {
		t.Fatalf("expected coupon terms in response, got %+v", body.Coupon)
	}
	if len(body.Coupon.AppliedLineIDs) != 1 || body.Coupon.AppliedLineIDs[0] != "prod_mug" {
		t.Fatalf("expected applied line ids, got %+v", body.Coupon.AppliedLineIDs)
	}
	if coupons.lastCmd.Snapshot.Subtotal != 8300 {
		t.Fatalf("expected priced snapshot forwarded, got %+v", coupons.lastCmd.Snapshot)
	}
	if coupons.lastCmd.Identity.UserID != "usr_ana" {
		t.Fatalf("expected identity forwarded, got %+v", coupons.lastCmd.Identity)
	}
}

func TestValidateCouponRejectionCarriesCode(t *testing.T) {
	pricing := &stubPricingService{snapshot: services.CartSnapshot{Subtotal: 4999}}
	coupons := &stubCouponService{err: &services.CouponRejectionError{
		Code:    services.CouponRejectedMinPurchase,
		Message: "cart must total at least 5000",
	}}
	router := newCouponRouter(pricing, coupons, nil)

	payload := `{"code":"FLAT5","items":[{"productId":"prod_mug","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/coupons/validate", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["code"] != services.CouponRejectedMinPurchase {
		t.Fatalf("expected rejection code, got %v", body)
	}
}

func TestValidateCouponRequiresCode(t *testing.T) {
	router := newCouponRouter(&stubPricingService{}, &stubCouponService{}, nil)

	payload := `{"items":[{"productId":"prod_mug","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/coupons/validate", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestValidateCouponRateLimited(t *testing.T) {
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewSimpleRateLimiter(1, time.Minute, func() time.Time { return now })
	pricing := &stubPricingService{snapshot: services.CartSnapshot{Subtotal: 1000}}
	coupons := &stubCouponService{
		redemption: services.CouponRedemption{Application: domain.CouponApplication{Code: "X", Amount: 10}},
	}
	router := newCouponRouter(pricing, coupons, limiter)

	payload := `{"code":"X","items":[{"productId":"prod_mug","quantity":1}]}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/coupons/validate", strings.NewReader(payload))
		req.Header.Set("X-User-Id", "usr_ana")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		switch i {
		case 0:
			if rr.Code != http.StatusOK {
				t.Fatalf("first attempt should pass, got %d", rr.Code)
			}
		case 1:
			if rr.Code != http.StatusTooManyRequests {
				t.Fatalf("second attempt should be limited, got %d", rr.Code)
			}
		}
	}
}
