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

type stubPromotionService struct {
	discount services.Discount
	page     domain.CursorPage[services.Discount]
	err      error

	lastUpsert services.UpsertDiscountCommand
	deletedID  string
}

func (s *stubPromotionService) CreateDiscount(_ context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
	s.lastUpsert = cmd
	if s.err != nil {
		return services.Discount{}, s.err
	}
	return s.discount, nil
}

func (s *stubPromotionService) UpdateDiscount(_ context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
	s.lastUpsert = cmd
	if s.err != nil {
		return services.Discount{}, s.err
	}
	return s.discount, nil
}

func (s *stubPromotionService) DeleteDiscount(_ context.Context, discountID string) error {
	s.deletedID = discountID
	return s.err
}

func (s *stubPromotionService) GetDiscount(context.Context, string) (services.Discount, error) {
	if s.err != nil {
		return services.Discount{}, s.err
	}
	return s.discount, nil
}

func (s *stubPromotionService) ListDiscounts(context.Context, services.DiscountListFilter) (domain.CursorPage[services.Discount], error) {
	if s.err != nil {
		return domain.CursorPage[services.Discount]{}, s.err
	}
	return s.page, nil
}

func (s *stubPromotionService) ActiveDiscountFor(context.Context, services.Product, time.Time) (*services.Discount, error) {
	return nil, nil
}

func (s *stubPromotionService) ActiveCartValueDiscount(context.Context, int64, time.Time) (*services.Discount, error) {
	return nil, nil
}

func newAdminRouter(promotions services.PromotionService, coupons services.CouponService, orders services.OrderService) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware())
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleStaff))
		AdminRoutes(
			NewAdminDiscountHandlers(promotions),
			NewAdminCouponHandlers(coupons),
			NewAdminOrderHandlers(orders),
		)(admin)
	})
	return r
}

func asAdmin(req *http.Request) *http.Request {
	req.Header.Set("X-User-Id", "adm_rosa")
	req.Header.Set("X-User-Roles", "admin")
	return req
}

func TestCreateDiscountReturns201(t *testing.T) {
	stub := &stubPromotionService{discount: services.Discount{
		ID:        "dsc_1",
		Name:      "Semana del polo",
		Type:      domain.DiscountTypePercentage,
		Value:     15,
		AppliesTo: domain.ScopeProduct,
		TargetID:  "prod_polo",
		Active:    true,
	}}
	router := newAdminRouter(stub, &stubCouponService{}, &stubOrderService{})

	payload := `{"name":"Semana del polo","type":"percentage","value":15,"appliesTo":"product","targetId":"prod_polo","active":true}`
	req := asAdmin(httptest.NewRequest(http.MethodPost, "/admin/discounts", strings.NewReader(payload)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var body discountResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Discount.ID != "dsc_1" || body.Discount.Value != 15 {
		t.Fatalf("unexpected discount: %+v", body.Discount)
	}
	if stub.lastUpsert.ActorID != "adm_rosa" {
		t.Fatalf("expected actor recorded, got %q", stub.lastUpsert.ActorID)
	}
}

func TestCreateDiscountExcessiveRenders422(t *testing.T) {
	router := newAdminRouter(&stubPromotionService{err: services.ErrDiscountExcessive}, &stubCouponService{}, &stubOrderService{})

	payload := `{"name":"Demasiado","type":"percentage","value":90,"appliesTo":"cart_value","active":true}`
	req := asAdmin(httptest.NewRequest(http.MethodPost, "/admin/discounts", strings.NewReader(payload)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestUpdateDiscountUsesPathID(t *testing.T) {
	stub := &stubPromotionService{discount: services.Discount{ID: "dsc_1"}}
	router := newAdminRouter(stub, &stubCouponService{}, &stubOrderService{})

	payload := `{"name":"Renombrado","type":"percentage","value":20,"appliesTo":"cart_value","active":true}`
	req := asAdmin(httptest.NewRequest(http.MethodPut, "/admin/discounts/dsc_1", strings.NewReader(payload)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if stub.lastUpsert.Discount.ID != "dsc_1" {
		t.Fatalf("expected path id on command, got %q", stub.lastUpsert.Discount.ID)
	}
}

func TestDeleteDiscountReturns204(t *testing.T) {
	stub := &stubPromotionService{}
	router := newAdminRouter(stub, &stubCouponService{}, &stubOrderService{})

	req := asAdmin(httptest.NewRequest(http.MethodDelete, "/admin/discounts/dsc_1", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if stub.deletedID != "dsc_1" {
		t.Fatalf("expected delete forwarded, got %q", stub.deletedID)
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	router := newAdminRouter(&stubPromotionService{}, &stubCouponService{}, &stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/admin/discounts", nil)
	req.Header.Set("X-User-Id", "usr_ana")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for non-admin, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/discounts", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for anonymous, got %d", rr.Code)
	}
}
