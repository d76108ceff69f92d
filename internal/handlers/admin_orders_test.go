package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/services"
)

func TestAdminTransitionStatus(t *testing.T) {
	shipped := userOrderView().Order
	shipped.Status = domain.OrderStatusTransit
	stub := &stubOrderService{order: shipped}
	router := newAdminRouter(&stubPromotionService{}, &stubCouponService{}, stub)

	payload := `{"status":"transit"}`
	req := asAdmin(httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_1/status", strings.NewReader(payload)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if stub.lastStatus.TargetStatus != domain.OrderStatusTransit || stub.lastStatus.ActorID != "adm_rosa" {
		t.Fatalf("unexpected status command: %+v", stub.lastStatus)
	}
	var body orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Order.Status != "transit" {
		t.Fatalf("unexpected order status: %+v", body.Order)
	}
}

func TestAdminTransitionStatusRejectsUnknownTarget(t *testing.T) {
	router := newAdminRouter(&stubPromotionService{}, &stubCouponService{}, &stubOrderService{})

	payload := `{"status":"bogus"}`
	req := asAdmin(httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_1/status", strings.NewReader(payload)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminTransitionStatusBackwardConflict(t *testing.T) {
	stub := &stubOrderService{statusErr: services.ErrOrderInvalidTransition}
	router := newAdminRouter(&stubPromotionService{}, &stubCouponService{}, stub)

	payload := `{"status":"processing"}`
	req := asAdmin(httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_1/status", strings.NewReader(payload)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminDeleteOrderForwardsReason(t *testing.T) {
	stub := &stubOrderService{}
	router := newAdminRouter(&stubPromotionService{}, &stubCouponService{}, stub)

	payload := `{"reason":"pedido duplicado"}`
	req := asAdmin(httptest.NewRequest(http.MethodDelete, "/admin/orders/ord_1", strings.NewReader(payload)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if stub.lastDelete.Reason != "pedido duplicado" || stub.lastDelete.ActorID != "adm_rosa" {
		t.Fatalf("unexpected delete command: %+v", stub.lastDelete)
	}
	if stub.lastDelete.System {
		t.Fatalf("manual delete must not carry the system flag")
	}
}

func TestAdminDeleteOrderEditWindowClosed(t *testing.T) {
	stub := &stubOrderService{deleteErr: services.ErrOrderEditWindowClosed}
	router := newAdminRouter(&stubPromotionService{}, &stubCouponService{}, stub)

	req := asAdmin(httptest.NewRequest(http.MethodDelete, "/admin/orders/ord_1", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminListOrdersPassesFilters(t *testing.T) {
	stub := &stubOrderService{page: domain.CursorPage[services.OrderView]{Items: []services.OrderView{userOrderView()}}}
	router := newAdminRouter(&stubPromotionService{}, &stubCouponService{}, stub)

	req := asAdmin(httptest.NewRequest(http.MethodGet, "/admin/orders?user_id=usr_ana&include_deleted=true&status=pending", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if stub.lastFilter.UserID != "usr_ana" || !stub.lastFilter.IncludeDeleted {
		t.Fatalf("unexpected filter: %+v", stub.lastFilter)
	}
}
