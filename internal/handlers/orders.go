package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/detalia/storefront-api/internal/platform/auth"
	"github.com/detalia/storefront-api/internal/platform/httpx"
	"github.com/detalia/storefront-api/internal/services"
)

const (
	defaultOrderPageSize   = 20
	maxOrderPageSize       = 100
	maxOrderCancelBodySize = 4 * 1024
)

// OrderHandlers exposes order endpoints scoped to the requesting identity.
// Admin-wide order management lives under /admin.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireIdentity())
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity := identityFromRequest(ctx)

	query := r.URL.Query()
	pagination, err := parsePagination(query, defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	statuses, err := parseStatusFilters(query["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		UserID:     identity.UserID,
		GuestEmail: identity.GuestEmail,
		Status:     statuses,
		Pagination: pagination,
	}
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.DateRange.To = &ts
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, view := range page.Items {
		items = append(items, buildOrderSummary(view))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity := identityFromRequest(ctx)

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	view, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if !ownsOrder(ctx, view.Order, identity) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, orderViewResponse{Order: buildOrderViewPayload(view)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity := identityFromRequest(ctx)

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderCancelBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	}

	view, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if !ownsOrder(ctx, view.Order, identity) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}

	cancelled, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		ActorID: identity.Key(),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(cancelled)})
}

// ownsOrder reports whether the identity placed the order. Staff and admin
// roles bypass the ownership check.
func ownsOrder(ctx context.Context, order services.Order, identity services.Identity) bool {
	if caller, ok := auth.IdentityFromContext(ctx); ok && caller.HasAnyRole(auth.RoleAdmin, auth.RoleStaff) {
		return true
	}
	if identity.UserID != "" {
		return order.UserRef == identity.UserID
	}
	return identity.GuestEmail != "" && strings.EqualFold(order.GuestEmail, identity.GuestEmail)
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

type orderViewResponse struct {
	Order orderViewPayload `json:"order"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	Total       int64  `json:"total"`
	IsDelayed   bool   `json:"isDelayed"`
	CreatedAt   string `json:"createdAt"`
}

type orderViewPayload struct {
	orderPayload
	IsDelayed bool `json:"isDelayed"`
	CanEdit   bool `json:"canEdit"`
}

type orderPayload struct {
	ID           string                `json:"id"`
	OrderNumber  string                `json:"orderNumber"`
	UserID       string                `json:"userId,omitempty"`
	GuestEmail   string                `json:"guestEmail,omitempty"`
	Status       string                `json:"status"`
	Currency     string                `json:"currency"`
	Items        []orderItemPayload    `json:"items"`
	Totals       orderTotalsPayload    `json:"totals"`
	DiscountInfo []discountLinePayload `json:"discountInfo"`
	CouponCode   string                `json:"couponCode,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	CreatedAt    string                `json:"createdAt"`
	UpdatedAt    string                `json:"updatedAt,omitempty"`
	DeliveredAt  string                `json:"deliveredAt,omitempty"`
	CancelledAt  string                `json:"cancelledAt,omitempty"`
	CancelReason string                `json:"cancelReason,omitempty"`
}

type orderItemPayload struct {
	ProductID     string `json:"productId"`
	VariantID     string `json:"variantId,omitempty"`
	Name          string `json:"name"`
	VariantLabel  string `json:"variantLabel,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unitPrice"`
	BasePrice     int64  `json:"basePrice"`
	Total         int64  `json:"total"`
	DiscountLabel string `json:"discountLabel,omitempty"`
}

type orderTotalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

func buildOrderSummary(view services.OrderView) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          view.Order.ID,
		OrderNumber: view.Order.OrderNumber,
		Status:      string(view.Order.Status),
		Currency:    view.Order.Currency,
		Total:       view.Order.Totals.Total,
		IsDelayed:   view.IsDelayed,
		CreatedAt:   formatTime(view.Order.CreatedAt),
	}
}

func buildOrderViewPayload(view services.OrderView) orderViewPayload {
	return orderViewPayload{
		orderPayload: buildOrderPayload(view.Order),
		IsDelayed:    view.IsDelayed,
		CanEdit:      view.CanEdit,
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		UserID:       order.UserRef,
		GuestEmail:   order.GuestEmail,
		Status:       string(order.Status),
		Currency:     order.Currency,
		Items:        make([]orderItemPayload, 0, len(order.Items)),
		Totals:       orderTotalsPayload{Subtotal: order.Totals.Subtotal, Discount: order.Totals.Discount, Total: order.Totals.Total},
		DiscountInfo: buildDiscountLinePayloads(order.DiscountInfo),
		Notes:        order.Notes,
		CreatedAt:    formatTime(order.CreatedAt),
		UpdatedAt:    formatTime(order.UpdatedAt),
		DeliveredAt:  formatTime(pointerTime(order.DeliveredAt)),
		CancelledAt:  formatTime(pointerTime(order.CancelledAt)),
	}
	if order.CouponCode != nil {
		payload.CouponCode = *order.CouponCode
	}
	if order.CancelReason != nil {
		payload.CancelReason = *order.CancelReason
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			Name:          item.Name,
			VariantLabel:  item.VariantLabel,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			BasePrice:     item.BasePrice,
			Total:         item.Total,
			DiscountLabel: item.DiscountLabel,
		})
	}
	return payload
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrOrderDeleted):
		// Soft-deleted orders are indistinguishable from absent ones.
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderTerminal):
		httpx.WriteError(ctx, w, httpx.NewError("order_terminal", "order is in a terminal status", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_transition", "status change would move the order backwards", http.StatusConflict))
	case errors.Is(err, services.ErrOrderEditWindowClosed):
		httpx.WriteError(ctx, w, httpx.NewError("order_edit_window_closed", "order is past its edit window", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
