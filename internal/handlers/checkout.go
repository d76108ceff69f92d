package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/detalia/storefront-api/internal/platform/auth"
	"github.com/detalia/storefront-api/internal/platform/httpx"
	"github.com/detalia/storefront-api/internal/services"
)

const maxCheckoutBodySize = 32 * 1024

// CheckoutHandlers turns a cart into an order. The route group carries the
// idempotency middleware so a retried POST replays the stored response
// instead of committing twice.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs a new CheckoutHandlers instance.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes registers the /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireIdentity())
	r.Post("/", h.commitOrder)
}

type commitOrderRequest struct {
	Items      []cartLineRequest `json:"items"`
	CouponCode *string           `json:"couponCode"`
	Notes      string            `json:"notes"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

func (h *CheckoutHandlers) commitOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity := identityFromRequest(ctx)
	if identity.IsZero() {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "identity is required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req commitOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.checkout.CommitOrder(ctx, services.CommitOrderCommand{
		Identity:   identity,
		Lines:      cartLinesFromRequest(req.Items),
		CouponCode: req.CouponCode,
		Notes:      req.Notes,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if rejection, ok := services.AsCouponRejection(err); ok {
		writeCouponRejection(ctx, w, rejection)
		return
	}
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "not enough stock to fulfil the order", http.StatusConflict))
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_cart_line", "cart references an unknown product or variant", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to commit order", http.StatusInternalServerError))
	}
}
