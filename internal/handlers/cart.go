package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/platform/auth"
	"github.com/detalia/storefront-api/internal/platform/httpx"
	"github.com/detalia/storefront-api/internal/services"
)

const maxCartBodySize = 32 * 1024

// CartHandlers prices untrusted carts. Nothing here writes; the same payload
// shape later feeds checkout.
type CartHandlers struct {
	pricing services.PricingService
}

// NewCartHandlers constructs a new CartHandlers instance.
func NewCartHandlers(pricing services.PricingService) *CartHandlers {
	return &CartHandlers{pricing: pricing}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/price", h.priceCart)
}

type cartLineRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type priceCartRequest struct {
	Items      []cartLineRequest `json:"items"`
	CouponCode *string           `json:"couponCode"`
}

func (h *CartHandlers) priceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req priceCartRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.PriceCartCommand{
		Lines:      cartLinesFromRequest(req.Items),
		CouponCode: req.CouponCode,
		Identity:   identityFromRequest(ctx),
	}

	quote, err := h.pricing.PriceCart(ctx, cmd)
	if err != nil {
		writePricingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartQuotePayload(quote))
}

type cartQuotePayload struct {
	Lines        []pricedLinePayload   `json:"lines"`
	Subtotal     int64                 `json:"subtotal"`
	Discount     int64                 `json:"discount"`
	Total        int64                 `json:"total"`
	DiscountInfo []discountLinePayload `json:"discountInfo"`
	Coupon       *couponResultPayload  `json:"coupon,omitempty"`
}

type pricedLinePayload struct {
	ProductID    string            `json:"productId"`
	VariantID    string            `json:"variantId,omitempty"`
	Name         string            `json:"name"`
	VariantLabel string            `json:"variantLabel,omitempty"`
	Quantity     int               `json:"quantity"`
	Price        priceQuotePayload `json:"price"`
	LineTotal    int64             `json:"lineTotal"`
}

type discountLinePayload struct {
	Source string `json:"source"`
	Label  string `json:"label,omitempty"`
	Code   string `json:"code,omitempty"`
	Amount int64  `json:"amount"`
}

type couponResultPayload struct {
	Code           string   `json:"code"`
	Label          string   `json:"label,omitempty"`
	Type           string   `json:"type"`
	Value          int64    `json:"value"`
	Amount         int64    `json:"amount"`
	AppliedLineIDs []string `json:"appliedLineIds"`
}

func buildCouponResultPayload(application domain.CouponApplication) couponResultPayload {
	ids := application.AppliedLineIDs
	if ids == nil {
		ids = []string{}
	}
	return couponResultPayload{
		Code:           application.Code,
		Label:          application.Label,
		Type:           string(application.Type),
		Value:          application.Value,
		Amount:         application.Amount,
		AppliedLineIDs: ids,
	}
}

func buildCartQuotePayload(quote services.CartQuote) cartQuotePayload {
	payload := cartQuotePayload{
		Lines:        make([]pricedLinePayload, 0, len(quote.Snapshot.Lines)),
		Subtotal:     quote.Breakdown.Subtotal,
		Discount:     quote.Breakdown.Discount,
		Total:        quote.Breakdown.Total,
		DiscountInfo: buildDiscountLinePayloads(quote.Breakdown.Lines),
	}
	for _, line := range quote.Snapshot.Lines {
		payload.Lines = append(payload.Lines, pricedLinePayload{
			ProductID:    line.ProductID,
			VariantID:    line.VariantID,
			Name:         line.Name,
			VariantLabel: line.VariantLabel,
			Quantity:     line.Quantity,
			Price:        buildPriceQuotePayload(line.Quote),
			LineTotal:    line.LineTotal,
		})
	}
	if quote.Coupon != nil {
		coupon := buildCouponResultPayload(quote.Coupon.Application)
		payload.Coupon = &coupon
	}
	return payload
}

func buildDiscountLinePayloads(lines []domain.DiscountLine) []discountLinePayload {
	payloads := make([]discountLinePayload, 0, len(lines))
	for _, line := range lines {
		payloads = append(payloads, discountLinePayload{
			Source: string(line.Source),
			Label:  line.Label,
			Code:   line.Code,
			Amount: line.Amount,
		})
	}
	return payloads
}

func cartLinesFromRequest(items []cartLineRequest) []services.CartLine {
	lines := make([]services.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, services.CartLine{
			ProductID: strings.TrimSpace(item.ProductID),
			VariantID: strings.TrimSpace(item.VariantID),
			Quantity:  item.Quantity,
		})
	}
	return lines
}

// identityFromRequest returns the purchasing identity, zero-valued for
// anonymous browsing (pricing works without one; per-user coupon limits are
// then skipped).
func identityFromRequest(ctx context.Context) services.Identity {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return services.Identity{}
	}
	return services.Identity{UserID: identity.UserID, GuestEmail: identity.GuestEmail}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// writePricingError maps pricing failures, including coupon rejections, which
// render as 422 with the machine-readable rejection code.
func writePricingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if rejection, ok := services.AsCouponRejection(err); ok {
		writeCouponRejection(ctx, w, rejection)
		return
	}
	switch {
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_cart_line", "cart references an unknown product or variant", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "not enough stock to fulfil the cart", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("pricing_error", "failed to price cart", http.StatusInternalServerError))
	}
}

func writeCouponRejection(ctx context.Context, w http.ResponseWriter, rejection *services.CouponRejectionError) {
	httpx.WriteError(ctx, w, httpx.
		NewError("coupon_rejected", rejection.Message, http.StatusUnprocessableEntity).
		WithDetails(map[string]any{"code": rejection.Code}))
}
