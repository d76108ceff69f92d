package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/platform/httpx"
	"github.com/detalia/storefront-api/internal/services"
)

const (
	maxDiscountBodySize     = 16 * 1024
	defaultAdminPageSize    = 20
	maxAdminPageSize        = 100
	adminActorFallbackLabel = "unknown"
)

// AdminDiscountHandlers manages admin-authored discount rules. The /admin
// group carries the role gate; handlers only resolve the acting admin.
type AdminDiscountHandlers struct {
	promotions services.PromotionService
}

// NewAdminDiscountHandlers constructs a new AdminDiscountHandlers instance.
func NewAdminDiscountHandlers(promotions services.PromotionService) *AdminDiscountHandlers {
	return &AdminDiscountHandlers{promotions: promotions}
}

// Routes registers the /admin/discounts endpoints.
func (h *AdminDiscountHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listDiscounts)
	r.Post("/", h.createDiscount)
	r.Get("/{discountID}", h.getDiscount)
	r.Put("/{discountID}", h.updateDiscount)
	r.Delete("/{discountID}", h.deleteDiscount)
}

type discountRequest struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Value        int64   `json:"value"`
	AppliesTo    string  `json:"appliesTo"`
	TargetID     string  `json:"targetId"`
	MinCartValue int64   `json:"minCartValue"`
	StartsAt     *string `json:"startsAt"`
	EndsAt       *string `json:"endsAt"`
	Active       bool    `json:"active"`
}

type discountResponse struct {
	Discount discountPayload `json:"discount"`
}

type discountListResponse struct {
	Items         []discountPayload `json:"items"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

type discountPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Value        int64  `json:"value"`
	AppliesTo    string `json:"appliesTo"`
	TargetID     string `json:"targetId,omitempty"`
	MinCartValue int64  `json:"minCartValue,omitempty"`
	StartsAt     string `json:"startsAt,omitempty"`
	EndsAt       string `json:"endsAt,omitempty"`
	Active       bool   `json:"active"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

func (h *AdminDiscountHandlers) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promotion_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pagination, err := parsePagination(query, defaultAdminPageSize, maxAdminPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.DiscountListFilter{Pagination: pagination}
	if raw := strings.TrimSpace(query.Get("applies_to")); raw != "" {
		scope := domain.DiscountScope(strings.ToLower(raw))
		filter.AppliesTo = &scope
	}
	if raw := strings.TrimSpace(query.Get("active")); raw != "" {
		active := strings.EqualFold(raw, "true")
		filter.Active = &active
	}

	page, err := h.promotions.ListDiscounts(ctx, filter)
	if err != nil {
		writeDiscountError(ctx, w, err)
		return
	}

	items := make([]discountPayload, 0, len(page.Items))
	for _, discount := range page.Items {
		items = append(items, buildDiscountPayload(discount))
	}
	writeJSONResponse(w, http.StatusOK, discountListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminDiscountHandlers) createDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promotion_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}

	discount, ok := decodeDiscountRequest(ctx, w, r)
	if !ok {
		return
	}

	created, err := h.promotions.CreateDiscount(ctx, services.UpsertDiscountCommand{
		Discount: discount,
		ActorID:  adminActorID(ctx),
	})
	if err != nil {
		writeDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, discountResponse{Discount: buildDiscountPayload(created)})
}

func (h *AdminDiscountHandlers) getDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promotion_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}

	discountID := strings.TrimSpace(chi.URLParam(r, "discountID"))
	if discountID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "discount id is required", http.StatusBadRequest))
		return
	}

	discount, err := h.promotions.GetDiscount(ctx, discountID)
	if err != nil {
		writeDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, discountResponse{Discount: buildDiscountPayload(discount)})
}

func (h *AdminDiscountHandlers) updateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promotion_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}

	discountID := strings.TrimSpace(chi.URLParam(r, "discountID"))
	if discountID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "discount id is required", http.StatusBadRequest))
		return
	}

	discount, ok := decodeDiscountRequest(ctx, w, r)
	if !ok {
		return
	}
	discount.ID = discountID

	updated, err := h.promotions.UpdateDiscount(ctx, services.UpsertDiscountCommand{
		Discount: discount,
		ActorID:  adminActorID(ctx),
	})
	if err != nil {
		writeDiscountError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, discountResponse{Discount: buildDiscountPayload(updated)})
}

func (h *AdminDiscountHandlers) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promotions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promotion_unavailable", "promotion service unavailable", http.StatusServiceUnavailable))
		return
	}

	discountID := strings.TrimSpace(chi.URLParam(r, "discountID"))
	if discountID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "discount id is required", http.StatusBadRequest))
		return
	}

	if err := h.promotions.DeleteDiscount(ctx, discountID); err != nil {
		writeDiscountError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeDiscountRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (domain.Discount, bool) {
	body, err := readLimitedBody(r, maxDiscountBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return domain.Discount{}, false
	}
	var req discountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return domain.Discount{}, false
	}

	discount := domain.Discount{
		Name:         strings.TrimSpace(req.Name),
		Type:         domain.DiscountType(strings.ToLower(strings.TrimSpace(req.Type))),
		Value:        req.Value,
		AppliesTo:    domain.DiscountScope(strings.ToLower(strings.TrimSpace(req.AppliesTo))),
		TargetID:     strings.TrimSpace(req.TargetID),
		MinCartValue: req.MinCartValue,
		Active:       req.Active,
	}
	if req.StartsAt != nil {
		ts, err := parseTimeParam(strings.TrimSpace(*req.StartsAt))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "startsAt must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return domain.Discount{}, false
		}
		discount.Window.StartsAt = &ts
	}
	if req.EndsAt != nil {
		ts, err := parseTimeParam(strings.TrimSpace(*req.EndsAt))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "endsAt must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return domain.Discount{}, false
		}
		discount.Window.EndsAt = &ts
	}
	return discount, true
}

func buildDiscountPayload(discount services.Discount) discountPayload {
	return discountPayload{
		ID:           discount.ID,
		Name:         discount.Name,
		Type:         string(discount.Type),
		Value:        discount.Value,
		AppliesTo:    string(discount.AppliesTo),
		TargetID:     discount.TargetID,
		MinCartValue: discount.MinCartValue,
		StartsAt:     formatTime(pointerTime(discount.Window.StartsAt)),
		EndsAt:       formatTime(pointerTime(discount.Window.EndsAt)),
		Active:       discount.Active,
		CreatedAt:    formatTime(discount.CreatedAt),
		UpdatedAt:    formatTime(discount.UpdatedAt),
	}
}

// adminActorID names the acting admin for audit fields.
func adminActorID(ctx context.Context) string {
	identity := identityFromRequest(ctx)
	if key := identity.Key(); key != "" {
		return key
	}
	return adminActorFallbackLabel
}

func writeDiscountError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrDiscountExcessive):
		httpx.WriteError(ctx, w, httpx.NewError("discount_excessive", "discount exceeds the allowed reduction", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrDiscountInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDiscountNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("discount_not_found", "discount not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("discount_error", "failed to process discount request", http.StatusInternalServerError))
	}
}
