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

const maxCouponAdminBodySize = 16 * 1024

// AdminCouponHandlers manages the coupon lifecycle. Deletes are soft and
// keep the audit trail; deleted codes validate as unknown.
type AdminCouponHandlers struct {
	coupons services.CouponService
}

// NewAdminCouponHandlers constructs a new AdminCouponHandlers instance.
func NewAdminCouponHandlers(coupons services.CouponService) *AdminCouponHandlers {
	return &AdminCouponHandlers{coupons: coupons}
}

// Routes registers the /admin/coupons endpoints.
func (h *AdminCouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCoupons)
	r.Post("/", h.createCoupon)
	r.Get("/{couponID}", h.getCoupon)
	r.Put("/{couponID}", h.updateCoupon)
	r.Delete("/{couponID}", h.deleteCoupon)
}

type couponRequest struct {
	Code              string  `json:"code"`
	Type              string  `json:"type"`
	Value             int64   `json:"value"`
	MinPurchase       int64   `json:"minPurchase"`
	AppliesTo         string  `json:"appliesTo"`
	TargetID          string  `json:"targetId"`
	MaxUses           *int64  `json:"maxUses"`
	UsageLimitPerUser int64   `json:"usageLimitPerUser"`
	Active            bool    `json:"active"`
	ExpiresAt         *string `json:"expiresAt"`
}

type deleteCouponRequest struct {
	Reason string `json:"reason"`
}

type couponResponse struct {
	Coupon couponPayload `json:"coupon"`
}

type couponListResponse struct {
	Items         []couponPayload `json:"items"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

type couponPayload struct {
	ID                string `json:"id"`
	Code              string `json:"code"`
	Type              string `json:"type"`
	Value             int64  `json:"value"`
	MinPurchase       int64  `json:"minPurchase,omitempty"`
	AppliesTo         string `json:"appliesTo"`
	TargetID          string `json:"targetId,omitempty"`
	MaxUses           *int64 `json:"maxUses,omitempty"`
	Uses              int64  `json:"uses"`
	UsageLimitPerUser int64  `json:"usageLimitPerUser,omitempty"`
	Active            bool   `json:"active"`
	ExpiresAt         string `json:"expiresAt,omitempty"`
	Deleted           bool   `json:"deleted,omitempty"`
	DeletedAt         string `json:"deletedAt,omitempty"`
	DeletedBy         string `json:"deletedBy,omitempty"`
	DeletionReason    string `json:"deletionReason,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

func (h *AdminCouponHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pagination, err := parsePagination(query, defaultAdminPageSize, maxAdminPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.CouponListFilter{
		IncludeDeleted: strings.EqualFold(strings.TrimSpace(query.Get("include_deleted")), "true"),
		Pagination:     pagination,
	}
	if raw := strings.TrimSpace(query.Get("active")); raw != "" {
		active := strings.EqualFold(raw, "true")
		filter.Active = &active
	}

	page, err := h.coupons.ListCoupons(ctx, filter)
	if err != nil {
		writeAdminCouponError(ctx, w, err)
		return
	}

	items := make([]couponPayload, 0, len(page.Items))
	for _, coupon := range page.Items {
		items = append(items, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, couponListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminCouponHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	coupon, ok := decodeCouponRequest(ctx, w, r)
	if !ok {
		return
	}

	created, err := h.coupons.CreateCoupon(ctx, services.UpsertCouponCommand{
		Coupon:  coupon,
		ActorID: adminActorID(ctx),
	})
	if err != nil {
		writeAdminCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, couponResponse{Coupon: buildCouponPayload(created)})
}

func (h *AdminCouponHandlers) getCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	couponID := strings.TrimSpace(chi.URLParam(r, "couponID"))
	if couponID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon id is required", http.StatusBadRequest))
		return
	}

	coupon, err := h.coupons.GetCoupon(ctx, couponID)
	if err != nil {
		writeAdminCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, couponResponse{Coupon: buildCouponPayload(coupon)})
}

func (h *AdminCouponHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	couponID := strings.TrimSpace(chi.URLParam(r, "couponID"))
	if couponID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon id is required", http.StatusBadRequest))
		return
	}

	coupon, ok := decodeCouponRequest(ctx, w, r)
	if !ok {
		return
	}
	coupon.ID = couponID

	updated, err := h.coupons.UpdateCoupon(ctx, services.UpsertCouponCommand{
		Coupon:  coupon,
		ActorID: adminActorID(ctx),
	})
	if err != nil {
		writeAdminCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, couponResponse{Coupon: buildCouponPayload(updated)})
}

func (h *AdminCouponHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	couponID := strings.TrimSpace(chi.URLParam(r, "couponID"))
	if couponID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon id is required", http.StatusBadRequest))
		return
	}

	var req deleteCouponRequest
	body, err := readLimitedBody(r, maxCouponAdminBodySize)
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

	err = h.coupons.SoftDeleteCoupon(ctx, services.DeleteCouponCommand{
		CouponID: couponID,
		ActorID:  adminActorID(ctx),
		Reason:   strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeAdminCouponError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeCouponRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (domain.Coupon, bool) {
	body, err := readLimitedBody(r, maxCouponAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return domain.Coupon{}, false
	}
	var req couponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return domain.Coupon{}, false
	}

	coupon := domain.Coupon{
		Code:              req.Code,
		Type:              domain.DiscountType(strings.ToLower(strings.TrimSpace(req.Type))),
		Value:             req.Value,
		MinPurchase:       req.MinPurchase,
		AppliesTo:         domain.DiscountScope(strings.ToLower(strings.TrimSpace(req.AppliesTo))),
		TargetID:          strings.TrimSpace(req.TargetID),
		MaxUses:           req.MaxUses,
		UsageLimitPerUser: req.UsageLimitPerUser,
		Active:            req.Active,
	}
	if req.ExpiresAt != nil {
		ts, err := parseTimeParam(strings.TrimSpace(*req.ExpiresAt))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expiresAt must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return domain.Coupon{}, false
		}
		coupon.ExpiresAt = &ts
	}
	return coupon, true
}

func buildCouponPayload(coupon services.Coupon) couponPayload {
	payload := couponPayload{
		ID:                coupon.ID,
		Code:              coupon.Code,
		Type:              string(coupon.Type),
		Value:             coupon.Value,
		MinPurchase:       coupon.MinPurchase,
		AppliesTo:         string(coupon.AppliesTo),
		TargetID:          coupon.TargetID,
		MaxUses:           coupon.MaxUses,
		Uses:              coupon.Uses,
		UsageLimitPerUser: coupon.UsageLimitPerUser,
		Active:            coupon.Active,
		ExpiresAt:         formatTime(pointerTime(coupon.ExpiresAt)),
		CreatedAt:         formatTime(coupon.CreatedAt),
		UpdatedAt:         formatTime(coupon.UpdatedAt),
	}
	if coupon.Audit.IsDeleted() {
		payload.Deleted = true
		payload.DeletedAt = formatTime(pointerTime(coupon.Audit.DeletedAt))
		payload.DeletedBy = coupon.Audit.DeletedBy
		payload.DeletionReason = coupon.Audit.DeletionReason
	}
	return payload
}

func writeAdminCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCouponInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponMissing):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupon_error", "failed to process coupon request", http.StatusInternalServerError))
	}
}
