package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/detalia/storefront-api/internal/platform/httpx"
	"github.com/detalia/storefront-api/internal/services"
)

const (
	defaultCatalogPageSize = 20
	maxCatalogPageSize     = 100
)

// CatalogHandlers exposes the public catalog read path: product listings and
// the live price endpoint backed by the pricing resolver.
type CatalogHandlers struct {
	catalog services.CatalogService
	pricing services.PricingService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(catalog services.CatalogService, pricing services.PricingService) *CatalogHandlers {
	return &CatalogHandlers{
		catalog: catalog,
		pricing: pricing,
	}
}

// Routes registers the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/products/{productID}/price", h.getPrice)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pagination, err := parsePagination(query, defaultCatalogPageSize, maxCatalogPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.CatalogListFilter{
		OnlyPublished: true,
		Pagination:    pagination,
	}
	if category := strings.TrimSpace(query.Get("category")); category != "" {
		filter.CategoryID = &category
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

// getPrice answers the current price of one product or variant. The quote is
// resolved live; nothing here is cacheable beyond the response itself.
func (h *CatalogHandlers) getPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}
	variantID := strings.TrimSpace(r.URL.Query().Get("variant"))

	quote, err := h.pricing.ResolvePrice(ctx, productID, variantID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, priceResponse{
		ProductID: productID,
		VariantID: variantID,
		Price:     buildPriceQuotePayload(quote),
	})
}

type productListResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type priceResponse struct {
	ProductID string            `json:"productId"`
	VariantID string            `json:"variantId,omitempty"`
	Price     priceQuotePayload `json:"price"`
}

type productPayload struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name"`
	CategoryID           string                  `json:"categoryId,omitempty"`
	ListPrice            int64                   `json:"listPrice"`
	FlashDiscountPercent int64                   `json:"flashDiscountPercent,omitempty"`
	FlashDiscountEndsAt  string                  `json:"flashDiscountEndsAt,omitempty"`
	HasVariants          bool                    `json:"hasVariants"`
	Variants             []productVariantPayload `json:"variants,omitempty"`
	CreatedAt            string                  `json:"createdAt,omitempty"`
	UpdatedAt            string                  `json:"updatedAt,omitempty"`
}

type productVariantPayload struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Label     string `json:"label"`
	Price     int64  `json:"price"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

type priceQuotePayload struct {
	BasePrice      int64  `json:"basePrice"`
	FinalPrice     int64  `json:"finalPrice"`
	DiscountAmount int64  `json:"discountAmount"`
	DiscountLabel  string `json:"discountLabel,omitempty"`
	Source         string `json:"source,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	payload := productPayload{
		ID:                   product.ID,
		Name:                 product.Name,
		CategoryID:           product.CategoryID,
		ListPrice:            product.ListPrice,
		FlashDiscountPercent: product.FlashDiscountPercent,
		FlashDiscountEndsAt:  formatTime(pointerTime(product.FlashDiscountEndsAt)),
		HasVariants:          product.HasVariants,
		CreatedAt:            formatTime(product.CreatedAt),
		UpdatedAt:            formatTime(product.UpdatedAt),
	}
	for _, variant := range product.Variants {
		payload.Variants = append(payload.Variants, productVariantPayload{
			ID:        variant.ID,
			Type:      string(variant.Type),
			Label:     variant.Label,
			Price:     variant.Price,
			IsDefault: variant.IsDefault,
		})
	}
	return payload
}

func buildPriceQuotePayload(quote services.PriceQuote) priceQuotePayload {
	return priceQuotePayload{
		BasePrice:      quote.BasePrice,
		FinalPrice:     quote.FinalPrice,
		DiscountAmount: quote.DiscountAmount,
		DiscountLabel:  quote.DiscountLabel,
		Source:         string(quote.Source),
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("variant_not_found", "variant not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogInvalidInput), errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}
