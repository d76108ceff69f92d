package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/services"
)

type stubCatalogService struct {
	product services.Product
	page    domain.CursorPage[services.Product]
	err     error

	lastFilter services.CatalogListFilter
}

func (s *stubCatalogService) GetProduct(context.Context, string) (services.Product, error) {
	if s.err != nil {
		return services.Product{}, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) ResolveVariant(context.Context, string, string) (services.ResolvedVariant, error) {
	if s.err != nil {
		return services.ResolvedVariant{}, s.err
	}
	return services.ResolvedVariant{Product: s.product}, nil
}

func (s *stubCatalogService) ListProducts(_ context.Context, filter services.CatalogListFilter) (domain.CursorPage[services.Product], error) {
	s.lastFilter = filter
	if s.err != nil {
		return domain.CursorPage[services.Product]{}, s.err
	}
	return s.page, nil
}

func newCatalogRouter(catalog services.CatalogService, pricing services.PricingService) http.Handler {
	h := NewCatalogHandlers(catalog, pricing)
	r := chi.NewRouter()
	r.Route("/catalog", h.Routes)
	return r
}

func TestGetPriceReturnsResolvedQuote(t *testing.T) {
	pricing := &stubPricingService{priceQuote: services.PriceQuote{
		BasePrice:      10000,
		FinalPrice:     8000,
		DiscountAmount: 2000,
		DiscountLabel:  "Flash sale -20%",
		Source:         domain.SourceFlash,
	}}
	router := newCatalogRouter(&stubCatalogService{}, pricing)

	req := httptest.NewRequest(http.MethodGet, "/catalog/products/prod_polo/price?variant=var_m", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body priceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.ProductID != "prod_polo" || body.VariantID != "var_m" {
		t.Fatalf("unexpected identifiers: %+v", body)
	}
	if body.Price.FinalPrice != 8000 || body.Price.Source != string(domain.SourceFlash) {
		t.Fatalf("unexpected quote: %+v", body.Price)
	}
}

func TestGetPriceUnknownProductRenders404(t *testing.T) {
	router := newCatalogRouter(&stubCatalogService{}, &stubPricingService{err: services.ErrProductNotFound})

	req := httptest.NewRequest(http.MethodGet, "/catalog/products/prod_missing/price", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestListProductsForcesPublishedFilter(t *testing.T) {
	stub := &stubCatalogService{page: domain.CursorPage[services.Product]{
		Items: []services.Product{{ID: "prod_mug", Name: "Taza", ListPrice: 4150, IsPublished: true}},
	}}
	router := newCatalogRouter(stub, &stubPricingService{})

	req := httptest.NewRequest(http.MethodGet, "/catalog/products?category=cat_mugs", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !stub.lastFilter.OnlyPublished {
		t.Fatalf("public listing must force the published filter")
	}
	if stub.lastFilter.CategoryID == nil || *stub.lastFilter.CategoryID != "cat_mugs" {
		t.Fatalf("expected category filter, got %+v", stub.lastFilter.CategoryID)
	}
}
