package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/detalia/storefront-api/internal/domain"
)

func newCatalogFixture(t *testing.T, repo *fakeCatalogRepo) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{Catalog: repo})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestGetProductHidesUnpublished(t *testing.T) {
	hidden := publishedProduct("prod_draft", 5000)
	hidden.IsPublished = false
	svc := newCatalogFixture(t, newFakeCatalogRepo(hidden))

	_, err := svc.GetProduct(context.Background(), "prod_draft")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected unpublished product to be invisible, got %v", err)
	}
}

func TestResolveVariantSelection(t *testing.T) {
	product := publishedProduct("prod_bottle", 0)
	product.HasVariants = true
	product.Variants = []domain.ProductVariant{
		{ID: "var_450", ProductID: "prod_bottle", Type: domain.VariantTypeCapacity, Label: "450ml", Price: 4500},
		{ID: "var_325", ProductID: "prod_bottle", Type: domain.VariantTypeCapacity, Label: "325ml", Price: 3500, IsDefault: true},
	}
	plain := publishedProduct("prod_mug", 4150)
	svc := newCatalogFixture(t, newFakeCatalogRepo(product, plain))

	resolved, err := svc.ResolveVariant(context.Background(), "prod_bottle", "var_450")
	if err != nil {
		t.Fatalf("resolve explicit variant: %v", err)
	}
	if resolved.BasePrice != 4500 || resolved.StockKey != "prod_bottle/var_450" || resolved.Label != "450ml" {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}

	resolved, err = svc.ResolveVariant(context.Background(), "prod_bottle", "")
	if err != nil {
		t.Fatalf("resolve default variant: %v", err)
	}
	if resolved.Variant == nil || !resolved.Variant.IsDefault || resolved.BasePrice != 3500 {
		t.Fatalf("expected default variant, got %+v", resolved)
	}

	resolved, err = svc.ResolveVariant(context.Background(), "prod_mug", "")
	if err != nil {
		t.Fatalf("resolve variantless product: %v", err)
	}
	if resolved.Variant != nil || resolved.BasePrice != 4150 || resolved.StockKey != "prod_mug" {
		t.Fatalf("expected product-level resolution, got %+v", resolved)
	}

	_, err = svc.ResolveVariant(context.Background(), "prod_bottle", "var_999")
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected variant not found, got %v", err)
	}
}

func TestListProductsFilters(t *testing.T) {
	mug := publishedProduct("prod_mug", 4150)
	polo := publishedProduct("prod_polo", 8000)
	polo.CategoryID = "cat_shirts"
	draft := publishedProduct("prod_draft", 1000)
	draft.IsPublished = false
	svc := newCatalogFixture(t, newFakeCatalogRepo(mug, polo, draft))

	category := "cat_shirts"
	page, err := svc.ListProducts(context.Background(), CatalogListFilter{CategoryID: &category, OnlyPublished: true})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "prod_polo" {
		t.Fatalf("unexpected listing: %+v", page.Items)
	}
}
