package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/repositories"
)

var (
	// ErrCatalogRepositoryMissing indicates the catalog repository dependency is absent.
	ErrCatalogRepositoryMissing = errors.New("catalog service: repository is not configured")
	// ErrCatalogInvalidInput signals a missing or malformed product reference.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrProductNotFound indicates no published product exists for the id.
	ErrProductNotFound = errors.New("catalog service: product not found")
	// ErrVariantNotFound indicates the requested variant does not belong to the product.
	ErrVariantNotFound = errors.New("catalog service: variant not found")
)

// CatalogServiceDeps bundles collaborators required to construct a catalog service.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type catalogService struct {
	repo repositories.CatalogRepository
}

// NewCatalogService wires the catalog read path over the product repository.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, ErrCatalogRepositoryMissing
	}
	return &catalogService{repo: deps.Catalog}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.repo.GetPublishedProduct(ctx, productID)
	if err != nil {
		return Product{}, translateCatalogError(err)
	}
	return product, nil
}

func (s *catalogService) ResolveVariant(ctx context.Context, productID, variantID string) (ResolvedVariant, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return ResolvedVariant{}, err
	}
	return resolveVariant(product, variantID)
}

func (s *catalogService) ListProducts(ctx context.Context, filter CatalogListFilter) (domain.CursorPage[Product], error) {
	page, err := s.repo.ListProducts(ctx, repositories.ProductFilter{
		CategoryID:    filter.CategoryID,
		OnlyPublished: filter.OnlyPublished,
		Pagination:    filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, translateCatalogError(err)
	}
	return page, nil
}

// resolveVariant picks the variant to price: the explicit one when requested,
// the default variant for variant products, or the product row itself.
func resolveVariant(product Product, variantID string) (ResolvedVariant, error) {
	variantID = strings.TrimSpace(variantID)

	if variantID != "" {
		variant, ok := product.Variant(variantID)
		if !ok {
			return ResolvedVariant{}, fmt.Errorf("%w: %s on product %s", ErrVariantNotFound, variantID, product.ID)
		}
		return ResolvedVariant{
			Product:   product,
			Variant:   &variant,
			BasePrice: variant.Price,
			Label:     variant.Label,
			StockKey:  product.ID + "/" + variant.ID,
		}, nil
	}

	if product.HasVariants {
		variant, ok := product.DefaultVariant()
		if !ok {
			return ResolvedVariant{}, fmt.Errorf("%w: product %s has no default variant", ErrVariantNotFound, product.ID)
		}
		return ResolvedVariant{
			Product:   product,
			Variant:   &variant,
			BasePrice: variant.Price,
			Label:     variant.Label,
			StockKey:  product.ID + "/" + variant.ID,
		}, nil
	}

	return ResolvedVariant{
		Product:   product,
		BasePrice: product.ListPrice,
		StockKey:  product.ID,
	}, nil
}

func translateCatalogError(err error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
		return ErrProductNotFound
	}
	return err
}
