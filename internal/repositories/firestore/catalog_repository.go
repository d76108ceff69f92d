package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/detalia/storefront-api/internal/domain"
	pfirestore "github.com/detalia/storefront-api/internal/platform/firestore"
	"github.com/detalia/storefront-api/internal/platform/pagination"
	"github.com/detalia/storefront-api/internal/repositories"
)

const (
	productsCollection   = "products"
	categoriesCollection = "categories"
)

type productVariantDocument struct {
	ID        string `firestore:"id"`
	Type      string `firestore:"type"`
	Label     string `firestore:"label"`
	Price     int64  `firestore:"price"`
	Stock     int    `firestore:"stock"`
	IsDefault bool   `firestore:"isDefault"`
}

type productDocument struct {
	Name                 string                   `firestore:"name"`
	CategoryRef          string                   `firestore:"categoryRef"`
	ListPrice            int64                    `firestore:"listPrice"`
	Stock                int                      `firestore:"stock"`
	FlashDiscountPercent int64                    `firestore:"flashDiscountPercent,omitempty"`
	FlashDiscountEndsAt  *time.Time               `firestore:"flashDiscountEndsAt,omitempty"`
	HasVariants          bool                     `firestore:"hasVariants"`
	Variants             []productVariantDocument `firestore:"variants,omitempty"`
	IsPublished          bool                     `firestore:"isPublished"`
	CreatedAt            time.Time                `firestore:"createdAt"`
	UpdatedAt            time.Time                `firestore:"updatedAt"`
}

func newProductDocument(product domain.Product) productDocument {
	variants := make([]productVariantDocument, len(product.Variants))
	for i, v := range product.Variants {
		variants[i] = productVariantDocument{
			ID:        strings.TrimSpace(v.ID),
			Type:      string(v.Type),
			Label:     v.Label,
			Price:     v.Price,
			Stock:     v.Stock,
			IsDefault: v.IsDefault,
		}
	}
	return productDocument{
		Name:                 strings.TrimSpace(product.Name),
		CategoryRef:          strings.TrimSpace(product.CategoryID),
		ListPrice:            product.ListPrice,
		Stock:                product.Stock,
		FlashDiscountPercent: product.FlashDiscountPercent,
		FlashDiscountEndsAt:  product.FlashDiscountEndsAt,
		HasVariants:          product.HasVariants,
		Variants:             variants,
		IsPublished:          product.IsPublished,
		CreatedAt:            product.CreatedAt.UTC(),
		UpdatedAt:            product.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	variants := make([]domain.ProductVariant, len(d.Variants))
	for i, v := range d.Variants {
		variants[i] = domain.ProductVariant{
			ID:        v.ID,
			ProductID: id,
			Type:      domain.VariantType(v.Type),
			Label:     v.Label,
			Price:     v.Price,
			Stock:     v.Stock,
			IsDefault: v.IsDefault,
		}
	}
	return domain.Product{
		ID:                   id,
		Name:                 d.Name,
		CategoryID:           d.CategoryRef,
		ListPrice:            d.ListPrice,
		Stock:                d.Stock,
		FlashDiscountPercent: d.FlashDiscountPercent,
		FlashDiscountEndsAt:  d.FlashDiscountEndsAt,
		HasVariants:          d.HasVariants,
		Variants:             variants,
		IsPublished:          d.IsPublished,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

type categoryDocument struct {
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CatalogRepository implements repositories.CatalogRepository backed by Firestore.
type CatalogRepository struct {
	provider   *pfirestore.Provider
	products   *pfirestore.BaseRepository[productDocument]
	categories *pfirestore.BaseRepository[categoryDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider:   provider,
		products:   pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		categories: pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil, nil),
	}, nil
}

// GetPublishedProduct fetches a product visible to shoppers. Unpublished
// products surface as not found.
func (r *CatalogRepository) GetPublishedProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := r.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if !product.IsPublished {
		return domain.Product{}, pfirestore.WrapError("products.getPublished", status.Errorf(codes.NotFound, "product %s not published", productID))
	}
	return product, nil
}

// GetProduct fetches a product regardless of publication state.
func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product get: id is required")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.get", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// UpsertProduct writes the full product document.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, errors.New("product upsert: id is required")
	}
	if _, err := r.products.Set(ctx, product.ID, newProductDocument(product)); err != nil {
		return domain.Product{}, pfirestore.WrapError("products.upsert", err)
	}
	return product, nil
}

// GetCategory fetches one category.
func (r *CatalogRepository) GetCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.categories == nil {
		return domain.Category{}, errors.New("catalog repository not initialised")
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, errors.New("category get: id is required")
	}
	doc, err := r.categories.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, pfirestore.WrapError("categories.get", err)
	}
	return domain.Category{
		ID:        doc.ID,
		Name:      doc.Data.Name,
		CreatedAt: doc.Data.CreatedAt,
		UpdatedAt: doc.Data.UpdatedAt,
	}, nil
}

// ListProducts returns products ordered by name with an opaque cursor.
func (r *CatalogRepository) ListProducts(ctx context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("catalog repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
	}

	query := client.Collection(productsCollection).Query
	if filter.CategoryID != nil {
		query = query.Where("categoryRef", "==", strings.TrimSpace(*filter.CategoryID))
	}
	if filter.OnlyPublished {
		query = query.Where("isPublished", "==", true)
	}
	query = query.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeToken[productPageToken](token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		query = query.StartAfter(decoded.Name, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		products = append(products, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		encoded, err := pagination.EncodeToken(productPageToken{ID: last.ID, Name: last.Name})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Product]{Items: products, NextPageToken: nextToken}, nil
}

type productPageToken struct {
	ID   string
	Name string
}
