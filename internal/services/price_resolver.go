package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/repositories"
)

var (
	// ErrPricingDependencyMissing indicates a required pricing collaborator is absent.
	ErrPricingDependencyMissing = errors.New("pricing service: dependency is not configured")
	// ErrPricingInvalidInput signals bad cart data such as missing lines or non-positive quantities.
	ErrPricingInvalidInput = errors.New("pricing service: invalid input")
)

// PricingServiceDeps bundles collaborators required to construct a
// PricingService. Stock is optional: when present, cart pricing rejects lines
// that outstrip current availability before checkout is attempted.
type PricingServiceDeps struct {
	Catalog    CatalogService
	Promotions PromotionService
	Coupons    CouponService
	Stock      repositories.StockRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type pricingService struct {
	catalog    CatalogService
	promotions PromotionService
	coupons    CouponService
	stock      repositories.StockRepository
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewPricingService wires the price resolution and cart aggregation paths.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog service", ErrPricingDependencyMissing)
	}
	if deps.Promotions == nil {
		return nil, fmt.Errorf("%w: promotion service", ErrPricingDependencyMissing)
	}
	if deps.Coupons == nil {
		return nil, fmt.Errorf("%w: coupon service", ErrPricingDependencyMissing)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &pricingService{
		catalog:    deps.Catalog,
		promotions: deps.Promotions,
		coupons:    deps.Coupons,
		stock:      deps.Stock,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

func (s *pricingService) ResolvePrice(ctx context.Context, productID, variantID string) (PriceQuote, error) {
	resolved, err := s.catalog.ResolveVariant(ctx, productID, variantID)
	if err != nil {
		return PriceQuote{}, err
	}
	return s.quoteFor(ctx, resolved, s.clock())
}

// quoteFor applies at most one item-level reduction: an active flash sale on
// the product row wins, otherwise the best-matching discount rule applies.
func (s *pricingService) quoteFor(ctx context.Context, resolved ResolvedVariant, now time.Time) (PriceQuote, error) {
	product := resolved.Product
	base := resolved.BasePrice
	if base < 0 {
		return PriceQuote{}, fmt.Errorf("%w: negative base price on product %s", ErrPricingInvalidInput, product.ID)
	}

	if flashActive(product, now) {
		amount := base * product.FlashDiscountPercent / 100
		return PriceQuote{
			BasePrice:      base,
			FinalPrice:     base - amount,
			DiscountAmount: amount,
			DiscountLabel:  fmt.Sprintf("Flash sale -%d%%", product.FlashDiscountPercent),
			Source:         domain.SourceFlash,
		}, nil
	}

	discount, err := s.promotions.ActiveDiscountFor(ctx, product, now)
	if err != nil {
		return PriceQuote{}, err
	}
	if discount != nil {
		amount := reductionAmount(base, discount.Type, discount.Value)
		if amount > 0 {
			return PriceQuote{
				BasePrice:      base,
				FinalPrice:     base - amount,
				DiscountAmount: amount,
				DiscountLabel:  discount.Name,
				Source:         domain.SourceDiscount,
			}, nil
		}
	}

	return PriceQuote{BasePrice: base, FinalPrice: base}, nil
}

// flashActive reports whether the product-row flash percentage applies at
// now. A missing end timestamp means the sale runs until switched off.
func flashActive(product Product, now time.Time) bool {
	if product.FlashDiscountPercent <= 0 || product.FlashDiscountPercent > 100 {
		return false
	}
	return product.FlashDiscountEndsAt == nil || now.Before(*product.FlashDiscountEndsAt)
}
