package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
)

func TestPriceCartCartValueDiscount(t *testing.T) {
	product := publishedProduct("prod_polo", 8000)
	cartRule := domain.Discount{
		ID:           "dsc_cart",
		Name:         "10% sobre S/100",
		Type:         domain.DiscountTypePercentage,
		Value:        10,
		AppliesTo:    domain.ScopeCartValue,
		MinCartValue: 10000,
		Window:       activeWindow(resolverNow),
		Active:       true,
	}

	pricing := newPricingFixture(t, resolverNow, newFakeCatalogRepo(product), newFakeDiscountRepo(cartRule), newFakeCouponRepo(), newFakeOrderRepo())

	quote, err := pricing.PriceCart(context.Background(), PriceCartCommand{
		Lines: []CartLine{{ProductID: "prod_polo", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}

	b := quote.Breakdown
	if b.Subtotal != 16000 || b.CartDiscount != 1600 || b.Total != 14400 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
	if b.Discount != 1600 {
		t.Fatalf("expected discount 1600, got %d", b.Discount)
	}
	if len(b.Lines) != 1 || b.Lines[0].Source != domain.SourceCartValue {
		t.Fatalf("unexpected discount lines: %+v", b.Lines)
	}
}

func TestPriceCartBelowCartValueThreshold(t *testing.T) {
	product := publishedProduct("prod_polo", 8000)
	cartRule := domain.Discount{
		ID:           "dsc_cart",
		Name:         "10% sobre S/100",
		Type:         domain.DiscountTypePercentage,
		Value:        10,
		AppliesTo:    domain.ScopeCartValue,
		MinCartValue: 10000,
		Window:       activeWindow(resolverNow),
		Active:       true,
	}

	pricing := newPricingFixture(t, resolverNow, newFakeCatalogRepo(product), newFakeDiscountRepo(cartRule), newFakeCouponRepo(), newFakeOrderRepo())

	quote, err := pricing.PriceCart(context.Background(), PriceCartCommand{
		Lines: []CartLine{{ProductID: "prod_polo", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}
	if quote.Breakdown.CartDiscount != 0 || quote.Breakdown.Total != 8000 {
		t.Fatalf("expected no cart discount below threshold, got %+v", quote.Breakdown)
	}
}

func TestPriceCartWelcomeCoupon(t *testing.T) {
	product := publishedProduct("prod_mug", 4150)
	coupon := domain.Coupon{
		ID:        "cpn_bienvenido",
		Code:      "BIENVENIDO10",
		Type:      domain.DiscountTypePercentage,
		Value:     10,
		AppliesTo: domain.ScopeCartValue,
		Active:    true,
	}

	pricing := newPricingFixture(t, resolverNow, newFakeCatalogRepo(product), newFakeDiscountRepo(), newFakeCouponRepo(coupon), newFakeOrderRepo())

	quote, err := pricing.PriceCart(context.Background(), PriceCartCommand{
		Lines:      []CartLine{{ProductID: "prod_mug", Quantity: 2}},
		CouponCode: strPtrOf("bienvenido10"),
		Identity:   Identity{UserID: "usr_ana"},
	})
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}

	b := quote.Breakdown
	if b.Subtotal != 8300 || b.CouponDiscount != 830 || b.Total != 7470 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
	if quote.Coupon == nil || quote.Coupon.Application.Code != "BIENVENIDO10" {
		t.Fatalf("expected applied coupon, got %+v", quote.Coupon)
	}
}

func TestPriceCartStacksCouponThenCartDiscount(t *testing.T) {
	product := publishedProduct("prod_polo", 8000)
	coupon := domain.Coupon{
		ID:        "cpn_flat",
		Code:      "FLAT20",
		Type:      domain.DiscountTypePercentage,
		Value:     20,
		AppliesTo: domain.ScopeCartValue,
		Active:    true,
	}
	cartRule := domain.Discount{
		ID:           "dsc_cart",
		Name:         "10% sobre S/100",
		Type:         domain.DiscountTypePercentage,
		Value:        10,
		AppliesTo:    domain.ScopeCartValue,
		MinCartValue: 10000,
		Window:       activeWindow(resolverNow),
		Active:       true,
	}

	pricing := newPricingFixture(t, resolverNow, newFakeCatalogRepo(product), newFakeDiscountRepo(cartRule), newFakeCouponRepo(coupon), newFakeOrderRepo())

	quote, err := pricing.PriceCart(context.Background(), PriceCartCommand{
		Lines:      []CartLine{{ProductID: "prod_polo", Quantity: 2}},
		CouponCode: strPtrOf("FLAT20"),
		Identity:   Identity{UserID: "usr_ana"},
	})
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}

	// Both reductions compute against the original 16000 subtotal: the cart
	// discount is 1600, not 10% of the post-coupon 12800.
	b := quote.Breakdown
	if b.CouponDiscount != 3200 || b.CartDiscount != 1600 {
		t.Fatalf("unexpected stacking: %+v", b)
	}
	if b.Total != 11200 || b.Discount != 4800 {
		t.Fatalf("unexpected totals: %+v", b)
	}
}

func TestAggregateBreakdownFloorsAtZero(t *testing.T) {
	snapshot := CartSnapshot{
		Lines:    []PricedLine{{ProductID: "prod_sticker", Quantity: 1, LineTotal: 8000}},
		Subtotal: 8000,
	}
	redemption := &CouponRedemption{
		Application: domain.CouponApplication{Code: "MEGA", Label: "MEGA", Amount: 5000},
	}
	cartRule := &domain.Discount{
		Name:      "Rebaja fija",
		Type:      domain.DiscountTypeFixed,
		Value:     5000,
		AppliesTo: domain.ScopeCartValue,
	}

	b := aggregateBreakdown(snapshot, redemption, cartRule)
	if b.Total != 0 {
		t.Fatalf("expected total floored at zero, got %d", b.Total)
	}
	if b.Discount != 8000 {
		t.Fatalf("expected effective discount 8000, got %d", b.Discount)
	}
}

func TestPriceLinesUsesResolvedPrices(t *testing.T) {
	product := publishedProduct("prod_polo", 10000)
	product.FlashDiscountPercent = 20
	product.FlashDiscountEndsAt = timePtr(resolverNow.Add(time.Hour))

	pricing := newPricingFixture(t, resolverNow, newFakeCatalogRepo(product), newFakeDiscountRepo(), newFakeCouponRepo(), newFakeOrderRepo())

	snapshot, err := pricing.PriceLines(context.Background(), []CartLine{{ProductID: "prod_polo", Quantity: 3}})
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	if snapshot.Subtotal != 24000 {
		t.Fatalf("expected subtotal from flash price, got %d", snapshot.Subtotal)
	}
	if snapshot.Lines[0].Quote.FinalPrice != 8000 || snapshot.Lines[0].LineTotal != 24000 {
		t.Fatalf("unexpected line: %+v", snapshot.Lines[0])
	}
}

func TestPriceLinesRejectsQuantityBeyondStock(t *testing.T) {
	product := publishedProduct("prod_polo", 8000)
	stock := newFakeStockRepo(domain.StockLevel{Key: "prod_polo", ProductID: "prod_polo", OnHand: 3})

	pricing := newStockedPricingFixture(t, resolverNow, newFakeCatalogRepo(product), newFakeDiscountRepo(), newFakeCouponRepo(), newFakeOrderRepo(), stock)

	// Duplicate lines count against the same stock document.
	_, err := pricing.PriceLines(context.Background(), []CartLine{
		{ProductID: "prod_polo", Quantity: 2},
		{ProductID: "prod_polo", Quantity: 2},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestPriceLinesWithinStockSucceeds(t *testing.T) {
	product := publishedProduct("prod_polo", 8000)
	stock := newFakeStockRepo(domain.StockLevel{Key: "prod_polo", ProductID: "prod_polo", OnHand: 3})

	pricing := newStockedPricingFixture(t, resolverNow, newFakeCatalogRepo(product), newFakeDiscountRepo(), newFakeCouponRepo(), newFakeOrderRepo(), stock)

	snapshot, err := pricing.PriceLines(context.Background(), []CartLine{{ProductID: "prod_polo", Quantity: 3}})
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	if snapshot.Subtotal != 24000 {
		t.Fatalf("unexpected subtotal %d", snapshot.Subtotal)
	}
}

func TestPriceLinesWithoutStockDocumentIsUnconstrained(t *testing.T) {
	product := publishedProduct("prod_polo", 8000)

	pricing := newStockedPricingFixture(t, resolverNow, newFakeCatalogRepo(product), newFakeDiscountRepo(), newFakeCouponRepo(), newFakeOrderRepo(), newFakeStockRepo())

	if _, err := pricing.PriceLines(context.Background(), []CartLine{{ProductID: "prod_polo", Quantity: 50}}); err != nil {
		t.Fatalf("expected untracked product to price, got %v", err)
	}
}

func TestPriceLinesRejectsBadInput(t *testing.T) {
	pricing := newPricingFixture(t, resolverNow, newFakeCatalogRepo(), newFakeDiscountRepo(), newFakeCouponRepo(), newFakeOrderRepo())

	if _, err := pricing.PriceLines(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty cart")
	}
	if _, err := pricing.PriceLines(context.Background(), []CartLine{{ProductID: "prod_x", Quantity: 0}}); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
}
