package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	domain "github.com/detalia/storefront-api/internal/domain"
)

func (s *pricingService) PriceLines(ctx context.Context, lines []CartLine) (CartSnapshot, error) {
	if len(lines) == 0 {
		return CartSnapshot{}, fmt.Errorf("%w: cart has no lines", ErrPricingInvalidInput)
	}

	now := s.clock()
	priced := make([]PricedLine, 0, len(lines))
	demanded := make(map[string]int)
	var subtotal int64

	for i, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return CartSnapshot{}, fmt.Errorf("%w: line %d has no product id", ErrPricingInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return CartSnapshot{}, fmt.Errorf("%w: line %d quantity must be positive", ErrPricingInvalidInput, i)
		}

		resolved, err := s.catalog.ResolveVariant(ctx, line.ProductID, line.VariantID)
		if err != nil {
			return CartSnapshot{}, err
		}
		quote, err := s.quoteFor(ctx, resolved, now)
		if err != nil {
			return CartSnapshot{}, err
		}

		quantity := int64(line.Quantity)
		if quote.FinalPrice > 0 && quote.FinalPrice > math.MaxInt64/quantity {
			return CartSnapshot{}, fmt.Errorf("%w: line %d total overflow", ErrPricingInvalidInput, i)
		}
		lineTotal := quote.FinalPrice * quantity
		if lineTotal > 0 && subtotal > math.MaxInt64-lineTotal {
			return CartSnapshot{}, fmt.Errorf("%w: cart subtotal overflow", ErrPricingInvalidInput)
		}
		subtotal += lineTotal

		demanded[resolved.StockKey] += line.Quantity

		variantID := ""
		if resolved.Variant != nil {
			variantID = resolved.Variant.ID
		}
		priced = append(priced, PricedLine{
			ProductID:    resolved.Product.ID,
			VariantID:    variantID,
			CategoryID:   resolved.Product.CategoryID,
			Name:         resolved.Product.Name,
			VariantLabel: resolved.Label,
			Quantity:     line.Quantity,
			Quote:        quote,
			LineTotal:    lineTotal,
		})
	}

	if err := s.checkAvailability(ctx, demanded); err != nil {
		return CartSnapshot{}, err
	}

	return CartSnapshot{Lines: priced, Subtotal: subtotal}, nil
}

// checkAvailability compares demanded quantities against current stock before
// checkout is attempted. Keys without a stock document are unconstrained; the
// checkout transaction stays the authoritative gate either way.
func (s *pricingService) checkAvailability(ctx context.Context, demanded map[string]int) error {
	if s.stock == nil || len(demanded) == 0 {
		return nil
	}
	keys := make([]string, 0, len(demanded))
	for key := range demanded {
		keys = append(keys, key)
	}
	levels, err := s.stock.GetMany(ctx, keys)
	if err != nil {
		return err
	}
	for key, quantity := range demanded {
		level, ok := levels[key]
		if !ok {
			continue
		}
		if quantity > level.OnHand {
			return fmt.Errorf("%w: %s has %d on hand, %d requested", ErrInsufficientStock, key, level.OnHand, quantity)
		}
	}
	return nil
}

func (s *pricingService) PriceCart(ctx context.Context, cmd PriceCartCommand) (CartQuote, error) {
	snapshot, err := s.PriceLines(ctx, cmd.Lines)
	if err != nil {
		return CartQuote{}, err
	}

	var redemption *CouponRedemption
	if code := couponCodeFrom(cmd.CouponCode); code != "" {
		result, err := s.coupons.Validate(ctx, ValidateCouponCommand{
			Code:     code,
			Snapshot: snapshot,
			Identity: cmd.Identity,
		})
		if err != nil {
			return CartQuote{}, err
		}
		redemption = &result
	}

	cartDiscount, err := s.promotions.ActiveCartValueDiscount(ctx, snapshot.Subtotal, s.clock())
	if err != nil {
		return CartQuote{}, err
	}

	breakdown := aggregateBreakdown(snapshot, redemption, cartDiscount)
	s.logger(ctx, "cart_priced", map[string]any{
		"lines":    len(snapshot.Lines),
		"subtotal": breakdown.Subtotal,
		"discount": breakdown.Discount,
		"total":    breakdown.Total,
	})

	return CartQuote{
		Snapshot:     snapshot,
		Breakdown:    breakdown,
		Coupon:       redemption,
		CartDiscount: cartDiscount,
	}, nil
}

// aggregateBreakdown stacks cart-level reductions: the coupon subtracts
// first, then the cart-value discount computed against the original subtotal
// rather than the post-coupon amount. The total never drops below zero.
func aggregateBreakdown(snapshot CartSnapshot, redemption *CouponRedemption, cartDiscount *Discount) PriceBreakdown {
	subtotal := snapshot.Subtotal
	var lines []DiscountLine

	var couponAmount int64
	if redemption != nil && redemption.Application.Amount > 0 {
		couponAmount = redemption.Application.Amount
		lines = append(lines, DiscountLine{
			Source: domain.SourceCoupon,
			Label:  redemption.Application.Label,
			Code:   redemption.Application.Code,
			Amount: couponAmount,
		})
	}

	var cartAmount int64
	if cartDiscount != nil {
		cartAmount = reductionAmount(subtotal, cartDiscount.Type, cartDiscount.Value)
		if cartAmount > 0 {
			lines = append(lines, DiscountLine{
				Source: domain.SourceCartValue,
				Label:  cartDiscount.Name,
				Amount: cartAmount,
			})
		}
	}

	total := subtotal - couponAmount - cartAmount
	if total < 0 {
		total = 0
	}

	return PriceBreakdown{
		Subtotal:       subtotal,
		CouponDiscount: couponAmount,
		CartDiscount:   cartAmount,
		Discount:       subtotal - total,
		Total:          total,
		Lines:          lines,
	}
}

func couponCodeFrom(code *string) string {
	if code == nil {
		return ""
	}
	return strings.TrimSpace(*code)
}
