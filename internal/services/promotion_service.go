package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/repositories"
)

// DefaultMaxDiscountPercent caps the reduction a single discount rule may
// apply to its target's list price. Enforced at creation only; stacked
// reductions across sources are deliberately left uncapped.
const DefaultMaxDiscountPercent = int64(80)

// PromotionServiceDeps bundles dependencies required to construct a PromotionService.
type PromotionServiceDeps struct {
	Discounts          repositories.DiscountRepository
	Catalog            repositories.CatalogRepository
	MaxDiscountPercent int64
	Clock              func() time.Time
	IDGenerator        func() string
}

type promotionService struct {
	discounts  repositories.DiscountRepository
	catalog    repositories.CatalogRepository
	maxPercent int64
	clock      func() time.Time
	idGen      func() string
}

// NewPromotionService wires a PromotionService backed by the provided repositories.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Discounts == nil {
		return nil, ErrPromotionRepositoryMissing
	}
	maxPercent := deps.MaxDiscountPercent
	if maxPercent <= 0 || maxPercent > 100 {
		maxPercent = DefaultMaxDiscountPercent
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &promotionService{
		discounts:  deps.Discounts,
		catalog:    deps.Catalog,
		maxPercent: maxPercent,
		clock:      func() time.Time { return clock().UTC() },
		idGen:      idGen,
	}, nil
}

func (s *promotionService) CreateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error) {
	discount := cmd.Discount
	if err := s.validateDiscount(ctx, discount); err != nil {
		return Discount{}, err
	}

	now := s.clock()
	discount.ID = "dsc_" + s.idGen()
	discount.Name = strings.TrimSpace(discount.Name)
	discount.CreatedAt = now
	discount.UpdatedAt = now

	if err := s.discounts.Insert(ctx, discount); err != nil {
		return Discount{}, err
	}
	return discount, nil
}

func (s *promotionService) UpdateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error) {
	discount := cmd.Discount
	if strings.TrimSpace(discount.ID) == "" {
		return Discount{}, fmt.Errorf("%w: id is required", ErrDiscountInvalid)
	}
	if err := s.validateDiscount(ctx, discount); err != nil {
		return Discount{}, err
	}

	existing, err := s.discounts.FindByID(ctx, discount.ID)
	if err != nil {
		return Discount{}, translateDiscountError(err)
	}

	discount.Name = strings.TrimSpace(discount.Name)
	discount.CreatedAt = existing.CreatedAt
	discount.UpdatedAt = s.clock()

	if err := s.discounts.Update(ctx, discount); err != nil {
		return Discount{}, translateDiscountError(err)
	}
	return discount, nil
}

func (s *promotionService) DeleteDiscount(ctx context.Context, discountID string) error {
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return fmt.Errorf("%w: id is required", ErrDiscountInvalid)
	}
	if err := s.discounts.Delete(ctx, discountID); err != nil {
		return translateDiscountError(err)
	}
	return nil
}

func (s *promotionService) GetDiscount(ctx context.Context, discountID string) (Discount, error) {
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return Discount{}, fmt.Errorf("%w: id is required", ErrDiscountInvalid)
	}
	discount, err := s.discounts.FindByID(ctx, discountID)
	if err != nil {
		return Discount{}, translateDiscountError(err)
	}
	return discount, nil
}

func (s *promotionService) ListDiscounts(ctx context.Context, filter DiscountListFilter) (domain.CursorPage[Discount], error) {
	return s.discounts.List(ctx, filter)
}

func (s *promotionService) ActiveDiscountFor(ctx context.Context, product Product, now time.Time) (*Discount, error) {
	enabled, err := s.discounts.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var categoryMatch *Discount
	for i := range enabled {
		discount := enabled[i]
		if !discount.Window.IsActiveAt(now) {
			continue
		}
		switch discount.AppliesTo {
		case domain.ScopeProduct:
			if discount.TargetID == product.ID {
				return &discount, nil
			}
		case domain.ScopeCategory:
			if discount.TargetID == product.CategoryID && categoryMatch == nil {
				categoryMatch = &discount
			}
		}
	}
	return categoryMatch, nil
}

func (s *promotionService) ActiveCartValueDiscount(ctx context.Context, subtotal int64, now time.Time) (*Discount, error) {
	enabled, err := s.discounts.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var best *Discount
	var bestAmount int64
	for i := range enabled {
		discount := enabled[i]
		if discount.AppliesTo != domain.ScopeCartValue || !discount.Window.IsActiveAt(now) {
			continue
		}
		if subtotal < discount.MinCartValue {
			continue
		}
		amount := reductionAmount(subtotal, discount.Type, discount.Value)
		if best == nil || amount > bestAmount {
			best = &discount
			bestAmount = amount
		}
	}
	return best, nil
}

// validateDiscount enforces the creation-time shape and reduction cap. The
// cap binds single rules against their own target, never the stacked result.
func (s *promotionService) validateDiscount(ctx context.Context, discount Discount) error {
	if strings.TrimSpace(discount.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrDiscountInvalid)
	}
	if discount.Value <= 0 {
		return fmt.Errorf("%w: value must be positive", ErrDiscountInvalid)
	}

	switch discount.Type {
	case domain.DiscountTypePercentage:
		if discount.Value > s.maxPercent {
			return fmt.Errorf("%w: %d%% exceeds the %d%% cap", ErrDiscountExcessive, discount.Value, s.maxPercent)
		}
	case domain.DiscountTypeFixed:
		// Fixed amounts are checked against the target price below when one exists.
	default:
		return fmt.Errorf("%w: unknown type %q", ErrDiscountInvalid, discount.Type)
	}

	switch discount.AppliesTo {
	case domain.ScopeProduct, domain.ScopeCategory:
		if strings.TrimSpace(discount.TargetID) == "" {
			return fmt.Errorf("%w: target id is required for %s scope", ErrDiscountInvalid, discount.AppliesTo)
		}
	case domain.ScopeCartValue:
		if discount.MinCartValue < 0 {
			return fmt.Errorf("%w: minimum cart value cannot be negative", ErrDiscountInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrDiscountInvalid, discount.AppliesTo)
	}

	if discount.Type == domain.DiscountTypeFixed && discount.AppliesTo == domain.ScopeProduct && s.catalog != nil {
		product, err := s.catalog.GetProduct(ctx, discount.TargetID)
		if err != nil {
			if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
				return fmt.Errorf("%w: target product %s not found", ErrDiscountInvalid, discount.TargetID)
			}
			return err
		}
		if product.ListPrice > 0 {
			limit := product.ListPrice * s.maxPercent / 100
			if discount.Value > limit {
				return fmt.Errorf("%w: %d exceeds %d%% of the S/%.2f list price", ErrDiscountExcessive, discount.Value, s.maxPercent, float64(product.ListPrice)/100)
			}
		}
	}

	if discount.Window.StartsAt != nil && discount.Window.EndsAt != nil && !discount.Window.EndsAt.After(*discount.Window.StartsAt) {
		return fmt.Errorf("%w: window must end after it starts", ErrDiscountInvalid)
	}
	return nil
}

// reductionAmount computes the céntimos a rule removes from the given base.
// Percentage reductions floor; fixed reductions never exceed the base.
func reductionAmount(base int64, kind domain.DiscountType, value int64) int64 {
	if base <= 0 || value <= 0 {
		return 0
	}
	switch kind {
	case domain.DiscountTypePercentage:
		return base * value / 100
	case domain.DiscountTypeFixed:
		if value > base {
			return base
		}
		return value
	}
	return 0
}

func translateDiscountError(err error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
		return ErrDiscountNotFound
	}
	return err
}
