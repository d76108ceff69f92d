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

// CouponServiceDeps bundles dependencies required to construct a CouponService.
type CouponServiceDeps struct {
	Coupons     repositories.CouponRepository
	Orders      repositories.OrderRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type couponService struct {
	coupons repositories.CouponRepository
	orders  repositories.OrderRepository
	clock   func() time.Time
	idGen   func() string
}

// NewCouponService wires a CouponService backed by the provided repositories.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, ErrCouponRepositoryMissing
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("%w: order repository", ErrCouponRepositoryMissing)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &couponService{
		coupons: deps.Coupons,
		orders:  deps.Orders,
		clock:   func() time.Time { return clock().UTC() },
		idGen:   idGen,
	}, nil
}

// Validate runs the rejection checks in order and stops at the first failure.
// It never touches the usage counter; capacity is consumed at commit time.
func (s *couponService) Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponRedemption, error) {
	code := normalizeCouponCode(cmd.Code)
	if code == "" {
		return CouponRedemption{}, rejectCoupon(CouponRejectedNotFound, "no coupon code supplied")
	}

	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
			return CouponRedemption{}, rejectCoupon(CouponRejectedNotFound, "coupon %s does not exist", code)
		}
		return CouponRedemption{}, err
	}
	// Deleted codes answer exactly like unknown ones.
	if coupon.Audit.IsDeleted() {
		return CouponRedemption{}, rejectCoupon(CouponRejectedNotFound, "coupon %s does not exist", code)
	}

	now := s.clock()
	if !coupon.Active {
		return CouponRedemption{}, rejectCoupon(CouponRejectedInactive, "coupon %s is disabled", code)
	}
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return CouponRedemption{}, rejectCoupon(CouponRejectedExpired, "coupon %s expired at %s", code, coupon.ExpiresAt.Format(time.RFC3339))
	}
	if cmd.Snapshot.Subtotal < coupon.MinPurchase {
		return CouponRedemption{}, rejectCoupon(CouponRejectedMinPurchase, "cart subtotal %d below minimum %d", cmd.Snapshot.Subtotal, coupon.MinPurchase)
	}

	matchedIDs, matching := cmd.Snapshot.MatchingLines(coupon.AppliesTo, coupon.TargetID)
	if coupon.AppliesTo != domain.ScopeCartValue && matching <= 0 {
		return CouponRedemption{}, rejectCoupon(CouponRejectedTargetMismatch, "coupon %s does not apply to any cart line", code)
	}

	if coupon.MaxUses != nil && coupon.Uses >= *coupon.MaxUses {
		return CouponRedemption{}, rejectCoupon(CouponRejectedMaxUsesReached, "coupon %s has no remaining uses", code)
	}

	// Per-identity usage is derived from prior non-cancelled orders. Guests
	// are matched by checkout email, so this check is best-effort for them.
	if coupon.UsageLimitPerUser > 0 && !cmd.Identity.IsZero() {
		used, err := s.orders.CountByCouponIdentity(ctx, code, cmd.Identity)
		if err != nil {
			return CouponRedemption{}, err
		}
		if used >= coupon.UsageLimitPerUser {
			return CouponRedemption{}, rejectCoupon(CouponRejectedPerUserLimitHit, "coupon %s already redeemed %d time(s)", code, used)
		}
	}

	return CouponRedemption{
		Coupon: coupon,
		Application: domain.CouponApplication{
			Code:           coupon.Code,
			Label:          coupon.Code,
			Type:           coupon.Type,
			Value:          coupon.Value,
			Amount:         reductionAmount(matching, coupon.Type, coupon.Value),
			AppliedLineIDs: matchedIDs,
		},
	}, nil
}

func (s *couponService) CreateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon := cmd.Coupon
	coupon.Code = normalizeCouponCode(coupon.Code)
	if err := validateCoupon(coupon); err != nil {
		return Coupon{}, err
	}

	now := s.clock()
	coupon.ID = "cpn_" + s.idGen()
	coupon.Uses = 0
	coupon.Audit = domain.Auditable{}
	coupon.CreatedAt = now
	coupon.UpdatedAt = now

	if err := s.coupons.Insert(ctx, coupon); err != nil {
		if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsConflict() {
			return Coupon{}, fmt.Errorf("%w: code %s already exists", ErrCouponInvalid, coupon.Code)
		}
		return Coupon{}, err
	}
	return coupon, nil
}

func (s *couponService) UpdateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon := cmd.Coupon
	if strings.TrimSpace(coupon.ID) == "" {
		return Coupon{}, fmt.Errorf("%w: id is required", ErrCouponInvalid)
	}
	coupon.Code = normalizeCouponCode(coupon.Code)
	if err := validateCoupon(coupon); err != nil {
		return Coupon{}, err
	}

	existing, err := s.coupons.FindByID(ctx, coupon.ID)
	if err != nil {
		return Coupon{}, translateCouponError(err)
	}
	if existing.Audit.IsDeleted() {
		return Coupon{}, ErrCouponMissing
	}

	// The redemption counter and audit history survive every edit.
	coupon.Uses = existing.Uses
	coupon.Audit = existing.Audit
	coupon.CreatedAt = existing.CreatedAt
	coupon.UpdatedAt = s.clock()

	if err := s.coupons.Update(ctx, coupon); err != nil {
		return Coupon{}, translateCouponError(err)
	}
	return coupon, nil
}

func (s *couponService) SoftDeleteCoupon(ctx context.Context, cmd DeleteCouponCommand) error {
	couponID := strings.TrimSpace(cmd.CouponID)
	if couponID == "" {
		return fmt.Errorf("%w: id is required", ErrCouponInvalid)
	}
	actor := strings.TrimSpace(cmd.ActorID)
	if actor == "" {
		return fmt.Errorf("%w: actor is required", ErrCouponInvalid)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return fmt.Errorf("%w: a deletion reason is required", ErrCouponInvalid)
	}

	existing, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return translateCouponError(err)
	}
	if existing.Audit.IsDeleted() {
		return ErrCouponMissing
	}

	var audit domain.Auditable
	audit.MarkDeleted(s.clock(), actor, reason)
	if err := s.coupons.SoftDelete(ctx, couponID, audit); err != nil {
		return translateCouponError(err)
	}
	return nil
}

func (s *couponService) GetCoupon(ctx context.Context, couponID string) (Coupon, error) {
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return Coupon{}, fmt.Errorf("%w: id is required", ErrCouponInvalid)
	}
	coupon, err := s.coupons.FindByID(ctx, couponID)
	if err != nil {
		return Coupon{}, translateCouponError(err)
	}
	return coupon, nil
}

func (s *couponService) ListCoupons(ctx context.Context, filter CouponListFilter) (domain.CursorPage[Coupon], error) {
	return s.coupons.List(ctx, filter)
}

func validateCoupon(coupon Coupon) error {
	if coupon.Code == "" {
		return fmt.Errorf("%w: code is required", ErrCouponInvalid)
	}
	if coupon.Value <= 0 {
		return fmt.Errorf("%w: value must be positive", ErrCouponInvalid)
	}

	switch coupon.Type {
	case domain.DiscountTypePercentage:
		if coupon.Value > 100 {
			return fmt.Errorf("%w: percentage cannot exceed 100", ErrCouponInvalid)
		}
	case domain.DiscountTypeFixed:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrCouponInvalid, coupon.Type)
	}

	switch coupon.AppliesTo {
	case domain.ScopeProduct, domain.ScopeCategory:
		if strings.TrimSpace(coupon.TargetID) == "" {
			return fmt.Errorf("%w: target id is required for %s scope", ErrCouponInvalid, coupon.AppliesTo)
		}
	case domain.ScopeCartValue:
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrCouponInvalid, coupon.AppliesTo)
	}

	if coupon.MinPurchase < 0 {
		return fmt.Errorf("%w: minimum purchase cannot be negative", ErrCouponInvalid)
	}
	if coupon.MaxUses != nil && *coupon.MaxUses <= 0 {
		return fmt.Errorf("%w: max uses must be positive when set", ErrCouponInvalid)
	}
	if coupon.UsageLimitPerUser < 0 {
		return fmt.Errorf("%w: per-user limit cannot be negative", ErrCouponInvalid)
	}
	return nil
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func translateCouponError(err error) error {
	if repoErr, ok := err.(repositories.RepositoryError); ok && repoErr.IsNotFound() {
		return ErrCouponMissing
	}
	return err
}
