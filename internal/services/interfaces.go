package services

import (
	"context"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination        = domain.Pagination
	SortOrder         = domain.SortOrder
	Identity          = domain.Identity
	Category          = domain.Category
	Product           = domain.Product
	ProductVariant    = domain.ProductVariant
	Discount          = domain.Discount
	Coupon            = domain.Coupon
	Order             = domain.Order
	OrderStatus       = domain.OrderStatus
	OrderLineItem     = domain.OrderLineItem
	OrderTotals       = domain.OrderTotals
	StockLevel        = domain.StockLevel
	PriceQuote        = domain.PriceQuote
	CartLine          = domain.CartLine
	PricedLine        = domain.PricedLine
	CartSnapshot      = domain.CartSnapshot
	CouponApplication = domain.CouponApplication
	PriceBreakdown    = domain.PriceBreakdown
	DiscountLine      = domain.DiscountLine
	Auditable         = domain.Auditable
	HealthReport      = domain.HealthReport
)

// CatalogService is the read path over products and categories that feeds
// pricing and checkout. Unpublished products are invisible to it.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	ResolveVariant(ctx context.Context, productID, variantID string) (ResolvedVariant, error)
	ListProducts(ctx context.Context, filter CatalogListFilter) (domain.CursorPage[Product], error)
}

// PromotionService owns admin-authored discount rules and answers the
// "what applies right now" read queries for the price resolver.
type PromotionService interface {
	CreateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error)
	UpdateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error)
	DeleteDiscount(ctx context.Context, discountID string) error
	GetDiscount(ctx context.Context, discountID string) (Discount, error)
	ListDiscounts(ctx context.Context, filter DiscountListFilter) (domain.CursorPage[Discount], error)
	// ActiveDiscountFor returns the discount that applies to the product at
	// now, product-targeted rules beating category-targeted ones, or nil.
	ActiveDiscountFor(ctx context.Context, product Product, now time.Time) (*Discount, error)
	// ActiveCartValueDiscount returns the cart-value discount whose threshold
	// the subtotal meets at now, or nil. Ties pick the largest reduction.
	ActiveCartValueDiscount(ctx context.Context, subtotal int64, now time.Time) (*Discount, error)
}

// CouponService validates codes against a priced cart and owns the admin
// coupon lifecycle. Validation is read-only; usage is consumed at commit.
type CouponService interface {
	Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponRedemption, error)
	CreateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	UpdateCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	SoftDeleteCoupon(ctx context.Context, cmd DeleteCouponCommand) error
	GetCoupon(ctx context.Context, couponID string) (Coupon, error)
	ListCoupons(ctx context.Context, filter CouponListFilter) (domain.CursorPage[Coupon], error)
}

// PricingService resolves authoritative prices for single items and whole
// carts. Client-supplied prices are never trusted; every quote starts from
// the catalog row.
type PricingService interface {
	ResolvePrice(ctx context.Context, productID, variantID string) (PriceQuote, error)
	PriceLines(ctx context.Context, lines []CartLine) (CartSnapshot, error)
	PriceCart(ctx context.Context, cmd PriceCartCommand) (CartQuote, error)
}

// CheckoutService turns a priced cart into a committed order atomically.
type CheckoutService interface {
	CommitOrder(ctx context.Context, cmd CommitOrderCommand) (Order, error)
}

// OrderService owns post-checkout reads and lifecycle transitions.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (OrderView, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	SoftDelete(ctx context.Context, cmd DeleteOrderCommand) error
	CanEdit(order Order, now time.Time) bool
	IsDelayed(order Order, now time.Time) bool
}

// CounterService issues formatted sequence values such as order numbers.
type CounterService interface {
	Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextOrderNumber(ctx context.Context) (string, error)
}

// OrderEventPublisher accepts order lifecycle notifications for downstream
// consumers. Publishing failures never fail the triggering operation.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// OrderEventMessage is the payload published on order lifecycle changes.
type OrderEventMessage struct {
	Event       string    `json:"event"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Command and DTO definitions ------------------------------------------------

// ResolvedVariant pairs a published product with the variant selected for
// pricing. Variant is nil for products sold without variants.
type ResolvedVariant struct {
	Product   Product
	Variant   *ProductVariant
	BasePrice int64
	Label     string
	StockKey  string
}

type CatalogListFilter struct {
	CategoryID    *string
	OnlyPublished bool
	Pagination    Pagination
}

type UpsertDiscountCommand struct {
	Discount Discount
	ActorID  string
}

type DiscountListFilter = repositories.DiscountListFilter

type UpsertCouponCommand struct {
	Coupon  Coupon
	ActorID string
}

type DeleteCouponCommand struct {
	CouponID string
	ActorID  string
	Reason   string
}

type CouponListFilter = repositories.CouponListFilter

// ValidateCouponCommand asks whether a code applies to the given priced cart.
type ValidateCouponCommand struct {
	Code     string
	Snapshot CartSnapshot
	Identity Identity
}

// CouponRedemption reports a successful validation: the matched coupon and
// the céntimos it removes from this cart.
type CouponRedemption struct {
	Coupon      Coupon
	Application CouponApplication
}

// PriceCartCommand prices untrusted cart lines, optionally applying a coupon.
type PriceCartCommand struct {
	Lines      []CartLine
	CouponCode *string
	Identity   Identity
}

// CartQuote is the full pricing answer for a cart: the per-line snapshot,
// the aggregated breakdown, and whichever cart-level reductions applied.
type CartQuote struct {
	Snapshot     CartSnapshot
	Breakdown    PriceBreakdown
	Coupon       *CouponRedemption
	CartDiscount *Discount
}

// CommitOrderCommand carries everything checkout needs. Lines and coupon are
// re-resolved and re-validated server-side before anything is written.
type CommitOrderCommand struct {
	Identity   Identity
	Lines      []CartLine
	CouponCode *string
	Notes      string
}

// OrderView decorates an order with its read-time derived flags.
type OrderView struct {
	Order     Order
	IsDelayed bool
	CanEdit   bool
}

type OrderListFilter = repositories.OrderListFilter

type OrderStatusCommand struct {
	OrderID      string
	TargetStatus OrderStatus
	ActorID      string
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

// DeleteOrderCommand soft-deletes an order. Reason is mandatory for manual
// deletes; automated expiry passes the system actor instead.
type DeleteOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
	System  bool
}

// CounterGenerationOptions controls how counter values are incremented and formatted.
type CounterGenerationOptions struct {
	Step         int64
	Prefix       string
	Suffix       string
	PadLength    int
	InitialValue *int64
	MaxValue     *int64
	Formatter    func(now time.Time, value int64) string
}

// CounterValue is a generated sequence value with its formatted rendering.
type CounterValue struct {
	Value     int64
	Formatted string
}
