package repositories

import (
	"context"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Discounts() DiscountRepository
	Coupons() CouponRepository
	Stock() StockRepository
	Orders() OrderRepository
	Checkout() CheckoutRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository stores products, their variants, and categories.
type CatalogRepository interface {
	GetPublishedProduct(ctx context.Context, productID string) (domain.Product, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) (domain.CursorPage[domain.Product], error)
	GetCategory(ctx context.Context, categoryID string) (domain.Category, error)
}

// DiscountRepository maintains admin-authored discount rules. Discounts are
// hard-deleted; only coupons and orders keep soft-delete history.
type DiscountRepository interface {
	Insert(ctx context.Context, discount domain.Discount) error
	Update(ctx context.Context, discount domain.Discount) error
	Delete(ctx context.Context, discountID string) error
	FindByID(ctx context.Context, discountID string) (domain.Discount, error)
	List(ctx context.Context, filter DiscountListFilter) (domain.CursorPage[domain.Discount], error)
	// ListEnabled returns every discount with the active flag set; window
	// evaluation stays in the service so "active at now" is never cached.
	ListEnabled(ctx context.Context) ([]domain.Discount, error)
}

// CouponRepository stores coupon codes. Deletes are soft: the document keeps
// its audit overlay and FindByCode treats deleted rows as absent.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) error
	Update(ctx context.Context, coupon domain.Coupon) error
	SoftDelete(ctx context.Context, couponID string, audit domain.Auditable) error
	FindByID(ctx context.Context, couponID string) (domain.Coupon, error)
	// FindByCode resolves a coupon by its normalized code, including
	// soft-deleted rows; callers decide how deleted rows surface.
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context, filter CouponListFilter) (domain.CursorPage[domain.Coupon], error)
}

// StockRepository reads and seeds authoritative stock levels. Decrements only
// happen inside the checkout transaction, never through this interface.
type StockRepository interface {
	Get(ctx context.Context, key string) (domain.StockLevel, error)
	GetMany(ctx context.Context, keys []string) (map[string]domain.StockLevel, error)
	Upsert(ctx context.Context, level domain.StockLevel) error
}

// OrderRepository persists order headers and provides query helpers for users and admins.
type OrderRepository interface {
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	SoftDelete(ctx context.Context, orderID string, audit domain.Auditable) error
	// CountByCouponIdentity counts non-cancelled orders that redeemed the
	// given code for one purchasing identity. Soft-deleted orders still count.
	CountByCouponIdentity(ctx context.Context, code string, identity domain.Identity) (int64, error)
}

// StockDemand names one stock document and the quantity a checkout consumes.
type StockDemand struct {
	Key      string
	Quantity int
}

// CheckoutCommit bundles everything the commit transaction touches. CouponID
// is empty when no coupon applies.
type CheckoutCommit struct {
	Order    domain.Order
	CouponID string
	Demands  []StockDemand
	Now      time.Time
}

// CheckoutRepository executes the atomic order commit: conditional coupon
// usage increment, conditional stock decrements, and order creation succeed
// or fail together.
type CheckoutRepository interface {
	Commit(ctx context.Context, commit CheckoutCommit) (domain.Order, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type ProductFilter struct {
	CategoryID    *string
	OnlyPublished bool
	Pagination    domain.Pagination
}

type DiscountListFilter struct {
	AppliesTo  *domain.DiscountScope
	Active     *bool
	Pagination domain.Pagination
}

type CouponListFilter struct {
	Active         *bool
	IncludeDeleted bool
	Pagination     domain.Pagination
}

type OrderListFilter struct {
	UserID         string
	GuestEmail     string
	Status         []domain.OrderStatus
	DateRange      domain.RangeQuery[time.Time]
	IncludeDeleted bool
	Pagination     domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
