package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Identity carries the purchasing principal: a registered user id or, for
// guest checkouts, the email captured at checkout. Exactly one side is set.
type Identity struct {
	UserID     string
	GuestEmail string
}

// IsZero reports whether neither identity dimension is present.
func (i Identity) IsZero() bool {
	return i.UserID == "" && i.GuestEmail == ""
}

// Key returns the value used to scope per-identity coupon usage counting.
// Guest identities are best-effort: the same person using two emails counts
// as two identities.
func (i Identity) Key() string {
	if i.UserID != "" {
		return i.UserID
	}
	return i.GuestEmail
}

// Category groups products for category-targeted discounts.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VariantType enumerates the supported per-product variant dimensions.
type VariantType string

const (
	// VariantTypeSize covers apparel sizes (S, M, L, ...).
	VariantTypeSize VariantType = "size"
	// VariantTypeCapacity covers volume variants (e.g. 325ml vs 450ml mugs).
	VariantTypeCapacity VariantType = "capacity"
	// VariantTypeDimensions covers physical dimensions (e.g. A5 vs A4 notebooks).
	VariantTypeDimensions VariantType = "dimensions"
)

// ProductVariant stores a purchasable variation of a product with its own
// price and stock. Exactly one variant per product is flagged as default.
type ProductVariant struct {
	ID        string
	ProductID string
	Type      VariantType
	Label     string
	Price     int64
	Stock     int
	IsDefault bool
}

// Product is the catalog row read by the pricing core. Prices are stored in
// céntimos (the smallest PEN unit). FlashDiscountPercent lives directly on
// the product row and is distinct from standalone Discount records.
type Product struct {
	ID                   string
	Name                 string
	CategoryID           string
	ListPrice            int64
	Stock                int
	FlashDiscountPercent int64
	FlashDiscountEndsAt  *time.Time
	HasVariants          bool
	Variants             []ProductVariant
	IsPublished          bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DefaultVariant returns the variant flagged as default, or false when the
// product has no variants.
func (p Product) DefaultVariant() (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.IsDefault {
			return v, true
		}
	}
	if len(p.Variants) > 0 {
		return p.Variants[0], true
	}
	return ProductVariant{}, false
}

// Variant looks up a variant by id.
func (p Product) Variant(variantID string) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// DiscountType enumerates how a discount value is interpreted.
type DiscountType string

const (
	// DiscountTypePercentage interprets Value as a percentage of the base price.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed interprets Value as a flat amount in céntimos.
	DiscountTypeFixed DiscountType = "fixed"
)

// DiscountScope enumerates what a discount or coupon applies to.
type DiscountScope string

const (
	// ScopeProduct targets one product id.
	ScopeProduct DiscountScope = "product"
	// ScopeCategory targets every product in one category.
	ScopeCategory DiscountScope = "category"
	// ScopeCartValue targets the cart subtotal rather than a specific item.
	ScopeCartValue DiscountScope = "cart_value"
)

// Discount is an admin-authored promotional rule. Product- and
// category-scoped discounts feed per-item price resolution; cart_value
// discounts apply to the whole cart subtotal once MinCartValue is met.
type Discount struct {
	ID           string
	Name         string
	Type         DiscountType
	Value        int64
	AppliesTo    DiscountScope
	TargetID     string
	MinCartValue int64
	Window       ActiveWindow
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Coupon is a user-entered code with its own validity, usage-limit, and
// targeting rules, independent of Discounts. Uses counts committed orders
// only; validation never consumes capacity.
type Coupon struct {
	ID                string
	Code              string
	Type              DiscountType
	Value             int64
	MinPurchase       int64
	AppliesTo         DiscountScope
	TargetID          string
	MaxUses           *int64
	Uses              int64
	UsageLimitPerUser int64
	Active            bool
	ExpiresAt         *time.Time
	Audit             Auditable
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was placed and awaits handling.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusTransit indicates the order has been handed to the courier.
	OrderStatusTransit OrderStatus = "transit"
	// OrderStatusDelivered indicates the order reached the customer (terminal).
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled (terminal).
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsValid reports whether the status is one of the known lifecycle states.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusTransit, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderLineItem mirrors a cart line at the time of checkout. Prices are the
// server-resolved values frozen at commit, never the client-supplied ones.
type OrderLineItem struct {
	ProductID     string
	VariantID     string
	Name          string
	VariantLabel  string
	Quantity      int
	UnitPrice     int64
	BasePrice     int64
	Total         int64
	DiscountLabel string
}

// OrderTotals holds rolled-up monetary fields in céntimos.
// Total is always Subtotal minus Discount, both non-negative.
type OrderTotals struct {
	Subtotal int64
	Discount int64
	Total    int64
}

// Order captures an order header. Monetary fields and the discount breakdown
// are a frozen snapshot of checkout-time pricing and are never recomputed
// from live catalog state.
type Order struct {
	ID           string
	OrderNumber  string
	UserRef      string
	GuestEmail   string
	Status       OrderStatus
	Currency     string
	Items        []OrderLineItem
	Totals       OrderTotals
	DiscountInfo []DiscountLine
	CouponCode   *string
	Notes        string
	Audit        Auditable
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// Identity reconstructs the purchasing identity recorded on the order.
func (o Order) Identity() Identity {
	return Identity{UserID: o.UserRef, GuestEmail: o.GuestEmail}
}

// StockLevel represents the authoritative on-hand count for a product or
// variant, keyed separately from the catalog row so checkout can decrement
// it transactionally.
type StockLevel struct {
	Key       string
	ProductID string
	VariantID string
	OnHand    int
	UpdatedAt time.Time
}
