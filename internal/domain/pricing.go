package domain

// DiscountSource identifies where a price reduction came from. At most one
// item-level source applies to a given line.
type DiscountSource string

const (
	// SourceFlash is the product-row flash sale percentage.
	SourceFlash DiscountSource = "flash"
	// SourceDiscount is an admin-authored product or category discount.
	SourceDiscount DiscountSource = "discount"
	// SourceCoupon is a user-entered coupon code.
	SourceCoupon DiscountSource = "coupon"
	// SourceCartValue is a cart-subtotal threshold discount.
	SourceCartValue DiscountSource = "cart_value"
)

// PriceQuote is the resolved price of one product or variant at one instant.
// FinalPrice is never negative and never recomputed after an order freezes it.
type PriceQuote struct {
	BasePrice      int64
	FinalPrice     int64
	DiscountAmount int64
	DiscountLabel  string
	Source         DiscountSource
}

// Discounted reports whether any reduction applied.
func (q PriceQuote) Discounted() bool {
	return q.DiscountAmount > 0
}

// DiscountLine is one entry of the frozen discount breakdown stored on an
// order. Amount is the céntimos actually subtracted.
type DiscountLine struct {
	Source DiscountSource
	Label  string
	Code   string
	Amount int64
}

// CartLine is the untrusted client input: which product, which variant, how
// many. Prices are always re-resolved server-side.
type CartLine struct {
	ProductID string
	VariantID string
	Quantity  int
}

// PricedLine is a cart line after server-side resolution, carrying the
// authoritative quote and the line subtotal (unit final price × quantity).
type PricedLine struct {
	ProductID    string
	VariantID    string
	CategoryID   string
	Name         string
	VariantLabel string
	Quantity     int
	Quote        PriceQuote
	LineTotal    int64
}

// LineID identifies the line within its cart: the product id, qualified by
// the variant id when one was resolved.
func (l PricedLine) LineID() string {
	if l.VariantID == "" {
		return l.ProductID
	}
	return l.ProductID + "/" + l.VariantID
}

// CartSnapshot is the priced view of a cart handed to coupon validation and
// aggregation. Subtotal is the sum of line totals before any cart-level
// reduction.
type CartSnapshot struct {
	Lines    []PricedLine
	Subtotal int64
}

// MatchingLines returns the ids of the lines the given scope and target
// cover, with their combined subtotal. Cart-value scope covers every line.
func (s CartSnapshot) MatchingLines(scope DiscountScope, targetID string) ([]string, int64) {
	ids := make([]string, 0, len(s.Lines))
	var sum int64
	for _, l := range s.Lines {
		switch scope {
		case ScopeCartValue:
		case ScopeProduct:
			if l.ProductID != targetID {
				continue
			}
		case ScopeCategory:
			if l.CategoryID != targetID {
				continue
			}
		default:
			continue
		}
		ids = append(ids, l.LineID())
		sum += l.LineTotal
	}
	return ids, sum
}

// MatchingSubtotal sums the line totals the given scope and target cover.
func (s CartSnapshot) MatchingSubtotal(scope DiscountScope, targetID string) int64 {
	_, sum := s.MatchingLines(scope, targetID)
	return sum
}

// CouponApplication records a validated coupon, its redemption terms, and the
// céntimos it removes from the cart. AppliedLineIDs lists the lines whose
// totals the coupon discounted.
type CouponApplication struct {
	Code           string
	Label          string
	Type           DiscountType
	Value          int64
	Amount         int64
	AppliedLineIDs []string
}

// PriceBreakdown is the aggregated result of pricing a cart. Total is
// Subtotal − Discount, floored at zero; Lines is the serializable
// discountInfo snapshot.
type PriceBreakdown struct {
	Subtotal       int64
	CouponDiscount int64
	CartDiscount   int64
	Discount       int64
	Total          int64
	Lines          []DiscountLine
}
