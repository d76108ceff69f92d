package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/repositories"
)

var (
	// ErrCheckoutDependencyMissing indicates a required checkout collaborator is absent.
	ErrCheckoutDependencyMissing = errors.New("checkout service: dependency is not configured")
	// ErrCheckoutInvalidInput signals a malformed commit request.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrInsufficientStock indicates a line cannot be fulfilled from current stock.
	ErrInsufficientStock = errors.New("checkout service: insufficient stock")
)

// CheckoutServiceDeps bundles collaborators required to construct a CheckoutService.
type CheckoutServiceDeps struct {
	Pricing     PricingService
	Checkout    repositories.CheckoutRepository
	Counters    CounterService
	Publisher   OrderEventPublisher
	Currency    string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type checkoutService struct {
	pricing   PricingService
	checkout  repositories.CheckoutRepository
	counters  CounterService
	publisher OrderEventPublisher
	currency  string
	clock     func() time.Time
	idGen     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewCheckoutService wires the transactional checkout path.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Pricing == nil {
		return nil, fmt.Errorf("%w: pricing service", ErrCheckoutDependencyMissing)
	}
	if deps.Checkout == nil {
		return nil, fmt.Errorf("%w: checkout repository", ErrCheckoutDependencyMissing)
	}
	if deps.Counters == nil {
		return nil, fmt.Errorf("%w: counter service", ErrCheckoutDependencyMissing)
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "PEN"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		pricing:   deps.Pricing,
		checkout:  deps.Checkout,
		counters:  deps.Counters,
		publisher: deps.Publisher,
		currency:  currency,
		clock:     func() time.Time { return clock().UTC() },
		idGen:     idGen,
		logger:    logger,
	}, nil
}

// CommitOrder re-resolves prices and re-validates the coupon from server
// state, then writes the coupon increment, stock decrements, and order
// document in one transaction. The client cart is never trusted.
func (s *checkoutService) CommitOrder(ctx context.Context, cmd CommitOrderCommand) (Order, error) {
	if cmd.Identity.IsZero() {
		return Order{}, fmt.Errorf("%w: a purchasing identity is required", ErrCheckoutInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: cart has no lines", ErrCheckoutInvalidInput)
	}

	quote, err := s.pricing.PriceCart(ctx, PriceCartCommand{
		Lines:      cmd.Lines,
		CouponCode: cmd.CouponCode,
		Identity:   cmd.Identity,
	})
	if err != nil {
		return Order{}, err
	}

	orderNumber, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	order := domain.Order{
		ID:          "ord_" + s.idGen(),
		OrderNumber: orderNumber,
		UserRef:     cmd.Identity.UserID,
		GuestEmail:  strings.ToLower(strings.TrimSpace(cmd.Identity.GuestEmail)),
		Status:      domain.OrderStatusPending,
		Currency:    s.currency,
		Items:       orderItemsFrom(quote.Snapshot),
		Totals: domain.OrderTotals{
			Subtotal: quote.Breakdown.Subtotal,
			Discount: quote.Breakdown.Discount,
			Total:    quote.Breakdown.Total,
		},
		DiscountInfo: quote.Breakdown.Lines,
		Notes:        strings.TrimSpace(cmd.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var couponID string
	if quote.Coupon != nil {
		couponID = quote.Coupon.Coupon.ID
		code := quote.Coupon.Application.Code
		order.CouponCode = &code
	}

	committed, err := s.checkout.Commit(ctx, repositories.CheckoutCommit{
		Order:    order,
		CouponID: couponID,
		Demands:  stockDemandsFrom(quote.Snapshot),
		Now:      now,
	})
	if err != nil {
		return Order{}, translateCommitError(err)
	}

	s.logger(ctx, "order_committed", map[string]any{
		"orderId":     committed.ID,
		"orderNumber": committed.OrderNumber,
		"total":       committed.Totals.Total,
	})
	s.publish(ctx, "order.created", committed)

	return committed, nil
}

func orderItemsFrom(snapshot CartSnapshot) []domain.OrderLineItem {
	items := make([]domain.OrderLineItem, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		items = append(items, domain.OrderLineItem{
			ProductID:     line.ProductID,
			VariantID:     line.VariantID,
			Name:          line.Name,
			VariantLabel:  line.VariantLabel,
			Quantity:      line.Quantity,
			UnitPrice:     line.Quote.FinalPrice,
			BasePrice:     line.Quote.BasePrice,
			Total:         line.LineTotal,
			DiscountLabel: line.Quote.DiscountLabel,
		})
	}
	return items
}

// stockDemandsFrom merges duplicate lines so each stock document is touched
// once inside the transaction.
func stockDemandsFrom(snapshot CartSnapshot) []repositories.StockDemand {
	index := make(map[string]int, len(snapshot.Lines))
	demands := make([]repositories.StockDemand, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		key := line.LineID()
		if at, ok := index[key]; ok {
			demands[at].Quantity += line.Quantity
			continue
		}
		index[key] = len(demands)
		demands = append(demands, repositories.StockDemand{Key: key, Quantity: line.Quantity})
	}
	return demands
}

func (s *checkoutService) publish(ctx context.Context, event string, order Order) {
	if s.publisher == nil {
		return
	}
	message := OrderEventMessage{
		Event:       event,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		OccurredAt:  s.clock(),
	}
	if _, err := s.publisher.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order_event_publish_failed", map[string]any{
			"orderId": order.ID,
			"event":   event,
			"error":   err.Error(),
		})
	}
}

// translateCommitError maps transaction aborts onto caller-facing errors.
// Coupon capacity races surface exactly like validation-time rejections.
func translateCommitError(err error) error {
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorInsufficient, repositories.StockErrorNotFound:
			return fmt.Errorf("%w: %s", ErrInsufficientStock, stockErr.Message)
		}
	}

	var capErr *repositories.CouponCapError
	if errors.As(err, &capErr) {
		switch capErr.Code {
		case repositories.CouponCapErrorExhausted:
			return rejectCoupon(CouponRejectedMaxUsesReached, "coupon has no remaining uses")
		case repositories.CouponCapErrorGone:
			return rejectCoupon(CouponRejectedNotFound, "coupon is no longer available")
		}
	}

	return err
}
