package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/detalia/storefront-api/internal/domain"
	pfirestore "github.com/detalia/storefront-api/internal/platform/firestore"
	"github.com/detalia/storefront-api/internal/repositories"
)

// CheckoutRepository executes the commit transaction: coupon usage increment,
// stock decrements, and order creation succeed or fail as one unit.
type CheckoutRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	coupons  *pfirestore.BaseRepository[couponDocument]
	stocks   *pfirestore.BaseRepository[stockDocument]
}

var _ repositories.CheckoutRepository = (*CheckoutRepository)(nil)

// NewCheckoutRepository constructs a Firestore-backed checkout repository.
func NewCheckoutRepository(provider *pfirestore.Provider) (*CheckoutRepository, error) {
	if provider == nil {
		return nil, errors.New("checkout repository requires firestore provider")
	}
	return &CheckoutRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		coupons:  pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection, nil, nil),
		stocks:   pfirestore.NewBaseRepository[stockDocument](provider, stockCollection, nil, nil),
	}, nil
}

// Commit runs the atomic order commit. Firestore transactions require all
// reads before any write, so the coupon and every stock document are read and
// verified first, then rewritten together with the new order document.
func (r *CheckoutRepository) Commit(ctx context.Context, commit repositories.CheckoutCommit) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("checkout repository not initialised")
	}
	order := commit.Order
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("checkout commit: order id is required")
	}
	if len(commit.Demands) == 0 {
		return domain.Order{}, errors.New("checkout commit: at least one stock demand is required")
	}
	for _, demand := range commit.Demands {
		if strings.TrimSpace(demand.Key) == "" {
			return domain.Order{}, repositories.NewStockError(repositories.StockErrorNotFound, "checkout commit: stock key is required", nil)
		}
		if demand.Quantity <= 0 {
			return domain.Order{}, repositories.NewStockError(repositories.StockErrorUnknown, fmt.Sprintf("checkout commit: quantity for %s must be > 0", demand.Key), nil)
		}
	}

	now := commit.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	var committed domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		couponID := strings.TrimSpace(commit.CouponID)

		var (
			couponRef *firestore.DocumentRef
			couponDoc couponDocument
		)
		if couponID != "" {
			ref, err := r.coupons.DocumentRef(ctx, couponID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewCouponCapError(repositories.CouponCapErrorGone, fmt.Sprintf("coupon %s not found", couponID), err)
				}
				return err
			}
			if err := snap.DataTo(&couponDoc); err != nil {
				return fmt.Errorf("decode coupon %s: %w", couponID, err)
			}
			if !couponDoc.Active || couponDoc.DeletedAt != nil {
				return repositories.NewCouponCapError(repositories.CouponCapErrorGone, fmt.Sprintf("coupon %s no longer redeemable", couponID), nil)
			}
			if couponDoc.MaxUses != nil && couponDoc.Uses >= *couponDoc.MaxUses {
				return repositories.NewCouponCapError(repositories.CouponCapErrorExhausted, fmt.Sprintf("coupon %s usage cap reached", couponID), nil)
			}
			couponRef = ref
		}

		type stockWrite struct {
			ref *firestore.DocumentRef
			doc stockDocument
		}
		writes := make([]stockWrite, 0, len(commit.Demands))
		for _, demand := range commit.Demands {
			ref, err := r.stocks.DocumentRef(ctx, stockDocID(demand.Key))
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewStockError(repositories.StockErrorNotFound, fmt.Sprintf("stock %s not found", demand.Key), err)
				}
				return err
			}
			var doc stockDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode stock %s: %w", demand.Key, err)
			}
			if doc.OnHand < demand.Quantity {
				return repositories.NewStockError(repositories.StockErrorInsufficient, fmt.Sprintf("insufficient stock for %s", demand.Key), nil)
			}
			doc.OnHand -= demand.Quantity
			doc.UpdatedAt = now
			writes = append(writes, stockWrite{ref: ref, doc: doc})
		}

		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}

		if couponRef != nil {
			couponDoc.Uses++
			couponDoc.UpdatedAt = now
			if err := tx.Set(couponRef, couponDoc); err != nil {
				return err
			}
		}
		for _, write := range writes {
			if err := tx.Set(write.ref, write.doc); err != nil {
				return err
			}
		}
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}

		committed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapCheckoutError("checkout.commit", err)
	}
	return committed, nil
}

func wrapCheckoutError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		if stockErr.Op == "" {
			stockErr.Op = op
		}
		return stockErr
	}
	var capErr *repositories.CouponCapError
	if errors.As(err, &capErr) {
		if capErr.Op == "" {
			capErr.Op = op
		}
		return capErr
	}
	return pfirestore.WrapError(op, err)
}
