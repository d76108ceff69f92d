package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/detalia/storefront-api/internal/domain"
	pfirestore "github.com/detalia/storefront-api/internal/platform/firestore"
	"github.com/detalia/storefront-api/internal/platform/pagination"
	"github.com/detalia/storefront-api/internal/repositories"
)

const ordersCollection = "orders"

type orderItemDocument struct {
	ProductRef    string `firestore:"productRef"`
	VariantRef    string `firestore:"variantRef,omitempty"`
	Name          string `firestore:"name"`
	VariantLabel  string `firestore:"variantLabel,omitempty"`
	Quantity      int    `firestore:"qty"`
	UnitPrice     int64  `firestore:"unitPrice"`
	BasePrice     int64  `firestore:"basePrice"`
	Total         int64  `firestore:"total"`
	DiscountLabel string `firestore:"discountLabel,omitempty"`
}

type discountLineDocument struct {
	Source string `firestore:"source"`
	Label  string `firestore:"label"`
	Code   string `firestore:"code,omitempty"`
	Amount int64  `firestore:"amount"`
}

type orderDocument struct {
	OrderNumber    string                 `firestore:"orderNumber"`
	UserRef        string                 `firestore:"userRef,omitempty"`
	GuestEmail     string                 `firestore:"guestEmail,omitempty"`
	Status         string                 `firestore:"status"`
	Currency       string                 `firestore:"currency"`
	Items          []orderItemDocument    `firestore:"items"`
	Subtotal       int64                  `firestore:"subtotal"`
	Discount       int64                  `firestore:"discount"`
	Total          int64                  `firestore:"total"`
	DiscountInfo   []discountLineDocument `firestore:"discountInfo,omitempty"`
	CouponCode     *string                `firestore:"couponCode,omitempty"`
	Notes          string                 `firestore:"notes,omitempty"`
	Deleted        bool                   `firestore:"deleted"`
	DeletedAt      *time.Time             `firestore:"deletedAt,omitempty"`
	DeletedBy      string                 `firestore:"deletedBy,omitempty"`
	DeletionReason string                 `firestore:"deletionReason,omitempty"`
	CreatedAt      time.Time              `firestore:"createdAt"`
	UpdatedAt      time.Time              `firestore:"updatedAt"`
	DeliveredAt    *time.Time             `firestore:"deliveredAt,omitempty"`
	CancelledAt    *time.Time             `firestore:"cancelledAt,omitempty"`
	CancelReason   *string                `firestore:"cancelReason,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			ProductRef:    strings.TrimSpace(item.ProductID),
			VariantRef:    strings.TrimSpace(item.VariantID),
			Name:          item.Name,
			VariantLabel:  item.VariantLabel,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			BasePrice:     item.BasePrice,
			Total:         item.Total,
			DiscountLabel: item.DiscountLabel,
		}
	}
	lines := make([]discountLineDocument, len(order.DiscountInfo))
	for i, line := range order.DiscountInfo {
		lines[i] = discountLineDocument{
			Source: string(line.Source),
			Label:  line.Label,
			Code:   line.Code,
			Amount: line.Amount,
		}
	}
	return orderDocument{
		OrderNumber:    strings.TrimSpace(order.OrderNumber),
		UserRef:        strings.TrimSpace(order.UserRef),
		GuestEmail:     strings.ToLower(strings.TrimSpace(order.GuestEmail)),
		Status:         string(order.Status),
		Currency:       order.Currency,
		Items:          items,
		Subtotal:       order.Totals.Subtotal,
		Discount:       order.Totals.Discount,
		Total:          order.Totals.Total,
		DiscountInfo:   lines,
		CouponCode:     order.CouponCode,
		Notes:          order.Notes,
		Deleted:        order.Audit.IsDeleted(),
		DeletedAt:      order.Audit.DeletedAt,
		DeletedBy:      order.Audit.DeletedBy,
		DeletionReason: order.Audit.DeletionReason,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
		DeliveredAt:    order.DeliveredAt,
		CancelledAt:    order.CancelledAt,
		CancelReason:   order.CancelReason,
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderLineItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderLineItem{
			ProductID:     item.ProductRef,
			VariantID:     item.VariantRef,
			Name:          item.Name,
			VariantLabel:  item.VariantLabel,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			BasePrice:     item.BasePrice,
			Total:         item.Total,
			DiscountLabel: item.DiscountLabel,
		}
	}
	lines := make([]domain.DiscountLine, len(d.DiscountInfo))
	for i, line := range d.DiscountInfo {
		lines[i] = domain.DiscountLine{
			Source: domain.DiscountSource(line.Source),
			Label:  line.Label,
			Code:   line.Code,
			Amount: line.Amount,
		}
	}
	return domain.Order{
		ID:          id,
		OrderNumber: d.OrderNumber,
		UserRef:     d.UserRef,
		GuestEmail:  d.GuestEmail,
		Status:      domain.OrderStatus(d.Status),
		Currency:    d.Currency,
		Items:       items,
		Totals: domain.OrderTotals{
			Subtotal: d.Subtotal,
			Discount: d.Discount,
			Total:    d.Total,
		},
		DiscountInfo: lines,
		CouponCode:   d.CouponCode,
		Notes:        d.Notes,
		Audit: domain.Auditable{
			DeletedAt:      d.DeletedAt,
			DeletedBy:      d.DeletedBy,
			DeletionReason: d.DeletionReason,
		},
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		DeliveredAt:  d.DeliveredAt,
		CancelledAt:  d.CancelledAt,
		CancelReason: d.CancelReason,
	}
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Update replaces the full order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order update: id is required")
	}
	if _, err := r.orders.Set(ctx, order.ID, newOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID fetches the order, including soft-deleted rows; history reads stay
// unrestricted and the service layer decides what deletion means.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order find: id is required")
	}
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.find", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// SoftDelete stamps the audit overlay without removing the document.
func (r *OrderRepository) SoftDelete(ctx context.Context, orderID string, audit domain.Auditable) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order soft delete: id is required")
	}
	if audit.DeletedAt == nil {
		return errors.New("order soft delete: deletedAt is required")
	}

	updates := []firestore.Update{
		{Path: "deleted", Value: true},
		{Path: "deletedAt", Value: audit.DeletedAt.UTC()},
		{Path: "deletedBy", Value: audit.DeletedBy},
		{Path: "deletionReason", Value: audit.DeletionReason},
		{Path: "updatedAt", Value: audit.DeletedAt.UTC()},
	}
	if _, err := r.orders.Update(ctx, orderID, updates, firestore.Exists); err != nil {
		return pfirestore.WrapError("orders.softDelete", err)
	}
	return nil
}

// CountByCouponIdentity counts non-cancelled orders that redeemed code for
// one identity. Soft-deleted orders still count toward per-user limits.
func (r *OrderRepository) CountByCouponIdentity(ctx context.Context, code string, identity domain.Identity) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("order repository not initialised")
	}
	code = strings.TrimSpace(code)
	if code == "" || identity.IsZero() {
		return 0, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("orders.countByCoupon", err)
	}

	query := client.Collection(ordersCollection).Query.Where("couponCode", "==", code)
	if identity.UserID != "" {
		query = query.Where("userRef", "==", identity.UserID)
	} else {
		// Stored guest emails are lowercased, so the equality filter must
		// compare against the same form.
		query = query.Where("guestEmail", "==", strings.ToLower(strings.TrimSpace(identity.GuestEmail)))
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var count int64
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, pfirestore.WrapError("orders.countByCoupon", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return 0, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		if domain.OrderStatus(doc.Status) == domain.OrderStatusCancelled {
			continue
		}
		count++
	}
	return count, nil
}

// List returns orders matching the filter ordered by creation time
// descending, with an opaque cursor for continuation.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	query := client.Collection(ordersCollection).Query
	if filter.UserID != "" {
		query = query.Where("userRef", "==", filter.UserID)
	}
	if filter.GuestEmail != "" {
		query = query.Where("guestEmail", "==", filter.GuestEmail)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		query = query.Where("status", "in", statuses)
	}
	if !filter.IncludeDeleted {
		query = query.Where("deleted", "==", false)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<", filter.DateRange.To.UTC())
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeToken[orderPageToken](token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		query = query.StartAfter(decoded.CreatedAt, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := pagination.EncodeToken(orderPageToken{ID: last.ID, CreatedAt: last.CreatedAt.UTC()})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

type orderPageToken struct {
	ID        string
	CreatedAt time.Time
}
