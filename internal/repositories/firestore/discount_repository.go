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

const discountsCollection = "discounts"

type discountDocument struct {
	Name         string     `firestore:"name"`
	Type         string     `firestore:"type"`
	Value        int64      `firestore:"value"`
	AppliesTo    string     `firestore:"appliesTo"`
	TargetRef    string     `firestore:"targetRef,omitempty"`
	MinCartValue int64      `firestore:"minCartValue,omitempty"`
	StartsAt     *time.Time `firestore:"startsAt,omitempty"`
	EndsAt       *time.Time `firestore:"endsAt,omitempty"`
	Active       bool       `firestore:"active"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	UpdatedAt    time.Time  `firestore:"updatedAt"`
}

func newDiscountDocument(discount domain.Discount) discountDocument {
	return discountDocument{
		Name:         strings.TrimSpace(discount.Name),
		Type:         string(discount.Type),
		Value:        discount.Value,
		AppliesTo:    string(discount.AppliesTo),
		TargetRef:    strings.TrimSpace(discount.TargetID),
		MinCartValue: discount.MinCartValue,
		StartsAt:     discount.Window.StartsAt,
		EndsAt:       discount.Window.EndsAt,
		Active:       discount.Active,
		CreatedAt:    discount.CreatedAt.UTC(),
		UpdatedAt:    discount.UpdatedAt.UTC(),
	}
}

func (d discountDocument) toDomain(id string) domain.Discount {
	return domain.Discount{
		ID:           id,
		Name:         d.Name,
		Type:         domain.DiscountType(d.Type),
		Value:        d.Value,
		AppliesTo:    domain.DiscountScope(d.AppliesTo),
		TargetID:     d.TargetRef,
		MinCartValue: d.MinCartValue,
		Window:       domain.ActiveWindow{StartsAt: d.StartsAt, EndsAt: d.EndsAt},
		Active:       d.Active,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// DiscountRepository implements repositories.DiscountRepository backed by Firestore.
type DiscountRepository struct {
	provider  *pfirestore.Provider
	discounts *pfirestore.BaseRepository[discountDocument]
}

var _ repositories.DiscountRepository = (*DiscountRepository)(nil)

// NewDiscountRepository constructs a Firestore-backed discount repository.
func NewDiscountRepository(provider *pfirestore.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository requires firestore provider")
	}
	return &DiscountRepository{
		provider:  provider,
		discounts: pfirestore.NewBaseRepository[discountDocument](provider, discountsCollection, nil, nil),
	}, nil
}

// Insert creates the discount document, failing on id collision.
func (r *DiscountRepository) Insert(ctx context.Context, discount domain.Discount) error {
	if r == nil || r.discounts == nil {
		return errors.New("discount repository not initialised")
	}
	if strings.TrimSpace(discount.ID) == "" {
		return errors.New("discount insert: id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return pfirestore.WrapError("discounts.insert", err)
	}
	if _, err := client.Collection(discountsCollection).Doc(discount.ID).Create(ctx, newDiscountDocument(discount)); err != nil {
		return pfirestore.WrapError("discounts.insert", err)
	}
	return nil
}

// Update replaces the full discount document.
func (r *DiscountRepository) Update(ctx context.Context, discount domain.Discount) error {
	if r == nil || r.discounts == nil {
		return errors.New("discount repository not initialised")
	}
	if strings.TrimSpace(discount.ID) == "" {
		return errors.New("discount update: id is required")
	}
	if _, err := r.discounts.Set(ctx, discount.ID, newDiscountDocument(discount)); err != nil {
		return pfirestore.WrapError("discounts.update", err)
	}
	return nil
}

// Delete removes the discount document. Discounts keep no audit history.
func (r *DiscountRepository) Delete(ctx context.Context, discountID string) error {
	if r == nil || r.discounts == nil {
		return errors.New("discount repository not initialised")
	}
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return errors.New("discount delete: id is required")
	}
	ref, err := r.discounts.DocumentRef(ctx, discountID)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("discounts.delete", err)
	}
	return nil
}

// FindByID fetches one discount.
func (r *DiscountRepository) FindByID(ctx context.Context, discountID string) (domain.Discount, error) {
	if r == nil || r.discounts == nil {
		return domain.Discount{}, errors.New("discount repository not initialised")
	}
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return domain.Discount{}, errors.New("discount find: id is required")
	}
	doc, err := r.discounts.Get(ctx, discountID)
	if err != nil {
		return domain.Discount{}, pfirestore.WrapError("discounts.find", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListEnabled returns every discount with the active flag set. Window checks
// happen in the service so activity is always evaluated against now.
func (r *DiscountRepository) ListEnabled(ctx context.Context) ([]domain.Discount, error) {
	if r == nil || r.discounts == nil {
		return nil, errors.New("discount repository not initialised")
	}
	docs, err := r.discounts.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("active", "==", true)
	})
	if err != nil {
		return nil, pfirestore.WrapError("discounts.listEnabled", err)
	}
	discounts := make([]domain.Discount, len(docs))
	for i, doc := range docs {
		discounts[i] = doc.Data.toDomain(doc.ID)
	}
	return discounts, nil
}

// List returns discounts ordered by creation time descending.
func (r *DiscountRepository) List(ctx context.Context, filter repositories.DiscountListFilter) (domain.CursorPage[domain.Discount], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Discount]{}, errors.New("discount repository not initialised")
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
		return domain.CursorPage[domain.Discount]{}, pfirestore.WrapError("discounts.list", err)
	}

	query := client.Collection(discountsCollection).Query
	if filter.AppliesTo != nil {
		query = query.Where("appliesTo", "==", string(*filter.AppliesTo))
	}
	if filter.Active != nil {
		query = query.Where("active", "==", *filter.Active)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeToken[discountPageToken](token)
		if err != nil {
			return domain.CursorPage[domain.Discount]{}, pfirestore.WrapError("discounts.list", err)
		}
		query = query.StartAfter(decoded.CreatedAt, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var discounts []domain.Discount
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Discount]{}, pfirestore.WrapError("discounts.list", err)
		}
		var doc discountDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Discount]{}, fmt.Errorf("decode discount %s: %w", snap.Ref.ID, err)
		}
		discounts = append(discounts, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(discounts) > pageSize
	if hasMore {
		discounts = discounts[:pageSize]
	}
	var nextToken string
	if hasMore && len(discounts) > 0 {
		last := discounts[len(discounts)-1]
		encoded, err := pagination.EncodeToken(discountPageToken{ID: last.ID, CreatedAt: last.CreatedAt.UTC()})
		if err != nil {
			return domain.CursorPage[domain.Discount]{}, pfirestore.WrapError("discounts.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Discount]{Items: discounts, NextPageToken: nextToken}, nil
}

type discountPageToken struct {
	ID        string
	CreatedAt time.Time
}
