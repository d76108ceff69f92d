package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/detalia/storefront-api/internal/domain"
	pfirestore "github.com/detalia/storefront-api/internal/platform/firestore"
	"github.com/detalia/storefront-api/internal/platform/pagination"
	"github.com/detalia/storefront-api/internal/repositories"
)

const couponsCollection = "coupons"

type couponDocument struct {
	Code              string     `firestore:"code"`
	Type              string     `firestore:"type"`
	Value             int64      `firestore:"value"`
	MinPurchase       int64      `firestore:"minPurchase"`
	AppliesTo         string     `firestore:"appliesTo"`
	TargetRef         string     `firestore:"targetRef,omitempty"`
	MaxUses           *int64     `firestore:"maxUses,omitempty"`
	Uses              int64      `firestore:"uses"`
	UsageLimitPerUser int64      `firestore:"usageLimitPerUser"`
	Active            bool       `firestore:"active"`
	ExpiresAt         *time.Time `firestore:"expiresAt,omitempty"`
	Deleted           bool       `firestore:"deleted"`
	DeletedAt         *time.Time `firestore:"deletedAt,omitempty"`
	DeletedBy         string     `firestore:"deletedBy,omitempty"`
	DeletionReason    string     `firestore:"deletionReason,omitempty"`
	CreatedAt         time.Time  `firestore:"createdAt"`
	UpdatedAt         time.Time  `firestore:"updatedAt"`
}

func newCouponDocument(coupon domain.Coupon) couponDocument {
	return couponDocument{
		Code:              strings.ToUpper(strings.TrimSpace(coupon.Code)),
		Type:              string(coupon.Type),
		Value:             coupon.Value,
		MinPurchase:       coupon.MinPurchase,
		AppliesTo:         string(coupon.AppliesTo),
		TargetRef:         strings.TrimSpace(coupon.TargetID),
		MaxUses:           coupon.MaxUses,
		Uses:              coupon.Uses,
		UsageLimitPerUser: coupon.UsageLimitPerUser,
		Active:            coupon.Active,
		ExpiresAt:         coupon.ExpiresAt,
		Deleted:           coupon.Audit.IsDeleted(),
		DeletedAt:         coupon.Audit.DeletedAt,
		DeletedBy:         coupon.Audit.DeletedBy,
		DeletionReason:    coupon.Audit.DeletionReason,
		CreatedAt:         coupon.CreatedAt.UTC(),
		UpdatedAt:         coupon.UpdatedAt.UTC(),
	}
}

func (d couponDocument) toDomain(id string) domain.Coupon {
	return domain.Coupon{
		ID:                id,
		Code:              d.Code,
		Type:              domain.DiscountType(d.Type),
		Value:             d.Value,
		MinPurchase:       d.MinPurchase,
		AppliesTo:         domain.DiscountScope(d.AppliesTo),
		TargetID:          d.TargetRef,
		MaxUses:           d.MaxUses,
		Uses:              d.Uses,
		UsageLimitPerUser: d.UsageLimitPerUser,
		Active:            d.Active,
		ExpiresAt:         d.ExpiresAt,
		Audit: domain.Auditable{
			DeletedAt:      d.DeletedAt,
			DeletedBy:      d.DeletedBy,
			DeletionReason: d.DeletionReason,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// CouponRepository implements repositories.CouponRepository backed by Firestore.
type CouponRepository struct {
	provider *pfirestore.Provider
	coupons  *pfirestore.BaseRepository[couponDocument]
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		provider: provider,
		coupons:  pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection, nil, nil),
	}, nil
}

// Insert creates the coupon document, failing on id collision.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.coupons == nil {
		return errors.New("coupon repository not initialised")
	}
	if strings.TrimSpace(coupon.ID) == "" {
		return errors.New("coupon insert: id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return pfirestore.WrapError("coupons.insert", err)
	}
	if _, err := client.Collection(couponsCollection).Doc(coupon.ID).Create(ctx, newCouponDocument(coupon)); err != nil {
		return pfirestore.WrapError("coupons.insert", err)
	}
	return nil
}

// Update replaces the full coupon document.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.coupons == nil {
		return errors.New("coupon repository not initialised")
	}
	if strings.TrimSpace(coupon.ID) == "" {
		return errors.New("coupon update: id is required")
	}
	if _, err := r.coupons.Set(ctx, coupon.ID, newCouponDocument(coupon)); err != nil {
		return pfirestore.WrapError("coupons.update", err)
	}
	return nil
}

// SoftDelete stamps the audit overlay; the document stays for history and
// usage reporting.
func (r *CouponRepository) SoftDelete(ctx context.Context, couponID string, audit domain.Auditable) error {
	if r == nil || r.coupons == nil {
		return errors.New("coupon repository not initialised")
	}
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return errors.New("coupon soft delete: id is required")
	}
	if audit.DeletedAt == nil {
		return errors.New("coupon soft delete: deletedAt is required")
	}

	updates := []firestore.Update{
		{Path: "deleted", Value: true},
		{Path: "deletedAt", Value: audit.DeletedAt.UTC()},
		{Path: "deletedBy", Value: audit.DeletedBy},
		{Path: "deletionReason", Value: audit.DeletionReason},
		{Path: "active", Value: false},
		{Path: "updatedAt", Value: audit.DeletedAt.UTC()},
	}
	if _, err := r.coupons.Update(ctx, couponID, updates, firestore.Exists); err != nil {
		return pfirestore.WrapError("coupons.softDelete", err)
	}
	return nil
}

// FindByID fetches a coupon regardless of its soft-delete state.
func (r *CouponRepository) FindByID(ctx context.Context, couponID string) (domain.Coupon, error) {
	if r == nil || r.coupons == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return domain.Coupon{}, errors.New("coupon find: id is required")
	}
	doc, err := r.coupons.Get(ctx, couponID)
	if err != nil {
		return domain.Coupon{}, pfirestore.WrapError("coupons.find", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByCode resolves a coupon by its normalized code. Soft-deleted rows are
// returned with the audit overlay intact; the validator maps them to the same
// outcome as an unknown code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.coupons == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.Coupon{}, errors.New("coupon find by code: code is required")
	}

	docs, err := r.coupons.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, pfirestore.WrapError("coupons.findByCode", err)
	}
	if len(docs) == 0 {
		return domain.Coupon{}, pfirestore.WrapError("coupons.findByCode", status.Errorf(codes.NotFound, "coupon with code %s not found", code))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns coupons ordered by creation time descending.
func (r *CouponRepository) List(ctx context.Context, filter repositories.CouponListFilter) (domain.CursorPage[domain.Coupon], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Coupon]{}, errors.New("coupon repository not initialised")
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
		return domain.CursorPage[domain.Coupon]{}, pfirestore.WrapError("coupons.list", err)
	}

	query := client.Collection(couponsCollection).Query
	if filter.Active != nil {
		query = query.Where("active", "==", *filter.Active)
	}
	if !filter.IncludeDeleted {
		query = query.Where("deleted", "==", false)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeToken[couponPageToken](token)
		if err != nil {
			return domain.CursorPage[domain.Coupon]{}, pfirestore.WrapError("coupons.list", err)
		}
		query = query.StartAfter(decoded.CreatedAt, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var coupons []domain.Coupon
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Coupon]{}, pfirestore.WrapError("coupons.list", err)
		}
		var doc couponDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Coupon]{}, fmt.Errorf("decode coupon %s: %w", snap.Ref.ID, err)
		}
		coupons = append(coupons, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(coupons) > pageSize
	if hasMore {
		coupons = coupons[:pageSize]
	}
	var nextToken string
	if hasMore && len(coupons) > 0 {
		last := coupons[len(coupons)-1]
		encoded, err := pagination.EncodeToken(couponPageToken{ID: last.ID, CreatedAt: last.CreatedAt.UTC()})
		if err != nil {
			return domain.CursorPage[domain.Coupon]{}, pfirestore.WrapError("coupons.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Coupon]{Items: coupons, NextPageToken: nextToken}, nil
}

type couponPageToken struct {
	ID        string
	CreatedAt time.Time
}
