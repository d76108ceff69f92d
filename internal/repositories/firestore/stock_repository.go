package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
	pfirestore "github.com/detalia/storefront-api/internal/platform/firestore"
	"github.com/detalia/storefront-api/internal/repositories"
)

const stockCollection = "stock"

type stockDocument struct {
	ProductRef string    `firestore:"productRef"`
	VariantRef string    `firestore:"variantRef,omitempty"`
	OnHand     int       `firestore:"onHand"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func (s stockDocument) toDomain(key string) domain.StockLevel {
	return domain.StockLevel{
		Key:       key,
		ProductID: strings.TrimSpace(s.ProductRef),
		VariantID: strings.TrimSpace(s.VariantRef),
		OnHand:    s.OnHand,
		UpdatedAt: s.UpdatedAt,
	}
}

// StockRepository implements repositories.StockRepository over the stock
// collection. Each document is keyed by the stock key (product id, or
// "productID/variantID" flattened with a colon).
type StockRepository struct {
	provider *pfirestore.Provider
	stocks   *pfirestore.BaseRepository[stockDocument]
}

var _ repositories.StockRepository = (*StockRepository)(nil)

// NewStockRepository constructs a Firestore-backed stock repository.
func NewStockRepository(provider *pfirestore.Provider) (*StockRepository, error) {
	if provider == nil {
		return nil, errors.New("stock repository requires firestore provider")
	}
	return &StockRepository{
		provider: provider,
		stocks:   pfirestore.NewBaseRepository[stockDocument](provider, stockCollection, nil, nil),
	}, nil
}

// Get fetches one stock level by key.
func (r *StockRepository) Get(ctx context.Context, key string) (domain.StockLevel, error) {
	if r == nil || r.stocks == nil {
		return domain.StockLevel{}, errors.New("stock repository not initialised")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.StockLevel{}, repositories.NewStockError(repositories.StockErrorNotFound, "stock key is required", nil)
	}

	doc, err := r.stocks.Get(ctx, stockDocID(key))
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.StockLevel{}, repositories.NewStockError(repositories.StockErrorNotFound, fmt.Sprintf("stock %s not found", key), err)
		}
		return domain.StockLevel{}, wrapStockError("stock.get", err)
	}
	return doc.Data.toDomain(key), nil
}

// GetMany fetches a batch of stock levels; missing keys are simply absent
// from the result map.
func (r *StockRepository) GetMany(ctx context.Context, keys []string) (map[string]domain.StockLevel, error) {
	if r == nil || r.stocks == nil {
		return nil, errors.New("stock repository not initialised")
	}

	levels := make(map[string]domain.StockLevel, len(keys))
	for _, key := range keys {
		level, err := r.Get(ctx, key)
		if err != nil {
			var stockErr *repositories.StockError
			if errors.As(err, &stockErr) && stockErr.Code == repositories.StockErrorNotFound {
				continue
			}
			return nil, err
		}
		levels[key] = level
	}
	return levels, nil
}

// Upsert seeds or replaces the stock level for one key.
func (r *StockRepository) Upsert(ctx context.Context, level domain.StockLevel) error {
	if r == nil || r.stocks == nil {
		return errors.New("stock repository not initialised")
	}
	key := strings.TrimSpace(level.Key)
	if key == "" {
		return repositories.NewStockError(repositories.StockErrorUnknown, "stock key is required", nil)
	}
	if level.OnHand < 0 {
		return repositories.NewStockError(repositories.StockErrorUnknown, "onHand must be >= 0", nil)
	}

	doc := stockDocument{
		ProductRef: strings.TrimSpace(level.ProductID),
		VariantRef: strings.TrimSpace(level.VariantID),
		OnHand:     level.OnHand,
		UpdatedAt:  level.UpdatedAt.UTC(),
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	if _, err := r.stocks.Set(ctx, stockDocID(key), doc); err != nil {
		return wrapStockError("stock.upsert", err)
	}
	return nil
}

// stockDocID flattens the "productID/variantID" key form into a valid
// Firestore document id.
func stockDocID(key string) string {
	return strings.ReplaceAll(key, "/", ":")
}

func wrapStockError(op string, err error) error {
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
	return pfirestore.WrapError(op, err)
}

