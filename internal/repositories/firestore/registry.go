package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/detalia/storefront-api/internal/platform/firestore"
	"github.com/detalia/storefront-api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry interface for dependency injection.
type Registry struct {
	provider  *pfirestore.Provider
	catalog   *CatalogRepository
	discounts *DiscountRepository
	coupons   *CouponRepository
	stock     *StockRepository
	orders    *OrderRepository
	checkout  *CheckoutRepository
	counters  *CounterRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository onto the shared provider. The health
// repository probes the Firestore connection itself.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	discounts, err := NewDiscountRepository(provider)
	if err != nil {
		return nil, err
	}
	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, err
	}
	stock, err := NewStockRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	checkout, err := NewCheckoutRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		catalog:   catalog,
		discounts: discounts,
		coupons:   coupons,
		stock:     stock,
		orders:    orders,
		checkout:  checkout,
		counters:  counters,
		health:    health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Catalog() repositories.CatalogRepository    { return r.catalog }
func (r *Registry) Discounts() repositories.DiscountRepository { return r.discounts }
func (r *Registry) Coupons() repositories.CouponRepository     { return r.coupons }
func (r *Registry) Stock() repositories.StockRepository        { return r.stock }
func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Checkout() repositories.CheckoutRepository  { return r.checkout }
func (r *Registry) Counters() repositories.CounterRepository   { return r.counters }
func (r *Registry) Health() repositories.HealthRepository      { return r.health }
