package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
	"github.com/detalia/storefront-api/internal/repositories"
)

// stubRepoError satisfies repositories.RepositoryError for the fakes below.
type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return "stub repository error" }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

type fakeCatalogRepo struct {
	products   map[string]domain.Product
	categories map[string]domain.Category
}

func newFakeCatalogRepo(products ...domain.Product) *fakeCatalogRepo {
	repo := &fakeCatalogRepo{
		products:   make(map[string]domain.Product),
		categories: make(map[string]domain.Category),
	}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (f *fakeCatalogRepo) GetPublishedProduct(_ context.Context, productID string) (domain.Product, error) {
	product, ok := f.products[productID]
	if !ok || !product.IsPublished {
		return domain.Product{}, stubRepoError{notFound: true}
	}
	return product, nil
}

func (f *fakeCatalogRepo) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	product, ok := f.products[productID]
	if !ok {
		return domain.Product{}, stubRepoError{notFound: true}
	}
	return product, nil
}

func (f *fakeCatalogRepo) UpsertProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeCatalogRepo) ListProducts(_ context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	var items []domain.Product
	for _, product := range f.products {
		if filter.OnlyPublished && !product.IsPublished {
			continue
		}
		if filter.CategoryID != nil && product.CategoryID != *filter.CategoryID {
			continue
		}
		items = append(items, product)
	}
	return domain.CursorPage[domain.Product]{Items: items}, nil
}

func (f *fakeCatalogRepo) GetCategory(_ context.Context, categoryID string) (domain.Category, error) {
	category, ok := f.categories[categoryID]
	if !ok {
		return domain.Category{}, stubRepoError{notFound: true}
	}
	return category, nil
}

type fakeDiscountRepo struct {
	discounts map[string]domain.Discount
	listErr   error
}

func newFakeDiscountRepo(discounts ...domain.Discount) *fakeDiscountRepo {
	repo := &fakeDiscountRepo{discounts: make(map[string]domain.Discount)}
	for _, d := range discounts {
		repo.discounts[d.ID] = d
	}
	return repo
}

func (f *fakeDiscountRepo) Insert(_ context.Context, discount domain.Discount) error {
	if _, ok := f.discounts[discount.ID]; ok {
		return stubRepoError{conflict: true}
	}
	f.discounts[discount.ID] = discount
	return nil
}

func (f *fakeDiscountRepo) Update(_ context.Context, discount domain.Discount) error {
	if _, ok := f.discounts[discount.ID]; !ok {
		return stubRepoError{notFound: true}
	}
	f.discounts[discount.ID] = discount
	return nil
}

func (f *fakeDiscountRepo) Delete(_ context.Context, discountID string) error {
	if _, ok := f.discounts[discountID]; !ok {
		return stubRepoError{notFound: true}
	}
	delete(f.discounts, discountID)
	return nil
}

func (f *fakeDiscountRepo) FindByID(_ context.Context, discountID string) (domain.Discount, error) {
	discount, ok := f.discounts[discountID]
	if !ok {
		return domain.Discount{}, stubRepoError{notFound: true}
	}
	return discount, nil
}

func (f *fakeDiscountRepo) List(_ context.Context, _ repositories.DiscountListFilter) (domain.CursorPage[domain.Discount], error) {
	var items []domain.Discount
	for _, discount := range f.discounts {
		items = append(items, discount)
	}
	return domain.CursorPage[domain.Discount]{Items: items}, nil
}

func (f *fakeDiscountRepo) ListEnabled(_ context.Context) ([]domain.Discount, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var enabled []domain.Discount
	for _, discount := range f.discounts {
		if discount.Active {
			enabled = append(enabled, discount)
		}
	}
	return enabled, nil
}

type fakeCouponRepo struct {
	coupons map[string]domain.Coupon
}

func newFakeCouponRepo(coupons ...domain.Coupon) *fakeCouponRepo {
	repo := &fakeCouponRepo{coupons: make(map[string]domain.Coupon)}
	for _, c := range coupons {
		repo.coupons[c.ID] = c
	}
	return repo
}

func (f *fakeCouponRepo) Insert(_ context.Context, coupon domain.Coupon) error {
	for _, existing := range f.coupons {
		if existing.Code == coupon.Code {
			return stubRepoError{conflict: true}
		}
	}
	f.coupons[coupon.ID] = coupon
	return nil
}

func (f *fakeCouponRepo) Update(_ context.Context, coupon domain.Coupon) error {
	if _, ok := f.coupons[coupon.ID]; !ok {
		return stubRepoError{notFound: true}
	}
	f.coupons[coupon.ID] = coupon
	return nil
}

func (f *fakeCouponRepo) SoftDelete(_ context.Context, couponID string, audit domain.Auditable) error {
	coupon, ok := f.coupons[couponID]
	if !ok {
		return stubRepoError{notFound: true}
	}
	coupon.Audit = audit
	coupon.Active = false
	f.coupons[couponID] = coupon
	return nil
}

func (f *fakeCouponRepo) FindByID(_ context.Context, couponID string) (domain.Coupon, error) {
	coupon, ok := f.coupons[couponID]
	if !ok {
		return domain.Coupon{}, stubRepoError{notFound: true}
	}
	return coupon, nil
}

func (f *fakeCouponRepo) FindByCode(_ context.Context, code string) (domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, coupon := range f.coupons {
		if coupon.Code == code {
			return coupon, nil
		}
	}
	return domain.Coupon{}, stubRepoError{notFound: true}
}

func (f *fakeCouponRepo) List(_ context.Context, filter repositories.CouponListFilter) (domain.CursorPage[domain.Coupon], error) {
	var items []domain.Coupon
	for _, coupon := range f.coupons {
		if !filter.IncludeDeleted && coupon.Audit.IsDeleted() {
			continue
		}
		items = append(items, coupon)
	}
	return domain.CursorPage[domain.Coupon]{Items: items}, nil
}

type fakeOrderRepo struct {
	orders       map[string]domain.Order
	couponCounts map[string]int64
	updateErr    error
}

func newFakeOrderRepo(orders ...domain.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{
		orders:       make(map[string]domain.Order),
		couponCounts: make(map[string]int64),
	}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (f *fakeOrderRepo) Update(_ context.Context, order domain.Order) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.orders[order.ID]; !ok {
		return stubRepoError{notFound: true}
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, stubRepoError{notFound: true}
	}
	return order, nil
}

func (f *fakeOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	var items []domain.Order
	for _, order := range f.orders {
		if !filter.IncludeDeleted && order.Audit.IsDeleted() {
			continue
		}
		if filter.UserID != "" && order.UserRef != filter.UserID {
			continue
		}
		items = append(items, order)
	}
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

func (f *fakeOrderRepo) SoftDelete(_ context.Context, orderID string, audit domain.Auditable) error {
	order, ok := f.orders[orderID]
	if !ok {
		return stubRepoError{notFound: true}
	}
	order.Audit = audit
	f.orders[orderID] = order
	return nil
}

func (f *fakeOrderRepo) CountByCouponIdentity(_ context.Context, code string, identity domain.Identity) (int64, error) {
	return f.couponCounts[code+"|"+identity.Key()], nil
}

type fakeStockRepo struct {
	levels  map[string]domain.StockLevel
	manyErr error
}

func newFakeStockRepo(levels ...domain.StockLevel) *fakeStockRepo {
	repo := &fakeStockRepo{levels: make(map[string]domain.StockLevel)}
	for _, level := range levels {
		repo.levels[level.Key] = level
	}
	return repo
}

func (f *fakeStockRepo) Get(_ context.Context, key string) (domain.StockLevel, error) {
	level, ok := f.levels[key]
	if !ok {
		return domain.StockLevel{}, stubRepoError{notFound: true}
	}
	return level, nil
}

func (f *fakeStockRepo) GetMany(_ context.Context, keys []string) (map[string]domain.StockLevel, error) {
	if f.manyErr != nil {
		return nil, f.manyErr
	}
	found := make(map[string]domain.StockLevel, len(keys))
	for _, key := range keys {
		if level, ok := f.levels[key]; ok {
			found[key] = level
		}
	}
	return found, nil
}

func (f *fakeStockRepo) Upsert(_ context.Context, level domain.StockLevel) error {
	f.levels[level.Key] = level
	return nil
}

type capturedEvent struct {
	Message OrderEventMessage
}

type fakeEventPublisher struct {
	events     []capturedEvent
	publishErr error
}

func (f *fakeEventPublisher) PublishOrderEvent(_ context.Context, message OrderEventMessage) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.events = append(f.events, capturedEvent{Message: message})
	return fmt.Sprintf("msg-%d", len(f.events)), nil
}

// Fixture helpers ------------------------------------------------------------

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("%s%02d", prefix, n)
	}
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func strPtrOf(s string) *string { return &s }

// newPricingFixture composes real catalog, promotion, coupon, and pricing
// services over the fakes, with a deterministic clock. Availability checks
// are off; newStockedPricingFixture turns them on.
func newPricingFixture(t interface{ Fatalf(string, ...any) }, now time.Time, catalog *fakeCatalogRepo, discounts *fakeDiscountRepo, coupons *fakeCouponRepo, orders *fakeOrderRepo) PricingService {
	return newStockedPricingFixture(t, now, catalog, discounts, coupons, orders, nil)
}

func newStockedPricingFixture(t interface{ Fatalf(string, ...any) }, now time.Time, catalog *fakeCatalogRepo, discounts *fakeDiscountRepo, coupons *fakeCouponRepo, orders *fakeOrderRepo, stock *fakeStockRepo) PricingService {
	catalogSvc, err := NewCatalogService(CatalogServiceDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	promotionSvc, err := NewPromotionService(PromotionServiceDeps{
		Discounts: discounts,
		Catalog:   catalog,
		Clock:     fixedClock(now),
	})
	if err != nil {
		t.Fatalf("new promotion service: %v", err)
	}
	couponSvc, err := NewCouponService(CouponServiceDeps{
		Coupons: coupons,
		Orders:  orders,
		Clock:   fixedClock(now),
	})
	if err != nil {
		t.Fatalf("new coupon service: %v", err)
	}
	deps := PricingServiceDeps{
		Catalog:    catalogSvc,
		Promotions: promotionSvc,
		Coupons:    couponSvc,
		Clock:      fixedClock(now),
	}
	if stock != nil {
		deps.Stock = stock
	}
	pricingSvc, err := NewPricingService(deps)
	if err != nil {
		t.Fatalf("new pricing service: %v", err)
	}
	return pricingSvc
}
