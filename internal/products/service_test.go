package product

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/internal/categories"
	"github.com/stockroom/catalog-backend/pkg/db"
	"github.com/stockroom/catalog-backend/pkg/db/models"
	"github.com/stockroom/catalog-backend/pkg/enums"
	pkgerrors "github.com/stockroom/catalog-backend/pkg/errors"
	"github.com/stockroom/catalog-backend/pkg/pagination"
	"github.com/stockroom/catalog-backend/pkg/redis"
)

func TestCreateProductProvisionsInventory(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	categoryID := mustCreateTestCategory(t, conn)

	dto, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU:        "WID-001",
		Name:       "Widget",
		CategoryID: categoryID,
		Price:      decimal.NewFromFloat(19.99),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if dto.State != enums.ProductStateActive.String() {
		t.Fatalf("expected active state, got %s", dto.State)
	}
	if dto.Inventory == nil {
		t.Fatal("expected inventory record to be provisioned")
	}
	if dto.Inventory.OnHand != 0 || dto.Inventory.Reserved != 0 || dto.Inventory.Available != 0 {
		t.Fatalf("expected zeroed inventory, got %+v", dto.Inventory)
	}

	var count int64
	if err := conn.Model(&models.InventoryRecord{}).Where("product_id = ?", dto.ID).Count(&count).Error; err != nil {
		t.Fatalf("count inventory: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one inventory record, got %d", count)
	}
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	categoryID := mustCreateTestCategory(t, conn)

	input := CreateProductInput{
		SKU:        "DUP-001",
		Name:       "First",
		CategoryID: categoryID,
		Price:      decimal.NewFromInt(5),
	}
	if _, err := svc.CreateProduct(ctx, input); err != nil {
		t.Fatalf("first create: %v", err)
	}

	input.Name = "Second"
	_, err := svc.CreateProduct(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDuplicateSKU {
		t.Fatalf("expected duplicate sku error, got %v", err)
	}

	// the failed create must not leave anything behind
	var products int64
	if err := conn.Model(&models.Product{}).Where("sku = ?", "DUP-001").Count(&products).Error; err != nil {
		t.Fatalf("count products: %v", err)
	}
	if products != 1 {
		t.Fatalf("expected one product, got %d", products)
	}
}

func TestCreateProductUnknownCategory(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		SKU:        "ORPHAN-1",
		Name:       "Orphan",
		CategoryID: uuid.New(),
		Price:      decimal.NewFromInt(1),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for unknown category, got %v", err)
	}
}

func TestUpdateProductPartialFields(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	categoryID := mustCreateTestCategory(t, conn)

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU:        "UPD-001",
		Name:       "Original",
		CategoryID: categoryID,
		Price:      decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Renamed"
	price := decimal.NewFromFloat(12.50)
	updated, err := svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Name:  &name,
		Price: &price,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("expected renamed product, got %s", updated.Name)
	}
	if !updated.Price.Equal(price) {
		t.Fatalf("expected updated price, got %s", updated.Price)
	}
	if updated.SKU != "UPD-001" {
		t.Fatalf("untouched sku must survive, got %s", updated.SKU)
	}
}

func TestUpdateProductDuplicateSKU(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	categoryID := mustCreateTestCategory(t, conn)

	if _, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU: "TAKEN-1", Name: "A", CategoryID: categoryID, Price: decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("create a: %v", err)
	}
	second, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU: "FREE-1", Name: "B", CategoryID: categoryID, Price: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	sku := "TAKEN-1"
	_, err = svc.UpdateProduct(ctx, second.ID, UpdateProductInput{SKU: &sku})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDuplicateSKU {
		t.Fatalf("expected duplicate sku error, got %v", err)
	}
}

func TestDeleteProductSoftDeletes(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	categoryID := mustCreateTestCategory(t, conn)

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU: "DEL-001", Name: "Doomed", CategoryID: categoryID, Price: decimal.NewFromInt(3),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var row models.Product
	if err := conn.First(&row, "id = ?", created.ID).Error; err != nil {
		t.Fatalf("row must remain after soft delete: %v", err)
	}
	if row.State != enums.ProductStateDeleted || row.DeletedAt == nil {
		t.Fatalf("expected deleted state with timestamp, got %+v", row)
	}

	// inventory is untouched by lifecycle changes
	var record models.InventoryRecord
	if err := conn.First(&record, "product_id = ?", created.ID).Error; err != nil {
		t.Fatalf("inventory must remain after soft delete: %v", err)
	}

	// repeated deletes and reads treat the product as gone
	if err := svc.DeleteProduct(ctx, created.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := svc.GetProduct(ctx, created.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found on read, got %v", err)
	}
	if _, err := svc.UpdateProduct(ctx, created.ID, UpdateProductInput{}); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestGetProductBumpsViewCount(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	categoryID := mustCreateTestCategory(t, conn)

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU: "VIEW-1", Name: "Watched", CategoryID: categoryID, Price: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	second, err := svc.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if second.ViewCount != first.ViewCount+1 {
		t.Fatalf("expected view count to advance, got %d then %d", first.ViewCount, second.ViewCount)
	}
}

func TestGetProductBatchesViewFlushes(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	cache := newStubCache()
	svc := newTestServiceWithCache(t, conn, cache)
	ctx := context.Background()
	categoryID := mustCreateTestCategory(t, conn)

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU: "VIEW-2", Name: "Hot Item", CategoryID: categoryID, Price: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < viewFlushBatch-1; i++ {
		if _, err := svc.GetProduct(ctx, created.ID); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	// views sit in the counter until the batch fills
	var product models.Product
	if err := conn.First(&product, "id = ?", created.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.ViewCount != 0 {
		t.Fatalf("expected no flush before the batch boundary, got %d", product.ViewCount)
	}

	if _, err := svc.GetProduct(ctx, created.ID); err != nil {
		t.Fatalf("boundary get: %v", err)
	}
	if err := conn.First(&product, "id = ?", created.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.ViewCount != viewFlushBatch {
		t.Fatalf("expected %d views flushed, got %d", viewFlushBatch, product.ViewCount)
	}
}

func TestListProductsCachesDefaultPage(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	cache := newStubCache()
	svc := newTestServiceWithCache(t, conn, cache)
	ctx := context.Background()
	categoryID := mustCreateTestCategory(t, conn)

	if _, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU: "PAGE-1", Name: "Seed", CategoryID: categoryID, Price: decimal.NewFromInt(3),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := svc.ListProducts(ctx, ListProductsInput{})
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected 1 product, got %d", result.Total)
	}
	if !cache.has(cache.ListKey(redis.DefaultListVariant)) {
		t.Fatal("expected default page to be cached")
	}

	// a row written behind the service stays invisible until invalidation
	stale := &models.Product{
		SKU:        "PAGE-2",
		Name:       "Backdoor",
		CategoryID: categoryID,
		Price:      decimal.NewFromInt(4),
		Currency:   "USD",
		WeightUnit: "kg",
		IsActive:   true,
		State:      enums.ProductStateActive,
	}
	if err := conn.Create(stale).Error; err != nil {
		t.Fatalf("insert row: %v", err)
	}
	result, err = svc.ListProducts(ctx, ListProductsInput{})
	if err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected cached page to be served, got total=%d", result.Total)
	}

	// filtered queries never ride the cache, so they see the new row
	featured := false
	result, err = svc.ListProducts(ctx, ListProductsInput{
		Filters: ProductListFilters{IsFeatured: &featured},
	})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected filtered query against the database, got total=%d", result.Total)
	}

	// a create through the service evicts the page
	if _, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU: "PAGE-3", Name: "Fresh", CategoryID: categoryID, Price: decimal.NewFromInt(5),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err = svc.ListProducts(ctx, ListProductsInput{})
	if err != nil {
		t.Fatalf("list after create: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("expected fresh page after invalidation, got total=%d", result.Total)
	}
}

func TestListProductsFiltersAndPaging(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	categoryA := mustCreateTestCategory(t, conn)
	categoryB := mustCreateTestCategory(t, conn)

	seed := []CreateProductInput{
		{SKU: "LIST-1", Name: "Alpha Widget", CategoryID: categoryA, Price: decimal.NewFromInt(5)},
		{SKU: "LIST-2", Name: "Beta Widget", CategoryID: categoryA, Price: decimal.NewFromInt(15), IsFeatured: true},
		{SKU: "LIST-3", Name: "Gamma Gadget", CategoryID: categoryB, Price: decimal.NewFromInt(25)},
	}
	ids := make([]uuid.UUID, 0, len(seed))
	for _, input := range seed {
		dto, err := svc.CreateProduct(ctx, input)
		if err != nil {
			t.Fatalf("seed %s: %v", input.SKU, err)
		}
		ids = append(ids, dto.ID)
	}

	// category filter
	result, err := svc.ListProducts(ctx, ListProductsInput{
		Filters: ProductListFilters{CategoryID: &categoryA},
	})
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	if result.Total != 2 || len(result.Products) != 2 {
		t.Fatalf("expected 2 products in category, got total=%d len=%d", result.Total, len(result.Products))
	}

	// price range
	min := decimal.NewFromInt(10)
	max := decimal.NewFromInt(20)
	result, err = svc.ListProducts(ctx, ListProductsInput{
		Filters: ProductListFilters{PriceMin: &min, PriceMax: &max},
	})
	if err != nil {
		t.Fatalf("list by price: %v", err)
	}
	if result.Total != 1 || result.Products[0].SKU != "LIST-2" {
		t.Fatalf("expected only LIST-2 in range, got %+v", result.Products)
	}

	// featured flag
	featured := true
	result, err = svc.ListProducts(ctx, ListProductsInput{
		Filters: ProductListFilters{IsFeatured: &featured},
	})
	if err != nil {
		t.Fatalf("list featured: %v", err)
	}
	if result.Total != 1 || result.Products[0].SKU != "LIST-2" {
		t.Fatalf("expected only featured product, got %+v", result.Products)
	}

	// text search
	result, err = svc.ListProducts(ctx, ListProductsInput{
		Filters: ProductListFilters{Query: "gadget"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Total != 1 || result.Products[0].SKU != "LIST-3" {
		t.Fatalf("expected gadget match, got %+v", result.Products)
	}

	// paging with clamped inputs
	result, err = svc.ListProducts(ctx, ListProductsInput{
		Pagination: pagination.Params{Skip: -5, Limit: 2},
		SortBy:     "price",
	})
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if result.Skip != 0 || result.Limit != 2 {
		t.Fatalf("expected clamped paging, got skip=%d limit=%d", result.Skip, result.Limit)
	}
	if result.Total != 3 || len(result.Products) != 2 {
		t.Fatalf("expected 2 of 3 rows, got total=%d len=%d", result.Total, len(result.Products))
	}
	if result.Products[0].SKU != "LIST-1" {
		t.Fatalf("expected cheapest first, got %s", result.Products[0].SKU)
	}

	// deleted products disappear from listings
	if err := svc.DeleteProduct(ctx, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	result, err = svc.ListProducts(ctx, ListProductsInput{})
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected deleted product to vanish, total=%d", result.Total)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Category{}, &models.Product{}, &models.InventoryRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), categories.NewRepository(conn), nil, 0)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func newTestServiceWithCache(t *testing.T, conn *gorm.DB, cache redis.Cache) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), categories.NewRepository(conn), cache, time.Minute)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

// stubCache is an in-memory stand-in for the Redis-backed cache.
type stubCache struct {
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
}

func newStubCache() *stubCache {
	return &stubCache{
		data:     make(map[string]string),
		counters: make(map[string]int64),
	}
}

func (c *stubCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (c *stubCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = fmt.Sprint(value)
	return nil
}

func (c *stubCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
	}
	return nil
}

func (c *stubCache) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *stubCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *stubCache) ProductKey(productID string) string   { return "product:" + productID }
func (c *stubCache) InventoryKey(productID string) string { return "inventory:" + productID }
func (c *stubCache) ListKey(variant string) string        { return "list:" + variant }
func (c *stubCache) CounterKey(name string) string        { return "counter:" + name }

func mustCreateTestCategory(t *testing.T, conn *gorm.DB) uuid.UUID {
	t.Helper()
	category := &models.Category{
		Name: "Category " + uuid.NewString(),
		Slug: "category-" + uuid.NewString(),
	}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category.ID
}
