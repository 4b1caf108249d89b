package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/pkg/config"
	"github.com/stockroom/catalog-backend/pkg/db"
	"github.com/stockroom/catalog-backend/pkg/db/models"
	"github.com/stockroom/catalog-backend/pkg/enums"
	pkgerrors "github.com/stockroom/catalog-backend/pkg/errors"
)

func TestReserveAndReleaseLifecycle(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, repo := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 0, 0)

	onHand := 100
	if _, err := svc.UpdateInventory(ctx, productID, UpdateInventoryInput{OnHand: &onHand}); err != nil {
		t.Fatalf("restock: %v", err)
	}

	if err := svc.Reserve(ctx, productID, 30); err != nil {
		t.Fatalf("reserve 30: %v", err)
	}
	assertCounts(t, repo, productID, 100, 30, 70)

	err := svc.Reserve(ctx, productID, 80)
	if err == nil {
		t.Fatal("expected insufficient inventory")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficient {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(InsufficientDetails)
	if !ok || details.Requested != 80 || details.Available != 70 {
		t.Fatalf("unexpected details: %+v", typed.Details())
	}
	// a failed reservation must not move any counts
	assertCounts(t, repo, productID, 100, 30, 70)

	// releasing more than is reserved clamps at zero
	if err := svc.Release(ctx, productID, 50); err != nil {
		t.Fatalf("release 50: %v", err)
	}
	assertCounts(t, repo, productID, 100, 0, 100)
}

func TestReserveSequentialContention(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, repo := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 5, 0)

	if err := svc.Reserve(ctx, productID, 3); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	err := svc.Reserve(ctx, productID, 4)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficient {
		t.Fatalf("expected insufficient on second reserve, got %v", err)
	}
	assertCounts(t, repo, productID, 5, 3, 2)
}

func TestReserveConcurrentContention(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	// one connection: sqlite has no row locks, so writers queue at the pool
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	svc, repo := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 10, 0)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Reserve(ctx, productID, 3)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficient {
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}
	// 10 on hand, 3 per caller: exactly three can win, never more
	if succeeded != 3 {
		t.Fatalf("expected 3 successful reservations, got %d", succeeded)
	}
	assertCounts(t, repo, productID, 10, 9, 1)
}

func TestReserveValidation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 5, 0)

	for _, qty := range []int{0, -1} {
		err := svc.Reserve(ctx, productID, qty)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for qty=%d, got %v", qty, err)
		}
	}
}

func TestReserveUnknownProduct(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)

	err := svc.Reserve(context.Background(), uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReserveSoftDeletedProduct(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 10, 0)

	if err := conn.Model(&models.Product{}).
		Where("id = ?", productID).
		Update("state", enums.ProductStateDeleted).Error; err != nil {
		t.Fatalf("soft delete product: %v", err)
	}

	err := svc.Reserve(ctx, productID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for deleted product, got %v", err)
	}
}

func TestAdminOverrideAllowsReservedAboveOnHand(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 10, 0)

	reserved := 25
	dto, err := svc.UpdateInventory(ctx, productID, UpdateInventoryInput{Reserved: &reserved})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if dto.OnHand != 10 || dto.Reserved != 25 || dto.Available != -15 {
		t.Fatalf("unexpected override state: %+v", dto)
	}

	// nothing can be reserved while the override holds available negative
	err = svc.Reserve(ctx, productID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficient {
		t.Fatalf("expected insufficient under override, got %v", err)
	}
}

func TestUpdateInventoryPartialFields(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 40, 10)

	location := "aisle-7"
	reorderPoint := 15
	dto, err := svc.UpdateInventory(ctx, productID, UpdateInventoryInput{
		ReorderPoint:      &reorderPoint,
		WarehouseLocation: &location,
	})
	if err != nil {
		t.Fatalf("partial update: %v", err)
	}
	if dto.OnHand != 40 || dto.Reserved != 10 || dto.Available != 30 {
		t.Fatalf("untouched counts must survive a partial update: %+v", dto)
	}
	if dto.ReorderPoint != 15 {
		t.Fatalf("expected reorder point 15, got %d", dto.ReorderPoint)
	}
	if dto.WarehouseLocation == nil || *dto.WarehouseLocation != "aisle-7" {
		t.Fatalf("expected warehouse location to be set")
	}
}

func TestUpdateInventoryRestockStampsTimestamp(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 10, 0)

	onHand := 60
	dto, err := svc.UpdateInventory(ctx, productID, UpdateInventoryInput{OnHand: &onHand})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if dto.LastRestockedAt == nil {
		t.Fatal("expected last_restocked_at to be stamped on restock")
	}

	lower := 30
	dto, err = svc.UpdateInventory(ctx, productID, UpdateInventoryInput{OnHand: &lower})
	if err != nil {
		t.Fatalf("correction: %v", err)
	}
	if dto.OnHand != 30 || dto.Available != 30 {
		t.Fatalf("unexpected state after downward correction: %+v", dto)
	}
}

func TestReleaseUnknownProduct(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)

	err := svc.Release(context.Background(), uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetInventory(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 12, 2)

	dto, err := svc.GetInventory(ctx, productID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if dto.OnHand != 12 || dto.Reserved != 2 || dto.Available != 10 {
		t.Fatalf("unexpected snapshot: %+v", dto)
	}

	_, err = svc.GetInventory(ctx, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Category{}, &models.Product{}, &models.InventoryRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(conn)
	svc, err := NewService(repo, db.NewFromConn(conn), nil, nil, config.InventoryConfig{}, 0)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo
}

func mustCreateTestProduct(t *testing.T, conn *gorm.DB) uuid.UUID {
	t.Helper()
	category := &models.Category{
		Name: "Test Category " + uuid.NewString(),
		Slug: "test-category-" + uuid.NewString(),
	}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	product := &models.Product{
		SKU:        "SKU-" + uuid.NewString(),
		Name:       "Test Product",
		CategoryID: category.ID,
		Price:      decimal.NewFromInt(10),
		Currency:   "USD",
		WeightUnit: "kg",
		IsActive:   true,
		State:      enums.ProductStateActive,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product.ID
}

func mustSeedInventory(t *testing.T, conn *gorm.DB, productID uuid.UUID, onHand, reserved int) {
	t.Helper()
	record := &models.InventoryRecord{
		ProductID: productID,
		OnHand:    onHand,
		Reserved:  reserved,
		Available: onHand - reserved,
	}
	if err := conn.Create(record).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func assertCounts(t *testing.T, repo *Repository, productID uuid.UUID, onHand, reserved, available int) {
	t.Helper()
	record, err := repo.GetByProductID(context.Background(), productID)
	if err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if record.OnHand != onHand || record.Reserved != reserved || record.Available != available {
		t.Fatalf("unexpected counts on_hand=%d reserved=%d available=%d, want %d/%d/%d",
			record.OnHand, record.Reserved, record.Available, onHand, reserved, available)
	}
}
