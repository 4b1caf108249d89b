package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/pkg/db/models"
	pkgerrors "github.com/stockroom/catalog-backend/pkg/errors"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Home & Garden":   "home-garden",
		"  Electronics  ": "electronics",
		"Déjà Vu!!":       "d-j-vu",
		"---":             "",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCreateCategoryDerivesSlug(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	dto, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Home & Garden"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.Slug != "home-garden" {
		t.Fatalf("expected derived slug, got %q", dto.Slug)
	}
	if !dto.IsActive {
		t.Fatal("new categories must start active")
	}
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	if _, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Books"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Books"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateCategoryUnknownParent(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newTestDB(t))
	parent := uuid.New()

	_, err := svc.CreateCategory(context.Background(), CreateCategoryInput{Name: "Child", ParentID: &parent})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateCategoryPartialFields(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	created, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Toys", SortOrder: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inactive := false
	updated, err := svc.UpdateCategory(ctx, created.ID, UpdateCategoryInput{IsActive: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsActive {
		t.Fatal("expected category to be deactivated")
	}
	if updated.Name != "Toys" || updated.SortOrder != 3 {
		t.Fatalf("untouched fields must survive: %+v", updated)
	}

	if _, err := svc.UpdateCategory(ctx, created.ID, UpdateCategoryInput{ParentID: &created.ID}); err == nil {
		t.Fatal("expected self-parent to be rejected")
	}
}

func TestDeleteCategoryGuardsProducts(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	created, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Occupied"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	product := &models.Product{
		SKU:        "CAT-GUARD-1",
		Name:       "Occupant",
		CategoryID: created.ID,
		Price:      decimal.NewFromInt(1),
		Currency:   "USD",
		WeightUnit: "kg",
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	err = svc.DeleteCategory(ctx, created.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict while occupied, got %v", err)
	}

	if err := conn.Delete(product).Error; err != nil {
		t.Fatalf("remove product: %v", err)
	}
	if err := svc.DeleteCategory(ctx, created.ID); err != nil {
		t.Fatalf("delete empty category: %v", err)
	}
	if _, err := svc.GetCategory(ctx, created.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestListCategoriesOrdering(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	if _, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Zeta", SortOrder: 1}); err != nil {
		t.Fatalf("create zeta: %v", err)
	}
	if _, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Alpha", SortOrder: 2}); err != nil {
		t.Fatalf("create alpha: %v", err)
	}
	hidden, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Hidden", SortOrder: 0})
	if err != nil {
		t.Fatalf("create hidden: %v", err)
	}
	inactive := false
	if _, err := svc.UpdateCategory(ctx, hidden.ID, UpdateCategoryInput{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rows, err := svc.ListCategories(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "Zeta" || rows[1].Name != "Alpha" {
		t.Fatalf("unexpected ordering: %+v", rows)
	}

	all, err := svc.ListCategories(ctx, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 with inactive, got %d", len(all))
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:categories_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Category{}, &models.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}
