package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/pkg/db/models"
	"github.com/stockroom/catalog-backend/pkg/enums"
	"github.com/stockroom/catalog-backend/pkg/pagination"
)

// Repository wires together product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product regardless of lifecycle state.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveByID loads the product only if it has not been soft-deleted.
func (r *Repository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		First(&product, "id = ? AND state = ?", id, enums.ProductStateActive).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductDetail fetches an active product with its inventory record.
func (r *Repository) GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Inventory").
		First(&product, "id = ? AND state = ?", id, enums.ProductStateActive).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ExistsBySKU reports whether any product, deleted or not, already claims the SKU.
func (r *Repository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("sku = ?", sku).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct updates an existing product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// IncrementViewCount adds delta views without racing other readers.
func (r *Repository) IncrementViewCount(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("view_count", gorm.Expr("view_count + ?", delta)).
		Error
}

// ProductListFilters narrows catalog queries. Nil fields are not applied.
type ProductListFilters struct {
	CategoryID *uuid.UUID
	Brand      *string
	PriceMin   *decimal.Decimal
	PriceMax   *decimal.Decimal
	IsFeatured *bool
	InStock    *bool
	Query      string
}

type productListQuery struct {
	Pagination pagination.Params
	Filters    ProductListFilters
	SortBy     string
	SortDesc   bool
}

var sortColumns = map[string]string{
	"created_at":     "p.created_at",
	"price":          "p.price",
	"name":           "p.name",
	"rating_average": "p.rating_average",
	"view_count":     "p.view_count",
}

// ListProductSummaries runs one catalog page query plus a matching count.
// Soft-deleted products never appear.
func (r *Repository) ListProductSummaries(ctx context.Context, query productListQuery) (*ProductListResult, error) {
	params := query.Pagination.Normalize()

	qb := r.db.WithContext(ctx).
		Table("products p").
		Joins("LEFT JOIN inventory_records i ON i.product_id = p.id").
		Where("p.state = ?", enums.ProductStateActive)

	filter := query.Filters
	if filter.CategoryID != nil {
		qb = qb.Where("p.category_id = ?", *filter.CategoryID)
	}
	if filter.Brand != nil {
		qb = qb.Where("LOWER(p.brand) = ?", strings.ToLower(*filter.Brand))
	}
	if filter.PriceMin != nil {
		qb = qb.Where("p.price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		qb = qb.Where("p.price <= ?", *filter.PriceMax)
	}
	if filter.IsFeatured != nil {
		qb = qb.Where("p.is_featured = ?", *filter.IsFeatured)
	}
	if filter.InStock != nil {
		if *filter.InStock {
			qb = qb.Where("i.available > 0")
		} else {
			qb = qb.Where("(i.available IS NULL OR i.available <= 0)")
		}
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(p.name) LIKE ? OR LOWER(p.sku) LIKE ? OR LOWER(p.description) LIKE ?)", pattern, pattern, pattern)
	}

	var total int64
	if err := qb.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	column, ok := sortColumns[query.SortBy]
	if !ok {
		column = "p.created_at"
	}
	direction := "ASC"
	if query.SortDesc {
		direction = "DESC"
	}

	qb = qb.Select(strings.Join([]string{
		"p.id",
		"p.sku",
		"p.name",
		"p.category_id",
		"p.brand",
		"p.price",
		"p.compare_at_price",
		"p.currency",
		"p.is_featured",
		"p.rating_average",
		"p.rating_count",
		"COALESCE(i.available, 0) AS available",
		"p.created_at",
		"p.updated_at",
	}, ", ")).
		Order(column + " " + direction).
		Order("p.id " + direction).
		Offset(params.Skip).
		Limit(params.Limit)

	var records []productSummaryRecord
	if err := qb.Scan(&records).Error; err != nil {
		return nil, err
	}

	summaries := make([]ProductSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.toSummary())
	}

	return &ProductListResult{
		Products: summaries,
		Total:    total,
		Skip:     params.Skip,
		Limit:    params.Limit,
	}, nil
}

type productSummaryRecord struct {
	ID             uuid.UUID
	SKU            string
	Name           string
	CategoryID     uuid.UUID
	Brand          *string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Currency       string
	IsFeatured     bool
	RatingAverage  float64
	RatingCount    int
	Available      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r productSummaryRecord) toSummary() ProductSummary {
	return ProductSummary{
		ID:             r.ID,
		SKU:            r.SKU,
		Name:           r.Name,
		CategoryID:     r.CategoryID,
		Brand:          r.Brand,
		Price:          r.Price,
		CompareAtPrice: r.CompareAtPrice,
		Currency:       r.Currency,
		IsFeatured:     r.IsFeatured,
		RatingAverage:  r.RatingAverage,
		RatingCount:    r.RatingCount,
		Available:      r.Available,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
