package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/internal/inventory"
	"github.com/stockroom/catalog-backend/pkg/db"
	"github.com/stockroom/catalog-backend/pkg/db/models"
	"github.com/stockroom/catalog-backend/pkg/enums"
	pkgerrors "github.com/stockroom/catalog-backend/pkg/errors"
	"github.com/stockroom/catalog-backend/pkg/pagination"
	"github.com/stockroom/catalog-backend/pkg/redis"
)

// Service exposes catalog product management operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU              string
	Name             string
	Description      *string
	ShortDescription *string
	CategoryID       uuid.UUID
	Brand            *string
	Price            decimal.Decimal
	CompareAtPrice   *decimal.Decimal
	CostPrice        *decimal.Decimal
	Currency         string
	IsFeatured       bool
	Weight           *float64
	WeightUnit       string
	SEOTitle         *string
	SEODescription   *string
	SEOKeywords      *string
}

// UpdateProductInput holds optional mutation values for a product. Only
// non-nil fields are applied.
type UpdateProductInput struct {
	SKU              *string
	Name             *string
	Description      *string
	ShortDescription *string
	CategoryID       *uuid.UUID
	Brand            *string
	Price            *decimal.Decimal
	CompareAtPrice   *decimal.Decimal
	CostPrice        *decimal.Decimal
	Currency         *string
	IsActive         *bool
	IsFeatured       *bool
	Weight           *float64
	WeightUnit       *string
	SEOTitle         *string
	SEODescription   *string
	SEOKeywords      *string
}

// ListProductsInput carries catalog query parameters.
type ListProductsInput struct {
	Pagination pagination.Params
	Filters    ProductListFilters
	SortBy     string
	SortDesc   bool
}

type categoryLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

// service implements the product service.
type service struct {
	repo         *Repository
	dbClient     *db.Client
	categoryRepo categoryLoader
	cache        redis.Cache
	cacheTTL     time.Duration
}

// NewService constructs a product service instance. The cache is optional.
func NewService(repo *Repository, dbClient *db.Client, categoryRepo categoryLoader, cache redis.Cache, cacheTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if categoryRepo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &service{
		repo:         repo,
		dbClient:     dbClient,
		categoryRepo: categoryRepo,
		cache:        cache,
		cacheTTL:     cacheTTL,
	}, nil
}

// CreateProduct creates the product together with its zeroed inventory
// record. Both rows commit or neither does.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Name = strings.TrimSpace(input.Name)
	if input.SKU == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}

	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsBySKU(ctx, input.SKU)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sku")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateSKU, "sku already exists")
	}

	var createdID uuid.UUID
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product := &models.Product{
			SKU:              input.SKU,
			Name:             input.Name,
			Description:      input.Description,
			ShortDescription: input.ShortDescription,
			CategoryID:       input.CategoryID,
			Brand:            input.Brand,
			Price:            input.Price,
			CompareAtPrice:   input.CompareAtPrice,
			CostPrice:        input.CostPrice,
			Currency:         currencyOrDefault(input.Currency),
			IsActive:         true,
			IsFeatured:       input.IsFeatured,
			Weight:           input.Weight,
			WeightUnit:       weightUnitOrDefault(input.WeightUnit),
			SEOTitle:         input.SEOTitle,
			SEODescription:   input.SEODescription,
			SEOKeywords:      input.SEOKeywords,
			State:            enums.ProductStateActive,
		}

		created, err := txRepo.CreateProduct(ctx, product)
		if err != nil {
			// the SKU pre-check races concurrent creates; the unique
			// index is the authority
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeDuplicateSKU, "sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		createdID = created.ID

		record := &models.InventoryRecord{ProductID: created.ID}
		if _, err := inventory.NewRepository(tx).Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert inventory record")
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	// the new product belongs on the cached first page
	s.invalidate(ctx, createdID)

	detail, err := s.repo.GetProductDetail(ctx, createdID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product detail")
	}
	return NewProductDTO(detail), nil
}

// UpdateProduct applies a partial update to an active product.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if input.Price != nil && input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if input.SKU != nil && strings.TrimSpace(*input.SKU) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku cannot be empty")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if input.CategoryID != nil {
		if err := s.ensureCategory(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
	}

	product, err := s.repo.FindActiveByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		applyUpdateToProduct(product, input)
		if _, err := txRepo.UpdateProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeDuplicateSKU, "sku already exists")
			}
			return err
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	s.invalidate(ctx, productID)

	detail, err := s.repo.GetProductDetail(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product detail")
	}
	return NewProductDTO(detail), nil
}

// DeleteProduct tags the product as deleted. The row and its inventory
// record stay in place so existing reservations can still be released.
func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	product, err := s.repo.FindActiveByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	now := time.Now().UTC()
	product.State = enums.ProductStateDeleted
	product.IsActive = false
	product.DeletedAt = &now
	if _, err := s.repo.UpdateProduct(ctx, product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}

	s.invalidate(ctx, productID)
	return nil
}

// GetProduct returns an active product with inventory and bumps its view
// counter.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.cache.ProductKey(productID.String())); err == nil {
			var dto ProductDTO
			if jsonErr := json.Unmarshal([]byte(cached), &dto); jsonErr == nil {
				// the counter still moves on cached reads
				s.bumpViews(ctx, productID)
				return &dto, nil
			}
		}
	}

	product, err := s.repo.GetProductDetail(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product detail")
	}

	s.bumpViews(ctx, productID)
	product.ViewCount++

	dto := NewProductDTO(product)
	s.cacheDetail(ctx, dto)
	return dto, nil
}

// ListProducts serves one catalog page. The unfiltered first page is the hot
// path for storefront landings, so that one variant is cached.
func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	cacheable := s.cache != nil && isDefaultListing(input)
	if cacheable {
		if cached, err := s.cache.Get(ctx, s.cache.ListKey(defaultListVariant)); err == nil {
			var result ProductListResult
			if jsonErr := json.Unmarshal([]byte(cached), &result); jsonErr == nil {
				return &result, nil
			}
		}
	}

	result, err := s.repo.ListProductSummaries(ctx, productListQuery{
		Pagination: input.Pagination,
		Filters:    input.Filters,
		SortBy:     input.SortBy,
		SortDesc:   input.SortDesc,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	if cacheable {
		if payload, jsonErr := json.Marshal(result); jsonErr == nil {
			_ = s.cache.Set(ctx, s.cache.ListKey(defaultListVariant), string(payload), s.cacheTTL)
		}
	}
	return result, nil
}

const defaultListVariant = redis.DefaultListVariant

func isDefaultListing(input ListProductsInput) bool {
	if input.Filters != (ProductListFilters{}) {
		return false
	}
	if input.SortBy != "" || input.SortDesc {
		return false
	}
	normalized := input.Pagination.Normalize()
	return normalized.Skip == 0 && normalized.Limit == pagination.DefaultLimit
}

func (s *service) ensureCategory(ctx context.Context, categoryID uuid.UUID) error {
	if _, err := s.categoryRepo.FindByID(ctx, categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return nil
}

const (
	// viewFlushBatch is how many Redis-side views accumulate before one
	// batched write lands on the products row.
	viewFlushBatch = 25
	// viewCounterTTL bounds how long unflushed views can sit in Redis.
	viewCounterTTL = 24 * time.Hour
)

// bumpViews records one product view. With a cache the count rides a Redis
// counter and flushes to the database every viewFlushBatch reads; without
// one it goes straight to the row.
func (s *service) bumpViews(ctx context.Context, productID uuid.UUID) {
	if s.cache == nil {
		_ = s.repo.IncrementViewCount(ctx, productID, 1)
		return
	}
	key := s.cache.CounterKey("views:" + productID.String())
	count, err := s.cache.IncrWithTTL(ctx, key, viewCounterTTL)
	if err != nil {
		_ = s.repo.IncrementViewCount(ctx, productID, 1)
		return
	}
	if count%viewFlushBatch == 0 {
		_ = s.repo.IncrementViewCount(ctx, productID, viewFlushBatch)
	}
}

func (s *service) cacheDetail(ctx context.Context, dto *ProductDTO) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, s.cache.ProductKey(dto.ID.String()), string(payload), s.cacheTTL)
}

func (s *service) invalidate(ctx context.Context, productID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx,
		s.cache.ProductKey(productID.String()),
		s.cache.ListKey(defaultListVariant))
}

func currencyOrDefault(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "USD"
	}
	return currency
}

func weightUnitOrDefault(unit string) string {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		return "kg"
	}
	return unit
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.SKU != nil {
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.ShortDescription != nil {
		product.ShortDescription = input.ShortDescription
	}
	if input.CategoryID != nil {
		product.CategoryID = *input.CategoryID
	}
	if input.Brand != nil {
		product.Brand = input.Brand
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.CompareAtPrice != nil {
		product.CompareAtPrice = input.CompareAtPrice
	}
	if input.CostPrice != nil {
		product.CostPrice = input.CostPrice
	}
	if input.Currency != nil {
		product.Currency = currencyOrDefault(*input.Currency)
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.IsFeatured != nil {
		product.IsFeatured = *input.IsFeatured
	}
	if input.Weight != nil {
		product.Weight = input.Weight
	}
	if input.WeightUnit != nil {
		product.WeightUnit = weightUnitOrDefault(*input.WeightUnit)
	}
	if input.SEOTitle != nil {
		product.SEOTitle = input.SEOTitle
	}
	if input.SEODescription != nil {
		product.SEODescription = input.SEODescription
	}
	if input.SEOKeywords != nil {
		product.SEOKeywords = input.SEOKeywords
	}
}
