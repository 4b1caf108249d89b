package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockroom/catalog-backend/internal/inventory"
	"github.com/stockroom/catalog-backend/pkg/db/models"
)

// ProductDTO represents the catalog product payload returned to clients.
type ProductDTO struct {
	ID               uuid.UUID                `json:"id"`
	SKU              string                   `json:"sku"`
	Name             string                   `json:"name"`
	Description      *string                  `json:"description,omitempty"`
	ShortDescription *string                  `json:"short_description,omitempty"`
	CategoryID       uuid.UUID                `json:"category_id"`
	Brand            *string                  `json:"brand,omitempty"`
	Price            decimal.Decimal          `json:"price"`
	CompareAtPrice   *decimal.Decimal         `json:"compare_at_price,omitempty"`
	CostPrice        *decimal.Decimal         `json:"cost_price,omitempty"`
	Currency         string                   `json:"currency"`
	IsActive         bool                     `json:"is_active"`
	IsFeatured       bool                     `json:"is_featured"`
	Weight           *float64                 `json:"weight,omitempty"`
	WeightUnit       string                   `json:"weight_unit"`
	SEOTitle         *string                  `json:"seo_title,omitempty"`
	SEODescription   *string                  `json:"seo_description,omitempty"`
	SEOKeywords      *string                  `json:"seo_keywords,omitempty"`
	RatingAverage    float64                  `json:"rating_average"`
	RatingCount      int                      `json:"rating_count"`
	ViewCount        int                      `json:"view_count"`
	State            string                   `json:"state"`
	Inventory        *inventory.InventoryDTO  `json:"inventory,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// ProductSummary is the trimmed listing row used by catalog queries.
type ProductSummary struct {
	ID             uuid.UUID        `json:"id"`
	SKU            string           `json:"sku"`
	Name           string           `json:"name"`
	CategoryID     uuid.UUID        `json:"category_id"`
	Brand          *string          `json:"brand,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	Currency       string           `json:"currency"`
	IsFeatured     bool             `json:"is_featured"`
	RatingAverage  float64          `json:"rating_average"`
	RatingCount    int              `json:"rating_count"`
	Available      int              `json:"available_quantity"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ProductListResult bundles one catalog page with its paging echo.
type ProductListResult struct {
	Products []ProductSummary `json:"products"`
	Total    int64            `json:"total"`
	Skip     int              `json:"skip"`
	Limit    int              `json:"limit"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(product *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:               product.ID,
		SKU:              product.SKU,
		Name:             product.Name,
		Description:      product.Description,
		ShortDescription: product.ShortDescription,
		CategoryID:       product.CategoryID,
		Brand:            product.Brand,
		Price:            product.Price,
		CompareAtPrice:   product.CompareAtPrice,
		CostPrice:        product.CostPrice,
		Currency:         product.Currency,
		IsActive:         product.IsActive,
		IsFeatured:       product.IsFeatured,
		Weight:           product.Weight,
		WeightUnit:       product.WeightUnit,
		SEOTitle:         product.SEOTitle,
		SEODescription:   product.SEODescription,
		SEOKeywords:      product.SEOKeywords,
		RatingAverage:    product.RatingAverage,
		RatingCount:      product.RatingCount,
		ViewCount:        product.ViewCount,
		State:            product.State.String(),
		CreatedAt:        product.CreatedAt,
		UpdatedAt:        product.UpdatedAt,
	}
	if product.Inventory != nil {
		dto.Inventory = inventory.NewInventoryDTO(product.Inventory)
	}
	return dto
}
