package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/pkg/enums"
)

// Product is the canonical catalog listing. Exactly one InventoryRecord is
// provisioned alongside it at creation time.
type Product struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SKU              string             `gorm:"column:sku;not null;uniqueIndex:idx_products_sku"`
	Name             string             `gorm:"column:name;not null;index"`
	Description      *string            `gorm:"column:description"`
	ShortDescription *string            `gorm:"column:short_description"`
	CategoryID       uuid.UUID          `gorm:"column:category_id;type:uuid;not null;index"`
	Brand            *string            `gorm:"column:brand"`
	Price            decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	CompareAtPrice   *decimal.Decimal   `gorm:"column:compare_at_price;type:numeric(12,2)"`
	CostPrice        *decimal.Decimal   `gorm:"column:cost_price;type:numeric(12,2)"`
	Currency         string             `gorm:"column:currency;not null;default:USD"`
	IsActive         bool               `gorm:"column:is_active;not null;default:true"`
	IsFeatured       bool               `gorm:"column:is_featured;not null;default:false"`
	Weight           *float64           `gorm:"column:weight"`
	WeightUnit       string             `gorm:"column:weight_unit;not null;default:kg"`
	SEOTitle         *string            `gorm:"column:seo_title"`
	SEODescription   *string            `gorm:"column:seo_description"`
	SEOKeywords      *string            `gorm:"column:seo_keywords"`
	RatingAverage    float64            `gorm:"column:rating_average;not null;default:0"`
	RatingCount      int                `gorm:"column:rating_count;not null;default:0"`
	ViewCount        int                `gorm:"column:view_count;not null;default:0"`
	State            enums.ProductState `gorm:"column:state;not null;default:active;index"`
	DeletedAt        *time.Time         `gorm:"column:deleted_at"`
	Inventory        *InventoryRecord   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
