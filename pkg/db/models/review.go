package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/pkg/enums"
)

// Review is a customer rating attached to a product. Only approved reviews
// are served on the public read path.
type Review struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID          uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index;uniqueIndex:idx_reviews_product_user"`
	UserID             uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:idx_reviews_product_user"`
	Rating             int                `gorm:"column:rating;not null"`
	Title              *string            `gorm:"column:title"`
	Comment            *string            `gorm:"column:comment"`
	IsVerifiedPurchase bool               `gorm:"column:is_verified_purchase;not null;default:false"`
	Status             enums.ReviewStatus `gorm:"column:status;not null;default:pending;index"`
	HelpfulCount       int                `gorm:"column:helpful_count;not null;default:0"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
