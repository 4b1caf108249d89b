package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord tracks stock counts for one product. Invariant outside of
// administrative overrides: 0 <= Reserved <= OnHand, Available = OnHand - Reserved.
type InventoryRecord struct {
	ProductID         uuid.UUID  `gorm:"column:product_id;type:uuid;primaryKey"`
	OnHand            int        `gorm:"column:on_hand;not null;default:0"`
	Reserved          int        `gorm:"column:reserved;not null;default:0"`
	Available         int        `gorm:"column:available;not null;default:0"`
	ReorderPoint      int        `gorm:"column:reorder_point;not null;default:10"`
	ReorderQuantity   int        `gorm:"column:reorder_quantity;not null;default:50"`
	WarehouseLocation *string    `gorm:"column:warehouse_location"`
	LastRestockedAt   *time.Time `gorm:"column:last_restocked_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
