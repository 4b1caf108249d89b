package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockroom/catalog-backend/pkg/db/models"
)

// InventoryDTO exposes the stock counts returned to clients.
type InventoryDTO struct {
	ProductID         uuid.UUID  `json:"product_id"`
	OnHand            int        `json:"quantity"`
	Reserved          int        `json:"reserved_quantity"`
	Available         int        `json:"available_quantity"`
	ReorderPoint      int        `json:"reorder_point"`
	ReorderQuantity   int        `json:"reorder_quantity"`
	WarehouseLocation *string    `json:"warehouse_location,omitempty"`
	LastRestockedAt   *time.Time `json:"last_restocked_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewInventoryDTO builds a DTO from the persisted record.
func NewInventoryDTO(record *models.InventoryRecord) *InventoryDTO {
	return &InventoryDTO{
		ProductID:         record.ProductID,
		OnHand:            record.OnHand,
		Reserved:          record.Reserved,
		Available:         record.Available,
		ReorderPoint:      record.ReorderPoint,
		ReorderQuantity:   record.ReorderQuantity,
		WarehouseLocation: record.WarehouseLocation,
		LastRestockedAt:   record.LastRestockedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}
