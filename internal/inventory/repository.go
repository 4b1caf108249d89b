package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/pkg/db/models"
	"github.com/stockroom/catalog-backend/pkg/enums"
)

// Repository wires together inventory persistence helpers.
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

// GetByProductID loads the inventory record for a product.
func (r *Repository) GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	if err := r.db.WithContext(ctx).First(&record, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts the inventory row, normally the zeroed one provisioned with
// a new product.
func (r *Repository) Create(ctx context.Context, record *models.InventoryRecord) (*models.InventoryRecord, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// ActiveProductExists reports whether the product exists and has not been
// soft-deleted.
func (r *Repository) ActiveProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND state = ?", productID, enums.ProductStateActive).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Reserve attempts to move qty units from available to reserved in a single
// conditional statement. The WHERE guard makes the stock check and the
// mutation one atomic step, so concurrent reservations cannot both pass a
// stale read. Returns false when stock was insufficient or the row is gone.
func (r *Repository) Reserve(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("product_id = ? AND available >= ?", productID, qty).
		Updates(map[string]any{
			"reserved":   gorm.Expr("reserved + ?", qty),
			"available":  gorm.Expr("available - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AdminUpdate applies the present fields of an administrative stock update in
// one UPDATE. Like Reserve and Release, every SET expression reads the row's
// current values, so a reservation that commits just before this statement is
// folded into the recomputed available count instead of being overwritten by a
// stale snapshot. Returns false when no row matched.
func (r *Repository) AdminUpdate(ctx context.Context, productID uuid.UUID, input UpdateInventoryInput, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("product_id = ?", productID).
		Updates(adminUpdateColumns(input, now))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// adminUpdateColumns builds the SET clause for AdminUpdate. Absent fields get
// no assignment at all; available derives from whichever side of the count the
// caller did not pin, read from the row itself.
func adminUpdateColumns(input UpdateInventoryInput, now time.Time) map[string]any {
	cols := map[string]any{"updated_at": now}
	if input.OnHand != nil {
		cols["on_hand"] = *input.OnHand
		// restocks stamp the timestamp; downward corrections do not
		cols["last_restocked_at"] = gorm.Expr("CASE WHEN ? > on_hand THEN ? ELSE last_restocked_at END", *input.OnHand, now)
	}
	if input.Reserved != nil {
		cols["reserved"] = *input.Reserved
	}
	switch {
	case input.OnHand != nil && input.Reserved != nil:
		cols["available"] = *input.OnHand - *input.Reserved
	case input.OnHand != nil:
		cols["available"] = gorm.Expr("? - reserved", *input.OnHand)
	case input.Reserved != nil:
		cols["available"] = gorm.Expr("on_hand - ?", *input.Reserved)
	}
	if input.ReorderPoint != nil {
		cols["reorder_point"] = *input.ReorderPoint
	}
	if input.ReorderQuantity != nil {
		cols["reorder_quantity"] = *input.ReorderQuantity
	}
	if input.WarehouseLocation != nil {
		cols["warehouse_location"] = *input.WarehouseLocation
	}
	return cols
}

// Release returns qty units from reserved back to available, clamped so the
// reserved count never drops below zero. Both SET expressions read the row's
// pre-update values, which is what makes the clamp arithmetic line up.
func (r *Repository) Release(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"reserved":   gorm.Expr("CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END", qty, qty),
			"available":  gorm.Expr("CASE WHEN reserved >= ? THEN available + ? ELSE available + reserved END", qty, qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
