package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/pkg/config"
	"github.com/stockroom/catalog-backend/pkg/db"
	"github.com/stockroom/catalog-backend/pkg/db/models"
	pkgerrors "github.com/stockroom/catalog-backend/pkg/errors"
	"github.com/stockroom/catalog-backend/pkg/metrics"
	"github.com/stockroom/catalog-backend/pkg/redis"
)

// Service exposes stock management operations for a single product's
// inventory record.
type Service interface {
	GetInventory(ctx context.Context, productID uuid.UUID) (*InventoryDTO, error)
	UpdateInventory(ctx context.Context, productID uuid.UUID, input UpdateInventoryInput) (*InventoryDTO, error)
	Reserve(ctx context.Context, productID uuid.UUID, qty int) error
	Release(ctx context.Context, productID uuid.UUID, qty int) error
}

// UpdateInventoryInput holds optional mutation values for an inventory record.
// Only non-nil fields are applied.
type UpdateInventoryInput struct {
	OnHand            *int
	Reserved          *int
	ReorderPoint      *int
	ReorderQuantity   *int
	WarehouseLocation *string
}

// InsufficientDetails is attached to reservation failures so callers can see
// how short the stock was.
type InsufficientDetails struct {
	Requested int `json:"requested"`
	Available int `json:"available"`
}

// service implements the inventory service.
type service struct {
	repo     *Repository
	dbClient *db.Client
	cache    redis.Cache
	metrics  *metrics.InventoryMetrics
	timeout  time.Duration
	cacheTTL time.Duration
}

// NewService constructs an inventory service instance. Cache and metrics are
// optional collaborators.
func NewService(repo *Repository, dbClient *db.Client, cache redis.Cache, m *metrics.InventoryMetrics, cfg config.InventoryConfig, cacheTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		cache:    cache,
		metrics:  m,
		timeout:  cfg.OperationTimeout,
		cacheTTL: cacheTTL,
	}, nil
}

// GetInventory returns the stock snapshot for a product, served from cache
// when one is configured.
func (s *service) GetInventory(ctx context.Context, productID uuid.UUID) (*InventoryDTO, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.cache.InventoryKey(productID.String())); err == nil {
			var dto InventoryDTO
			if jsonErr := json.Unmarshal([]byte(cached), &dto); jsonErr == nil {
				return &dto, nil
			}
		}
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	record, err := s.repo.GetByProductID(opCtx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, s.storeError(err, "load inventory")
	}

	dto := NewInventoryDTO(record)
	s.cacheSnapshot(ctx, dto)
	return dto, nil
}

// UpdateInventory applies an administrative stock update as a single
// conditional write, so it serializes with concurrent reservations the same
// way Reserve and Release do. Reserved may be set above on-hand; available is
// recomputed and goes negative until restock.
func (s *service) UpdateInventory(ctx context.Context, productID uuid.UUID, input UpdateInventoryInput) (*InventoryDTO, error) {
	if input.OnHand != nil && *input.OnHand < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}
	if input.Reserved != nil && *input.Reserved < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserved_quantity must be non-negative")
	}
	if input.ReorderPoint != nil && *input.ReorderPoint < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder_point must be non-negative")
	}
	if input.ReorderQuantity != nil && *input.ReorderQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder_quantity must be non-negative")
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var record *models.InventoryRecord
	if err := s.dbClient.WithTx(opCtx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		updated, err := txRepo.AdminUpdate(opCtx, productID, input, time.Now().UTC())
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		record, err = txRepo.GetByProductID(opCtx, productID)
		return err
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, s.storeError(err, "update inventory")
	}

	s.invalidate(ctx, productID)
	return NewInventoryDTO(record), nil
}

// Reserve moves qty units from available to reserved. It fails with an
// insufficient-inventory error when the product cannot cover the request and
// leaves the record untouched in that case.
func (s *service) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	active, err := s.repo.ActiveProductExists(opCtx, productID)
	if err != nil {
		return s.storeError(err, "check product")
	}
	if !active {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	reserved, err := s.repo.Reserve(opCtx, productID, qty)
	if err != nil {
		return s.storeError(err, "reserve inventory")
	}
	if !reserved {
		record, loadErr := s.repo.GetByProductID(opCtx, productID)
		if loadErr != nil {
			if errors.Is(loadErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return s.storeError(loadErr, "load inventory")
		}
		s.metrics.IncReservation("insufficient")
		return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient inventory").
			WithDetails(InsufficientDetails{Requested: qty, Available: record.Available})
	}

	s.metrics.IncReservation("reserved")
	s.invalidate(ctx, productID)
	return nil
}

// Release returns qty units from reserved to available. Releasing more than
// is currently reserved clamps the reserved count at zero rather than failing.
func (s *service) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	released, err := s.repo.Release(opCtx, productID, qty)
	if err != nil {
		return s.storeError(err, "release inventory")
	}
	if !released {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	s.metrics.IncRelease()
	s.invalidate(ctx, productID)
	return nil
}

func (s *service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *service) storeError(err error, action string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action+": inventory store timeout")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func (s *service) cacheSnapshot(ctx context.Context, dto *InventoryDTO) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return
	}
	// best effort; a cold cache is not an error
	_ = s.cache.Set(ctx, s.cache.InventoryKey(dto.ProductID.String()), string(payload), s.cacheTTL)
}

// invalidate drops every cached view that carries this product's counts:
// the inventory snapshot, the product detail embedding it, and the
// default catalog page.
func (s *service) invalidate(ctx context.Context, productID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx,
		s.cache.InventoryKey(productID.String()),
		s.cache.ProductKey(productID.String()),
		s.cache.ListKey(redis.DefaultListVariant))
}

