package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockroom/catalog-backend/api/responses"
	"github.com/stockroom/catalog-backend/api/validators"
	inventorysvc "github.com/stockroom/catalog-backend/internal/inventory"
	pkgerrors "github.com/stockroom/catalog-backend/pkg/errors"
	"github.com/stockroom/catalog-backend/pkg/logger"
)

const maxMoveQuantity = 1_000_000

// GetInventory returns the inventory record for a product.
func GetInventory(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := productIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.GetInventory(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// UpdateInventory applies an administrative partial update to a product's
// inventory record.
func UpdateInventory(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := productIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.UpdateInventory(r.Context(), productID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// ReserveInventory holds quantity against a pending order.
func ReserveInventory(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := productIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		qty, err := validators.RequireQueryInt(r, "quantity", 1, maxMoveQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reserve(r.Context(), productID, qty); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteAction(w, fmt.Sprintf("reserved %d units", qty))
	}
}

// ReleaseInventory returns previously reserved quantity to the sellable pool.
func ReleaseInventory(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := productIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		qty, err := validators.RequireQueryInt(r, "quantity", 1, maxMoveQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Release(r.Context(), productID, qty); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteAction(w, fmt.Sprintf("released %d units", qty))
	}
}

type updateInventoryRequest struct {
	OnHand            *int    `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Reserved          *int    `json:"reserved_quantity,omitempty" validate:"omitempty,min=0"`
	ReorderPoint      *int    `json:"reorder_point,omitempty" validate:"omitempty,min=0"`
	ReorderQuantity   *int    `json:"reorder_quantity,omitempty" validate:"omitempty,min=0"`
	WarehouseLocation *string `json:"warehouse_location,omitempty"`
}

func (r updateInventoryRequest) toInput() inventorysvc.UpdateInventoryInput {
	return inventorysvc.UpdateInventoryInput{
		OnHand:            r.OnHand,
		Reserved:          r.Reserved,
		ReorderPoint:      r.ReorderPoint,
		ReorderQuantity:   r.ReorderQuantity,
		WarehouseLocation: r.WarehouseLocation,
	}
}

func productIDFromRoute(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
