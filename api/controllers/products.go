package controllers

import (
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockroom/catalog-backend/api/responses"
	"github.com/stockroom/catalog-backend/api/validators"
	productsvc "github.com/stockroom/catalog-backend/internal/products"
	pkgerrors "github.com/stockroom/catalog-backend/pkg/errors"
	"github.com/stockroom/catalog-backend/pkg/logger"
	"github.com/stockroom/catalog-backend/pkg/pagination"
)

// CreateProduct handles administrative product creation.
func CreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// UpdateProduct applies a partial update to a live product.
func UpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := productIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// DeleteProduct soft-deletes a product. Its inventory record stays put.
func DeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := productIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// GetProduct returns the live product detail including its inventory snapshot.
func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := productIDFromRoute(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// ListProducts serves the public catalog page.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		input, err := listProductsInputFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

type createProductRequest struct {
	SKU              string   `json:"sku" validate:"required"`
	Name             string   `json:"name" validate:"required"`
	Description      *string  `json:"description,omitempty"`
	ShortDescription *string  `json:"short_description,omitempty"`
	CategoryID       string   `json:"category_id" validate:"required,uuid"`
	Brand            *string  `json:"brand,omitempty"`
	Price            string   `json:"price" validate:"required"`
	CompareAtPrice   *string  `json:"compare_at_price,omitempty"`
	CostPrice        *string  `json:"cost_price,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	IsFeatured       bool     `json:"is_featured,omitempty"`
	Weight           *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
	WeightUnit       string   `json:"weight_unit,omitempty"`
	SEOTitle         *string  `json:"seo_title,omitempty"`
	SEODescription   *string  `json:"seo_description,omitempty"`
	SEOKeywords      *string  `json:"seo_keywords,omitempty"`
}

func (r createProductRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	categoryID, err := uuid.Parse(strings.TrimSpace(r.CategoryID))
	if err != nil {
		return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
	}

	price, err := parsePrice(r.Price)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}

	compareAt, err := parseOptionalPrice(r.CompareAtPrice)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}

	cost, err := parseOptionalPrice(r.CostPrice)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}

	return productsvc.CreateProductInput{
		SKU:              r.SKU,
		Name:             r.Name,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		CategoryID:       categoryID,
		Brand:            r.Brand,
		Price:            price,
		CompareAtPrice:   compareAt,
		CostPrice:        cost,
		Currency:         r.Currency,
		IsFeatured:       r.IsFeatured,
		Weight:           r.Weight,
		WeightUnit:       r.WeightUnit,
		SEOTitle:         r.SEOTitle,
		SEODescription:   r.SEODescription,
		SEOKeywords:      r.SEOKeywords,
	}, nil
}

type updateProductRequest struct {
	SKU              *string  `json:"sku,omitempty"`
	Name             *string  `json:"name,omitempty"`
	Description      *string  `json:"description,omitempty"`
	ShortDescription *string  `json:"short_description,omitempty"`
	CategoryID       *string  `json:"category_id,omitempty" validate:"omitempty,uuid"`
	Brand            *string  `json:"brand,omitempty"`
	Price            *string  `json:"price,omitempty"`
	CompareAtPrice   *string  `json:"compare_at_price,omitempty"`
	CostPrice        *string  `json:"cost_price,omitempty"`
	Currency         *string  `json:"currency,omitempty"`
	IsActive         *bool    `json:"is_active,omitempty"`
	IsFeatured       *bool    `json:"is_featured,omitempty"`
	Weight           *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
	WeightUnit       *string  `json:"weight_unit,omitempty"`
	SEOTitle         *string  `json:"seo_title,omitempty"`
	SEODescription   *string  `json:"seo_description,omitempty"`
	SEOKeywords      *string  `json:"seo_keywords,omitempty"`
}

func (r updateProductRequest) toUpdateInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		SKU:              r.SKU,
		Name:             r.Name,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		Brand:            r.Brand,
		Currency:         r.Currency,
		IsActive:         r.IsActive,
		IsFeatured:       r.IsFeatured,
		Weight:           r.Weight,
		WeightUnit:       r.WeightUnit,
		SEOTitle:         r.SEOTitle,
		SEODescription:   r.SEODescription,
		SEOKeywords:      r.SEOKeywords,
	}

	if r.CategoryID != nil {
		categoryID, err := uuid.Parse(strings.TrimSpace(*r.CategoryID))
		if err != nil {
			return productsvc.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
		}
		input.CategoryID = &categoryID
	}

	if r.Price != nil {
		price, err := parsePrice(*r.Price)
		if err != nil {
			return productsvc.UpdateProductInput{}, err
		}
		input.Price = &price
	}

	compareAt, err := parseOptionalPrice(r.CompareAtPrice)
	if err != nil {
		return productsvc.UpdateProductInput{}, err
	}
	input.CompareAtPrice = compareAt

	cost, err := parseOptionalPrice(r.CostPrice)
	if err != nil {
		return productsvc.UpdateProductInput{}, err
	}
	input.CostPrice = cost

	return input, nil
}

func listProductsInputFromQuery(r *http.Request) (productsvc.ListProductsInput, error) {
	// Out-of-range paging values are clamped, not rejected.
	skip, err := validators.ParseQueryInt(r, "skip", 0, math.MinInt32, math.MaxInt32)
	if err != nil {
		return productsvc.ListProductsInput{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, math.MinInt32, math.MaxInt32)
	if err != nil {
		return productsvc.ListProductsInput{}, err
	}

	filters := productsvc.ProductListFilters{
		Query: strings.TrimSpace(r.URL.Query().Get("search")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("categoryId")); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			return productsvc.ListProductsInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
		}
		filters.CategoryID = &categoryID
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("brand")); raw != "" {
		filters.Brand = &raw
	}

	if filters.PriceMin, err = validators.ParseQueryDecimal(r, "minPrice"); err != nil {
		return productsvc.ListProductsInput{}, err
	}
	if filters.PriceMax, err = validators.ParseQueryDecimal(r, "maxPrice"); err != nil {
		return productsvc.ListProductsInput{}, err
	}
	if filters.IsFeatured, err = validators.ParseQueryBool(r, "isFeatured"); err != nil {
		return productsvc.ListProductsInput{}, err
	}
	if filters.InStock, err = validators.ParseQueryBool(r, "inStock"); err != nil {
		return productsvc.ListProductsInput{}, err
	}

	sortDesc, err := validators.ParseQueryBool(r, "sortDesc")
	if err != nil {
		return productsvc.ListProductsInput{}, err
	}

	input := productsvc.ListProductsInput{
		Pagination: pagination.Params{Skip: skip, Limit: limit},
		Filters:    filters,
		SortBy:     strings.TrimSpace(r.URL.Query().Get("sortBy")),
	}
	if sortDesc != nil {
		input.SortDesc = *sortDesc
	}
	return input, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	if price.IsNegative() {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return price, nil
}

func parseOptionalPrice(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	price, err := parsePrice(*raw)
	if err != nil {
		return nil, err
	}
	return &price, nil
}
