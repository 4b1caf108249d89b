package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroom/catalog-backend/pkg/db"
	"github.com/stockroom/catalog-backend/pkg/db/models"
	"github.com/stockroom/catalog-backend/pkg/enums"
	pkgerrors "github.com/stockroom/catalog-backend/pkg/errors"
	"github.com/stockroom/catalog-backend/pkg/pagination"
)

// Service exposes review submission and moderation operations.
type Service interface {
	CreateReview(ctx context.Context, userID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error)
	ModerateReview(ctx context.Context, reviewID uuid.UUID, status enums.ReviewStatus) (*ReviewDTO, error)
	ListReviews(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ReviewListResult, error)
}

// CreateReviewInput holds the validated payload to submit a review.
type CreateReviewInput struct {
	ProductID          uuid.UUID
	Rating             int
	Title              *string
	Comment            *string
	IsVerifiedPurchase bool
}

// ReviewDTO represents the review payload returned to clients.
type ReviewDTO struct {
	ID                 uuid.UUID `json:"id"`
	ProductID          uuid.UUID `json:"product_id"`
	UserID             uuid.UUID `json:"user_id"`
	Rating             int       `json:"rating"`
	Title              *string   `json:"title,omitempty"`
	Comment            *string   `json:"comment,omitempty"`
	IsVerifiedPurchase bool      `json:"is_verified_purchase"`
	Status             string    `json:"status"`
	HelpfulCount       int       `json:"helpful_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ReviewListResult bundles one review page with its paging echo.
type ReviewListResult struct {
	Reviews []ReviewDTO `json:"reviews"`
	Total   int64       `json:"total"`
	Skip    int         `json:"skip"`
	Limit   int         `json:"limit"`
}

type productGate interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// service implements the review service.
type service struct {
	repo        *Repository
	dbClient    *db.Client
	productRepo productGate
}

// NewService constructs a review service instance.
func NewService(repo *Repository, dbClient *db.Client, productRepo productGate) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, dbClient: dbClient, productRepo: productRepo}, nil
}

// CreateReview submits a pending review. One review per user per product.
func (s *service) CreateReview(ctx context.Context, userID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		input.Title = nil
	}

	if err := s.ensureActiveProduct(ctx, input.ProductID); err != nil {
		return nil, err
	}

	already, err := s.repo.UserReviewed(ctx, input.ProductID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
	}
	if already {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already reviewed this product")
	}

	review := &models.Review{
		ProductID:          input.ProductID,
		UserID:             userID,
		Rating:             input.Rating,
		Title:              input.Title,
		Comment:            input.Comment,
		IsVerifiedPurchase: input.IsVerifiedPurchase,
		Status:             enums.ReviewStatusPending,
	}
	created, err := s.repo.Create(ctx, review)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already reviewed this product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert review")
	}
	return newReviewDTO(created), nil
}

// ModerateReview moves a review to approved or rejected. Approvals fold the
// rating into the product's aggregate inside the same transaction.
func (s *service) ModerateReview(ctx context.Context, reviewID uuid.UUID, status enums.ReviewStatus) (*ReviewDTO, error) {
	if status != enums.ReviewStatusApproved && status != enums.ReviewStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be approved or rejected")
	}

	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		review.Status = status
		if _, err := txRepo.Update(ctx, review); err != nil {
			return err
		}

		count, average, err := txRepo.ApprovedStats(ctx, review.ProductID)
		if err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", review.ProductID).
			Updates(map[string]any{
				"rating_count":   count,
				"rating_average": average,
			}).Error
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "moderate review")
	}

	return newReviewDTO(review), nil
}

// ListReviews serves one page of approved reviews for an active product.
func (s *service) ListReviews(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ReviewListResult, error) {
	if err := s.ensureActiveProduct(ctx, productID); err != nil {
		return nil, err
	}

	params = params.Normalize()
	rows, total, err := s.repo.ListApproved(ctx, productID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	dtos := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *newReviewDTO(&rows[i]))
	}
	return &ReviewListResult{
		Reviews: dtos,
		Total:   total,
		Skip:    params.Skip,
		Limit:   params.Limit,
	}, nil
}

func (s *service) ensureActiveProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.productRepo.FindActiveByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return nil
}

func newReviewDTO(review *models.Review) *ReviewDTO {
	return &ReviewDTO{
		ID:                 review.ID,
		ProductID:          review.ProductID,
		UserID:             review.UserID,
		Rating:             review.Rating,
		Title:              review.Title,
		Comment:            review.Comment,
		IsVerifiedPurchase: review.IsVerifiedPurchase,
		Status:             review.Status.String(),
		HelpfulCount:       review.HelpfulCount,
		CreatedAt:          review.CreatedAt,
		UpdatedAt:          review.UpdatedAt,
	}
}
