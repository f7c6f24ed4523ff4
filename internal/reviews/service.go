package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shopvana/shopvana-backend/internal/products"
	"github.com/shopvana/shopvana-backend/pkg/db"
	"github.com/shopvana/shopvana-backend/pkg/db/models"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
)

// Service exposes review operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Review, error)
	Update(ctx context.Context, userID uuid.UUID, isStaff bool, reviewID uuid.UUID, input UpdateInput) (*models.Review, error)
	Delete(ctx context.Context, userID uuid.UUID, isStaff bool, reviewID uuid.UUID) error
}

// CreateInput is a new review.
type CreateInput struct {
	ProductID uuid.UUID
	Rating    int
	Comment   string
}

// UpdateInput holds optional review mutations.
type UpdateInput struct {
	Rating  *int
	Comment *string
}

type service struct {
	repo        *Repository
	productRepo *products.Repository
}

// NewService builds the reviews service.
func NewService(repo *Repository, productRepo *products.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo, productRepo: productRepo}, nil
}

func validRating(rating int) bool {
	return rating >= 1 && rating <= 5
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Review, error) {
	if !validRating(input.Rating) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if _, err := s.productRepo.FindByID(ctx, input.ProductID); err != nil {
		return nil, err
	}

	review, err := s.repo.Create(ctx, &models.Review{
		ProductID: input.ProductID,
		UserID:    userID,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this product")
		}
		return nil, err
	}
	return review, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListByProduct(ctx, productID)
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, isStaff bool, reviewID uuid.UUID, input UpdateInput) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if !isStaff && review.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not your review")
	}

	updates := map[string]any{}
	if input.Rating != nil {
		if !validRating(*input.Rating) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
		}
		updates["rating"] = *input.Rating
	}
	if input.Comment != nil {
		updates["comment"] = strings.TrimSpace(*input.Comment)
	}
	if len(updates) == 0 {
		return review, nil
	}
	if err := s.repo.Update(ctx, reviewID, updates); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, reviewID)
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, isStaff bool, reviewID uuid.UUID) error {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if !isStaff && review.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not your review")
	}
	return s.repo.Delete(ctx, reviewID)
}
