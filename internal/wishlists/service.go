package wishlists

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

// Service exposes wishlist operations. Everything is scoped to the owner;
// wishlists have no staff surface.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, name string) (*models.Wishlist, error)
	Get(ctx context.Context, userID, listID uuid.UUID) (*models.Wishlist, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Wishlist, error)
	Delete(ctx context.Context, userID, listID uuid.UUID) error
	AddItem(ctx context.Context, userID, listID, productID uuid.UUID) (*models.WishlistItem, error)
	RemoveItem(ctx context.Context, userID, listID, itemID uuid.UUID) error
}

type service struct {
	repo        *Repository
	productRepo *products.Repository
}

// NewService builds the wishlists service.
func NewService(repo *Repository, productRepo *products.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wishlists repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo, productRepo: productRepo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, name string) (*models.Wishlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist name is required")
	}
	return s.repo.Create(ctx, &models.Wishlist{UserID: userID, Name: name})
}

func (s *service) Get(ctx context.Context, userID, listID uuid.UUID) (*models.Wishlist, error) {
	return s.repo.FindOwned(ctx, userID, listID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Wishlist, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID, listID uuid.UUID) error {
	return s.repo.Delete(ctx, userID, listID)
}

func (s *service) AddItem(ctx context.Context, userID, listID, productID uuid.UUID) (*models.WishlistItem, error) {
	if _, err := s.repo.FindOwned(ctx, userID, listID); err != nil {
		return nil, err
	}
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	item, err := s.repo.AddItem(ctx, &models.WishlistItem{WishlistID: listID, ProductID: productID})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is already on this wishlist")
		}
		return nil, err
	}
	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, listID, itemID uuid.UUID) error {
	if _, err := s.repo.FindOwned(ctx, userID, listID); err != nil {
		return err
	}
	return s.repo.RemoveItem(ctx, listID, itemID)
}
