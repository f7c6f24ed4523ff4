package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopvana/shopvana-backend/pkg/db/models"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes cart operations for one authenticated user.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.CartItem, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

// AddItemInput is the add-to-cart payload.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CartView is the cart plus its running subtotal.
type CartView struct {
	Items    []models.CartItem
	Subtotal decimal.Decimal
}

type service struct {
	repo     *Repository
	products productLoader
}

// NewService builds the cart service.
func NewService(repo *Repository, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Product != nil {
			subtotal = subtotal.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return &CartView{Items: items, Subtotal: subtotal}, nil
}

// AddItem creates the (user, product) line or increments its quantity when
// the product is already in the cart.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.CartItem, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is not available")
	}

	existing, err := s.repo.FindLine(ctx, userID, input.ProductID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	if existing != nil {
		newQty := existing.Quantity + input.Quantity
		if err := s.repo.UpdateQuantity(ctx, existing.ID, newQty); err != nil {
			return nil, err
		}
		existing.Quantity = newQty
		existing.Product = product
		return existing, nil
	}

	line := &models.CartItem{
		UserID:    userID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
	}
	created, err := s.repo.Create(ctx, line)
	if err != nil {
		return nil, err
	}
	created.Product = product
	return created, nil
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	line, err := s.repo.FindOwnedLine(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateQuantity(ctx, line.ID, quantity); err != nil {
		return nil, err
	}
	line.Quantity = quantity
	return line, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return s.repo.Delete(ctx, userID, itemID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.repo.ClearUser(ctx, userID)
}
