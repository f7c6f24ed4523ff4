package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/internal/inventory"
	"github.com/shopvana/shopvana-backend/pkg/db/models"
	"github.com/shopvana/shopvana-backend/pkg/enums"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
	"github.com/shopvana/shopvana-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes order reads and lifecycle management.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID, isStaff bool, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) error
	Delete(ctx context.Context, orderID uuid.UUID) error
	AddItem(ctx context.Context, orderID, productID uuid.UUID, quantity int) (*models.Order, error)
	UpdateItemQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (*models.Order, error)
	RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.Order, error)
}

// allowedTransitions captures staff-driven status moves. Paid and cancelled
// are only ever set by payment reconciliation or Cancel.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPaid:    {enums.OrderStatusShipped},
	enums.OrderStatusShipped: {enums.OrderStatusDelivered},
}

type service struct {
	tx   txRunner
	repo *Repository
}

// NewService builds the orders service.
func NewService(tx txRunner, repo *Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, isStaff bool, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isStaff && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	return s.repo.ListByUser(ctx, userID, params)
}

// UpdateStatus applies a staff fulfillment transition, mirroring the new
// status onto every item in the same transaction.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !transitionAllowed(order.Status, status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
		}
		return repo.UpdateStatus(ctx, orderID, status)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}

// Cancel moves a pending order to cancelled and returns its stock. Used by
// payment failure reconciliation and the payment-window sweep.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return CancelInTx(ctx, tx, orderID)
	})
}

// CancelInTx performs the cancel inside an existing transaction so callers
// already holding one (payment reconciliation) can compose it.
func CancelInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := NewRepository(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil
	}
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled")
	}
	for _, item := range order.Items {
		if _, err := inventory.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return repo.UpdateStatus(ctx, orderID, enums.OrderStatusCancelled)
}

// Delete removes the order and its items, returning held stock. Cancelled
// orders already gave their stock back.
func (s *service) Delete(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusCancelled {
			for _, item := range order.Items {
				if _, err := inventory.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}
		return repo.Delete(ctx, orderID)
	})
}

// AddItem reserves stock for a new line on a pending order and grows the
// order total.
func (s *service) AddItem(ctx context.Context, orderID, productID uuid.UUID, quantity int) (*models.Order, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be edited")
		}

		product, err := inventory.Reserve(ctx, tx, productID, quantity)
		if err != nil {
			return err
		}

		for _, item := range order.Items {
			if item.ProductID == productID {
				if err := repo.UpdateItemQuantity(ctx, item.ID, item.Quantity+quantity); err != nil {
					return err
				}
				return repo.UpdateTotal(ctx, orderID, order.TotalAmount.Add(lineAmount(product.Price, quantity)))
			}
		}

		if _, err := repo.CreateItem(ctx, &models.OrderItem{
			OrderID:    orderID,
			ProductID:  productID,
			Quantity:   quantity,
			ItemStatus: order.Status,
		}); err != nil {
			return err
		}
		return repo.UpdateTotal(ctx, orderID, order.TotalAmount.Add(lineAmount(product.Price, quantity)))
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}

// UpdateItemQuantity moves a pending order line to the new quantity,
// reserving or releasing the difference.
func (s *service) UpdateItemQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (*models.Order, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be edited")
		}
		item, err := repo.FindItem(ctx, orderID, itemID)
		if err != nil {
			return err
		}

		delta := quantity - item.Quantity
		if delta == 0 {
			return nil
		}

		var product *models.Product
		if delta > 0 {
			product, err = inventory.Reserve(ctx, tx, item.ProductID, delta)
		} else {
			product, err = inventory.Release(ctx, tx, item.ProductID, -delta)
		}
		if err != nil {
			return err
		}

		if err := repo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
			return err
		}
		return repo.UpdateTotal(ctx, orderID, order.TotalAmount.Add(lineAmount(product.Price, delta)))
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}

// RemoveItem drops a pending order line, releasing its stock and shrinking
// the total (clamped at zero).
func (s *service) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.Order, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be edited")
		}
		item, err := repo.FindItem(ctx, orderID, itemID)
		if err != nil {
			return err
		}

		product, err := inventory.Release(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		return repo.UpdateTotal(ctx, orderID, order.TotalAmount.Sub(lineAmount(product.Price, item.Quantity)))
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}

func transitionAllowed(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func lineAmount(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
