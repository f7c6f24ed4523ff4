package inventory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopvana/shopvana-backend/pkg/db/models"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
)

// OutOfStockDetails is attached to OUT_OF_STOCK errors so callers can tell
// the buyer what is still available.
type OutOfStockDetails struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// LockProducts acquires row locks on the distinct product ids, sorted, so
// concurrent checkouts always lock in the same order.
func LockProducts(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	distinct := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		distinct = append(distinct, id)
	}
	if len(distinct) == 0 {
		return map[uuid.UUID]*models.Product{}, nil
	}
	sort.Slice(distinct, func(i, j int) bool {
		return distinct[i].String() < distinct[j].String()
	})

	var products []models.Product
	if err := lockingClause(tx).WithContext(ctx).
		Where("id IN ?", distinct).
		Order("id").
		Find(&products).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, id := range distinct {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
	}
	return byID, nil
}

// Reserve decrements stock for one product inside the caller's transaction.
// The decrement and the is_active recompute happen together or not at all;
// an oversell leaves the row untouched.
func Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	if product.StockQuantity < qty {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(OutOfStockDetails{
			ProductID: productID,
			Requested: qty,
			Available: product.StockQuantity,
		})
	}

	product.StockQuantity -= qty
	product.IsActive = product.StockQuantity > 0
	if err := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_quantity": product.StockQuantity,
			"is_active":      product.IsActive,
		}).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Release returns stock for one product, recomputing is_active. It never
// fails on stock grounds; it is the compensating half of Reserve.
func Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	product.StockQuantity += qty
	product.IsActive = product.StockQuantity > 0
	if err := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_quantity": product.StockQuantity,
			"is_active":      product.IsActive,
		}).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func lockProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := lockingClause(tx).WithContext(ctx).First(&product, "id = ?", productID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

// sqlite (used by package tests) has no SELECT ... FOR UPDATE; its writer
// lock serializes transactions instead.
func lockingClause(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
