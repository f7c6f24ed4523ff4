package wishlists

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/pkg/db/models"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
)

// Repository persists wishlists and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a wishlists Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a wishlist.
func (r *Repository) Create(ctx context.Context, list *models.Wishlist) (*models.Wishlist, error) {
	if list.ID == uuid.Nil {
		list.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// FindOwned loads one wishlist with items, scoped to the owner.
func (r *Repository) FindOwned(ctx context.Context, userID, listID uuid.UUID) (*models.Wishlist, error) {
	var list models.Wishlist
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("id = ? AND user_id = ?", listID, userID).
		First(&list).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
		}
		return nil, err
	}
	return &list, nil
}

// ListByUser returns the user's wishlists with items.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Wishlist, error) {
	var rows []models.Wishlist
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("added_on").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes a wishlist and its items, scoped to the owner.
func (r *Repository) Delete(ctx context.Context, userID, listID uuid.UUID) error {
	var list models.Wishlist
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", listID, userID).
		First(&list).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found")
		}
		return err
	}
	if err := r.db.WithContext(ctx).
		Where("wishlist_id = ?", listID).
		Delete(&models.WishlistItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&models.Wishlist{}, "id = ?", listID).Error
}

// AddItem pins a product to the wishlist.
func (r *Repository) AddItem(ctx context.Context, item *models.WishlistItem) (*models.WishlistItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveItem unpins a product from the wishlist.
func (r *Repository) RemoveItem(ctx context.Context, listID, itemID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND wishlist_id = ?", itemID, listID).
		Delete(&models.WishlistItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "wishlist item not found")
	}
	return nil
}
