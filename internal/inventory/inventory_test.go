package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/pkg/db/models"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Category{}, &models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) *models.Product {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: "cat-" + uuid.NewString()}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := &models.Product{
		ID:            uuid.New(),
		Name:          "prod-" + uuid.NewString(),
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: stock,
		IsActive:      stock > 0,
		CategoryID:    category.ID,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestReserveDecrementsStock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		updated, terr := Reserve(ctx, tx, product.ID, 3)
		if terr != nil {
			return terr
		}
		if updated.StockQuantity != 2 {
			t.Fatalf("expected stock 2, got %d", updated.StockQuantity)
		}
		if !updated.IsActive {
			t.Fatalf("expected product to stay active")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var stored models.Product
	if err := db.First(&stored, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if stored.StockQuantity != 2 {
		t.Fatalf("expected persisted stock 2, got %d", stored.StockQuantity)
	}
}

func TestReserveLastUnitDeactivates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		updated, terr := Reserve(ctx, tx, product.ID, 1)
		if terr != nil {
			return terr
		}
		if updated.StockQuantity != 0 || updated.IsActive {
			t.Fatalf("expected inactive zero-stock product, got %+v", updated)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}
}

func TestReserveOversellLeavesRowUntouched(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(ctx, tx, product.ID, 2)
		if !pkgerrors.IsCode(terr, pkgerrors.CodeOutOfStock) {
			t.Fatalf("expected out of stock, got %v", terr)
		}
		typed := pkgerrors.As(terr)
		if typed == nil {
			t.Fatalf("expected typed error")
		}
		details, ok := typed.Details().(OutOfStockDetails)
		if !ok {
			t.Fatalf("expected oversell details, got %T", typed.Details())
		}
		if details.Requested != 2 || details.Available != 1 {
			t.Fatalf("unexpected details %+v", details)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	var stored models.Product
	if err := db.First(&stored, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if stored.StockQuantity != 1 || !stored.IsActive {
		t.Fatalf("oversell must not mutate stock, got %+v", stored)
	}
}

func TestReserveContentionOnLastUnit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 1)

	if err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(ctx, tx, product.ID, 1)
		return terr
	}); err != nil {
		t.Fatalf("first buyer should win: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(ctx, tx, product.ID, 1)
		return terr
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("second buyer should oversell, got %v", err)
	}

	var stored models.Product
	if err := db.First(&stored, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if stored.StockQuantity != 0 {
		t.Fatalf("expected stock 0, got %d", stored.StockQuantity)
	}
}

func TestReleaseRestoresStockAndActivation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 0)

	if product.IsActive {
		t.Fatalf("seed should be inactive")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		updated, terr := Release(ctx, tx, product.ID, 4)
		if terr != nil {
			return terr
		}
		if updated.StockQuantity != 4 || !updated.IsActive {
			t.Fatalf("expected reactivated stock 4, got %+v", updated)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("release transaction: %v", err)
	}
}

func TestReserveValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(ctx, tx, product.ID, 0)
		return terr
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(ctx, tx, uuid.New(), 1)
		return terr
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLockProductsSortsAndDedupes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedProduct(t, db, 1)
	b := seedProduct(t, db, 2)

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, terr := LockProducts(ctx, tx, []uuid.UUID{b.ID, a.ID, b.ID})
		if terr != nil {
			return terr
		}
		if len(locked) != 2 {
			t.Fatalf("expected 2 locked products, got %d", len(locked))
		}
		if locked[a.ID] == nil || locked[b.ID] == nil {
			t.Fatalf("missing locked rows: %+v", locked)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lock transaction: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, terr := LockProducts(ctx, tx, []uuid.UUID{a.ID, uuid.New()})
		return terr
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}
