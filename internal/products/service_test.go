package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/pkg/db/models"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
	"github.com/shopvana/shopvana-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Category{}, &models.Product{},
		&models.Order{}, &models.OrderItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedCategory(t *testing.T, db *gorm.DB) *models.Category {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: "cat-" + uuid.NewString()}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return category
}

func TestCreateProduct(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	category := seedCategory(t, db)

	created, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:          "Espresso Beans",
		Price:         decimal.RequireFromString("12.99"),
		StockQuantity: 3,
		CategoryID:    category.ID,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}
	if !created.IsActive {
		t.Fatalf("product with stock should be active")
	}

	zero, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:       "Sold Out Thing",
		Price:      decimal.RequireFromString("5.00"),
		CategoryID: category.ID,
	})
	if err != nil {
		t.Fatalf("create zero-stock product: %v", err)
	}
	if zero.IsActive {
		t.Fatalf("zero-stock product must start inactive")
	}
}

func TestCreateProductValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	category := seedCategory(t, db)

	cases := []struct {
		name  string
		input CreateProductInput
		code  pkgerrors.Code
	}{
		{"missing name", CreateProductInput{CategoryID: category.ID}, pkgerrors.CodeValidation},
		{"negative price", CreateProductInput{Name: "x", Price: decimal.RequireFromString("-1"), CategoryID: category.ID}, pkgerrors.CodeValidation},
		{"negative stock", CreateProductInput{Name: "x", StockQuantity: -1, CategoryID: category.ID}, pkgerrors.CodeValidation},
		{"unknown category", CreateProductInput{Name: "x", CategoryID: uuid.New()}, pkgerrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateProduct(context.Background(), tc.input); !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestCreateProductDuplicateNameInCategory(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	category := seedCategory(t, db)

	input := CreateProductInput{Name: "Twin", Price: decimal.RequireFromString("1.00"), CategoryID: category.ID}
	if _, err := svc.CreateProduct(context.Background(), input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.CreateProduct(context.Background(), input); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	other := seedCategory(t, db)
	input.CategoryID = other.ID
	if _, err := svc.CreateProduct(context.Background(), input); err != nil {
		t.Fatalf("same name in other category should pass: %v", err)
	}
}

func TestUpdateProductRecomputesActive(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	category := seedCategory(t, db)

	created, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:          "Gadget",
		Price:         decimal.RequireFromString("9.99"),
		StockQuantity: 2,
		CategoryID:    category.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	zero := 0
	updated, err := svc.UpdateProduct(context.Background(), created.ID, UpdateProductInput{StockQuantity: &zero})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsActive {
		t.Fatalf("product drained to zero must deactivate")
	}

	five := 5
	updated, err = svc.UpdateProduct(context.Background(), created.ID, UpdateProductInput{StockQuantity: &five})
	if err != nil {
		t.Fatalf("restock update: %v", err)
	}
	if !updated.IsActive || updated.StockQuantity != 5 {
		t.Fatalf("restock should reactivate, got %+v", updated)
	}
}

func TestDeleteProductProtectedByOrders(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	category := seedCategory(t, db)

	created, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:          "Keeper",
		Price:         decimal.RequireFromString("3.00"),
		StockQuantity: 1,
		CategoryID:    category.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	user := &models.User{ID: uuid.New(), Email: "buyer@example.com", Username: "buyer"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	order := &models.Order{
		ID:              uuid.New(),
		UserID:          user.ID,
		TotalAmount:     decimal.RequireFromString("3.00"),
		ShippingAddress: "123 Main St",
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := &models.OrderItem{ID: uuid.New(), OrderID: order.ID, ProductID: created.ID, Quantity: 1}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed order item: %v", err)
	}

	if err := svc.DeleteProduct(context.Background(), created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for referenced product, got %v", err)
	}

	if err := db.Delete(item).Error; err != nil {
		t.Fatalf("remove order item: %v", err)
	}
	if err := svc.DeleteProduct(context.Background(), created.ID); err != nil {
		t.Fatalf("delete unreferenced product: %v", err)
	}
}

func TestListProductsPaginates(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	category := seedCategory(t, db)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateProduct(context.Background(), CreateProductInput{
			Name:          "item-" + uuid.NewString(),
			Price:         decimal.RequireFromString("1.00"),
			StockQuantity: i, // one product stays inactive
			CategoryID:    category.ID,
		}); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	page, err := svc.ListProducts(context.Background(), pagination.Params{Limit: 2}, ListFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Products) != 2 || page.NextCursor == "" {
		t.Fatalf("expected full first page with cursor, got %d items cursor=%q", len(page.Products), page.NextCursor)
	}

	second, err := svc.ListProducts(context.Background(), pagination.Params{Limit: 2, Cursor: page.NextCursor}, ListFilters{})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Products) != 1 || second.NextCursor != "" {
		t.Fatalf("expected final page of 1, got %d cursor=%q", len(second.Products), second.NextCursor)
	}

	active, err := svc.ListProducts(context.Background(), pagination.Params{Limit: 10}, ListFilters{ActiveOnly: true})
	if err != nil {
		t.Fatalf("active list: %v", err)
	}
	if len(active.Products) != 2 {
		t.Fatalf("expected 2 active products, got %d", len(active.Products))
	}
}

func TestCategoryLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)

	created, err := svc.CreateCategory(context.Background(), CreateCategoryInput{Name: "Drinks"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := svc.CreateCategory(context.Background(), CreateCategoryInput{Name: "Drinks"}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}

	if _, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name: "Cola", Price: decimal.RequireFromString("2.00"), StockQuantity: 1, CategoryID: created.ID,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if err := svc.DeleteCategory(context.Background(), created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for non-empty category, got %v", err)
	}

	all, err := svc.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 category, got %d", len(all))
	}
}
