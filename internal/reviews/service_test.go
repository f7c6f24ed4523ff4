package reviews

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/internal/products"
	"github.com/shopvana/shopvana-backend/pkg/db/models"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reviews_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Category{}, &models.Product{}, &models.Review{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), products.NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Username: "u-" + uuid.NewString()}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedProduct(t *testing.T, db *gorm.DB) *models.Product {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: "cat-" + uuid.NewString()}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := &models.Product{
		ID:            uuid.New(),
		Name:          "prod-" + uuid.NewString(),
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: 5,
		IsActive:      true,
		CategoryID:    category.ID,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestCreateRejectsOutOfRangeRating(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Create(context.Background(), user.ID, CreateInput{ProductID: product.ID, Rating: rating})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("rating %d: expected validation error, got %v", rating, err)
		}
	}
}

func TestCreateSecondReviewConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db)

	if _, err := svc.Create(context.Background(), user.ID, CreateInput{ProductID: product.ID, Rating: 4, Comment: "solid"}); err != nil {
		t.Fatalf("first review: %v", err)
	}
	_, err := svc.Create(context.Background(), user.ID, CreateInput{ProductID: product.ID, Rating: 5})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateEnforcesOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	owner := seedUser(t, db)
	other := seedUser(t, db)
	product := seedProduct(t, db)

	review, err := svc.Create(context.Background(), owner.ID, CreateInput{ProductID: product.ID, Rating: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newRating := 5
	if _, err := svc.Update(context.Background(), other.ID, false, review.ID, UpdateInput{Rating: &newRating}); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	updated, err := svc.Update(context.Background(), owner.ID, false, review.ID, UpdateInput{Rating: &newRating})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Rating != 5 {
		t.Fatalf("expected rating 5, got %d", updated.Rating)
	}
	// Staff may moderate any review.
	if err := svc.Delete(context.Background(), other.ID, true, review.ID); err != nil {
		t.Fatalf("staff delete: %v", err)
	}
}

func TestListByProductNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	product := seedProduct(t, db)

	for i := 0; i < 3; i++ {
		user := seedUser(t, db)
		if _, err := svc.Create(context.Background(), user.ID, CreateInput{ProductID: product.ID, Rating: i + 1}); err != nil {
			t.Fatalf("create review %d: %v", i, err)
		}
	}
	rows, err := svc.ListByProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 reviews, got %d", len(rows))
	}

	_, err = svc.ListByProduct(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}
