package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/pkg/db/models"
	"github.com/shopvana/shopvana-backend/pkg/enums"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Category{}, &models.Product{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db))
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

func seedProduct(t *testing.T, db *gorm.DB, price string, stock int) *models.Product {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: "cat-" + uuid.NewString()}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := &models.Product{
		ID:            uuid.New(),
		Name:          "prod-" + uuid.NewString(),
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      stock > 0,
		CategoryID:    category.ID,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// seedOrder creates an order holding stock that has already been deducted
// from the products, the way checkout leaves the world.
func seedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus, lines ...models.OrderItem) *models.Order {
	t.Helper()
	total := decimal.Zero
	for i := range lines {
		var product models.Product
		if err := db.First(&product, "id = ?", lines[i].ProductID).Error; err != nil {
			t.Fatalf("load product: %v", err)
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(lines[i].Quantity))))
		lines[i].ItemStatus = status
	}
	expires := time.Now().Add(30 * time.Minute)
	order := &models.Order{
		UserID:                 userID,
		Status:                 status,
		TotalAmount:            total,
		ShippingAddress:        "1 Test Way",
		ReadyForPayment:        status == enums.OrderStatusPending,
		PaymentWindowExpiresAt: &expires,
		Items:                  lines,
	}
	repo := NewRepository(db)
	created, err := repo.Create(context.Background(), order)
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return created
}

func productStock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.StockQuantity
}

func TestGetEnforcesOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	owner := seedUser(t, db)
	other := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, owner.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 1})

	if _, err := svc.Get(context.Background(), owner.ID, false, order.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.Get(context.Background(), other.ID, false, order.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	if _, err := svc.Get(context.Background(), other.ID, true, order.ID); err != nil {
		t.Fatalf("staff get: %v", err)
	}
}

func TestUpdateStatusFulfillmentPath(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPaid,
		models.OrderItem{ProductID: product.ID, Quantity: 1})

	shipped, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusShipped)
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if shipped.Status != enums.OrderStatusShipped {
		t.Fatalf("expected shipped, got %s", shipped.Status)
	}
	for _, item := range shipped.Items {
		if item.ItemStatus != enums.OrderStatusShipped {
			t.Fatalf("expected item mirrored to shipped, got %s", item.ItemStatus)
		}
	}

	delivered, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", delivered.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusShipped); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict after delivery, got %v", err)
	}
}

func TestUpdateStatusRejectsSkippedTransition(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 1})

	if _, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusShipped); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for pending to shipped, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), order.ID, "teleported"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 2})

	if err := svc.Cancel(context.Background(), order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := productStock(t, db, product.ID); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}

	// Cancelling twice is a no-op, not a second restock.
	if err := svc.Cancel(context.Background(), order.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if got := productStock(t, db, product.ID); got != 5 {
		t.Fatalf("expected stock to stay at 5, got %d", got)
	}
}

func TestCancelRejectsPaidOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPaid,
		models.OrderItem{ProductID: product.ID, Quantity: 1})

	if err := svc.Cancel(context.Background(), order.ID); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestDeleteRestoresStockAndRemovesRows(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 1})

	if err := svc.Delete(context.Background(), order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := productStock(t, db, product.ID); got != 4 {
		t.Fatalf("expected stock restored to 4, got %d", got)
	}
	var orderCount, itemCount int64
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if err := db.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&itemCount).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if orderCount != 0 || itemCount != 0 {
		t.Fatalf("expected rows gone, got %d orders %d items", orderCount, itemCount)
	}
}

func TestDeleteCancelledOrderSkipsRestock(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 2})

	if err := svc.Cancel(context.Background(), order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.Delete(context.Background(), order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := productStock(t, db, product.ID); got != 5 {
		t.Fatalf("expected a single restock to 5, got %d", got)
	}
}

func TestAddItemReservesStockAndGrowsTotal(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	existing := seedProduct(t, db, "10.00", 3)
	extra := seedProduct(t, db, "4.50", 5)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: existing.ID, Quantity: 1})

	updated, err := svc.AddItem(context.Background(), order.ID, extra.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if !updated.TotalAmount.Equal(decimal.RequireFromString("19.00")) {
		t.Fatalf("expected total 19.00, got %s", updated.TotalAmount)
	}
	if got := productStock(t, db, extra.ID); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("expected two lines, got %d", len(updated.Items))
	}
}

func TestAddItemMergesExistingLine(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 5)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 1})

	updated, err := svc.AddItem(context.Background(), order.ID, product.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(updated.Items))
	}
	if updated.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", updated.Items[0].Quantity)
	}
	if !updated.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected total 30.00, got %s", updated.TotalAmount)
	}
}

func TestAddItemOversellLeavesOrderUntouched(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	existing := seedProduct(t, db, "10.00", 3)
	scarce := seedProduct(t, db, "4.50", 1)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: existing.ID, Quantity: 1})

	if _, err := svc.AddItem(context.Background(), order.ID, scarce.ID, 2); !pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	reloaded, err := svc.Get(context.Background(), user.ID, false, order.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(reloaded.Items))
	}
	if !reloaded.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected total unchanged at 10.00, got %s", reloaded.TotalAmount)
	}
	if got := productStock(t, db, scarce.ID); got != 1 {
		t.Fatalf("expected scarce stock untouched at 1, got %d", got)
	}
}

func TestAddItemRejectsNonPendingOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPaid,
		models.OrderItem{ProductID: product.ID, Quantity: 1})

	if _, err := svc.AddItem(context.Background(), order.ID, product.ID, 1); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestUpdateItemQuantityAdjustsStockByDelta(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 4)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 2})
	itemID := order.Items[0].ID

	grown, err := svc.UpdateItemQuantity(context.Background(), order.ID, itemID, 3)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if got := productStock(t, db, product.ID); got != 3 {
		t.Fatalf("expected stock 3 after growing line, got %d", got)
	}
	if !grown.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected total 30.00, got %s", grown.TotalAmount)
	}

	shrunk, err := svc.UpdateItemQuantity(context.Background(), order.ID, itemID, 1)
	if err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if got := productStock(t, db, product.ID); got != 5 {
		t.Fatalf("expected stock 5 after shrinking line, got %d", got)
	}
	if !shrunk.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected total 10.00, got %s", shrunk.TotalAmount)
	}
}

func TestRemoveItemReleasesStock(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db)
	user := seedUser(t, db)
	first := seedProduct(t, db, "10.00", 3)
	second := seedProduct(t, db, "4.50", 5)
	order := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: first.ID, Quantity: 1},
		models.OrderItem{ProductID: second.ID, Quantity: 2})

	var removeID uuid.UUID
	for _, item := range order.Items {
		if item.ProductID == second.ID {
			removeID = item.ID
		}
	}
	updated, err := svc.RemoveItem(context.Background(), order.ID, removeID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("expected one line left, got %d", len(updated.Items))
	}
	if !updated.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected total 10.00, got %s", updated.TotalAmount)
	}
	if got := productStock(t, db, second.ID); got != 7 {
		t.Fatalf("expected stock back to 7, got %d", got)
	}
}

func TestListExpiredPendingFindsOnlyLapsedOrders(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "10.00", 10)

	fresh := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 1})
	stale := seedOrder(t, db, user.ID, enums.OrderStatusPending,
		models.OrderItem{ProductID: product.ID, Quantity: 1})
	lapsed := time.Now().Add(-time.Hour)
	if err := db.Model(&models.Order{}).Where("id = ?", stale.ID).
		Update("payment_window_expires_at", lapsed).Error; err != nil {
		t.Fatalf("age order: %v", err)
	}

	expired, err := repo.ListExpiredPending(context.Background(), time.Now(), 0)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected one expired order, got %d", len(expired))
	}
	if expired[0].ID != stale.ID {
		t.Fatalf("expected the stale order, got %s", expired[0].ID)
	}
	_ = fresh
}
