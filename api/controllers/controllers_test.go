package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/api/middleware"
	checkoutsvc "github.com/shopvana/shopvana-backend/internal/checkout"
	"github.com/shopvana/shopvana-backend/internal/cart"
	"github.com/shopvana/shopvana-backend/internal/notifications"
	"github.com/shopvana/shopvana-backend/internal/orders"
	paymentsvc "github.com/shopvana/shopvana-backend/internal/payments"
	"github.com/shopvana/shopvana-backend/internal/users"
	"github.com/shopvana/shopvana-backend/pkg/chapa"
	"github.com/shopvana/shopvana-backend/pkg/config"
	"github.com/shopvana/shopvana-backend/pkg/db/models"
	"github.com/shopvana/shopvana-backend/pkg/enums"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeGateway struct {
	verify map[string]*chapa.VerifyResult
}

func (g *fakeGateway) Initialize(ctx context.Context, params chapa.InitializeParams) (*chapa.InitializeResult, error) {
	return &chapa.InitializeResult{CheckoutURL: "https://checkout.test/" + params.TxRef}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, txRef string) (*chapa.VerifyResult, error) {
	if result, ok := g.verify[txRef]; ok {
		return result, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

type fakeDispatcher struct {
	jobs []notifications.EmailJob
}

func (d *fakeDispatcher) Send(ctx context.Context, job notifications.EmailJob) {
	d.jobs = append(d.jobs, job)
}

type fixture struct {
	db        *gorm.DB
	gateway   *fakeGateway
	orderRepo *orders.Repository
	payments  *paymentsvc.Service
	checkout  *checkoutsvc.Service
	logg      *logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:controllers_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Category{}, &models.Product{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &models.Payment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gw := &fakeGateway{verify: map[string]*chapa.VerifyResult{}}
	dispatcher := &fakeDispatcher{}
	logg := logger.New(logger.Options{Level: logger.ParseLevel("error")})
	orderRepo := orders.NewRepository(db)
	cfg := config.PaymentsConfig{Window: time.Hour, Currency: "ETB"}

	paySvc, err := paymentsvc.NewService(
		gormTxRunner{db: db},
		paymentsvc.NewRepository(db),
		orderRepo,
		users.NewRepository(db),
		gw,
		dispatcher,
		nil,
		cfg,
		logg,
	)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	checkoutSvc, err := checkoutsvc.NewService(
		gormTxRunner{db: db},
		cart.NewRepository(db),
		orderRepo,
		paymentsvc.NewRepository(db),
		users.NewRepository(db),
		gw,
		dispatcher,
		cfg,
		logg,
	)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	return &fixture{db: db, gateway: gw, orderRepo: orderRepo, payments: paySvc, checkout: checkoutSvc, logg: logg}
}

func (f *fixture) seedUser(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.New(),
		Email:    uuid.NewString() + "@example.com",
		Username: "u-" + uuid.NewString(),
	}
	if err := f.db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (f *fixture) seedProduct(t *testing.T, stock int) *models.Product {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: "cat-" + uuid.NewString()}
	if err := f.db.Create(category).Error; err != nil {
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
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (f *fixture) seedPendingPayment(t *testing.T, user *models.User) (*models.Order, *models.Payment) {
	t.Helper()
	product := f.seedProduct(t, 10)
	expires := time.Now().Add(time.Hour)
	order := &models.Order{
		UserID:                 user.ID,
		Status:                 enums.OrderStatusPending,
		TotalAmount:            decimal.RequireFromString("20.00"),
		ShippingAddress:        "123 Main St",
		ReadyForPayment:        true,
		PaymentWindowExpiresAt: &expires,
		Items: []models.OrderItem{
			{ProductID: product.ID, Quantity: 2, ItemStatus: enums.OrderStatusPending},
		},
	}
	if _, err := f.orderRepo.Create(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	payment, err := paymentsvc.NewRepository(f.db).Create(context.Background(), &models.Payment{
		OrderID:       order.ID,
		UserID:        user.ID,
		Amount:        order.TotalAmount,
		Currency:      enums.CurrencyETB,
		PaymentMethod: enums.PaymentMethodChapa,
		Status:        enums.PaymentStatusPending,
		TxRef:         paymentsvc.NewTxRef(order.ID, user.ID),
	})
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return order, payment
}

func authedRequest(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithActor(r.Context(), userID, enums.UserRoleCustomer, false))
}

func TestChapaWebhookAcksKnownReference(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	order, payment := f.seedPendingPayment(t, user)
	f.gateway.verify[payment.TxRef] = &chapa.VerifyResult{
		TxRef:    payment.TxRef,
		Status:   "success",
		Amount:   payment.Amount,
		Currency: "ETB",
	}

	handler := ChapaWebhook(f.payments, f.logg)
	body := `{"trx_ref":"` + payment.TxRef + `","status":"success"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/chapa", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var ack struct {
		ResultCode int    `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.ResultCode != 0 || ack.ResultDesc != "Accepted" {
		t.Fatalf("unexpected ack %+v", ack)
	}

	reloaded, err := f.orderRepo.FindByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusPaid {
		t.Fatalf("expected order paid, got %s", reloaded.Status)
	}
}

func TestChapaWebhookUnknownReference(t *testing.T) {
	f := newFixture(t)

	handler := ChapaWebhook(f.payments, f.logg)
	body := `{"trx_ref":"order-ffffffff-ffffffff-dead","status":"success"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/chapa", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown reference, got %d", resp.Code)
	}
}

func TestChapaWebhookQueryShape(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	_, payment := f.seedPendingPayment(t, user)
	f.gateway.verify[payment.TxRef] = &chapa.VerifyResult{
		TxRef:    payment.TxRef,
		Status:   "success",
		Amount:   payment.Amount,
		Currency: "ETB",
	}

	handler := ChapaWebhook(f.payments, f.logg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/chapa?trx_ref="+payment.TxRef+"&status=success", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for query-shape callback, got %d", resp.Code)
	}
}

func TestChapaWebhookStkShape(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	order, payment := f.seedPendingPayment(t, user)
	if err := f.db.Model(&models.Payment{}).
		Where("transaction_id = ?", payment.TransactionID).
		Update("checkout_request_id", "ws_CO_42").Error; err != nil {
		t.Fatalf("set checkout request id: %v", err)
	}
	f.gateway.verify[payment.TxRef] = &chapa.VerifyResult{
		TxRef:    payment.TxRef,
		Status:   "success",
		Amount:   payment.Amount,
		Currency: "ETB",
	}

	handler := ChapaWebhook(f.payments, f.logg)
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_42","ResultCode":0,"ResultDesc":"Success"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/chapa", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for stk-shape callback, got %d", resp.Code)
	}
	reloaded, err := f.orderRepo.FindByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusPaid {
		t.Fatalf("expected order paid, got %s", reloaded.Status)
	}
}

func TestCheckoutControllerCreatesOrder(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	product := f.seedProduct(t, 5)
	item := &models.CartItem{ID: uuid.New(), UserID: user.ID, ProductID: product.ID, Quantity: 2}
	if err := f.db.Create(item).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}

	handler := Checkout(f.checkout, f.logg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"shipping_address":"123 Main St"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(req, user.ID))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Order.TotalAmount != "20.00" {
		t.Fatalf("expected total 20.00, got %s", envelope.Data.Order.TotalAmount)
	}
	if envelope.Data.CheckoutURL == "" || envelope.Data.TxRef == "" {
		t.Fatalf("expected checkout url and tx ref, got %+v", envelope.Data)
	}
}

func TestCheckoutControllerEmptyCart(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)

	handler := Checkout(f.checkout, f.logg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"shipping_address":"123 Main St"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(req, user.ID))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d", resp.Code)
	}
}

func TestCheckoutControllerMissingAddress(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)

	handler := Checkout(f.checkout, f.logg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(req, user.ID))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing address, got %d", resp.Code)
	}
}

func TestCheckoutControllerOversold(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser(t)
	product := f.seedProduct(t, 1)
	item := &models.CartItem{ID: uuid.New(), UserID: user.ID, ProductID: product.ID, Quantity: 2}
	if err := f.db.Create(item).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}

	handler := Checkout(f.checkout, f.logg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"shipping_address":"123 Main St"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(req, user.ID))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for oversold cart, got %d", resp.Code)
	}
	var reloaded models.Product
	if err := f.db.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.StockQuantity != 1 {
		t.Fatalf("expected stock untouched at 1, got %d", reloaded.StockQuantity)
	}
}
