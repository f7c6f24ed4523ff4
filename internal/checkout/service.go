package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/internal/cart"
	"github.com/shopvana/shopvana-backend/internal/inventory"
	"github.com/shopvana/shopvana-backend/internal/notifications"
	"github.com/shopvana/shopvana-backend/internal/orders"
	"github.com/shopvana/shopvana-backend/internal/payments"
	"github.com/shopvana/shopvana-backend/internal/users"
	"github.com/shopvana/shopvana-backend/pkg/chapa"
	"github.com/shopvana/shopvana-backend/pkg/config"
	"github.com/shopvana/shopvana-backend/pkg/db/models"
	"github.com/shopvana/shopvana-backend/pkg/enums"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gateway interface {
	Initialize(ctx context.Context, params chapa.InitializeParams) (*chapa.InitializeResult, error)
}

type emailDispatcher interface {
	Send(ctx context.Context, job notifications.EmailJob)
}

// Input is the checkout request.
type Input struct {
	ShippingAddress string
}

// Result is what the checkout endpoint returns. CheckoutURL and TxRef are
// empty when the gateway could not be reached; the order still exists.
type Result struct {
	Order       *models.Order
	CheckoutURL string
	TxRef       string
}

// Service turns a cart into a pending order and starts payment.
type Service struct {
	tx         txRunner
	cartRepo   *cart.Repository
	orderRepo  *orders.Repository
	payRepo    *payments.Repository
	userRepo   *users.Repository
	gateway    gateway
	dispatcher emailDispatcher
	cfg        config.PaymentsConfig
	logger     *logger.Logger
}

// NewService builds the checkout orchestrator.
func NewService(
	tx txRunner,
	cartRepo *cart.Repository,
	orderRepo *orders.Repository,
	payRepo *payments.Repository,
	userRepo *users.Repository,
	gw gateway,
	dispatcher emailDispatcher,
	cfg config.PaymentsConfig,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil || orderRepo == nil || payRepo == nil || userRepo == nil {
		return nil, fmt.Errorf("repositories required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		tx:         tx,
		cartRepo:   cartRepo,
		orderRepo:  orderRepo,
		payRepo:    payRepo,
		userRepo:   userRepo,
		gateway:    gw,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logg,
	}, nil
}

// Execute converts the user's cart into an order. Stock is reserved, the
// order and its items are written, and the cart is cleared, all in one
// transaction. Payment initialization happens after commit and is allowed
// to fail without undoing the order.
func (s *Service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	address := strings.TrimSpace(input.ShippingAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ProductID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		if _, err := inventory.LockProducts(ctx, tx, ids); err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, err := inventory.Reserve(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			items = append(items, models.OrderItem{
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				ItemStatus: enums.OrderStatusPending,
			})
		}

		expires := time.Now().Add(s.cfg.Window)
		order = &models.Order{
			UserID:                 userID,
			Status:                 enums.OrderStatusPending,
			TotalAmount:            total,
			ShippingAddress:        address,
			ReadyForPayment:        true,
			PaymentWindowExpiresAt: &expires,
			Items:                  items,
		}
		if _, err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.cartRepo.WithTx(tx).ClearUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.dispatcher.Send(ctx, notifications.OrderConfirmation(user.Email, user.FullName(), order.ID.String(), order.TotalAmount))

	result := &Result{Order: order}
	s.initiatePayment(ctx, user, order, result)
	return result, nil
}

// initiatePayment starts the hosted checkout session. Failures are logged:
// the committed order stays payable through the manual payment endpoint.
func (s *Service) initiatePayment(ctx context.Context, user *models.User, order *models.Order, result *Result) {
	txRef := payments.NewTxRef(order.ID, user.ID)
	ctx = s.logger.WithTxRef(ctx, txRef)

	initialized, err := s.gateway.Initialize(ctx, chapa.InitializeParams{
		Amount:    order.TotalAmount,
		Currency:  s.cfg.Currency,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		TxRef:     txRef,
	})
	if err != nil {
		s.logger.Error(ctx, "initialize payment", err)
		return
	}

	payment := &models.Payment{
		OrderID:       order.ID,
		UserID:        user.ID,
		Amount:        order.TotalAmount,
		Currency:      enums.Currency(s.cfg.Currency),
		PaymentMethod: enums.PaymentMethodChapa,
		Status:        enums.PaymentStatusPending,
		TxRef:         txRef,
	}
	if initialized.CheckoutRequestID != "" {
		payment.CheckoutRequestID = &initialized.CheckoutRequestID
	}
	if _, err := s.payRepo.Create(ctx, payment); err != nil {
		s.logger.Error(ctx, "record pending payment", err)
		return
	}

	s.dispatcher.Send(ctx, notifications.PaymentLink(user.Email, user.FullName(), initialized.CheckoutURL, order.TotalAmount))
	result.CheckoutURL = initialized.CheckoutURL
	result.TxRef = txRef
}
