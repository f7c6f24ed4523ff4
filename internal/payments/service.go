package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/shopvana/shopvana-backend/internal/notifications"
	"github.com/shopvana/shopvana-backend/internal/orders"
	"github.com/shopvana/shopvana-backend/internal/users"
	"github.com/shopvana/shopvana-backend/pkg/chapa"
	"github.com/shopvana/shopvana-backend/pkg/config"
	"github.com/shopvana/shopvana-backend/pkg/db/models"
	"github.com/shopvana/shopvana-backend/pkg/enums"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
	"github.com/shopvana/shopvana-backend/pkg/logger"
	"github.com/shopvana/shopvana-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gateway interface {
	Initialize(ctx context.Context, params chapa.InitializeParams) (*chapa.InitializeResult, error)
	Verify(ctx context.Context, txRef string) (*chapa.VerifyResult, error)
}

type emailDispatcher interface {
	Send(ctx context.Context, job notifications.EmailJob)
}

// Outcome is the settled view of one gateway transaction, normalized from
// whichever entry point observed it.
type Outcome struct {
	Succeeded     bool
	Amount        decimal.Decimal
	ReceiptNumber *string
	Source        string
}

// ReconcileResult reports what reconciliation did.
type ReconcileResult struct {
	Applied     bool
	Payment     *models.Payment
	OrderStatus enums.OrderStatus
}

// CreateInput is a staff-initiated payment for an existing order.
type CreateInput struct {
	OrderID uuid.UUID
}

// CreateResult carries the hosted checkout session for a manual payment.
type CreateResult struct {
	Payment     *models.Payment
	CheckoutURL string
	TxRef       string
}

// CallbackAck is the body returned to the gateway for every accepted
// callback, success or failure.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Service owns the payment lifecycle. Every entry point that learns a
// transaction outcome funnels into Reconcile.
type Service struct {
	tx         txRunner
	repo       *Repository
	orderRepo  *orders.Repository
	userRepo   *users.Repository
	gateway    gateway
	dispatcher emailDispatcher
	metrics    *metrics.PaymentMetrics
	cfg        config.PaymentsConfig
	logger     *logger.Logger
}

// NewService builds the payments service.
func NewService(
	tx txRunner,
	repo *Repository,
	orderRepo *orders.Repository,
	userRepo *users.Repository,
	gw gateway,
	dispatcher emailDispatcher,
	pm *metrics.PaymentMetrics,
	cfg config.PaymentsConfig,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil || orderRepo == nil || userRepo == nil {
		return nil, fmt.Errorf("repositories required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if pm == nil {
		pm = metrics.NewPaymentMetrics(nil)
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		tx:         tx,
		repo:       repo,
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		gateway:    gw,
		dispatcher: dispatcher,
		metrics:    pm,
		cfg:        cfg,
		logger:     logg,
	}, nil
}

// Reconcile applies one observed outcome to the payment and its order in a
// single transaction. Callbacks arrive at-least-once and race the verify
// poll, so every branch here is idempotent.
func (s *Service) Reconcile(ctx context.Context, txRef string, outcome Outcome) (*ReconcileResult, error) {
	ctx = s.logger.WithTxRef(ctx, txRef)

	var result *ReconcileResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByTxRef(ctx, txRef)
		if err != nil {
			return err
		}
		order, err := s.orderRepo.WithTx(tx).FindByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}

		if payment.Status.IsTerminal() {
			result = &ReconcileResult{Applied: false, Payment: payment, OrderStatus: order.Status}
			return nil
		}
		// Only pending orders are driven from here. Paid, shipped,
		// delivered and cancelled orders never move on a late outcome; the
		// still-pending payment is recorded failed so the poll stops
		// re-verifying a ref that can no longer be honored.
		if order.Status != enums.OrderStatusPending {
			if err := repo.Settle(ctx, payment.TransactionID, map[string]any{
				"status": enums.PaymentStatusFailed,
			}); err != nil {
				return err
			}
			payment.Status = enums.PaymentStatusFailed
			result = &ReconcileResult{Applied: false, Payment: payment, OrderStatus: order.Status}
			return nil
		}

		// A sibling payment that already failed poisons the order: a late
		// success for this ref cannot be trusted to match the order state,
		// so it is recorded as failed rather than racing the cancellation.
		siblings, err := repo.ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, sibling := range siblings {
			if sibling.TransactionID != payment.TransactionID && sibling.Status == enums.PaymentStatusFailed {
				if err := repo.Settle(ctx, payment.TransactionID, map[string]any{
					"status": enums.PaymentStatusFailed,
				}); err != nil {
					return err
				}
				payment.Status = enums.PaymentStatusFailed
				result = &ReconcileResult{Applied: true, Payment: payment, OrderStatus: order.Status}
				return nil
			}
		}

		if outcome.Succeeded {
			updates := map[string]any{
				"status": enums.PaymentStatusCompleted,
			}
			if outcome.ReceiptNumber != nil {
				updates["receipt_number"] = *outcome.ReceiptNumber
			}
			if overpay := outcome.Amount.Sub(order.TotalAmount); overpay.IsPositive() {
				updates["wallet"] = overpay
				payment.Wallet = overpay
			}
			if err := repo.Settle(ctx, payment.TransactionID, updates); err != nil {
				return err
			}
			if err := s.orderRepo.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusPaid); err != nil {
				return err
			}
			payment.Status = enums.PaymentStatusCompleted
			payment.ReceiptNumber = outcome.ReceiptNumber
			result = &ReconcileResult{Applied: true, Payment: payment, OrderStatus: enums.OrderStatusPaid}
			return nil
		}

		if err := repo.Settle(ctx, payment.TransactionID, map[string]any{
			"status": enums.PaymentStatusFailed,
		}); err != nil {
			return err
		}
		if err := orders.CancelInTx(ctx, tx, order.ID); err != nil {
			return err
		}
		payment.Status = enums.PaymentStatusFailed
		result = &ReconcileResult{Applied: true, Payment: payment, OrderStatus: enums.OrderStatusCancelled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncReconciled(result.Payment.Status.String(), outcome.Source)
	if result.Applied && result.Payment.Status == enums.PaymentStatusCompleted {
		s.sendReceipt(ctx, result.Payment)
	}
	return result, nil
}

func (s *Service) sendReceipt(ctx context.Context, payment *models.Payment) {
	user, err := s.userRepo.FindByID(ctx, payment.UserID)
	if err != nil {
		s.logger.Error(ctx, "load payer for receipt", err)
		return
	}
	s.dispatcher.Send(ctx, notifications.PaymentReceipt(user.Email, user.FullName(), payment.TxRef, payment.Amount))
}

// Create starts a manual payment for an order whose window is still open.
func (s *Service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	order, err := s.orderRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
	}
	if !order.PaymentWindowOpen(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment window has expired")
	}

	user, err := s.userRepo.FindByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}

	txRef := NewTxRef(order.ID, user.ID)
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
		return nil, err
	}

	record := &models.Payment{
		OrderID:       order.ID,
		UserID:        user.ID,
		Amount:        order.TotalAmount,
		Currency:      enums.Currency(s.cfg.Currency),
		PaymentMethod: enums.PaymentMethodChapa,
		Status:        enums.PaymentStatusPending,
		TxRef:         txRef,
	}
	if initialized.CheckoutRequestID != "" {
		record.CheckoutRequestID = &initialized.CheckoutRequestID
	}
	payment, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Send(ctx, notifications.PaymentLink(user.Email, user.FullName(), initialized.CheckoutURL, order.TotalAmount))
	return &CreateResult{Payment: payment, CheckoutURL: initialized.CheckoutURL, TxRef: txRef}, nil
}

// VerifyOutput is the settled state after a verify round trip.
type VerifyOutput struct {
	TxRef         string
	Status        enums.PaymentStatus
	ReceiptNumber *string
}

// Verify asks the gateway for the transaction state and reconciles it.
// A transaction the gateway still reports as in flight is left pending.
func (s *Service) Verify(ctx context.Context, txRef string) (*VerifyOutput, error) {
	payment, err := s.repo.FindByTxRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return &VerifyOutput{TxRef: txRef, Status: payment.Status, ReceiptNumber: payment.ReceiptNumber}, nil
	}

	started := time.Now()
	verified, err := s.gateway.Verify(ctx, txRef)
	s.metrics.ObserveVerify("chapa", time.Since(started))
	if err != nil {
		return nil, err
	}
	if !verified.Succeeded() && !verified.Failed() {
		return &VerifyOutput{TxRef: txRef, Status: enums.PaymentStatusPending}, nil
	}

	outcome := Outcome{
		Succeeded: verified.Succeeded(),
		Amount:    verified.Amount,
		Source:    "verify",
	}
	if verified.Reference != "" {
		outcome.ReceiptNumber = &verified.Reference
	}
	result, err := s.Reconcile(ctx, txRef, outcome)
	if err != nil {
		return nil, err
	}
	return &VerifyOutput{
		TxRef:         txRef,
		Status:        result.Payment.Status,
		ReceiptNumber: result.Payment.ReceiptNumber,
	}, nil
}

// HandleCallback processes a gateway notification. The callback itself is
// unauthenticated, so the outcome is re-read from the gateway rather than
// trusted; the notification is only a trigger.
func (s *Service) HandleCallback(ctx context.Context, notification *chapa.CallbackNotification) (*CallbackAck, error) {
	if notification == nil || (notification.TxRef == "" && notification.CheckoutRequestID == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback missing transaction reference")
	}
	txRef := notification.TxRef
	if txRef == "" {
		payment, err := s.repo.FindByCheckoutRequestID(ctx, notification.CheckoutRequestID)
		if err != nil {
			return nil, err
		}
		txRef = payment.TxRef
	} else if _, err := s.repo.FindByTxRef(ctx, txRef); err != nil {
		return nil, err
	}
	if _, err := s.Verify(ctx, txRef); err != nil {
		// The ref is known; ack so the gateway stops retrying, and let the
		// poll job settle the payment.
		s.logger.Error(ctx, "verify after callback", err)
	}
	return &CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}, nil
}

// PayWithWallet settles an order from the user's wallet balance in one
// transaction with no gateway round trip.
func (s *Service) PayWithWallet(ctx context.Context, userID, orderID uuid.UUID) (*models.Payment, error) {
	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not payable")
		}

		userRepo := s.userRepo.WithTx(tx)
		user, err := userRepo.LockForWallet(ctx, userID)
		if err != nil {
			return err
		}
		if user.WalletBalance.LessThan(order.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "wallet balance too low").
				WithDetails(map[string]string{
					"balance":  user.WalletBalance.StringFixed(2),
					"required": order.TotalAmount.StringFixed(2),
				})
		}
		if err := userRepo.DebitWallet(ctx, userID, order.TotalAmount); err != nil {
			return err
		}

		payment, err = s.repo.WithTx(tx).Create(ctx, &models.Payment{
			OrderID:       order.ID,
			UserID:        userID,
			Amount:        order.TotalAmount,
			Currency:      enums.Currency(s.cfg.Currency),
			PaymentMethod: enums.PaymentMethodWallet,
			Status:        enums.PaymentStatusCompleted,
			TxRef:         NewTxRef(order.ID, userID),
		})
		if err != nil {
			return err
		}
		return orderRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusPaid)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncReconciled(enums.PaymentStatusCompleted.String(), "wallet")
	s.sendReceipt(ctx, payment)
	return payment, nil
}

// CheckPending verifies every payment still awaiting an outcome. Errors
// are collected per payment so one bad ref does not stop the sweep.
func (s *Service) CheckPending(ctx context.Context) error {
	pending, err := s.repo.ListPending(ctx, 0)
	if err != nil {
		return err
	}
	var combined error
	for _, payment := range pending {
		if _, err := s.Verify(ctx, payment.TxRef); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("verify %s: %w", payment.TxRef, err))
		}
	}
	return combined
}

// SimulatePending settles every pending payment as if the gateway had
// confirmed it, through the same reconciliation path real callbacks take.
// For environments without a live gateway; gated by a feature flag.
func (s *Service) SimulatePending(ctx context.Context) error {
	pending, err := s.repo.ListPending(ctx, 0)
	if err != nil {
		return err
	}
	var combined error
	for _, payment := range pending {
		_, err := s.Reconcile(ctx, payment.TxRef, Outcome{
			Succeeded: true,
			Amount:    payment.Amount,
			Source:    "simulated",
		})
		if err != nil {
			combined = multierr.Append(combined, fmt.Errorf("simulate %s: %w", payment.TxRef, err))
		}
	}
	return combined
}
