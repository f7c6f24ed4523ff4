package controllers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/shopvana/shopvana-backend/api/middleware"
	"github.com/shopvana/shopvana-backend/api/responses"
	"github.com/shopvana/shopvana-backend/api/validators"
	paymentsvc "github.com/shopvana/shopvana-backend/internal/payments"
	"github.com/shopvana/shopvana-backend/pkg/config"
	"github.com/shopvana/shopvana-backend/pkg/db/models"
	"github.com/shopvana/shopvana-backend/pkg/enums"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type paymentResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	OrderID       uuid.UUID `json:"order_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	Wallet        string    `json:"wallet,omitempty"`
	TxRef         string    `json:"tx_ref"`
	ReceiptNumber *string   `json:"receipt_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newPaymentResponse(payment *models.Payment) paymentResponse {
	out := paymentResponse{
		TransactionID: payment.TransactionID,
		OrderID:       payment.OrderID,
		Amount:        payment.Amount.StringFixed(2),
		Currency:      string(payment.Currency),
		PaymentMethod: string(payment.PaymentMethod),
		Status:        string(payment.Status),
		TxRef:         payment.TxRef,
		ReceiptNumber: payment.ReceiptNumber,
		CreatedAt:     payment.CreatedAt,
	}
	if !payment.Wallet.IsZero() {
		out.Wallet = payment.Wallet.StringFixed(2)
	}
	return out
}

type createPaymentRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

type createPaymentResponse struct {
	Payment     paymentResponse `json:"payment"`
	CheckoutURL string          `json:"checkout_url"`
	TxRef       string          `json:"tx_ref"`
}

// PaymentCreate is the staff-only manual payment initiation for an order.
func PaymentCreate(svc *paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), paymentsvc.CreateInput{OrderID: payload.OrderID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createPaymentResponse{
			Payment:     newPaymentResponse(result.Payment),
			CheckoutURL: result.CheckoutURL,
			TxRef:       result.TxRef,
		})
	}
}

type verifyPaymentResponse struct {
	TxRef         string  `json:"tx_ref"`
	Status        string  `json:"status"`
	ReceiptNumber *string `json:"receipt_number,omitempty"`
}

// PaymentVerify re-checks a transaction with the gateway. When the payment
// settled and a return URL is configured, the browser is redirected to the
// hosted receipt page instead of receiving JSON.
func PaymentVerify(svc *paymentsvc.Service, cfg config.ChapaConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txRef, err := validators.RequireQueryString(r, "tx_ref")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.Verify(r.Context(), txRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if out.Status == enums.PaymentStatusCompleted && cfg.ReturnURL != "" {
			target, err := url.Parse(cfg.ReturnURL)
			if err == nil {
				query := target.Query()
				query.Set("tx_ref", out.TxRef)
				target.RawQuery = query.Encode()
				http.Redirect(w, r, target.String(), http.StatusSeeOther)
				return
			}
		}

		responses.WriteSuccess(w, verifyPaymentResponse{
			TxRef:         out.TxRef,
			Status:        string(out.Status),
			ReceiptNumber: out.ReceiptNumber,
		})
	}
}

type walletPaymentRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// PaymentWallet settles an order from the caller's wallet balance.
func PaymentWallet(svc *paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload walletPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.PayWithWallet(r.Context(), userID, payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(payment))
	}
}
