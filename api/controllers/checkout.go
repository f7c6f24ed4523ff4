package controllers

import (
	"net/http"

	"github.com/shopvana/shopvana-backend/api/middleware"
	"github.com/shopvana/shopvana-backend/api/responses"
	"github.com/shopvana/shopvana-backend/api/validators"
	checkoutsvc "github.com/shopvana/shopvana-backend/internal/checkout"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required"`
}

type checkoutResponse struct {
	Order       orderResponse `json:"order"`
	CheckoutURL string        `json:"checkout_url,omitempty"`
	TxRef       string        `json:"tx_ref,omitempty"`
}

// Checkout turns the caller's cart into a pending order and starts payment.
func Checkout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, checkoutsvc.Input{
			ShippingAddress: payload.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:       newOrderResponse(result.Order),
			CheckoutURL: result.CheckoutURL,
			TxRef:       result.TxRef,
		})
	}
}
