package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/shopvana/shopvana-backend/api/responses"
	paymentsvc "github.com/shopvana/shopvana-backend/internal/payments"
	"github.com/shopvana/shopvana-backend/pkg/chapa"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

// ChapaWebhook receives the gateway's payment notification. The notification
// is only a trigger; the payment state is re-read from the gateway before
// anything is applied. Known references are always acknowledged with 200 so
// the gateway stops retrying.
func ChapaWebhook(svc *paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		notification, err := chapa.ParseCallback(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithTxRef(ctx, notification.TxRef)
		}

		ack, err := svc.HandleCallback(ctx, notification)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// The ack body is the gateway's contract, not the API envelope.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if encodeErr := json.NewEncoder(w).Encode(ack); encodeErr != nil && logg != nil {
			logg.Error(ctx, "webhook.ack_encode_failed", encodeErr)
		}
	}
}
