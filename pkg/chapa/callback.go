package chapa

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
)

// CallbackNotification is the normalized view of a gateway callback.
// Chapa posts JSON and also appends query parameters to the callback URL;
// mobile-money pushes arrive as a nested stkCallback envelope keyed by
// CheckoutRequestID instead of a tx_ref. All shapes resolve to at least one
// correlation key plus a status hint. The status hint is advisory only,
// reconciliation always re-verifies.
type CallbackNotification struct {
	TxRef             string
	CheckoutRequestID string
	Reference         string
	Status            string
}

type callbackBody struct {
	TxRef     string `json:"tx_ref"`
	TrxRef    string `json:"trx_ref"`
	RefID     string `json:"ref_id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`

	Body struct {
		STKCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback extracts the notification from an incoming callback
// request, accepting the query parameter, flat JSON, and nested
// stkCallback shapes.
func ParseCallback(r *http.Request) (*CallbackNotification, error) {
	note := &CallbackNotification{
		TxRef:     firstNonEmpty(r.URL.Query().Get("trx_ref"), r.URL.Query().Get("tx_ref")),
		Reference: r.URL.Query().Get("ref_id"),
		Status:    r.URL.Query().Get("status"),
	}

	if r.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read callback body")
		}
		if len(raw) > 0 {
			var body callbackBody
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode callback body")
			}
			note.TxRef = firstNonEmpty(note.TxRef, body.TxRef, body.TrxRef)
			note.Reference = firstNonEmpty(note.Reference, body.RefID, body.Reference)
			note.Status = firstNonEmpty(note.Status, body.Status)

			if stk := body.Body.STKCallback; stk.CheckoutRequestID != "" {
				note.CheckoutRequestID = stk.CheckoutRequestID
				if note.Status == "" {
					if stk.ResultCode == 0 {
						note.Status = "success"
					} else {
						note.Status = "failed"
					}
				}
				for _, item := range stk.CallbackMetadata.Item {
					if item.Name == "MpesaReceiptNumber" {
						if receipt, ok := item.Value.(string); ok {
							note.Reference = firstNonEmpty(note.Reference, receipt)
						}
					}
				}
			}
		}
	}

	if strings.TrimSpace(note.TxRef) == "" && strings.TrimSpace(note.CheckoutRequestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback missing transaction reference")
	}
	return note, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
