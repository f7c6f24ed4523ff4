package notifications

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const emailQueue = "emails"

// EmailJob is one queued outbound email. Jobs are rendered at dispatch
// time so the worker only delivers.
type EmailJob struct {
	ToEmail    string    `json:"to_email"`
	ToName     string    `json:"to_name"`
	Subject    string    `json:"subject"`
	HTMLBody   string    `json:"html_body"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// OrderConfirmation renders the post-checkout email.
func OrderConfirmation(toEmail, toName string, orderID string, total decimal.Decimal) EmailJob {
	return EmailJob{
		ToEmail:  toEmail,
		ToName:   toName,
		Subject:  "Your Shopvana order is confirmed",
		HTMLBody: fmt.Sprintf("<p>Thanks for your order <strong>%s</strong>.</p><p>Total: %s</p>", orderID, total.StringFixed(2)),
	}
}

// PaymentLink renders the hosted-checkout link email.
func PaymentLink(toEmail, toName, checkoutURL string, total decimal.Decimal) EmailJob {
	return EmailJob{
		ToEmail:  toEmail,
		ToName:   toName,
		Subject:  "Complete your Shopvana payment",
		HTMLBody: fmt.Sprintf("<p>Pay %s to finish your order:</p><p><a href=%q>Pay now</a></p>", total.StringFixed(2), checkoutURL),
	}
}

// PaymentReceipt renders the settled-payment email.
func PaymentReceipt(toEmail, toName, txRef string, amount decimal.Decimal) EmailJob {
	return EmailJob{
		ToEmail:  toEmail,
		ToName:   toName,
		Subject:  "Shopvana payment received",
		HTMLBody: fmt.Sprintf("<p>We received your payment of %s.</p><p>Reference: %s</p>", amount.StringFixed(2), txRef),
	}
}
