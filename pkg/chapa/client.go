package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/shopvana/shopvana-backend/pkg/config"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"

	maxVerifyAttempts = 3
)

var (
	errSecretKeyRequired = errors.New("chapa secret key is required")
	errBaseURLRequired   = errors.New("chapa base url is required")
)

// Client wraps the Chapa REST API with centralized auth, logging, retries
// and error mapping.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	secretKey   string
	callbackURL string
	returnURL   string
	logger      *logger.Logger
}

// InitializeParams is the input for starting a hosted checkout session.
type InitializeParams struct {
	Amount      decimal.Decimal
	Currency    string
	Email       string
	FirstName   string
	LastName    string
	TxRef       string
	CallbackURL string
	ReturnURL   string
}

// InitializeResult carries the hosted checkout URL returned by Chapa.
// CheckoutRequestID is set when the gateway initiates a mobile-money push;
// it is the key the asynchronous stkCallback is correlated by.
type InitializeResult struct {
	CheckoutURL       string
	CheckoutRequestID string
}

// VerifyResult is the settled view of one transaction.
type VerifyResult struct {
	TxRef     string
	Status    string
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

// Succeeded reports whether the gateway settled the transaction.
func (v VerifyResult) Succeeded() bool {
	return v.Status == statusSuccess
}

// Failed reports whether the gateway rejected the transaction.
func (v VerifyResult) Failed() bool {
	return v.Status == statusFailed
}

// NewClient initializes the Chapa wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.ChapaConfig, logg *logger.Logger) (*Client, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		secretKey:   secret,
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		returnURL:   strings.TrimSpace(cfg.ReturnURL),
		logger:      logg,
	}

	if logg != nil {
		logg.Info(ctx, "chapa client initialized")
	}
	return c, nil
}

type initializeRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	TxRef       string `json:"tx_ref"`
	CallbackURL string `json:"callback_url,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
}

type initializeResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		CheckoutURL       string `json:"checkout_url"`
		CheckoutRequestID string `json:"checkout_request_id"`
	} `json:"data"`
}

type verifyResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		Status    string          `json:"status"`
		Reference string          `json:"reference"`
		TxRef     string          `json:"tx_ref"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
	} `json:"data"`
}

// Initialize starts a hosted checkout session for the given transaction
// reference. The returned URL is where the buyer completes payment.
func (c *Client) Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	if strings.TrimSpace(params.TxRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx_ref is required")
	}
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	callback := params.CallbackURL
	if callback == "" {
		callback = c.callbackURL
	}
	ret := params.ReturnURL
	if ret == "" {
		ret = c.returnURL
	}

	body := initializeRequest{
		Amount:      params.Amount.StringFixed(2),
		Currency:    params.Currency,
		Email:       params.Email,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		TxRef:       params.TxRef,
		CallbackURL: callback,
		ReturnURL:   ret,
	}

	c.log(ctx, "request", "initialize", map[string]any{"tx_ref": params.TxRef, "amount": body.Amount})

	var parsed initializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &parsed); err != nil {
		c.log(ctx, "error", "initialize", map[string]any{"tx_ref": params.TxRef, "error": err.Error()})
		return nil, err
	}
	if parsed.Status != statusSuccess || parsed.Data.CheckoutURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("chapa initialize rejected: %s", parsed.Message))
	}

	c.log(ctx, "response", "initialize", map[string]any{"tx_ref": params.TxRef})
	return &InitializeResult{
		CheckoutURL:       parsed.Data.CheckoutURL,
		CheckoutRequestID: parsed.Data.CheckoutRequestID,
	}, nil
}

// Verify fetches the authoritative state of a transaction. Transient
// gateway failures are retried with exponential backoff; the gateway's
// answer for the transaction itself is never retried.
func (c *Client) Verify(ctx context.Context, txRef string) (*VerifyResult, error) {
	if strings.TrimSpace(txRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx_ref is required")
	}

	c.log(ctx, "request", "verify", map[string]any{"tx_ref": txRef})

	var parsed verifyResponse
	backoff := retry.WithMaxRetries(maxVerifyAttempts-1, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, "/transaction/verify/"+txRef, nil, &parsed)
		if pkgerrors.IsCode(err, pkgerrors.CodeGatewayUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		c.log(ctx, "error", "verify", map[string]any{"tx_ref": txRef, "error": err.Error()})
		return nil, err
	}

	result := &VerifyResult{
		TxRef:     parsed.Data.TxRef,
		Status:    parsed.Data.Status,
		Reference: parsed.Data.Reference,
		Amount:    parsed.Data.Amount,
		Currency:  parsed.Data.Currency,
	}
	if result.TxRef == "" {
		result.TxRef = txRef
	}

	c.log(ctx, "response", "verify", map[string]any{"tx_ref": txRef, "status": result.Status})
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode chapa request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build chapa request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "chapa request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "read chapa response")
	}

	switch {
	case resp.StatusCode >= 500:
		return pkgerrors.New(pkgerrors.CodeGatewayUnavailable, fmt.Sprintf("chapa returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeDependency, "chapa rejected credentials")
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "chapa transaction not found")
	case resp.StatusCode >= 400:
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("chapa returned %d: %s", resp.StatusCode, truncate(raw, 200)))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode chapa response")
		}
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{"operation": op, "phase": phase}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("chapa %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("chapa %s", phase))
	}
}

func truncate(raw []byte, n int) string {
	s := string(raw)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
