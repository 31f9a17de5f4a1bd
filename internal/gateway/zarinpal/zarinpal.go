// Package zarinpal adapts the Zarinpal REST v4 payment gateway to the
// payment.Gateway contract.
package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/stylino/fulfillment-core/internal/domain/payment"
)

const (
	requestPath = "/pg/v4/payment/request.json"
	verifyPath  = "/pg/v4/payment/verify.json"

	// codeOK and codeVerifiedBefore are the gateway codes Zarinpal treats as
	// a successful verification.
	codeOK             = 100
	codeVerifiedBefore = 101
)

// GatewayError is returned for any controlled gateway failure. Code carries
// the provider status code, or 0 for transport-level failures.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("zarinpal: %s (code %d)", e.Message, e.Code)
	}
	return "zarinpal: " + e.Message
}

// Config holds the gateway credentials and endpoints.
type Config struct {
	MerchantID  string
	CallbackURL string
	Sandbox     bool
	Timeout     time.Duration
}

// Client implements payment.Gateway against Zarinpal REST v4.
type Client struct {
	merchantID  string
	callbackURL string
	apiBase     string
	gatewayBase string
	http        *http.Client
}

var _ payment.Gateway = (*Client)(nil)

// New creates a Client. The sandbox flag switches both the API host and the
// StartPay host.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	apiHost, gatewayHost := "api", "www"
	if cfg.Sandbox {
		apiHost, gatewayHost = "sandbox", "sandbox"
	}
	return &Client{
		merchantID:  cfg.MerchantID,
		callbackURL: cfg.CallbackURL,
		apiBase:     fmt.Sprintf("https://%s.zarinpal.com", apiHost),
		gatewayBase: fmt.Sprintf("https://%s.zarinpal.com", gatewayHost),
		http:        &http.Client{Timeout: timeout},
	}
}

// Name reports the gateway identifier recorded on orders and transactions.
func (c *Client) Name() string { return "ZARINPAL" }

type requestPayload struct {
	MerchantID  string          `json:"merchant_id"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	CallbackURL string          `json:"callback_url"`
	Currency    string          `json:"currency"`
	Metadata    *requestMetadata `json:"metadata,omitempty"`
}

type requestMetadata struct {
	Mobile string `json:"mobile,omitempty"`
	Email  string `json:"email,omitempty"`
}

type gatewayData struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Authority string          `json:"authority"`
	RefID     json.Number     `json:"ref_id"`
	CardPan   string          `json:"card_pan"`
	Fee       *decimal.Decimal `json:"fee"`
}

type gatewayResponse struct {
	Data   gatewayData     `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// Initiate creates a payment request and returns the authority plus the
// StartPay redirect URL. Amounts are toman; Zarinpal expects rial, so the
// amount is multiplied by ten on the wire.
func (c *Client) Initiate(
	ctx context.Context,
	orderID string,
	amount decimal.Decimal,
	description, email, mobile string,
) (*payment.InitiateResult, error) {
	payload := requestPayload{
		MerchantID:  c.merchantID,
		Amount:      tomanToRial(amount),
		Description: description,
		CallbackURL: c.callbackURL,
		Currency:    "IRT",
	}
	if mobile != "" || email != "" {
		payload.Metadata = &requestMetadata{Mobile: mobile, Email: email}
	}

	data, err := c.post(ctx, requestPath, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "payment request for order %s", orderID)
	}

	if data.Code != codeOK {
		return nil, &GatewayError{Code: data.Code, Message: nonEmpty(data.Message, "payment request rejected")}
	}
	if data.Authority == "" {
		return nil, &GatewayError{Code: data.Code, Message: "no authority in gateway response"}
	}

	return &payment.InitiateResult{
		Authority:  data.Authority,
		PaymentURL: c.gatewayBase + "/pg/StartPay/" + data.Authority,
	}, nil
}

// Verify checks a payment attempt after the callback. Gateway rejection codes
// produce a non-success result rather than an error; only transport and
// protocol failures error out.
func (c *Client) Verify(
	ctx context.Context,
	authority string,
	amount decimal.Decimal,
	orderID string,
) (*payment.VerifyResult, error) {
	payload := map[string]any{
		"merchant_id": c.merchantID,
		"amount":      tomanToRial(amount),
		"authority":   authority,
	}

	data, err := c.post(ctx, verifyPath, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "payment verify for order %s", orderID)
	}

	success := data.Code == codeOK || data.Code == codeVerifiedBefore
	return &payment.VerifyResult{
		Success: success,
		Code:    data.Code,
		Message: nonEmpty(data.Message, "invalid gateway response"),
		RefID:   data.RefID.String(),
		CardPan: data.CardPan,
		Fee:     data.Fee,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*gatewayData, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Message: "gateway unreachable: " + err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &GatewayError{Message: fmt.Sprintf("gateway returned HTTP %d", resp.StatusCode)}
	}

	var parsed gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &GatewayError{Message: "unreadable gateway response"}
	}
	return &parsed.Data, nil
}

func tomanToRial(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart() * 10
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
