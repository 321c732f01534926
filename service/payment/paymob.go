package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrGateway wraps every failure talking to the payment gateway.
var ErrGateway = errors.New("payment gateway error")

const defaultBaseURL = "https://accept.paymob.com/api"

// paymentKeyExpirySeconds is the gateway-side lifetime of an issued payment
// key. Sessions that expire unpaid are left pending; a fresh session can be
// created for the same appointment.
const paymentKeyExpirySeconds = 3600

// PaymobClient is a thin adapter over the gateway's auth-token, create-order
// and payment-key endpoints.
type PaymobClient struct {
	BaseURL       string
	APIKey        string
	IntegrationID string
	IframeID      string
	HMACSecret    string
	HTTPClient    *http.Client
}

func NewPaymobClientFromEnv() *PaymobClient {
	baseURL := os.Getenv("PAYMOB_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &PaymobClient{
		BaseURL:       baseURL,
		APIKey:        os.Getenv("PAYMOB_API_KEY"),
		IntegrationID: os.Getenv("PAYMOB_INTEGRATION_ID"),
		IframeID:      os.Getenv("PAYMOB_IFRAME_ID"),
		HMACSecret:    os.Getenv("PAYMOB_HMAC_SECRET"),
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

// BillingData is the customer block the gateway requires on a payment key.
type BillingData struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone_number"`
}

// SplitBillingName tokenizes a full name into the first/last fields the
// gateway insists on, defaulting absent pieces to "NA".
func SplitBillingName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "NA", "NA"
	case 1:
		return parts[0], "NA"
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func (c *PaymobClient) Authenticate(ctx context.Context) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.post(ctx, "/auth/tokens", map[string]interface{}{
		"api_key": c.APIKey,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: empty auth token", ErrGateway)
	}
	return resp.Token, nil
}

// CreateOrder registers a gateway order for the amount in minor units and
// returns the gateway order id.
func (c *PaymobClient) CreateOrder(ctx context.Context, authToken string, amountCents int64, merchantOrderID, description string) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	err := c.post(ctx, "/ecommerce/orders", map[string]interface{}{
		"auth_token":        authToken,
		"delivery_needed":   false,
		"amount_cents":      amountCents,
		"currency":          currency(),
		"merchant_order_id": merchantOrderID,
		"items": []map[string]interface{}{
			{
				"name":         description,
				"amount_cents": amountCents,
				"quantity":     1,
			},
		},
	}, &resp)
	if err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("%w: order creation returned no id", ErrGateway)
	}
	return resp.ID, nil
}

// PaymentKey requests a key scoped to the order and billing data. The key
// expires after an hour on the gateway side.
func (c *PaymobClient) PaymentKey(ctx context.Context, authToken string, orderID, amountCents int64, billing BillingData) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.post(ctx, "/acceptance/payment_keys", map[string]interface{}{
		"auth_token":   authToken,
		"order_id":     orderID,
		"amount_cents": amountCents,
		"currency":     currency(),
		"expiration":   paymentKeyExpirySeconds,
		"integration_id": c.IntegrationID,
		"billing_data": map[string]interface{}{
			"first_name":   billing.FirstName,
			"last_name":    billing.LastName,
			"email":        billing.Email,
			"phone_number": billing.Phone,
			"street":       "NA",
			"building":     "NA",
			"floor":        "NA",
			"apartment":    "NA",
			"city":         "NA",
			"country":      "NA",
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: empty payment key", ErrGateway)
	}
	return resp.Token, nil
}

// IframeURL embeds the payment key into the hosted checkout iframe.
func (c *PaymobClient) IframeURL(paymentKey string) string {
	return fmt.Sprintf("%s/acceptance/iframes/%s?payment_token=%s", c.BaseURL, c.IframeID, paymentKey)
}

// Signature computes the HMAC-SHA512 hex digest of a raw webhook body.
func (c *PaymobClient) Signature(body []byte) string {
	mac := hmac.New(sha512.New, []byte(c.HMACSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a received digest against the computed one.
func (c *PaymobClient) VerifySignature(body []byte, received string) bool {
	return hmac.Equal([]byte(received), []byte(c.Signature(body)))
}

func (c *PaymobClient) post(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrGateway, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrGateway, path, err)
	}
	return nil
}

func currency() string {
	if c := os.Getenv("PAYMOB_CURRENCY"); c != "" {
		return c
	}
	return "EGP"
}
