package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutMetadata travels to the payment provider and comes back on the
// return redirect, binding the checkout to the file and session it was
// started for.
type CheckoutMetadata struct {
	FileName  string `json:"fileName"`
	FileSize  int64  `json:"fileSize"`
	SessionID string `json:"sessionId"`
	ReturnURL string `json:"returnUrl"`
}

type CheckoutRequest struct {
	Amount      decimal.Decimal  `json:"amount"`
	Description string           `json:"description"`
	Metadata    CheckoutMetadata `json:"metadata"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	Error       string `json:"error,omitempty"`
}

// Client creates checkout sessions with the external payment provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateCheckoutSession starts a checkout and returns the URL the browser
// must be redirected to. Callers persist their pre-redirect bookkeeping
// before calling this, since the browser context may be torn down by the
// redirect.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.Metadata.SessionID == "" {
		return "", errors.New("checkout requires a session id")
	}
	if !req.Amount.IsPositive() {
		return "", errors.New("checkout amount must be positive")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode checkout request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/checkout-sessions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("payment provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	var parsed checkoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("malformed payment provider response: %w", err)
	}

	if parsed.Error != "" {
		return "", fmt.Errorf("payment provider rejected checkout: %s", parsed.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}
	if parsed.CheckoutURL == "" {
		return "", errors.New("payment provider response missing checkout url")
	}

	return parsed.CheckoutURL, nil
}
