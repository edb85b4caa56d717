package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*Client)(nil)

type Config struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

// Client creates hosted checkout sessions over the provider's form-encoded
// REST API. Webhook handling lives in signature.go / normalize.go; the client
// only opens sessions.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) Name() string { return "stripe" }

func (c *Client) WebhookSecret() string { return c.cfg.WebhookSecret }

func (c *Client) Initiate(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	if req.RecurringStart {
		form.Set("mode", "subscription")
		form.Set("line_items[0][price_data][recurring][interval]", "month")
	}
	form.Set("success_url", c.cfg.SuccessURL)
	form.Set("cancel_url", c.cfg.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	// Metadata rides through the webhook and re-keys the event to the ledger
	// row when the session completes.
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("metadata[user_id]", req.UserID)
	form.Set("metadata[product_type]", req.ProductType)
	if req.RecurringStart {
		form.Set("subscription_data[metadata][order_id]", req.OrderID)
		form.Set("subscription_data[metadata][user_id]", req.UserID)
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, &domain.GatewayError{
			Provider: c.Name(),
			Code:     "missing_url",
			Message:  "checkout session created without a redirect URL",
		}
	}
	return &adapter.InitiateResult{
		RedirectURL:       session.URL,
		ProviderPaymentID: session.ID,
		Raw:               map[string]string{"session_id": session.ID},
	}, nil
}

// ChargeRecurring is not merchant-initiated on this provider; the gateway
// bills subscriptions itself and reports via invoice.payment_succeeded.
func (c *Client) ChargeRecurring(ctx context.Context, profileID, orderID string, amount int64, description string) (*adapter.RecurringChargeResult, error) {
	return nil, domain.ErrNotConfigured
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.cfg.BaseURL, "/")+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("stripe %s: read response: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error.Message == "" {
			apiErr.Error.Message = http.StatusText(resp.StatusCode)
		}
		return &domain.GatewayError{Provider: c.Name(), Code: apiErr.Error.Code, Message: apiErr.Error.Message}
	}
	return json.Unmarshal(body, out)
}
