package freedompay

import (
	"context"
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
	MerchantID string
	SecretKey  string
	BaseURL    string
	CheckURL   string
	ResultURL  string
	SuccessURL string
	FailureURL string
	Timeout    time.Duration
}

// Client talks to the gateway's init_payment.php and make_recurring_payment
// endpoints. Outbound parameter sets are built from a fixed whitelist per
// request type; nothing caller-supplied is forwarded verbatim, which keeps
// unexpected fields out of the signature base string.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient validates the merchant credentials up front: a missing merchant
// id or secret is a configuration error surfaced at startup, not per request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.MerchantID == "" || cfg.SecretKey == "" {
		return nil, domain.ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.freedompay.kz"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) Name() string { return "freedompay" }

// Secret exposes the signing key for callback verification and response
// signing. The key never leaves this package's signature helpers otherwise.
func (c *Client) Secret() string { return c.cfg.SecretKey }

func (c *Client) Initiate(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error) {
	params := map[string]string{
		"pg_amount":      strconv.FormatInt(req.Amount/100, 10),
		"pg_check_url":   c.cfg.CheckURL,
		"pg_currency":    req.Currency,
		"pg_description": req.Description,
		"pg_failure_url": c.cfg.FailureURL,
		"pg_language":    gatewayLanguage(req.Language),
		"pg_merchant_id": c.cfg.MerchantID,
		"pg_order_id":    req.OrderID,
		"pg_result_url":  c.cfg.ResultURL,
		"pg_salt":        RandomSalt(),
		"pg_success_url": c.cfg.SuccessURL,
	}
	if req.RecurringStart {
		params["pg_recurring_start"] = "1"
		if req.RecurringMonths > 0 {
			params["pg_recurring_lifetime"] = strconv.Itoa(req.RecurringMonths)
		}
	}
	// Custom fields round-trip through the gateway into callbacks; user_id is
	// mandatory when a recurring profile is requested.
	if req.UserID != "" {
		params["user_id"] = req.UserID
	}
	if req.ProductType != "" {
		params["product_type"] = req.ProductType
	}
	params[SigField] = Sign("init_payment.php", params, c.cfg.SecretKey)

	parsed, err := c.postForm(ctx, "init_payment.php", params)
	if err != nil {
		return nil, err
	}
	if parsed["pg_status"] != "ok" {
		return nil, c.rejectionError(parsed)
	}
	redirect := parsed["pg_redirect_url"]
	if redirect == "" {
		return nil, &domain.GatewayError{
			Provider: c.Name(),
			Code:     "0",
			Message:  "no redirect URL received from payment system",
		}
	}
	return &adapter.InitiateResult{
		RedirectURL:       redirect,
		ProviderPaymentID: parsed["pg_payment_id"],
		Raw:               parsed,
	}, nil
}

func (c *Client) ChargeRecurring(ctx context.Context, profileID, orderID string, amount int64, description string) (*adapter.RecurringChargeResult, error) {
	params := map[string]string{
		"pg_merchant_id":       c.cfg.MerchantID,
		"pg_recurring_profile": profileID,
		"pg_amount":            fmt.Sprintf("%d.%02d", amount/100, amount%100),
		"pg_currency":          "KZT",
		"pg_description":       description,
		"pg_result_url":        c.cfg.ResultURL,
		"pg_salt":              RandomSalt(),
		"pg_order_id":          orderID,
	}
	params[SigField] = Sign("make_recurring_payment", params, c.cfg.SecretKey)

	parsed, err := c.postForm(ctx, "make_recurring_payment", params)
	if err != nil {
		return nil, err
	}
	if parsed["pg_status"] != "ok" {
		return nil, c.rejectionError(parsed)
	}
	return &adapter.RecurringChargeResult{
		ProviderPaymentID: parsed["pg_payment_id"],
		Completed:         strings.EqualFold(parsed["pg_payment_status"], "success"),
		Raw:               parsed,
	}, nil
}

func (c *Client) rejectionError(parsed map[string]string) error {
	code := parsed["pg_error_code"]
	if code == "" {
		code = "0"
	}
	msg := parsed["pg_error_description"]
	if msg == "" {
		msg = ErrorDescription(code)
	}
	return &domain.GatewayError{Provider: c.Name(), Code: code, Message: msg}
}

func (c *Client) postForm(ctx context.Context, path string, params map[string]string) (map[string]string, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("freedompay %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("freedompay %s: read response: %w", path, err)
	}
	return ParseXML(string(body)), nil
}

func gatewayLanguage(lang string) string {
	switch lang {
	case "kz", "ru":
		return lang
	default:
		return "en"
	}
}
