package adapter

import "context"

// InitiateRequest is the provider-neutral purchase initiation input. Each
// provider maps it onto its own whitelisted outbound field set.
type InitiateRequest struct {
	OrderID         string
	UserID          string
	ProductType     string
	Amount          int64 // minor units
	Currency        string
	Description     string
	Language        string
	RecurringStart  bool
	RecurringMonths int
}

type InitiateResult struct {
	RedirectURL       string
	ProviderPaymentID string
	Raw               map[string]string
}

type RecurringChargeResult struct {
	ProviderPaymentID string
	Completed         bool // some gateways settle recurring charges synchronously
	Raw               map[string]string
}

// PaymentProvider is the single capability interface both gateway variants
// implement. Callback verification and normalization stay provider-specific
// (signature schemes differ) and live next to each client implementation.
type PaymentProvider interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	// ChargeRecurring performs a merchant-initiated charge against a stored
	// recurring profile. Providers without recurring support return
	// domain.ErrNotConfigured.
	ChargeRecurring(ctx context.Context, profileID, orderID string, amount int64, description string) (*RecurringChargeResult, error)
}
