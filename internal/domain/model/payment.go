package model

import (
	"time"

	"github.com/google/uuid"

	"story-ai-billing/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created on initiation; awaiting provider callback
	PaymentStatusCompleted PaymentStatus = "completed" // provider reported success; terminal
	PaymentStatusFailed    PaymentStatus = "failed"    // initiation or provider failure; terminal
)

// Terminal reports whether the status may never change again.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

const (
	ProviderFreedomPay = "freedompay"
	ProviderStripe     = "stripe"
)

// Payment is the central ledger entry: one purchase attempt, one row.
// CreditsAdded moves from 0 to a positive value at most once per payment;
// that transition is the idempotency anchor for credit settlement.
type Payment struct {
	ID                 string // UUID
	UserID             string // UUID
	Provider           string // "freedompay" | "stripe"
	OrderID            string // provider order id; (provider, order_id) is unique
	ProviderPaymentID  *string
	Amount             int64 // minor units (tiyn/cents)
	Currency           string
	Status             PaymentStatus
	ProductType        string
	CreditsAdded       int64
	RedirectURL        string
	RecurringProfileID *string
	RawPayload         map[string]string // last provider payload, audit only
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewPayment builds a pending ledger entry for a freshly initiated purchase.
func NewPayment(userID, provider, orderID, productType, currency string, amount int64) (*Payment, error) {
	if userID == "" || provider == "" || orderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Provider:    provider,
		OrderID:     orderID,
		Amount:      amount,
		Currency:    currency,
		Status:      PaymentStatusPending,
		ProductType: productType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
