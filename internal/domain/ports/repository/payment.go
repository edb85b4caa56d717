package repository

import (
	"context"
	"time"

	"story-ai-billing/internal/domain/model"
)

// PaymentRepository owns the payment ledger rows. (provider, order_id) is
// unique; Save of a duplicate pair returns domain.ErrAlreadyExists so callers
// can lose a creation race gracefully.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, tx Tx, provider, orderID string) (*model.Payment, error)
	FindByProviderPaymentID(ctx context.Context, tx Tx, provider, providerPaymentID string) (*model.Payment, error)
	// FindPendingByUserProduct returns the newest pending payment for the
	// user/product created after `since` that already carries a redirect URL.
	// Backs the initiation dedup window.
	FindPendingByUserProduct(ctx context.Context, tx Tx, userID, productType string, since time.Time) (*model.Payment, error)
	// UpdateStatusIfPending atomically moves a pending payment to `status` and
	// records the provider payment id and raw payload. Returns false when the
	// row was already terminal; the caller must treat that as an idempotent ack.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, providerPaymentID *string, rawPayload map[string]string) (bool, error)
	// SetCreditsAdded records the settled credit value; only ever called inside
	// the settlement transaction, after the credits_added == 0 check.
	SetCreditsAdded(ctx context.Context, tx Tx, id string, credits int64) error
	SetRedirectURL(ctx context.Context, tx Tx, id string, redirectURL string, providerPaymentID *string, rawPayload map[string]string) error
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
