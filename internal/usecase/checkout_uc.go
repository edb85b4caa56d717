package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/adapter"
	"story-ai-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// pendingDedupWindow bounds how long an earlier unfinished initiation is
// reused instead of opening a second gateway session for the same purchase.
const pendingDedupWindow = 30 * time.Minute

type CheckoutUseCase interface {
	// Initiate creates a pending ledger row and opens a payment session with
	// the provider, returning the payment and the redirect URL. A pending
	// payment for the same user and product inside the dedup window is
	// returned as-is instead of creating a new one.
	Initiate(ctx context.Context, userID, productType, currency, language string) (*model.Payment, string, error)
	// Status returns the caller's payment for a given order id. Orders owned
	// by other users resolve to ErrNotFound.
	Status(ctx context.Context, userID, orderID string) (*model.Payment, error)
}

type checkoutUC struct {
	payments  repository.PaymentRepository
	catalog   model.Catalog
	providers map[string]adapter.PaymentProvider
	provider  string // default provider name
	pricing   PricingUseCase
	log       *zerolog.Logger
}

func NewCheckoutUseCase(
	payments repository.PaymentRepository,
	catalog model.Catalog,
	providers map[string]adapter.PaymentProvider,
	defaultProvider string,
	pricing PricingUseCase,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{
		payments:  payments,
		catalog:   catalog,
		providers: providers,
		provider:  defaultProvider,
		pricing:   pricing,
		log:       logger,
	}
}

func (u *checkoutUC) Initiate(ctx context.Context, userID, productType, currency, language string) (*model.Payment, string, error) {
	product, ok := u.catalog[productType]
	if !ok {
		return nil, "", domain.ErrUnknownProduct
	}
	if currency == "" {
		currency = "KZT"
	}

	providerName := u.provider
	if currency != "KZT" {
		// Non-KZT purchases route to the card provider regardless of default.
		providerName = model.ProviderStripe
	}
	provider, ok := u.providers[providerName]
	if !ok {
		return nil, "", domain.ErrNotConfigured
	}

	if existing, err := u.payments.FindPendingByUserProduct(ctx, nil, userID, productType, time.Now().Add(-pendingDedupWindow)); err == nil && existing != nil {
		u.log.Debug().Str("payment_id", existing.ID).Str("order_id", existing.OrderID).
			Msg("reusing pending payment inside dedup window")
		return existing, existing.RedirectURL, nil
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, "", err
	}

	amount := int64(product.PriceKZT) * 100
	if currency != "KZT" {
		converted, err := u.pricing.Convert(amount, currency)
		if err != nil {
			return nil, "", err
		}
		amount = converted
	}

	p, err := model.NewPayment(userID, providerName, newOrderID(), productType, currency, amount)
	if err != nil {
		return nil, "", err
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, "", err
	}

	res, err := provider.Initiate(ctx, adapter.InitiateRequest{
		OrderID:         p.OrderID,
		UserID:          userID,
		ProductType:     productType,
		Amount:          amount,
		Currency:        currency,
		Description:     product.Name(language),
		Language:        language,
		RecurringStart:  product.Subscription,
		RecurringMonths: product.RecurringMonths,
	})
	if err != nil {
		if _, uerr := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusFailed, nil, nil); uerr != nil {
			u.log.Error().Err(uerr).Str("payment_id", p.ID).Msg("failed to mark payment failed after initiation error")
		}
		return nil, "", err
	}

	var ppid *string
	if res.ProviderPaymentID != "" {
		ppid = &res.ProviderPaymentID
	}
	if err := u.payments.SetRedirectURL(ctx, nil, p.ID, res.RedirectURL, ppid, res.Raw); err != nil {
		return nil, "", err
	}
	p.RedirectURL = res.RedirectURL
	p.ProviderPaymentID = ppid

	u.log.Info().Str("payment_id", p.ID).Str("order_id", p.OrderID).
		Str("provider", providerName).Str("product", productType).
		Int64("amount", amount).Str("currency", currency).
		Msg("payment initiated")
	return p, res.RedirectURL, nil
}

func (u *checkoutUC) Status(ctx context.Context, userID, orderID string) (*model.Payment, error) {
	for name := range u.providers {
		p, err := u.payments.FindByOrderID(ctx, nil, name, orderID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.UserID != userID {
			return nil, domain.ErrNotFound
		}
		return p, nil
	}
	return nil, domain.ErrNotFound
}

// newOrderID builds a human-debuggable, time-sortable order id: unix
// milliseconds plus three random digits to break same-millisecond ties.
func newOrderID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	suffix := int64(0)
	if err == nil {
		suffix = n.Int64()
	}
	return fmt.Sprintf("%d%03d", time.Now().UnixMilli(), suffix)
}
