package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/adapter"
	"story-ai-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ RecurringUseCase = (*recurringUC)(nil)

// Locker serializes work on a shared key across instances. Acquire returns
// false without error when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

type RecurringUseCase interface {
	// UpsertFromEvent stores or refreshes the recurring profile a successful
	// callback carries. The owning user comes from the settled payment.
	UpsertFromEvent(ctx context.Context, ev *model.PaymentEvent, p *model.Payment) error
	// ChargeDue bills every active profile whose billing period has lapsed.
	// Each profile is charged under a distributed lock so overlapping worker
	// runs never double-bill. Returns the number of successful charges.
	ChargeDue(ctx context.Context, limit int) (int, error)
	// SettleInvoice records a provider-initiated renewal charge: a fresh
	// ledger row keyed to the invoice id, settled credits, and a refreshed
	// profile. Redelivery of the same invoice is a no-op.
	SettleInvoice(ctx context.Context, ev *model.PaymentEvent) error
	// RefreshExpiry carries a new period end onto the stored profile.
	RefreshExpiry(ctx context.Context, profileID string, expiresAt *time.Time) error
	// Cancel deactivates a profile; future worker runs skip it.
	Cancel(ctx context.Context, profileID string) error
}

// billingPeriod is how long a recurring payment stays valid before the
// worker charges the profile again.
const billingPeriod = 30 * 24 * time.Hour

const chargeLockTTL = 2 * time.Minute

type recurringUC struct {
	profiles   repository.RecurringProfileRepository
	payments   repository.PaymentRepository
	provider   adapter.PaymentProvider
	settlement SettlementUseCase
	catalog    model.Catalog
	locker     Locker
	log        *zerolog.Logger
}

func NewRecurringUseCase(
	profiles repository.RecurringProfileRepository,
	payments repository.PaymentRepository,
	provider adapter.PaymentProvider,
	settlement SettlementUseCase,
	catalog model.Catalog,
	locker Locker,
	logger *zerolog.Logger,
) *recurringUC {
	return &recurringUC{
		profiles:   profiles,
		payments:   payments,
		provider:   provider,
		settlement: settlement,
		catalog:    catalog,
		locker:     locker,
		log:        logger,
	}
}

func (u *recurringUC) UpsertFromEvent(ctx context.Context, ev *model.PaymentEvent, p *model.Payment) error {
	if ev.RecurringProfileID == nil || *ev.RecurringProfileID == "" {
		return nil
	}
	profile := &model.RecurringProfile{
		ProfileID:     *ev.RecurringProfileID,
		UserID:        p.UserID,
		Status:        model.RecurringStatusActive,
		ExpiresAt:     ev.RecurringExpiry,
		LastPaymentID: p.ID,
	}
	if err := u.profiles.Upsert(ctx, nil, profile); err != nil {
		return err
	}
	u.log.Info().Str("profile_id", profile.ProfileID).Str("user_id", p.UserID).
		Msg("recurring profile stored")
	return nil
}

func (u *recurringUC) ChargeDue(ctx context.Context, limit int) (int, error) {
	due, err := u.profiles.ListDueActive(ctx, nil, time.Now().Add(-billingPeriod), limit)
	if err != nil {
		return 0, err
	}

	charged := 0
	for _, profile := range due {
		if err := u.chargeOne(ctx, profile); err != nil {
			u.log.Error().Err(err).Str("profile_id", profile.ProfileID).Msg("recurring charge failed")
			continue
		}
		charged++
	}
	return charged, nil
}

func (u *recurringUC) chargeOne(ctx context.Context, profile *model.RecurringProfile) error {
	release, ok, err := u.locker.Acquire(ctx, "recurring:charge:"+profile.ProfileID, chargeLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		u.log.Debug().Str("profile_id", profile.ProfileID).Msg("charge lock held elsewhere, skipping")
		return nil
	}
	defer release()

	last, err := u.payments.FindByID(ctx, nil, profile.LastPaymentID)
	if err != nil {
		return fmt.Errorf("load last payment for profile %s: %w", profile.ProfileID, err)
	}

	orderID := ulid.Make().String()
	p, err := model.NewPayment(profile.UserID, u.provider.Name(), orderID, last.ProductType, last.Currency, last.Amount)
	if err != nil {
		return err
	}
	p.RecurringProfileID = &profile.ProfileID
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return err
	}

	product := u.catalog[last.ProductType]
	res, err := u.provider.ChargeRecurring(ctx, profile.ProfileID, orderID, p.Amount, product.Name("en"))
	if err != nil {
		if _, uerr := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusFailed, nil, nil); uerr != nil {
			u.log.Error().Err(uerr).Str("payment_id", p.ID).Msg("failed to mark recurring payment failed")
		}
		var gw *domain.GatewayError
		if errors.As(err, &gw) && gw.Code == "103" {
			// Profile unknown to the gateway; stop retrying it.
			if cerr := u.profiles.Cancel(ctx, nil, profile.ProfileID); cerr != nil {
				u.log.Error().Err(cerr).Str("profile_id", profile.ProfileID).Msg("failed to cancel dead profile")
			}
		}
		return err
	}

	var ppid *string
	if res.ProviderPaymentID != "" {
		ppid = &res.ProviderPaymentID
	}
	if res.Completed {
		changed, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusCompleted, ppid, res.Raw)
		if err != nil {
			return err
		}
		if changed {
			if err := u.settlement.ApplyCreditsIfNeeded(ctx, p.ID); err != nil {
				return err
			}
		}
	}
	// Not completed synchronously: the result callback settles it later.

	profile.LastPaymentID = p.ID
	if err := u.profiles.Upsert(ctx, nil, profile); err != nil {
		return err
	}
	u.log.Info().Str("profile_id", profile.ProfileID).Str("payment_id", p.ID).
		Bool("completed", res.Completed).Msg("recurring charge placed")
	return nil
}

func (u *recurringUC) SettleInvoice(ctx context.Context, ev *model.PaymentEvent) error {
	profile, err := u.profiles.FindByProfileID(ctx, nil, *ev.RecurringProfileID)
	if err != nil {
		return fmt.Errorf("profile %s for renewal invoice: %w", *ev.RecurringProfileID, err)
	}

	last, err := u.payments.FindByID(ctx, nil, profile.LastPaymentID)
	if err != nil {
		return fmt.Errorf("load last payment for profile %s: %w", profile.ProfileID, err)
	}

	// The invoice id doubles as the order id so a redelivered webhook hits
	// the unique constraint instead of minting credits twice.
	orderID := ""
	if ev.ProviderPaymentID != nil {
		orderID = *ev.ProviderPaymentID
	}
	if orderID == "" {
		orderID = ulid.Make().String()
	}

	amount := last.Amount
	if ev.Amount != nil && *ev.Amount > 0 {
		amount = *ev.Amount
	}
	currency := last.Currency
	if ev.Currency != "" {
		currency = ev.Currency
	}

	p, err := model.NewPayment(profile.UserID, ev.Provider, orderID, last.ProductType, currency, amount)
	if err != nil {
		return err
	}
	p.RecurringProfileID = &profile.ProfileID
	if err := u.payments.Save(ctx, nil, p); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			u.log.Debug().Str("order_id", orderID).Msg("renewal invoice already recorded")
			return nil
		}
		return err
	}

	if _, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusCompleted, ev.ProviderPaymentID, ev.Raw); err != nil {
		return err
	}
	if err := u.settlement.ApplyCreditsIfNeeded(ctx, p.ID); err != nil {
		return err
	}

	profile.LastPaymentID = p.ID
	if ev.RecurringExpiry != nil {
		profile.ExpiresAt = ev.RecurringExpiry
	}
	if err := u.profiles.Upsert(ctx, nil, profile); err != nil {
		return err
	}
	u.log.Info().Str("profile_id", profile.ProfileID).Str("payment_id", p.ID).
		Int64("amount", amount).Msg("renewal invoice settled")
	return nil
}

func (u *recurringUC) RefreshExpiry(ctx context.Context, profileID string, expiresAt *time.Time) error {
	if expiresAt == nil {
		return nil
	}
	profile, err := u.profiles.FindByProfileID(ctx, nil, profileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Debug().Str("profile_id", profileID).Msg("expiry refresh for unknown profile, ignored")
			return nil
		}
		return err
	}
	profile.ExpiresAt = expiresAt
	return u.profiles.Upsert(ctx, nil, profile)
}

func (u *recurringUC) Cancel(ctx context.Context, profileID string) error {
	return u.profiles.Cancel(ctx, nil, profileID)
}
