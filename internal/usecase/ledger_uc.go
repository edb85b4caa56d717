package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

type LedgerUseCase interface {
	// FindOrCreateFromEvent resolves the ledger row a callback event belongs
	// to: first by (provider, order id), then by provider payment id (covers
	// provider-initiated recurring charges the gateway numbered itself), and
	// finally creates a row for an order this service never initiated,
	// provided the callback names the owning user. An unknown order that no
	// user can be attributed to resolves to ErrNotFound; fabricating an
	// ownerless record would hide money nobody can be credited for.
	FindOrCreateFromEvent(ctx context.Context, ev *model.PaymentEvent) (*model.Payment, error)
	// FindFromEvent is the lookup half of FindOrCreateFromEvent; it never
	// writes, which the check phase depends on.
	FindFromEvent(ctx context.Context, ev *model.PaymentEvent) (*model.Payment, error)
	// ApplyEvent moves a pending payment to the event's terminal status.
	// Returns false when the payment was already terminal; callers must then
	// acknowledge without re-running side effects.
	ApplyEvent(ctx context.Context, p *model.Payment, ev *model.PaymentEvent) (bool, error)
}

type ledgerUC struct {
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewLedgerUseCase(payments repository.PaymentRepository, logger *zerolog.Logger) *ledgerUC {
	return &ledgerUC{payments: payments, log: logger}
}

func (u *ledgerUC) FindOrCreateFromEvent(ctx context.Context, ev *model.PaymentEvent) (*model.Payment, error) {
	p, err := u.FindFromEvent(ctx, ev)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if ev.OrderID == "" {
		return nil, domain.ErrNotFound
	}
	if ev.Raw["user_id"] == "" {
		u.log.Warn().Str("provider", ev.Provider).Str("order_id", ev.OrderID).
			Msg("callback for unknown order carries no user, refusing to create a row")
		return nil, domain.ErrNotFound
	}
	return u.createUnknown(ctx, ev)
}

func (u *ledgerUC) FindFromEvent(ctx context.Context, ev *model.PaymentEvent) (*model.Payment, error) {
	if ev.OrderID != "" {
		p, err := u.payments.FindByOrderID(ctx, nil, ev.Provider, ev.OrderID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if ev.ProviderPaymentID != nil {
		p, err := u.payments.FindByProviderPaymentID(ctx, nil, ev.Provider, *ev.ProviderPaymentID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrNotFound
}

// createUnknown records a payment for an order we have no initiation row for.
// The user id comes from the callback's custom fields; the caller has already
// verified it is present.
func (u *ledgerUC) createUnknown(ctx context.Context, ev *model.PaymentEvent) (*model.Payment, error) {
	u.log.Warn().Str("provider", ev.Provider).Str("order_id", ev.OrderID).
		Msg("callback for unknown order, creating ledger row")

	var amount int64
	if ev.Amount != nil {
		amount = *ev.Amount
	}
	now := time.Now()
	p := &model.Payment{
		ID:          uuid.NewString(),
		UserID:      ev.Raw["user_id"],
		Provider:    ev.Provider,
		OrderID:     ev.OrderID,
		Amount:      amount,
		Currency:    ev.Currency,
		Status:      model.PaymentStatusPending,
		ProductType: ev.Raw["product_type"],
		RawPayload:  ev.Raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := u.payments.Save(ctx, nil, p); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a creation race against a concurrent callback delivery.
			return u.payments.FindByOrderID(ctx, nil, ev.Provider, ev.OrderID)
		}
		return nil, err
	}
	return p, nil
}

func (u *ledgerUC) ApplyEvent(ctx context.Context, p *model.Payment, ev *model.PaymentEvent) (bool, error) {
	if !ev.Status.Terminal() {
		return false, nil
	}
	if p.Status.Terminal() {
		return false, nil
	}
	changed, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, ev.Status, ev.ProviderPaymentID, ev.Raw)
	if err != nil {
		return false, err
	}
	if changed {
		p.Status = ev.Status
		p.ProviderPaymentID = ev.ProviderPaymentID
		u.log.Info().Str("payment_id", p.ID).Str("order_id", p.OrderID).
			Str("status", string(ev.Status)).Msg("payment status applied")
	} else {
		u.log.Debug().Str("payment_id", p.ID).Msg("payment already terminal, event ignored")
	}
	return changed, nil
}
