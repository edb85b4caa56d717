package usecase

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ SettlementUseCase = (*settlementUC)(nil)

type SettlementUseCase interface {
	// ApplyCreditsIfNeeded credits the user for a completed payment exactly
	// once. The payment row is re-read under a row lock inside a transaction;
	// a payment with credits_added > 0 is a no-op, so concurrent callbacks and
	// reconciler retries cannot double-credit.
	ApplyCreditsIfNeeded(ctx context.Context, paymentID string) error
}

type settlementUC struct {
	tm       repository.TransactionManager
	payments repository.PaymentRepository
	users    repository.UserRepository
	catalog  model.Catalog
	notifier notifierFunc
	log      *zerolog.Logger
}

// notifierFunc decouples settlement from the concrete notifier; nil means no
// notifications.
type notifierFunc func(ctx context.Context, p *model.Payment)

func NewSettlementUseCase(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	catalog model.Catalog,
	onSettled notifierFunc,
	logger *zerolog.Logger,
) *settlementUC {
	return &settlementUC{
		tm:       tm,
		payments: payments,
		users:    users,
		catalog:  catalog,
		notifier: onSettled,
		log:      logger,
	}
}

func (u *settlementUC) ApplyCreditsIfNeeded(ctx context.Context, paymentID string) error {
	var settled *model.Payment

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != model.PaymentStatusCompleted {
			return nil
		}
		if p.CreditsAdded > 0 {
			u.log.Debug().Str("payment_id", p.ID).Msg("credits already applied, skipping")
			return nil
		}
		if p.UserID == "" {
			u.log.Warn().Str("payment_id", p.ID).Str("order_id", p.OrderID).
				Msg("completed payment has no user, credits withheld")
			return nil
		}

		credits := u.catalog.CreditsFor(p.ProductType)
		if credits <= 0 {
			u.log.Warn().Str("payment_id", p.ID).Str("product", p.ProductType).
				Msg("no credit mapping for product, credits withheld")
			return nil
		}

		if err := u.users.IncrementCredits(ctx, tx, p.UserID, credits); err != nil {
			return err
		}
		if err := u.payments.SetCreditsAdded(ctx, tx, p.ID, credits); err != nil {
			return err
		}

		p.CreditsAdded = credits
		settled = p
		u.log.Info().Str("payment_id", p.ID).Str("user_id", p.UserID).
			Int64("credits", credits).Msg("credits applied")
		return nil
	})
	if err != nil {
		return err
	}

	if settled != nil && u.notifier != nil {
		u.notifier(ctx, settled)
	}
	return nil
}
