package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/infra/gateway/freedompay"
	"story-ai-billing/internal/infra/gateway/stripe"
)

// Compile-time check
var _ CallbackUseCase = (*callbackUC)(nil)

// CallbackAnswer is what goes back to the gateway, rendered as a signed XML
// body by the transport layer. Status is always one of ok/rejected/error.
type CallbackAnswer struct {
	Status      string
	Description string
	// SignatureFailure marks an unverifiable request so the transport can
	// count it without matching on the description text.
	SignatureFailure bool
}

const (
	AnswerOK       = "ok"
	AnswerRejected = "rejected"
	AnswerError    = "error"
)

// amountTolerance is the check-phase mismatch allowance: one major unit in
// minor units, absorbing provider-side rounding of converted amounts.
const amountTolerance int64 = 100

type CallbackUseCase interface {
	// HandleCheck answers the gateway's pre-authorization request. It never
	// mutates state: it only tells the gateway whether charging may proceed.
	HandleCheck(ctx context.Context, scriptName string, params map[string]string) CallbackAnswer
	// HandleResult processes the authoritative payment outcome: verify,
	// normalize, apply to the ledger, settle credits, store the recurring
	// profile. Redelivery of an already-applied result is acknowledged "ok"
	// without side effects.
	HandleResult(ctx context.Context, scriptName string, params map[string]string) CallbackAnswer
	// HandleStripeEvent runs the webhook pipeline for the card provider.
	HandleStripeEvent(ctx context.Context, payload []byte, sigHeader string) error
}

type callbackUC struct {
	secret        string // freedompay signing key
	webhookSecret string
	ledger        LedgerUseCase
	settlement    SettlementUseCase
	recurring     RecurringUseCase
	log           *zerolog.Logger
}

func NewCallbackUseCase(
	freedompaySecret, stripeWebhookSecret string,
	ledger LedgerUseCase,
	settlement SettlementUseCase,
	recurring RecurringUseCase,
	logger *zerolog.Logger,
) *callbackUC {
	return &callbackUC{
		secret:        freedompaySecret,
		webhookSecret: stripeWebhookSecret,
		ledger:        ledger,
		settlement:    settlement,
		recurring:     recurring,
		log:           logger,
	}
}

func (u *callbackUC) HandleCheck(ctx context.Context, scriptName string, params map[string]string) CallbackAnswer {
	if !freedompay.Verify(scriptName, params, u.secret) {
		u.log.Warn().Str("order_id", params["pg_order_id"]).Msg("check callback signature invalid")
		// "error" makes the gateway retry; "rejected" would cancel the payment.
		return CallbackAnswer{Status: AnswerError, Description: "invalid signature", SignatureFailure: true}
	}

	ev := freedompay.Normalize(params)
	p, err := u.findForCheck(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Order initiated elsewhere (another instance, a replay after data
			// loss). Charging is allowed; the result phase records the row.
			u.log.Warn().Str("order_id", ev.OrderID).Msg("check for unknown order, accepting")
			return CallbackAnswer{Status: AnswerOK, Description: "order accepted"}
		}
		u.log.Error().Err(err).Str("order_id", ev.OrderID).Msg("check lookup failed")
		return CallbackAnswer{Status: AnswerError, Description: "internal error"}
	}

	switch p.Status {
	case model.PaymentStatusCompleted:
		return CallbackAnswer{Status: AnswerRejected, Description: "order already paid"}
	case model.PaymentStatusFailed:
		// A failed initiation may be retried by the payer.
		return CallbackAnswer{Status: AnswerOK, Description: "retry accepted"}
	}

	if ev.Amount != nil && diff(*ev.Amount, p.Amount) > amountTolerance {
		u.log.Warn().Str("order_id", ev.OrderID).
			Int64("expected", p.Amount).Int64("got", *ev.Amount).
			Msg("check amount mismatch")
		return CallbackAnswer{
			Status:      AnswerRejected,
			Description: fmt.Sprintf("amount mismatch: expected %d", p.Amount/100),
		}
	}
	return CallbackAnswer{Status: AnswerOK, Description: "payment allowed"}
}

func (u *callbackUC) HandleResult(ctx context.Context, scriptName string, params map[string]string) CallbackAnswer {
	if !freedompay.Verify(scriptName, params, u.secret) {
		u.log.Warn().Str("order_id", params["pg_order_id"]).Msg("result callback signature invalid")
		return CallbackAnswer{Status: AnswerError, Description: "invalid signature", SignatureFailure: true}
	}

	ev := freedompay.Normalize(params)
	if err := u.applyEvent(ctx, ev); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("order_id", ev.OrderID).Msg("result for unknown unattributable order")
			return CallbackAnswer{Status: AnswerError, Description: "payment not found"}
		}
		u.log.Error().Err(err).Str("order_id", ev.OrderID).Msg("result processing failed")
		return CallbackAnswer{Status: AnswerError, Description: "internal error"}
	}
	return CallbackAnswer{Status: AnswerOK, Description: "status accepted"}
}

func (u *callbackUC) HandleStripeEvent(ctx context.Context, payload []byte, sigHeader string) error {
	if err := stripe.VerifyWebhook(payload, sigHeader, u.webhookSecret, stripe.DefaultTolerance, time.Now()); err != nil {
		return err
	}
	raw, err := stripe.ParseEvent(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	ev := stripe.Normalize(raw)
	if ev == nil {
		u.log.Debug().Str("event_type", raw.Type).Msg("webhook event outside billing flow, acknowledged")
		return nil
	}

	// Subscription invoices renew billing periods; lifecycle events without
	// an order act on the profile directly.
	if raw.Type == "invoice.payment_succeeded" && ev.RecurringProfileID != nil {
		return u.applyInvoiceEvent(ctx, ev)
	}
	if ev.OrderID == "" && ev.RecurringProfileID != nil {
		return u.applyProfileEvent(ctx, ev)
	}
	return u.applyEvent(ctx, ev)
}

// applyEvent is the shared pipeline behind both providers' terminal
// callbacks: resolve the ledger row, CAS its status, then run the
// completed-path side effects at most once.
func (u *callbackUC) applyEvent(ctx context.Context, ev *model.PaymentEvent) error {
	p, err := u.ledger.FindOrCreateFromEvent(ctx, ev)
	if err != nil {
		return err
	}

	changed, err := u.ledger.ApplyEvent(ctx, p, ev)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if ev.Status != model.PaymentStatusCompleted {
		return nil
	}

	if err := u.settlement.ApplyCreditsIfNeeded(ctx, p.ID); err != nil {
		return err
	}
	return u.recurring.UpsertFromEvent(ctx, ev, p)
}

// applyInvoiceEvent settles subscription invoices. The invoice's line
// metadata points at the original checkout order: while that order is still
// open the invoice finalizes it, afterwards each invoice is a renewal that
// mints a fresh ledger row for its billing period.
func (u *callbackUC) applyInvoiceEvent(ctx context.Context, ev *model.PaymentEvent) error {
	if p, err := u.ledger.FindFromEvent(ctx, ev); err == nil {
		if !p.Status.Terminal() {
			return u.applyEvent(ctx, ev)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if ev.Raw["billing_reason"] == "subscription_create" {
		// Initial invoice; the checkout session settled this order already.
		return nil
	}
	return u.recurring.SettleInvoice(ctx, ev)
}

func (u *callbackUC) applyProfileEvent(ctx context.Context, ev *model.PaymentEvent) error {
	switch ev.Status {
	case model.PaymentStatusFailed:
		u.log.Info().Str("profile_id", *ev.RecurringProfileID).Msg("provider canceled recurring profile")
		return u.recurring.Cancel(ctx, *ev.RecurringProfileID)
	case model.PaymentStatusPending:
		// Subscription refreshed; carry the new period end onto the profile.
		return u.recurring.RefreshExpiry(ctx, *ev.RecurringProfileID, ev.RecurringExpiry)
	}
	return nil
}

func (u *callbackUC) findForCheck(ctx context.Context, ev *model.PaymentEvent) (*model.Payment, error) {
	if ev.OrderID == "" {
		return nil, domain.ErrNotFound
	}
	return u.ledger.FindFromEvent(ctx, ev)
}

func diff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
