package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/repository"
	"story-ai-billing/internal/infra/metrics"
)

const reconcileBatchSize = 200

// PaymentReconciler periodically expires stale pending payments. A pending
// row whose gateway never delivered a result callback would otherwise block
// the initiation dedup window forever. The CAS update keeps this safe against
// a result callback racing the sweep.
type PaymentReconciler struct {
	payments   repository.PaymentRepository
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewPaymentReconciler(payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	wLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		payments:   payments,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &wLog,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, reconcileBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale pending payments failed")
		return
	}

	expired := 0
	for _, p := range pending {
		updated, err := w.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusFailed, nil, map[string]string{"reason": "expired"})
		if err != nil {
			w.log.Error().Err(err).Str("payment_id", p.ID).Msg("expire pending payment failed")
			continue
		}
		if updated {
			expired++
			w.log.Info().Str("payment_id", p.ID).Str("order_id", p.OrderID).Msg("stale pending payment expired")
		}
	}
	if expired > 0 {
		metrics.AddReconciled(expired)
	}
}
