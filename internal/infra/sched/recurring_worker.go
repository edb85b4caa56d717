package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"story-ai-billing/internal/infra/metrics"
	"story-ai-billing/internal/usecase"
)

const recurringBatchSize = 100

// RecurringWorker periodically bills due recurring profiles via the use case.
type RecurringWorker struct {
	interval    time.Duration
	recurringUC usecase.RecurringUseCase
	log         *zerolog.Logger
}

func NewRecurringWorker(interval time.Duration, recurringUC usecase.RecurringUseCase, logger *zerolog.Logger) *RecurringWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	wLog := logger.With().Str("component", "RecurringWorker").Logger()
	return &RecurringWorker{
		interval:    interval,
		recurringUC: recurringUC,
		log:         &wLog,
	}
}

func (w *RecurringWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting recurring billing worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping recurring billing worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.recurringUC.ChargeDue(ctx, recurringBatchSize)
			if err != nil {
				metrics.IncRecurringCharge("error")
				w.log.Error().Err(err).Msg("recurring billing pass failed")
			}
			if n > 0 {
				metrics.AddRecurringCharges("charged", n)
				w.log.Info().Int("count", n).Msg("recurring profiles billed")
			}
		}
	}
}
