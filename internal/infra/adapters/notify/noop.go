package notify

import (
	"context"

	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

type NoopNotifier struct{}

func (NoopNotifier) PaymentCompleted(context.Context, *model.Payment) {}

func (NoopNotifier) PaymentFailed(context.Context, *model.Payment, string) {}
