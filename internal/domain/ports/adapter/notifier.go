package adapter

import (
	"context"

	"story-ai-billing/internal/domain/model"
)

// Notifier pushes payment lifecycle events to an ops channel. Failures are
// logged and swallowed; notification must never affect settlement.
type Notifier interface {
	PaymentCompleted(ctx context.Context, p *model.Payment)
	PaymentFailed(ctx context.Context, p *model.Payment, reason string)
}
