package repository

import (
	"context"
	"time"

	"story-ai-billing/internal/domain/model"
)

type RecurringProfileRepository interface {
	// Upsert inserts or refreshes the profile keyed by profile id.
	Upsert(ctx context.Context, tx Tx, p *model.RecurringProfile) error
	FindByProfileID(ctx context.Context, tx Tx, profileID string) (*model.RecurringProfile, error)
	// ListDueActive returns active, non-expired profiles whose last payment is
	// older than `dueBefore`; consumed by the recurring charge worker.
	ListDueActive(ctx context.Context, tx Tx, dueBefore time.Time, limit int) ([]*model.RecurringProfile, error)
	Cancel(ctx context.Context, tx Tx, profileID string) error
}
