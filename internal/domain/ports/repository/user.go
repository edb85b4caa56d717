package repository

import (
	"context"

	"story-ai-billing/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// IncrementCredits adds credits atomically; used only by settlement inside
	// the same transaction that marks the payment settled.
	IncrementCredits(ctx context.Context, tx Tx, id string, delta int64) error
	// DecrementCreditsIfEnough subtracts `delta` only when the balance covers
	// it, returning false otherwise. Single-statement compare-and-swap.
	DecrementCreditsIfEnough(ctx context.Context, tx Tx, id string, delta int64) (bool, error)
}
