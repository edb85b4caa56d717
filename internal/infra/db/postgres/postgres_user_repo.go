package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, language, credits, registered_at, last_active_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET email=$2, language=$3, last_active_at=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.Language, u.Credits, u.RegisteredAt, u.LastActiveAt)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := `SELECT id, email, language, credits, registered_at, last_active_at FROM users WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Language, &u.Credits, &u.RegisteredAt, &u.LastActiveAt); err != nil {
		return nil, scanErr(err)
	}
	return u, nil
}

func (r *userRepo) IncrementCredits(ctx context.Context, tx repository.Tx, id string, delta int64) error {
	const q = `UPDATE users SET credits = credits + $2 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DecrementCreditsIfEnough is the balance guard: a single conditional UPDATE,
// so two concurrent generations can never overdraw the account.
func (r *userRepo) DecrementCreditsIfEnough(ctx context.Context, tx repository.Tx, id string, delta int64) (bool, error) {
	const q = `UPDATE users SET credits = credits - $2 WHERE id=$1 AND credits >= $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, delta)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
