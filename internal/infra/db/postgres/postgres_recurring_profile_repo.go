package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/repository"
)

var _ repository.RecurringProfileRepository = (*recurringProfileRepo)(nil)

type recurringProfileRepo struct{ pool *pgxpool.Pool }

func NewRecurringProfileRepo(pool *pgxpool.Pool) *recurringProfileRepo {
	return &recurringProfileRepo{pool: pool}
}

const profileColumns = `profile_id, user_id, status, expires_at, last_payment_id, created_at, updated_at`

func (r *recurringProfileRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.RecurringProfile) error {
	const q = `
INSERT INTO recurring_profiles (profile_id, user_id, status, expires_at, last_payment_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
ON CONFLICT (profile_id) DO UPDATE SET
  status=$3, expires_at=COALESCE($4, recurring_profiles.expires_at), last_payment_id=$5, updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, p.ProfileID, p.UserID, p.Status, p.ExpiresAt, p.LastPaymentID)
	return err
}

func (r *recurringProfileRepo) FindByProfileID(ctx context.Context, tx repository.Tx, profileID string) (*model.RecurringProfile, error) {
	q := `SELECT ` + profileColumns + ` FROM recurring_profiles WHERE profile_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, profileID)
	if err != nil {
		return nil, err
	}
	return scanProfile(row)
}

func (r *recurringProfileRepo) ListDueActive(ctx context.Context, tx repository.Tx, dueBefore time.Time, limit int) ([]*model.RecurringProfile, error) {
	if limit <= 0 {
		limit = 50
	}
	// Due means the last charge is old enough; expired profiles are excluded
	// outright so the worker never bills past the gateway-side expiry.
	const q = `
SELECT ` + profileColumns + ` FROM recurring_profiles rp
WHERE rp.status='active'
  AND (rp.expires_at IS NULL OR rp.expires_at > NOW())
  AND EXISTS (
    SELECT 1 FROM payments p WHERE p.id = rp.last_payment_id AND p.created_at < $1
  )
ORDER BY rp.updated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, dueBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RecurringProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *recurringProfileRepo) Cancel(ctx context.Context, tx repository.Tx, profileID string) error {
	const q = `UPDATE recurring_profiles SET status='canceled', updated_at=NOW() WHERE profile_id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, profileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*model.RecurringProfile, error) {
	p := &model.RecurringProfile{}
	if err := row.Scan(&p.ProfileID, &p.UserID, &p.Status, &p.ExpiresAt, &p.LastPaymentID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}
