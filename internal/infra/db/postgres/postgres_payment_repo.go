package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, provider, order_id, provider_payment_id, amount, currency, status, product_type, credits_added, redirect_url, recurring_profile_id, raw_payload, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.UserID, &p.Provider, &p.OrderID, &p.ProviderPaymentID, &p.Amount, &p.Currency, &p.Status, &p.ProductType, &p.CreditsAdded, &p.RedirectURL, &p.RecurringProfileID, &p.RawPayload, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, provider, order_id, provider_payment_id, amount, currency, status, product_type, credits_added, redirect_url, recurring_profile_id, raw_payload, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.Provider, p.OrderID, p.ProviderPaymentID, p.Amount, p.Currency, p.Status, p.ProductType, p.CreditsAdded, p.RedirectURL, p.RecurringProfileID, p.RawPayload, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, provider, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider=$1 AND order_id=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, provider, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByProviderPaymentID(ctx context.Context, tx repository.Tx, provider, providerPaymentID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider=$1 AND provider_payment_id=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, provider, providerPaymentID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindPendingByUserProduct(ctx context.Context, tx repository.Tx, userID, productType string, since time.Time) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
WHERE user_id=$1 AND product_type=$2 AND status='pending' AND redirect_url <> '' AND created_at > $3
ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, productType, since)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, providerPaymentID *string, rawPayload map[string]string) (bool, error) {
	const q = `UPDATE payments
SET status=$2, provider_payment_id=COALESCE($3, provider_payment_id), raw_payload=COALESCE($4, raw_payload), updated_at=NOW()
WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status, providerPaymentID, rawPayload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *paymentRepo) SetCreditsAdded(ctx context.Context, tx repository.Tx, id string, credits int64) error {
	const q = `UPDATE payments SET credits_added=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, credits)
	return err
}

func (r *paymentRepo) SetRedirectURL(ctx context.Context, tx repository.Tx, id, redirectURL string, providerPaymentID *string, rawPayload map[string]string) error {
	const q = `UPDATE payments
SET redirect_url=$2, provider_payment_id=COALESCE($3, provider_payment_id), raw_payload=COALESCE($4, raw_payload), updated_at=NOW()
WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, redirectURL, providerPaymentID, rawPayload)
	return err
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
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
