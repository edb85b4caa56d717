package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Schema is the full DDL. (provider, order_id) uniqueness is what turns a
// duplicate initiation race into domain.ErrAlreadyExists at the repo layer.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id              TEXT PRIMARY KEY,
    email           TEXT NOT NULL,
    language        TEXT NOT NULL DEFAULT 'en',
    credits         BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
    registered_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_active_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS payments (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL DEFAULT '',
    provider             TEXT NOT NULL,
    order_id             TEXT NOT NULL,
    provider_payment_id  TEXT,
    amount               BIGINT NOT NULL,
    currency             TEXT NOT NULL DEFAULT 'KZT',
    status               TEXT NOT NULL DEFAULT 'pending',
    product_type         TEXT NOT NULL DEFAULT '',
    credits_added        BIGINT NOT NULL DEFAULT 0,
    redirect_url         TEXT NOT NULL DEFAULT '',
    recurring_profile_id TEXT,
    raw_payload          JSONB,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (provider, order_id)
);

CREATE INDEX IF NOT EXISTS idx_payments_user_product_pending
    ON payments (user_id, product_type, created_at DESC) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_payments_provider_ppid
    ON payments (provider, provider_payment_id);
CREATE INDEX IF NOT EXISTS idx_payments_pending_age
    ON payments (created_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS recurring_profiles (
    profile_id      TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'active',
    expires_at      TIMESTAMPTZ,
    last_payment_id TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_recurring_profiles_active
    ON recurring_profiles (updated_at) WHERE status = 'active';
`

// EnsureSchema applies the DDL; every statement is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
