// Package app — migrations.go: SQL-миграции схемы.
// SQL-миграции встроены в код для упрощения деплоя.
package app

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT UNIQUE,
    referrer_id BIGINT REFERENCES accounts(id),
    tier INTEGER NOT NULL DEFAULT 1,
    invested_total BIGINT NOT NULL DEFAULT 0,
    earnings_balance BIGINT NOT NULL DEFAULT 0,
    withheld_earnings BIGINT NOT NULL DEFAULT 0,
    commission_balance BIGINT NOT NULL DEFAULT 0,
    bonus_balance BIGINT NOT NULL DEFAULT 0,
    withdrawn_total BIGINT NOT NULL DEFAULT 0,
    benefits_blocked BOOLEAN NOT NULL DEFAULT FALSE,
    challenge_started_at TIMESTAMPTZ,
    challenge_deadline TIMESTAMPTZ,
    challenge_pot BIGINT NOT NULL DEFAULT 0,
    challenge_target BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_referrer_id ON accounts(referrer_id);
CREATE INDEX IF NOT EXISTS idx_accounts_challenge_deadline ON accounts(challenge_deadline)
    WHERE challenge_deadline IS NOT NULL AND benefits_blocked = FALSE;
`

var migration002Positions = `
CREATE TABLE IF NOT EXISTS positions (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    order_id UUID UNIQUE NOT NULL,
    principal BIGINT NOT NULL,
    base_rate DOUBLE PRECISION NOT NULL,
    term_weeks INTEGER NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    last_synced_earnings BIGINT NOT NULL DEFAULT 0,
    last_synced_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_positions_account_id ON positions(account_id);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status) WHERE status = 'active';
`

var migration003Commissions = `
CREATE TABLE IF NOT EXISTS commissions (
    id BIGSERIAL PRIMARY KEY,
    position_id BIGINT NOT NULL REFERENCES positions(id),
    payer_id BIGINT NOT NULL REFERENCES accounts(id),
    payee_id BIGINT NOT NULL REFERENCES accounts(id),
    amount BIGINT NOT NULL,
    percent DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_commissions_payee_id ON commissions(payee_id, created_at DESC);
`

var migration004ReferralBonuses = `
CREATE TABLE IF NOT EXISTS referral_bonuses (
    id BIGSERIAL PRIMARY KEY,
    referrer_id BIGINT NOT NULL REFERENCES accounts(id),
    affiliate_id BIGINT NOT NULL REFERENCES accounts(id),
    amount BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (referrer_id, affiliate_id)
);
CREATE INDEX IF NOT EXISTS idx_referral_bonuses_referrer_id ON referral_bonuses(referrer_id);
`
