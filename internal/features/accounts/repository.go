// Package accounts — repository.go выполняет операции с таблицей accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vkladpro.ru/accrual-engine/internal/common"
)

// Поля аккаунта в порядке сканирования. Используется всеми SELECT-ами пакета.
const accountColumns = `
	id, telegram_id, referrer_id, tier,
	invested_total, earnings_balance, withheld_earnings,
	commission_balance, bonus_balance, withdrawn_total,
	benefits_blocked,
	challenge_started_at, challenge_deadline, challenge_pot, challenge_target,
	created_at, updated_at
`

// Repository предоставляет методы для работы с аккаунтами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий аккаунтов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// scanAccount сканирует одну строку в структуру Account.
func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.TelegramID, &a.ReferrerID, &a.Tier,
		&a.InvestedTotal, &a.EarningsBalance, &a.WithheldEarnings,
		&a.CommissionBalance, &a.BonusBalance, &a.WithdrawnTotal,
		&a.BenefitsBlocked,
		&a.ChallengeStartedAt, &a.ChallengeDeadline, &a.ChallengePot, &a.ChallengeTarget,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования аккаунта: %w", err)
	}
	return &a, nil
}

// Create создаёт новый аккаунт первого уровня без челленджа.
// Реферер фиксируется здесь и больше не меняется.
func (r *Repository) Create(ctx context.Context, telegramID, referrerID *int64) (*Account, error) {
	query := `
		INSERT INTO accounts (telegram_id, referrer_id, tier)
		VALUES ($1, $2, 1)
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRow(ctx, query, telegramID, referrerID))
}

// GetByID возвращает аккаунт по идентификатору.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// Exists проверяет, существует ли аккаунт.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки аккаунта: %w", err)
	}
	return exists, nil
}

// DirectAffiliates возвращает прямых партнёров аккаунта.
func (r *Repository) DirectAffiliates(ctx context.Context, id int64) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referrer_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения партнёров: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
