// Package referral — repository.go читает реферальное дерево.
// Начисление бонуса происходит только в ledger.CreditBonusOnce.
package referral

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository предоставляет методы чтения реферальной сети.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий рефералов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// NetworkByLevel агрегирует сеть аккаунта по уровням глубины (1..maxDepth).
// Рекурсивный CTE спускается по referrer_id; глубина ограничена,
// потому что дерево не ограничено по построению.
func (r *Repository) NetworkByLevel(ctx context.Context, accountID int64, maxDepth int) (map[int]*NetworkLevel, error) {
	query := `
		WITH RECURSIVE network AS (
			SELECT id, 1 AS level
			FROM accounts
			WHERE referrer_id = $1
			UNION ALL
			SELECT a.id, n.level + 1
			FROM accounts a
			JOIN network n ON a.referrer_id = n.id
			WHERE n.level < $2
		)
		SELECT
			n.level,
			COUNT(DISTINCT n.id),
			COALESCE(SUM(p.principal), 0),
			COALESCE(SUM(p.last_synced_earnings), 0)
		FROM network n
		LEFT JOIN positions p ON p.account_id = n.id
		GROUP BY n.level
		ORDER BY n.level
	`
	rows, err := r.db.Query(ctx, query, accountID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода реферальной сети: %w", err)
	}
	defer rows.Close()

	out := make(map[int]*NetworkLevel)
	for rows.Next() {
		var lvl NetworkLevel
		if err := rows.Scan(&lvl.Level, &lvl.Affiliates, &lvl.DepositsTotal, &lvl.EarningsGross); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уровня сети: %w", err)
		}
		out[lvl.Level] = &lvl
	}
	return out, rows.Err()
}

// ListBonuses возвращает разовые бонусы, полученные реферером.
func (r *Repository) ListBonuses(ctx context.Context, referrerID int64) ([]*ReferralBonus, error) {
	query := `
		SELECT id, referrer_id, affiliate_id, amount, created_at
		FROM referral_bonuses
		WHERE referrer_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения бонусов: %w", err)
	}
	defer rows.Close()

	var out []*ReferralBonus
	for rows.Next() {
		var b ReferralBonus
		if err := rows.Scan(&b.ID, &b.ReferrerID, &b.AffiliateID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования бонуса: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
