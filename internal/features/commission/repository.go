// Package commission — repository.go читает журнал комиссий.
// Вставка записей происходит только внутри транзакции ledger.ApplySync.
package commission

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository предоставляет методы для чтения журнала комиссий.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий комиссий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListByPayee возвращает последние комиссии, полученные аккаунтом.
func (r *Repository) ListByPayee(ctx context.Context, payeeID int64, limit int) ([]*Commission, error) {
	query := `
		SELECT id, position_id, payer_id, payee_id, amount, percent, created_at
		FROM commissions
		WHERE payee_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, payeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения комиссий: %w", err)
	}
	defer rows.Close()

	var out []*Commission
	for rows.Next() {
		var c Commission
		if err := rows.Scan(&c.ID, &c.PositionID, &c.PayerID, &c.PayeeID, &c.Amount, &c.Percent, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования комиссии: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// TotalByPayee возвращает сумму всех комиссий аккаунта по журналу.
// Используется для сверки с кешированным commission_balance.
func (r *Repository) TotalByPayee(ctx context.Context, payeeID int64) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM commissions WHERE payee_id = $1`, payeeID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта комиссий: %w", err)
	}
	return total, nil
}
