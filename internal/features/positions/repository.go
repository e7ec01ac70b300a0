// Package positions — repository.go выполняет читающие операции
// с таблицей positions и переводы статусов.
// Зачисление дохода (изменение last_synced_earnings) сюда не входит:
// им занимается единственный путь записи — ledger.ApplySync.
package positions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vkladpro.ru/accrual-engine/internal/common"
)

const positionColumns = `
	id, account_id, order_id, principal, base_rate, term_weeks, started_at,
	status, last_synced_earnings, last_synced_at, created_at, updated_at
`

// Repository предоставляет методы для чтения позиций.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий позиций.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPosition(row pgx.Row) (*Position, error) {
	var p Position
	err := row.Scan(
		&p.ID, &p.AccountID, &p.OrderID, &p.Principal, &p.BaseRate,
		&p.TermWeeks, &p.StartedAt, &p.Status,
		&p.LastSyncedEarnings, &p.LastSyncedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrPositionNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования позиции: %w", err)
	}
	return &p, nil
}

func scanPositions(rows pgx.Rows) ([]*Position, error) {
	defer rows.Close()
	var out []*Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID возвращает позицию по идентификатору.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`
	return scanPosition(r.db.QueryRow(ctx, query, id))
}

// GetActive возвращает все активные позиции (для фонового обхода).
func (r *Repository) GetActive(ctx context.Context) ([]*Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = 'active' ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных позиций: %w", err)
	}
	return scanPositions(rows)
}

// GetActiveByAccount возвращает активные позиции одного аккаунта
// (опортунистическая синхронизация при чтении дашборда).
func (r *Repository) GetActiveByAccount(ctx context.Context, accountID int64) ([]*Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE account_id = $1 AND status = 'active' ORDER BY id`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиций аккаунта: %w", err)
	}
	return scanPositions(rows)
}

// GetByAccount возвращает все позиции аккаунта, включая закрытые.
func (r *Repository) GetByAccount(ctx context.Context, accountID int64) ([]*Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE account_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиций аккаунта: %w", err)
	}
	return scanPositions(rows)
}

// UpdateStatus переводит позицию в новый статус (вывод, отмена, созревание).
// Допускается только уход из active: позиции не возвращаются в начисление.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE positions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, id, status)
	if err != nil {
		return fmt.Errorf("ошибка смены статуса позиции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrPositionNotActive
	}
	return nil
}
