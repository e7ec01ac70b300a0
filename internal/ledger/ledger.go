// Package ledger — Postgres-реализация леджера (Ledger Accessor).
//
// Это ЕДИНСТВЕННЫЙ путь записи балансов: зачисление дельты, комиссии,
// бонуса и пополнение котла идут только через транзакции этого пакета.
// Кешированные поля (earnings_balance, commission_balance, bonus_balance)
// поэтому не расходятся с журналами commissions и referral_bonuses.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vkladpro.ru/accrual-engine/internal/common"
	"vkladpro.ru/accrual-engine/internal/engine"
	"vkladpro.ru/accrual-engine/internal/features/accounts"
	"vkladpro.ru/accrual-engine/internal/features/commission"
	"vkladpro.ru/accrual-engine/internal/features/levels"
	"vkladpro.ru/accrual-engine/internal/features/positions"
)

// Ledger реализует engine.Ledger и levels.Store поверх PostgreSQL.
type Ledger struct {
	db            *pgxpool.Pool
	accountsRepo  *accounts.Repository
	positionsRepo *positions.Repository

	commissionPercent float64
	machine           levels.Machine
}

// New создаёт леджер.
func New(
	db *pgxpool.Pool,
	accountsRepo *accounts.Repository,
	positionsRepo *positions.Repository,
	commissionPercent float64,
	machine levels.Machine,
) *Ledger {
	return &Ledger{
		db:                db,
		accountsRepo:      accountsRepo,
		positionsRepo:     positionsRepo,
		commissionPercent: commissionPercent,
		machine:           machine,
	}
}

// --- Чтение: делегируется репозиториям ---

func (l *Ledger) ActivePositions(ctx context.Context) ([]*positions.Position, error) {
	return l.positionsRepo.GetActive(ctx)
}

func (l *Ledger) ActivePositionsByAccount(ctx context.Context, accountID int64) ([]*positions.Position, error) {
	return l.positionsRepo.GetActiveByAccount(ctx, accountID)
}

func (l *Ledger) PositionByID(ctx context.Context, id int64) (*positions.Position, error) {
	return l.positionsRepo.GetByID(ctx, id)
}

func (l *Ledger) AccountByID(ctx context.Context, id int64) (*accounts.Account, error) {
	return l.accountsRepo.GetByID(ctx, id)
}

// --- Запись ---

// ApplySync применяет дельту синхронизации одной транзакцией:
//  1. блокирует строку владельца (сериализация зачислений на аккаунт);
//  2. CAS по last_synced_earnings — защита от двойного зачисления;
//  3. зачисляет доли владельцу (или в удержанные при блокировке)
//     и рефереру, пишет запись комиссии;
//  4. пополняет котёл реферера валовой дельтой.
//
// При конфликте CAS возвращает common.ErrStaleSync — вызывающий код
// перечитывает позицию и повторяет. Взаимные блокировки перекрёстных
// рефералов разруливает Postgres, прерванную синхронизацию дозачислит
// следующий обход.
func (l *Ledger) ApplySync(ctx context.Context, positionID int64, expected, gross int64) (*engine.SyncResult, error) {
	delta := gross - expected
	if delta <= 0 {
		return nil, common.ErrNegativeDelta
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Находим владельца позиции
	var ownerID int64
	err = tx.QueryRow(ctx,
		`SELECT account_id FROM positions WHERE id = $1 AND status = 'active'`, positionID,
	).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrPositionNotActive
		}
		return nil, fmt.Errorf("ошибка чтения позиции: %w", err)
	}

	// Блокируем владельца: конкурентные синхронизации его позиций
	// зачисляются по очереди
	var (
		referrerID *int64
		blocked    bool
	)
	err = tx.QueryRow(ctx,
		`SELECT referrer_id, benefits_blocked FROM accounts WHERE id = $1 FOR UPDATE`, ownerID,
	).Scan(&referrerID, &blocked)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки аккаунта: %w", err)
	}

	// CAS: двигаем last_synced_earnings только от ожидаемого значения
	tag, err := tx.Exec(ctx, `
		UPDATE positions
		SET last_synced_earnings = $3, last_synced_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND last_synced_earnings = $2 AND status = 'active'
	`, positionID, expected, gross)
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления позиции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, common.ErrStaleSync
	}

	sp := commission.SplitDelta(delta, l.commissionPercent, referrerID != nil)

	// Доля владельца: при блокировке — в удержанные, иначе — к выводу
	ownerColumn := "earnings_balance"
	if blocked {
		ownerColumn = "withheld_earnings"
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE accounts SET %s = %s + $2, updated_at = NOW() WHERE id = $1
	`, ownerColumn, ownerColumn), ownerID, sp.Owner)
	if err != nil {
		return nil, fmt.Errorf("ошибка зачисления владельцу: %w", err)
	}

	if referrerID != nil {
		// Комиссия реферера + запись аудита
		if sp.Referrer > 0 {
			_, err = tx.Exec(ctx, `
				UPDATE accounts SET commission_balance = commission_balance + $2, updated_at = NOW()
				WHERE id = $1
			`, *referrerID, sp.Referrer)
			if err != nil {
				return nil, fmt.Errorf("ошибка зачисления комиссии: %w", err)
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO commissions (position_id, payer_id, payee_id, amount, percent)
				VALUES ($1, $2, $3, $4, $5)
			`, positionID, ownerID, *referrerID, sp.Referrer, l.commissionPercent)
			if err != nil {
				return nil, fmt.Errorf("ошибка записи комиссии: %w", err)
			}
		}

		// Котёл реферера пополняется ВАЛОВОЙ дельтой (до деления).
		// Аккаунты без челленджа и на терминальном уровне не трогаем.
		_, err = tx.Exec(ctx, `
			UPDATE accounts SET challenge_pot = challenge_pot + $2, updated_at = NOW()
			WHERE id = $1 AND challenge_started_at IS NOT NULL AND tier < $3
		`, *referrerID, delta, l.machine.MaxTier)
		if err != nil {
			return nil, fmt.Errorf("ошибка пополнения котла: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации синхронизации: %w", err)
	}

	return &engine.SyncResult{
		Delta:          delta,
		OwnerCredit:    sp.Owner,
		ReferrerCredit: sp.Referrer,
		ReferrerID:     referrerID,
		Withheld:       blocked,
	}, nil
}

// CreateDeposit создаёт позицию и обновляет состояние аккаунта
// одной транзакцией. Первый депозит открывает челлендж,
// последующие пополняют собственный котёл.
func (l *Ledger) CreateDeposit(ctx context.Context, dep engine.NewDeposit) (*engine.DepositResult, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем аккаунт: определение «первого» депозита должно быть
	// сериализовано с другими депозитами того же аккаунта
	var (
		referrerID    *int64
		tier          int
		investedTotal int64
	)
	err = tx.QueryRow(ctx, `
		SELECT referrer_id, tier, invested_total FROM accounts WHERE id = $1 FOR UPDATE
	`, dep.AccountID).Scan(&referrerID, &tier, &investedTotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("ошибка чтения аккаунта: %w", err)
	}

	first := investedTotal == 0
	now := time.Now()

	p := &positions.Position{
		AccountID: dep.AccountID,
		OrderID:   dep.OrderID,
		Principal: dep.Amount,
		BaseRate:  dep.BaseRate,
		TermWeeks: dep.TermWeeks,
		StartedAt: now,
		Status:    positions.StatusActive,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO positions (account_id, order_id, principal, base_rate, term_weeks, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, p.AccountID, p.OrderID, p.Principal, p.BaseRate, p.TermWeeks, p.StartedAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Повторное подтверждение того же депозита
			return nil, common.ErrDuplicateOrder
		}
		return nil, fmt.Errorf("ошибка создания позиции: %w", err)
	}

	if first {
		// Первый депозит: фиксируем цель навсегда и открываем окно.
		// Сам первый депозит в котёл не попадает.
		deadline := now.Add(l.machine.Window(tier))
		_, err = tx.Exec(ctx, `
			UPDATE accounts
			SET invested_total = invested_total + $2,
			    challenge_target = $3,
			    challenge_started_at = $4,
			    challenge_deadline = $5,
			    challenge_pot = 0,
			    updated_at = NOW()
			WHERE id = $1
		`, dep.AccountID, dep.Amount, l.machine.Target(dep.Amount), now, deadline)
	} else {
		// Последующие собственные депозиты идут в собственный котёл
		_, err = tx.Exec(ctx, `
			UPDATE accounts
			SET invested_total = invested_total + $2,
			    challenge_pot = challenge_pot + CASE
			        WHEN challenge_started_at IS NOT NULL AND tier < $3 THEN $2
			        ELSE 0
			    END,
			    updated_at = NOW()
			WHERE id = $1
		`, dep.AccountID, dep.Amount, l.machine.MaxTier)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления аккаунта: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации депозита: %w", err)
	}

	return &engine.DepositResult{
		Position:     p,
		FirstDeposit: first,
		ReferrerID:   referrerID,
	}, nil
}

// IncrementChallengePot пополняет котёл текущего челленджа аккаунта.
// Аккаунты без челленджа и на терминальном уровне игнорируются.
func (l *Ledger) IncrementChallengePot(ctx context.Context, accountID, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	_, err := l.db.Exec(ctx, `
		UPDATE accounts SET challenge_pot = challenge_pot + $2, updated_at = NOW()
		WHERE id = $1 AND challenge_started_at IS NOT NULL AND tier < $3
	`, accountID, amount, l.machine.MaxTier)
	if err != nil {
		return fmt.Errorf("ошибка пополнения котла: %w", err)
	}
	return nil
}

// CreditBonusOnce начисляет разовый бонус за партнёра ровно один раз.
// Идемпотентность обеспечивает уникальный индекс (referrer_id, affiliate_id):
// повторная вставка не проходит, баланс не трогается, возвращается false.
func (l *Ledger) CreditBonusOnce(ctx context.Context, referrerID, affiliateID, amount int64) (bool, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO referral_bonuses (referrer_id, affiliate_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (referrer_id, affiliate_id) DO NOTHING
	`, referrerID, affiliateID, amount)
	if err != nil {
		return false, fmt.Errorf("ошибка записи бонуса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET bonus_balance = bonus_balance + $2, updated_at = NOW()
		WHERE id = $1
	`, referrerID, amount)
	if err != nil {
		return false, fmt.Errorf("ошибка зачисления бонуса: %w", err)
	}

	return true, tx.Commit(ctx)
}

// SetTierAndChallenge применяет повышение уровня: новый уровень,
// снятие блокировки, перевод удержанных начислений в доступные,
// обнуление котла и новое окно (nil — терминальный уровень, окна нет).
func (l *Ledger) SetTierAndChallenge(ctx context.Context, accountID int64, newTier int, start, deadline *time.Time) error {
	_, err := l.db.Exec(ctx, `
		UPDATE accounts
		SET tier = $2,
		    benefits_blocked = FALSE,
		    earnings_balance = earnings_balance + withheld_earnings,
		    withheld_earnings = 0,
		    challenge_pot = 0,
		    challenge_started_at = $3,
		    challenge_deadline = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, accountID, newTier, start, deadline)
	if err != nil {
		return fmt.Errorf("ошибка повышения уровня: %w", err)
	}
	return nil
}

// SetBlocked выставляет флаг блокировки личных начислений.
// Котёл и дедлайн не трогаются: цель всё ещё нужно добрать.
func (l *Ledger) SetBlocked(ctx context.Context, accountID int64, blocked bool) error {
	_, err := l.db.Exec(ctx, `
		UPDATE accounts SET benefits_blocked = $2, updated_at = NOW() WHERE id = $1
	`, accountID, blocked)
	if err != nil {
		return fmt.Errorf("ошибка смены блокировки: %w", err)
	}
	return nil
}

// AccountsWithExpiredDeadlines возвращает кандидатов на блокировку:
// дедлайн прошёл, цель не набрана, блокировка ещё не стояла.
func (l *Ledger) AccountsWithExpiredDeadlines(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id FROM accounts
		WHERE challenge_deadline IS NOT NULL
		  AND challenge_deadline < $1
		  AND challenge_pot < challenge_target
		  AND benefits_blocked = FALSE
		  AND tier < $2
		ORDER BY id
	`, now, l.machine.MaxTier)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска просроченных дедлайнов: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
