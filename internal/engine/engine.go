// Package engine — оркестратор движка начислений.
//
// Движок собирает воедино чистые расчёты (калькулятор дохода, делитель
// комиссий, машину уровней) и применяет их побочные эффекты через леджер.
// Это единственный пакет с правом изменять балансы — и делает он это
// только через транзакционные операции Ledger.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vkladpro.ru/accrual-engine/internal/features/accounts"
	"vkladpro.ru/accrual-engine/internal/features/levels"
	"vkladpro.ru/accrual-engine/internal/features/positions"
)

// SyncResult — итог одной применённой синхронизации.
type SyncResult struct {
	Delta          int64  // Зачисленная дельта (валовая)
	OwnerCredit    int64  // Доля владельца
	ReferrerCredit int64  // Доля реферера (0 без реферера)
	ReferrerID     *int64 // Реферер владельца, если есть
	Withheld       bool   // Доля владельца удержана (аккаунт заблокирован)
}

// NewDeposit — подтверждённый депозит от внешней платёжной подсистемы.
type NewDeposit struct {
	AccountID int64
	OrderID   uuid.UUID // Идемпотентный ключ подтверждения
	Amount    int64     // Копейки
	BaseRate  float64   // Недельный процент, зафиксированный предложением
	TermWeeks int       // 0 → срок по умолчанию
}

// DepositResult — итог регистрации депозита.
type DepositResult struct {
	Position     *positions.Position
	FirstDeposit bool   // Это был первый депозит аккаунта
	ReferrerID   *int64 // Реферер владельца, если есть
}

// Ledger — контракт доступа к хранилищу (Ledger Accessor).
// Все операции атомарны на уровне своих записей; ApplySync — единственный
// путь зачисления балансов. Реализуется пакетом ledger, в тестах —
// in-memory подделкой.
type Ledger interface {
	ActivePositions(ctx context.Context) ([]*positions.Position, error)
	ActivePositionsByAccount(ctx context.Context, accountID int64) ([]*positions.Position, error)
	PositionByID(ctx context.Context, id int64) (*positions.Position, error)
	AccountByID(ctx context.Context, id int64) (*accounts.Account, error)

	// ApplySync атомарно: CAS last_synced_earnings (expected → gross),
	// зачисляет доли владельцу и рефереру, пишет запись комиссии
	// и пополняет котёл реферера валовой дельтой.
	// Возвращает common.ErrStaleSync, если expected уже неактуален.
	ApplySync(ctx context.Context, positionID int64, expected, gross int64) (*SyncResult, error)

	// IncrementChallengePot пополняет котёл текущего челленджа.
	// Аккаунты без челленджа и на терминальном уровне не трогаются.
	IncrementChallengePot(ctx context.Context, accountID, amount int64) error

	// CreditBonusOnce начисляет разовый бонус рефереру за партнёра.
	// Возвращает false, если бонус за эту пару уже начислялся —
	// это не ошибка, а сработавшая идемпотентность.
	CreditBonusOnce(ctx context.Context, referrerID, affiliateID, amount int64) (bool, error)

	// CreateDeposit атомарно создаёт позицию, увеличивает invested_total;
	// первый депозит инициализирует челлендж, последующие пополняют
	// собственный котёл владельца.
	CreateDeposit(ctx context.Context, dep NewDeposit) (*DepositResult, error)

	// AccountsWithExpiredDeadlines возвращает аккаунты с просроченным
	// дедлайном и ненабранной целью — кандидатов на блокировку.
	AccountsWithExpiredDeadlines(ctx context.Context, now time.Time) ([]int64, error)
}

// Options — параметры движка из конфигурации.
type Options struct {
	SyncMaxRetries      int
	SweepMaxInflight    int
	ReferralBonusAmount int64
	BonusUnlockTier     int
	BonusLockedPercent  float64
	DefaultTermWeeks    int
	// Clock подменяется в тестах; nil → time.Now
	Clock func() time.Time
}

// Engine — оркестратор начислений и комиссий.
type Engine struct {
	ledger Ledger
	calc   positions.Calculator
	levels *levels.Service
	opts   Options
	now    func() time.Time
}

// New создаёт движок.
func New(ledger Ledger, calc positions.Calculator, levelsSvc *levels.Service, opts Options) *Engine {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	if opts.SyncMaxRetries <= 0 {
		opts.SyncMaxRetries = 3
	}
	if opts.SweepMaxInflight <= 0 {
		opts.SweepMaxInflight = 16
	}
	return &Engine{
		ledger: ledger,
		calc:   calc,
		levels: levelsSvc,
		opts:   opts,
		now:    now,
	}
}
