// Package engine — dashboard.go: читающие запросы для кабинета
// и подсистемы выводов.
package engine

import (
	"context"
	"fmt"

	"vkladpro.ru/accrual-engine/internal/features/accounts"
	"vkladpro.ru/accrual-engine/internal/features/positions"
	"vkladpro.ru/accrual-engine/internal/features/referral"
)

// WithdrawableSummary — расклад доступных к выводу средств.
// Считается при каждом запросе от текущего состояния, не кешируется.
type WithdrawableSummary struct {
	AccountID int64 `json:"account_id"`
	// Личные начисления, доступные к выводу (без удержанных)
	Personal int64 `json:"personal"`
	// Удержано на время блокировки; станет доступным после выполнения челленджа
	Withheld int64 `json:"withheld"`
	// Комиссии — доступны всегда, блокировка их не касается
	Commission int64 `json:"commission"`
	// Бонусный баланс целиком
	BonusTotal int64 `json:"bonus_total"`
	// Доступная часть бонуса: 1% до 10-го уровня, 100% дальше
	BonusAvailable int64 `json:"bonus_available"`
	// Итого к выводу
	Total int64 `json:"total"`
}

// PositionView — позиция с рассчитанным на момент запроса доходом.
type PositionView struct {
	*positions.Position
	EffectiveRate float64 `json:"effective_rate"`
	GrossNow      int64   `json:"gross_now"`
}

// Dashboard — снимок аккаунта для кабинета.
type Dashboard struct {
	Account      *accounts.Account    `json:"account"`
	Positions    []*PositionView      `json:"positions"`
	Withdrawable *WithdrawableSummary `json:"withdrawable"`
}

// Withdrawable возвращает расклад доступных средств аккаунта.
// Подсистема выводов обязана вызывать это перед списанием.
func (e *Engine) Withdrawable(ctx context.Context, accountID int64) (*WithdrawableSummary, error) {
	a, err := e.ledger.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return e.summarize(a), nil
}

func (e *Engine) summarize(a *accounts.Account) *WithdrawableSummary {
	bonusAvail := referral.BonusAvailable(
		a.BonusBalance, a.Tier, e.opts.BonusUnlockTier, e.opts.BonusLockedPercent,
	)
	return &WithdrawableSummary{
		AccountID:      a.ID,
		Personal:       a.EarningsBalance,
		Withheld:       a.WithheldEarnings,
		Commission:     a.CommissionBalance,
		BonusTotal:     a.BonusBalance,
		BonusAvailable: bonusAvail,
		Total:          a.EarningsBalance + a.CommissionBalance + bonusAvail,
	}
}

// Dashboard синхронизирует позиции аккаунта и возвращает свежий снимок.
// Чтение кабинета — опортунистический триггер синхронизации:
// пользователь всегда видит актуальные цифры, не дожидаясь обхода.
func (e *Engine) Dashboard(ctx context.Context, accountID int64) (*Dashboard, error) {
	if _, err := e.SyncAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("синхронизация аккаунта %d: %w", accountID, err)
	}

	a, err := e.ledger.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	poss, err := e.ledger.ActivePositionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	views := make([]*PositionView, 0, len(poss))
	for _, p := range poss {
		views = append(views, &PositionView{
			Position:      p,
			EffectiveRate: e.calc.EffectiveRate(p.BaseRate, a.Tier),
			GrossNow:      e.calc.Gross(p, a.Tier, now),
		})
	}

	return &Dashboard{
		Account:      a,
		Positions:    views,
		Withdrawable: e.summarize(a),
	}, nil
}
