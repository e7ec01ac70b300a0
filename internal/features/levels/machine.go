// Package levels реализует 20-уровневую систему прогресса аккаунтов.
//
// Каждый аккаунт проходит челленджи: за отведённое окно набрать в «котёл»
// сумму, равную цели (5 × первый депозит). Котёл пополняют депозиты прямых
// партнёров, собственные депозиты после первого и валовые дельты начислений
// партнёров. Успел — уровень растёт и открывается новое окно; не успел —
// личные начисления блокируются до добора цели.
//
// machine.go — чистая логика решений: ни базы, ни часов, ни логов.
package levels

import (
	"time"

	"vkladpro.ru/accrual-engine/internal/common"
	"vkladpro.ru/accrual-engine/internal/features/accounts"
)

// Action — решение машины состояний по аккаунту.
type Action int

const (
	// ActionNone — ничего не делать
	ActionNone Action = iota
	// ActionAdvance — котёл набрал цель: поднять уровень, снять блокировку,
	// открыть новое окно
	ActionAdvance
	// ActionBlock — дедлайн прошёл, цель не набрана: заблокировать
	// личные начисления
	ActionBlock
)

// Machine принимает решения по челленджам. Все параметры задаются
// конфигурацией при сборке приложения.
type Machine struct {
	MaxTier          int   // Терминальный уровень (без челленджей и блокировок)
	Multiplier       int64 // Цель = Multiplier × первый депозит
	WindowTier1Weeks int   // Окно челленджа на 1-м уровне
	WindowWeeks      int   // Окно на остальных уровнях
}

// Window возвращает длительность окна челленджа для уровня.
func (m Machine) Window(tier int) time.Duration {
	if tier == 1 {
		return common.WeeksToDuration(m.WindowTier1Weeks)
	}
	return common.WeeksToDuration(m.WindowWeeks)
}

// Target возвращает цель челленджа по первому депозиту.
// Фиксируется один раз на всю жизнь аккаунта.
func (m Machine) Target(firstDeposit int64) int64 {
	return m.Multiplier * firstDeposit
}

// NextChallenge возвращает окно нового челленджа для уровня tier.
// На терминальном уровне челленджей больше нет — оба значения nil.
func (m Machine) NextChallenge(tier int, now time.Time) (start, deadline *time.Time) {
	if tier >= m.MaxTier {
		return nil, nil
	}
	deadlineAt := now.Add(m.Window(tier))
	return &now, &deadlineAt
}

// Evaluate принимает решение по текущему состоянию аккаунта.
//
// Порядок проверок важен: набранная цель выигрывает у просроченного
// дедлайна — добор цели после дедлайна всё равно поднимает уровень
// и снимает блокировку.
func (m Machine) Evaluate(a *accounts.Account, now time.Time) Action {
	// Терминальный уровень — неподвижная точка машины состояний
	if a.Tier >= m.MaxTier {
		return ActionNone
	}
	// До первого депозита челленджа нет
	if !a.HasChallenge() {
		return ActionNone
	}
	if a.ChallengePot >= a.ChallengeTarget {
		return ActionAdvance
	}
	// Блокировка не сбрасывает ни котёл, ни дедлайн — повторно не ставим
	if now.After(*a.ChallengeDeadline) && !a.BenefitsBlocked {
		return ActionBlock
	}
	return ActionNone
}
