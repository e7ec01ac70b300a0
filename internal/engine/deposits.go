// Package engine — deposits.go: регистрация подтверждённых депозитов.
package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/common"
	"vkladpro.ru/accrual-engine/internal/metrics"
)

// RegisterDeposit регистрирует подтверждённый депозит.
//
// Что происходит:
//   - создаётся позиция (повтор order_id → ErrDuplicateOrder, не дубль);
//   - первый депозит аккаунта открывает челлендж: цель = 5 × сумма,
//     окно 3 недели на 1-м уровне, 2 — на остальных;
//   - последующие собственные депозиты пополняют собственный котёл;
//   - любой депозит партнёра пополняет котёл его реферера,
//     а первый — ещё и приносит рефереру разовый бонус (ровно один раз);
//   - после пополнений котлов проверяются челленджи затронутых аккаунтов.
func (e *Engine) RegisterDeposit(ctx context.Context, dep NewDeposit) (*DepositResult, error) {
	if dep.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if dep.BaseRate <= 0 || dep.BaseRate > 100 {
		return nil, common.ErrInvalidRate
	}
	if dep.TermWeeks <= 0 {
		dep.TermWeeks = e.opts.DefaultTermWeeks
	}

	res, err := e.ledger.CreateDeposit(ctx, dep)
	if err != nil {
		return nil, err
	}
	metrics.DepositsTotal.Inc()

	log.WithFields(log.Fields{
		"account_id": dep.AccountID,
		"position":   res.Position.ID,
		"amount":     dep.Amount,
		"first":      res.FirstDeposit,
	}).Info("Депозит зарегистрирован")

	now := e.now()

	if res.ReferrerID != nil {
		rid := *res.ReferrerID

		// Котёл реферера пополняется любым депозитом прямого партнёра
		if err := e.ledger.IncrementChallengePot(ctx, rid, dep.Amount); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"referrer_id": rid,
				"amount":      dep.Amount,
			}).Error("Не удалось пополнить котёл реферера")
		}

		// Первый депозит партнёра — разовый бонус рефереру.
		// false от леджера — бонус уже начислялся, это не ошибка.
		if res.FirstDeposit && e.opts.ReferralBonusAmount > 0 {
			credited, err := e.ledger.CreditBonusOnce(ctx, rid, dep.AccountID, e.opts.ReferralBonusAmount)
			switch {
			case err != nil:
				log.WithError(err).WithField("referrer_id", rid).
					Error("Ошибка начисления разового бонуса")
			case credited:
				metrics.BonusesPaidTotal.Inc()
				log.WithFields(log.Fields{
					"referrer_id":  rid,
					"affiliate_id": dep.AccountID,
					"amount":       e.opts.ReferralBonusAmount,
				}).Info("Разовый бонус начислен рефереру")
			default:
				log.WithFields(log.Fields{
					"referrer_id":  rid,
					"affiliate_id": dep.AccountID,
				}).Debug("Бонус за партнёра уже начислялся — пропущено")
			}
		}

		if err := e.levels.Apply(ctx, rid, now); err != nil {
			log.WithError(err).WithField("account_id", rid).
				Error("Ошибка проверки челленджа реферера")
		}
	}

	// Собственный котёл пополнили только не-первые депозиты
	if !res.FirstDeposit {
		if err := e.levels.Apply(ctx, dep.AccountID, now); err != nil {
			log.WithError(err).WithField("account_id", dep.AccountID).
				Error("Ошибка проверки собственного челленджа")
		}
	}

	return res, nil
}
