// Package engine — synchronizer.go сверяет зачисленное с накопленным
// и применяет дельту ровно один раз.
package engine

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/common"
	"vkladpro.ru/accrual-engine/internal/features/positions"
	"vkladpro.ru/accrual-engine/internal/metrics"
)

// SyncPosition синхронизирует одну позицию: считает валовый доход,
// выводит дельту против last_synced_earnings и зачисляет её через леджер.
// Возвращает зачисленную дельту (0 — нечего зачислять).
//
// Конкурентная синхронизация той же позиции безопасна: зачисление идёт
// через CAS по last_synced_earnings, при конфликте позиция перечитывается
// и попытка повторяется. Две гонки никогда не зачислят одну дельту дважды.
func (e *Engine) SyncPosition(ctx context.Context, p *positions.Position) (int64, error) {
	if p.Status != positions.StatusActive {
		return 0, nil
	}

	for attempt := 0; attempt < e.opts.SyncMaxRetries; attempt++ {
		owner, err := e.ledger.AccountByID(ctx, p.AccountID)
		if err != nil {
			return 0, fmt.Errorf("чтение владельца позиции %d: %w", p.ID, err)
		}

		now := e.now()
		gross := e.calc.Gross(p, owner.Tier, now)
		delta := gross - p.LastSyncedEarnings

		// Отрицательная дельта — сдвиг часов или повреждённые данные.
		// Ничего не списываем и не зачисляем: last_synced_earnings
		// монотонно не убывает.
		if delta < 0 {
			metrics.InvariantViolations.Inc()
			log.WithFields(log.Fields{
				"position_id": p.ID,
				"gross":       gross,
				"synced":      p.LastSyncedEarnings,
			}).Warn("Отрицательная дельта начисления — пропускаем")
			return 0, nil
		}
		if delta == 0 {
			return 0, nil
		}

		res, err := e.ledger.ApplySync(ctx, p.ID, p.LastSyncedEarnings, gross)
		if errors.Is(err, common.ErrStaleSync) {
			// Конкурент успел раньше. Перечитываем и пробуем снова.
			metrics.StaleSyncRetries.Inc()
			p, err = e.ledger.PositionByID(ctx, p.ID)
			if err != nil {
				return 0, fmt.Errorf("перечитывание позиции: %w", err)
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("применение синхронизации позиции %d: %w", p.ID, err)
		}

		metrics.SyncCreditedTotal.Add(float64(res.Delta))
		if res.ReferrerCredit > 0 {
			metrics.CommissionsPaidTotal.Add(float64(res.ReferrerCredit))
		}

		log.WithFields(log.Fields{
			"position_id": p.ID,
			"account_id":  p.AccountID,
			"delta":       res.Delta,
			"owner":       res.OwnerCredit,
			"referrer":    res.ReferrerCredit,
			"withheld":    res.Withheld,
		}).Debug("Дельта начислена")

		// Валовая дельта пополнила котёл реферера — проверяем его челлендж
		if res.ReferrerID != nil {
			if err := e.levels.Apply(ctx, *res.ReferrerID, now); err != nil {
				log.WithError(err).WithField("account_id", *res.ReferrerID).
					Error("Ошибка проверки челленджа реферера")
			}
		}

		return res.Delta, nil
	}

	// Попытки кончились — позицию дозачислит следующий обход
	return 0, fmt.Errorf("позиция %d: %w", p.ID, common.ErrStaleSync)
}

// SyncAccount опортунистически синхронизирует все активные позиции
// аккаунта. Вызывается при чтении дашборда и перед выводом средств.
// Ошибки отдельных позиций не прерывают остальные.
func (e *Engine) SyncAccount(ctx context.Context, accountID int64) (int64, error) {
	poss, err := e.ledger.ActivePositionsByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("позиции аккаунта %d: %w", accountID, err)
	}

	var credited int64
	for _, p := range poss {
		delta, err := e.SyncPosition(ctx, p)
		if err != nil {
			log.WithError(err).WithField("position_id", p.ID).
				Warn("Позиция не синхронизирована, продолжаем")
			continue
		}
		credited += delta
	}
	return credited, nil
}
