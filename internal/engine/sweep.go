// Package engine — sweep.go: фоновый обход всех активных позиций
// и проверка дедлайнов челленджей.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/features/positions"
	"vkladpro.ru/accrual-engine/internal/metrics"
)

// SweepOnce обходит все активные позиции и синхронизирует каждую.
// Параллелизм ограничен семафором, ошибки и паники отдельных позиций
// изолируются: одна плохая позиция не останавливает обход.
func (e *Engine) SweepOnce(ctx context.Context) error {
	start := time.Now()

	poss, err := e.ledger.ActivePositions(ctx)
	if err != nil {
		return fmt.Errorf("получение активных позиций: %w", err)
	}

	var (
		wg       sync.WaitGroup
		failed   atomic.Int64
		inflight = make(chan struct{}, e.opts.SweepMaxInflight)
	)

	for _, p := range poss {
		if ctx.Err() != nil {
			break
		}

		inflight <- struct{}{}
		wg.Add(1)
		go func(p *positions.Position) {
			defer wg.Done()
			defer func() { <-inflight }()
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					metrics.SweepErrorsTotal.Inc()
					log.WithFields(log.Fields{
						"position_id": p.ID,
						"panic":       fmt.Sprintf("%v", r),
						"stack":       string(debug.Stack()),
					}).Error("ПАНИКА при синхронизации позиции — восстановлено")
				}
			}()

			if _, err := e.SyncPosition(ctx, p); err != nil {
				failed.Add(1)
				metrics.SweepErrorsTotal.Inc()
				log.WithError(err).WithField("position_id", p.ID).
					Warn("Позиция пропущена, повторим в следующем обходе")
			}
		}(p)
	}
	wg.Wait()

	elapsed := time.Since(start)
	metrics.SweepDuration.Observe(elapsed.Seconds())

	log.WithFields(log.Fields{
		"positions": len(poss),
		"failed":    failed.Load(),
		"took":      elapsed.Round(time.Millisecond).String(),
	}).Info("Обход позиций завершён")

	return nil
}

// CheckDeadlines находит аккаунты с просроченным челленджем
// и применяет блокировку через машину уровней.
func (e *Engine) CheckDeadlines(ctx context.Context) error {
	now := e.now()

	ids, err := e.ledger.AccountsWithExpiredDeadlines(ctx, now)
	if err != nil {
		return fmt.Errorf("поиск просроченных дедлайнов: %w", err)
	}

	for _, id := range ids {
		if err := e.levels.Apply(ctx, id, now); err != nil {
			log.WithError(err).WithField("account_id", id).
				Error("Ошибка обработки просроченного дедлайна")
		}
	}

	if len(ids) > 0 {
		log.WithField("accounts", len(ids)).Info("Проверка дедлайнов завершена")
	}
	return nil
}
