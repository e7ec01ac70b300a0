// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: периодический обход позиций
// и проверка дедлайнов челленджей.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/config"
	"vkladpro.ru/accrual-engine/internal/engine"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron   *cron.Cron
	engine *engine.Engine
	cfg    *config.Config
}

// NewScheduler создаёт планировщик задач в часовом поясе приложения.
func NewScheduler(eng *engine.Engine, cfg *config.Config) *Scheduler {
	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить %s, используем UTC+3", cfg.AppTimezone)
		loc = time.FixedZone("MSK", 3*60*60)
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:   c,
		engine: eng,
		cfg:    cfg,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Обход активных позиций: единственный источник записи начислений
	s.cron.AddFunc("@every "+s.cfg.SweepInterval.String(), func() {
		log.Debug("[CRON] Обход активных позиций")
		if err := s.engine.SweepOnce(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка обхода позиций")
		}
	})

	// Проверка просроченных дедлайнов челленджей
	s.cron.AddFunc("@every "+s.cfg.DeadlineCheckInterval.String(), func() {
		log.Debug("[CRON] Проверка дедлайнов челленджей")
		if err := s.engine.CheckDeadlines(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка проверки дедлайнов")
		}
	})

	s.cron.Start()
	log.WithFields(log.Fields{
		"sweep":     s.cfg.SweepInterval.String(),
		"deadlines": s.cfg.DeadlineCheckInterval.String(),
	}).Info("Планировщик задач запущен")
}

// Stop останавливает планировщик, дожидаясь текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
