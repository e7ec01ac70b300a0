// Package app инициализирует все компоненты движка.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, леджер,
// движок, планировщик и HTTP-сервер.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/config"
	"vkladpro.ru/accrual-engine/internal/db/postgres"
	"vkladpro.ru/accrual-engine/internal/engine"
	"vkladpro.ru/accrual-engine/internal/features/accounts"
	"vkladpro.ru/accrual-engine/internal/features/commission"
	"vkladpro.ru/accrual-engine/internal/features/levels"
	"vkladpro.ru/accrual-engine/internal/features/positions"
	"vkladpro.ru/accrual-engine/internal/features/referral"
	"vkladpro.ru/accrual-engine/internal/httpapi"
	"vkladpro.ru/accrual-engine/internal/jobs"
	"vkladpro.ru/accrual-engine/internal/ledger"
	"vkladpro.ru/accrual-engine/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *httpapi.Server
	Scheduler *jobs.Scheduler
	Engine    *engine.Engine
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Репозитории ===
	accountsRepo := accounts.NewRepository(pool)
	positionsRepo := positions.NewRepository(pool)
	commissionRepo := commission.NewRepository(pool)
	referralRepo := referral.NewRepository(pool)

	// === 3. Чистые расчёты ===
	calc := positions.Calculator{
		BonusTier2:     cfg.LevelBonusTier2,
		BonusTier3Plus: cfg.LevelBonusTier3Plus,
	}
	machine := levels.Machine{
		MaxTier:          cfg.MaxTier,
		Multiplier:       cfg.ChallengeMultiplier,
		WindowTier1Weeks: cfg.ChallengeWindowTier1Weeks,
		WindowWeeks:      cfg.ChallengeWindowWeeks,
	}

	// === 4. Леджер ===
	led := ledger.New(pool, accountsRepo, positionsRepo, cfg.CommissionPercent, machine)

	// === 5. Уведомления (опциональны) ===
	var notifier levels.Notifier
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, accountsRepo, machine)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации Telegram: %w", err)
		}
		notifier = tg
		log.Info("Telegram-уведомления включены")
	} else {
		log.Info("TELEGRAM_BOT_TOKEN пуст — уведомления отключены")
	}

	// === 6. Сервисы ===
	levelsSvc := levels.NewService(led, machine, notifier)
	accountSvc := accounts.NewService(accountsRepo)
	referralSvc := referral.NewService(referralRepo)

	// === 7. Движок ===
	eng := engine.New(led, calc, levelsSvc, engine.Options{
		SyncMaxRetries:      cfg.SyncMaxRetries,
		SweepMaxInflight:    cfg.SweepMaxInflight,
		ReferralBonusAmount: cfg.ReferralBonusAmount,
		BonusUnlockTier:     cfg.BonusUnlockTier,
		BonusLockedPercent:  cfg.BonusLockedPercent,
		DefaultTermWeeks:    cfg.DefaultTermWeeks,
	})

	// === 8. HTTP-сервер и планировщик ===
	server := httpapi.NewServer(cfg, eng, accountSvc, referralSvc, commissionRepo, positionsRepo, pool)
	scheduler := jobs.NewScheduler(eng, cfg)

	return &App{
		Server:    server,
		Scheduler: scheduler,
		Engine:    eng,
		DB:        pool,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Accounts},
		{2, migration002Positions},
		{3, migration003Commissions},
		{4, migration004ReferralBonuses},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}
