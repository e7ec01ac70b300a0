// Package config загружает конфигурацию движка из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP API ---
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"engine"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"invest_engine"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Admin ---
	// Argon2id-хеш админ-токена; генерируется scripts/generate_hash.go
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH" required:"true"`

	// --- Telegram-уведомления (опционально) ---
	// Если токен пуст — уведомления отключены, движок работает как обычно.
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`

	// --- Фоновая синхронизация ---
	// Как часто обходить все активные позиции
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	// Как часто проверять просроченные дедлайны челленджей
	DeadlineCheckInterval time.Duration `envconfig:"DEADLINE_CHECK_INTERVAL" default:"5m"`
	// Сколько позиций синхронизируем параллельно. Иначе "go на каждую позицию"
	// при большой базе положит пул соединений.
	SweepMaxInflight int `envconfig:"SWEEP_MAX_INFLIGHT" default:"16"`
	// Сколько раз повторяем синхронизацию при конфликте версий
	SyncMaxRetries int `envconfig:"SYNC_MAX_RETRIES" default:"3"`

	// --- Комиссии и бонусы ---
	// Процент прямого реферера от каждой дельты начисления
	CommissionPercent float64 `envconfig:"COMMISSION_PERCENT" default:"10"`
	// Разовый бонус рефереру за первый депозит партнёра (в копейках)
	ReferralBonusAmount int64 `envconfig:"REFERRAL_BONUS_AMOUNT" default:"500000"`
	// С какого уровня бонусный баланс доступен к выводу полностью
	BonusUnlockTier int `envconfig:"BONUS_UNLOCK_TIER" default:"10"`
	// Какой процент бонусного баланса доступен до этого уровня
	BonusLockedPercent float64 `envconfig:"BONUS_LOCKED_PERCENT" default:"1"`

	// --- Надбавки к ставке по уровням ---
	LevelBonusTier2     float64 `envconfig:"LEVEL_BONUS_TIER2" default:"5"`
	LevelBonusTier3Plus float64 `envconfig:"LEVEL_BONUS_TIER3_PLUS" default:"10"`

	// --- Челленджи уровней ---
	// Цель челленджа = множитель × первый депозит (фиксируется навсегда)
	ChallengeMultiplier int64 `envconfig:"CHALLENGE_MULTIPLIER" default:"5"`
	// Окно челленджа на 1-м уровне (в неделях)
	ChallengeWindowTier1Weeks int `envconfig:"CHALLENGE_WINDOW_TIER1_WEEKS" default:"3"`
	// Окно челленджа на остальных уровнях (в неделях)
	ChallengeWindowWeeks int `envconfig:"CHALLENGE_WINDOW_WEEKS" default:"2"`
	// Максимальный уровень — дальше челленджей и блокировок нет
	MaxTier int `envconfig:"MAX_TIER" default:"20"`

	// --- Позиции ---
	// Срок начисления по умолчанию (в неделях), если депозит не указал свой
	DefaultTermWeeks int `envconfig:"DEFAULT_TERM_WEEKS" default:"52"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("некорректный HTTP_PORT: %d", c.HTTPPort)
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.SweepInterval <= 0 || c.DeadlineCheckInterval <= 0 {
		return fmt.Errorf("интервалы фоновых задач должны быть > 0")
	}
	if c.SweepMaxInflight <= 0 {
		return fmt.Errorf("SWEEP_MAX_INFLIGHT должен быть > 0")
	}
	if c.SyncMaxRetries <= 0 {
		return fmt.Errorf("SYNC_MAX_RETRIES должен быть > 0")
	}
	if c.CommissionPercent < 0 || c.CommissionPercent > 100 {
		return fmt.Errorf("COMMISSION_PERCENT должен быть в диапазоне [0, 100]")
	}
	if c.BonusLockedPercent < 0 || c.BonusLockedPercent > 100 {
		return fmt.Errorf("BONUS_LOCKED_PERCENT должен быть в диапазоне [0, 100]")
	}
	if c.ChallengeMultiplier <= 0 {
		return fmt.Errorf("CHALLENGE_MULTIPLIER должен быть > 0")
	}
	if c.ChallengeWindowTier1Weeks <= 0 || c.ChallengeWindowWeeks <= 0 {
		return fmt.Errorf("окна челленджей должны быть > 0 недель")
	}
	if c.MaxTier < 2 {
		return fmt.Errorf("MAX_TIER должен быть >= 2")
	}
	if c.BonusUnlockTier < 1 || c.BonusUnlockTier > c.MaxTier {
		return fmt.Errorf("BONUS_UNLOCK_TIER должен быть в диапазоне [1, MAX_TIER]")
	}
	if c.DefaultTermWeeks <= 0 {
		return fmt.Errorf("DEFAULT_TERM_WEEKS должен быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
