// Package accounts управляет инвесторскими аккаунтами: регистрацией,
// балансами и состоянием челленджа.
// models.go описывает структуры данных для работы с таблицей accounts.
package accounts

import "time"

// Account представляет аккаунт инвестора в базе данных.
// Все денежные поля — в копейках.
type Account struct {
	ID         int64  `db:"id" json:"id"`                   // Автоинкрементный ID аккаунта
	TelegramID *int64 `db:"telegram_id" json:"telegram_id"` // Telegram ID для уведомлений (может быть nil)
	ReferrerID *int64 `db:"referrer_id" json:"referrer_id"` // Прямой реферер (nil, если пришёл без приглашения; фиксируется при регистрации)

	Tier int `db:"tier" json:"tier"` // Текущий уровень, 1..20

	InvestedTotal     int64 `db:"invested_total" json:"invested_total"`         // Сумма всех депозитов
	EarningsBalance   int64 `db:"earnings_balance" json:"earnings_balance"`     // Личные начисления, доступные к выводу
	WithheldEarnings  int64 `db:"withheld_earnings" json:"withheld_earnings"`   // Личные начисления, удержанные на время блокировки
	CommissionBalance int64 `db:"commission_balance" json:"commission_balance"` // Накопленные комиссии с партнёров
	BonusBalance      int64 `db:"bonus_balance" json:"bonus_balance"`           // Накопленные разовые реферальные бонусы
	WithdrawnTotal    int64 `db:"withdrawn_total" json:"withdrawn_total"`       // Сумма всех выводов

	BenefitsBlocked bool `db:"benefits_blocked" json:"benefits_blocked"` // Личные начисления удерживаются до выполнения челленджа

	// Состояние текущего челленджа. Поля nil, пока не было первого депозита
	// и после достижения максимального уровня.
	ChallengeStartedAt *time.Time `db:"challenge_started_at" json:"challenge_started_at"`
	ChallengeDeadline  *time.Time `db:"challenge_deadline" json:"challenge_deadline"`
	ChallengePot       int64      `db:"challenge_pot" json:"challenge_pot"`       // Накоплено к цели текущего окна
	ChallengeTarget    int64      `db:"challenge_target" json:"challenge_target"` // 5 × первый депозит, не меняется никогда

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasChallenge сообщает, идёт ли у аккаунта челлендж.
func (a *Account) HasChallenge() bool {
	return a.ChallengeStartedAt != nil && a.ChallengeDeadline != nil
}

// HasReferrer сообщает, есть ли у аккаунта прямой реферер.
func (a *Account) HasReferrer() bool {
	return a.ReferrerID != nil
}
