// Package referral — реферальная сеть: разовые бонусы и витрина сети.
// models.go описывает структуры для отображения сети партнёров.
package referral

import "time"

// ReferralBonus — запись о разовом бонусе за первый депозит партнёра.
// Уникальность пары (referrer_id, affiliate_id) гарантирует,
// что бонус не начислится дважды, сколько бы партнёр ни инвестировал.
type ReferralBonus struct {
	ID          int64     `db:"id" json:"id"`
	ReferrerID  int64     `db:"referrer_id" json:"referrer_id"`
	AffiliateID int64     `db:"affiliate_id" json:"affiliate_id"`
	Amount      int64     `db:"amount" json:"amount"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NetworkLevel — агрегат одного уровня реферальной сети.
//
// ВАЖНО: это витрина. Реальные выплаты идут только прямому рефереру
// (уровень 1, из журнала комиссий). Цифры глубже первого уровня —
// ориентировочные, считаются на лету и нигде не хранятся.
type NetworkLevel struct {
	Level          int     `json:"level"`           // 1 — прямые партнёры
	Affiliates     int     `json:"affiliates"`      // Сколько аккаунтов на уровне
	DepositsTotal  int64   `json:"deposits_total"`  // Сумма их депозитов
	EarningsGross  int64   `json:"earnings_gross"`  // Их зачисленный валовый доход
	DisplayPercent float64 `json:"display_percent"` // Показываемый процент уровня
	DisplayAmount  int64   `json:"display_amount"`  // EarningsGross × DisplayPercent
}
