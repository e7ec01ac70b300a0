// Package positions управляет инвестиционными позициями (депозитами)
// и расчётом накопленного дохода.
// models.go описывает структуры для работы с таблицей positions.
package positions

import (
	"time"

	"github.com/google/uuid"
)

// Статусы позиции
const (
	StatusActive    = "active"    // Начисления идут (или заморожены по сроку)
	StatusMatured   = "matured"   // Срок вышел, тело доступно к возврату
	StatusWithdrawn = "withdrawn" // Тело выведено
	StatusCancelled = "cancelled" // Отменена (возврат депозита)
)

// Position представляет одну инвестицию. Создаётся при подтверждении
// депозита и никогда не удаляется — только меняет статус.
type Position struct {
	ID        int64     `db:"id" json:"id"`                 // Автоинкрементный ID позиции
	AccountID int64     `db:"account_id" json:"account_id"` // Владелец
	OrderID   uuid.UUID `db:"order_id" json:"order_id"`     // Идемпотентный ключ подтверждения депозита

	Principal int64     `db:"principal" json:"principal"`   // Тело инвестиции в копейках (неизменно)
	BaseRate  float64   `db:"base_rate" json:"base_rate"`   // Базовая недельная ставка в процентах (фиксируется при выборе предложения)
	TermWeeks int       `db:"term_weeks" json:"term_weeks"` // Максимальный срок начисления в неделях
	StartedAt time.Time `db:"started_at" json:"started_at"` // Старт начислений (неизменен)

	Status string `db:"status" json:"status"`

	// LastSyncedEarnings — валовая сумма, уже зачисленная владельцу.
	// Единственный источник истины против двойного начисления:
	// монотонно не убывает и меняется только синхронизатором (CAS).
	LastSyncedEarnings int64      `db:"last_synced_earnings" json:"last_synced_earnings"`
	LastSyncedAt       *time.Time `db:"last_synced_at" json:"last_synced_at"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Elapsed возвращает дробное число недель с момента старта позиции,
// ограниченное сроком позиции. Отрицательное время (сдвиг часов) даёт 0.
func (p *Position) Elapsed(now time.Time) float64 {
	weeks := now.Sub(p.StartedAt).Hours() / (7 * 24)
	if weeks < 0 {
		return 0
	}
	if weeks > float64(p.TermWeeks) {
		return float64(p.TermWeeks)
	}
	return weeks
}
