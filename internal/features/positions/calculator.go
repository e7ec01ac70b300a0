// Package positions — calculator.go содержит чистый расчёт накопленного дохода.
//
// Валовый доход позиции:
//
//	gross = principal × (effectiveRate / 100) × min(elapsedWeeks, termWeeks)
//
// где elapsedWeeks — дробное число недель (начисление непрерывное),
// а effectiveRate = baseRate + надбавка за ТЕКУЩИЙ уровень владельца.
// Надбавка пересчитывается при каждом вызове: повышение уровня задним числом
// ускоряет все активные позиции владельца с этого момента.
package positions

import (
	"math"
	"time"
)

// Calculator вычисляет валовый доход позиции. Никаких побочных эффектов:
// все данные приходят аргументами, результат зависит только от них.
type Calculator struct {
	BonusTier2     float64 // Надбавка к ставке на 2-м уровне (п.п.)
	BonusTier3Plus float64 // Надбавка с 3-го уровня и выше (п.п.)
}

// RateBonus возвращает надбавку к недельной ставке за уровень.
// Ступенчатая функция: уровень 1 → 0, уровень 2 → BonusTier2, 3+ → BonusTier3Plus.
func (c Calculator) RateBonus(tier int) float64 {
	switch {
	case tier <= 1:
		return 0
	case tier == 2:
		return c.BonusTier2
	default:
		return c.BonusTier3Plus
	}
}

// EffectiveRate возвращает действующую недельную ставку позиции
// с учётом текущего уровня владельца.
func (c Calculator) EffectiveRate(baseRate float64, tier int) float64 {
	return baseRate + c.RateBonus(tier)
}

// Gross возвращает валовый доход позиции в копейках на момент now.
// Значение округляется вниз до целой копейки; время за пределами срока
// не увеличивает доход (позиция замирает, но не закрывается).
func (c Calculator) Gross(p *Position, ownerTier int, now time.Time) int64 {
	rate := c.EffectiveRate(p.BaseRate, ownerTier)
	gross := float64(p.Principal) * rate / 100 * p.Elapsed(now)
	return int64(math.Floor(gross))
}
