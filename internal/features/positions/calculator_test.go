package positions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func week(n float64) time.Duration {
	return time.Duration(n * 7 * 24 * float64(time.Hour))
}

func TestCalculator_RateBonus(t *testing.T) {
	calc := Calculator{BonusTier2: 5, BonusTier3Plus: 10}

	assert.Equal(t, 0.0, calc.RateBonus(1))
	assert.Equal(t, 5.0, calc.RateBonus(2))
	assert.Equal(t, 10.0, calc.RateBonus(3))
	assert.Equal(t, 10.0, calc.RateBonus(20))
	// Повреждённый уровень ниже 1 надбавки не даёт
	assert.Equal(t, 0.0, calc.RateBonus(0))
}

func TestCalculator_EffectiveRate(t *testing.T) {
	calc := Calculator{BonusTier2: 5, BonusTier3Plus: 10}

	assert.Equal(t, 10.0, calc.EffectiveRate(10, 1))
	assert.Equal(t, 15.0, calc.EffectiveRate(10, 2))
	assert.Equal(t, 20.0, calc.EffectiveRate(10, 7))
}

func TestCalculator_Gross(t *testing.T) {
	calc := Calculator{BonusTier2: 5, BonusTier3Plus: 10}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	p := &Position{
		Principal: 100000,
		BaseRate:  10,
		TermWeeks: 52,
		StartedAt: start,
		Status:    StatusActive,
	}

	// 1000,00 ₽ под 10% в неделю: ровно неделя — 100,00 ₽
	assert.Equal(t, int64(10000), calc.Gross(p, 1, start.Add(week(1))))

	// Начисление непрерывное: полнедели — половина дохода
	assert.Equal(t, int64(5000), calc.Gross(p, 1, start.Add(week(0.5))))

	// До старта дохода нет
	assert.Equal(t, int64(0), calc.Gross(p, 1, start.Add(-time.Hour)))
	assert.Equal(t, int64(0), calc.Gross(p, 1, start))
}

func TestCalculator_Gross_ClampedByTerm(t *testing.T) {
	calc := Calculator{BonusTier2: 5, BonusTier3Plus: 10}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	p := &Position{
		Principal: 100000,
		BaseRate:  10,
		TermWeeks: 4,
		StartedAt: start,
		Status:    StatusActive,
	}

	atTerm := calc.Gross(p, 1, start.Add(week(4)))
	assert.Equal(t, int64(40000), atTerm)

	// После срока доход замирает, но не обнуляется
	assert.Equal(t, atTerm, calc.Gross(p, 1, start.Add(week(10))))
}

func TestCalculator_Gross_TierRaisesRateRetroactively(t *testing.T) {
	calc := Calculator{BonusTier2: 5, BonusTier3Plus: 10}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	p := &Position{
		Principal: 100000,
		BaseRate:  10,
		TermWeeks: 52,
		StartedAt: start,
		Status:    StatusActive,
	}
	now := start.Add(week(2))

	// Надбавка за уровень применяется ко всему накопленному доходу:
	// повышение владельца ускоряет позицию задним числом
	assert.Equal(t, int64(20000), calc.Gross(p, 1, now))
	assert.Equal(t, int64(30000), calc.Gross(p, 2, now))
	assert.Equal(t, int64(40000), calc.Gross(p, 5, now))
}

func TestPosition_Elapsed(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := &Position{TermWeeks: 4, StartedAt: start}

	assert.Equal(t, 0.0, p.Elapsed(start.Add(-week(1))))
	assert.Equal(t, 1.0, p.Elapsed(start.Add(week(1))))
	assert.Equal(t, 4.0, p.Elapsed(start.Add(week(9))))
}
