// Package commission — splitter.go содержит чистый расчёт деления дельты.
package commission

import "math"

// Split — результат деления дельты начисления.
// Инвариант: Owner + Referrer == дельта, без потерь на округлении.
type Split struct {
	Owner    int64 // Доля владельца позиции
	Referrer int64 // Доля прямого реферера (0, если реферера нет)
}

// SplitDelta делит дельту между владельцем и его прямым реферером.
// Доля реферера округляется вниз до копейки, остаток уходит владельцу —
// так сумма долей всегда в точности равна дельте.
// Комиссия платится только прямому рефереру: выше по цепочке ничего
// не каскадируется, многоуровневые цифры — отдельная витрина для показа.
func SplitDelta(delta int64, percent float64, hasReferrer bool) Split {
	if delta <= 0 {
		return Split{}
	}
	if !hasReferrer {
		return Split{Owner: delta}
	}
	referrer := int64(math.Floor(float64(delta) * percent / 100))
	if referrer < 0 {
		referrer = 0
	}
	if referrer > delta {
		referrer = delta
	}
	return Split{Owner: delta - referrer, Referrer: referrer}
}
