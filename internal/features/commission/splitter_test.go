package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitDelta(t *testing.T) {
	// 100,00 ₽ дельты при 10%: 90/10
	sp := SplitDelta(10000, 10, true)
	assert.Equal(t, int64(9000), sp.Owner)
	assert.Equal(t, int64(1000), sp.Referrer)
}

func TestSplitDelta_NoReferrer(t *testing.T) {
	sp := SplitDelta(10000, 10, false)
	assert.Equal(t, int64(10000), sp.Owner)
	assert.Equal(t, int64(0), sp.Referrer)
}

func TestSplitDelta_ExactConservation(t *testing.T) {
	// Округление вниз у реферера, остаток владельцу:
	// сумма долей всегда в точности равна дельте
	for _, delta := range []int64{1, 5, 7, 99, 101, 12345, 999999999} {
		sp := SplitDelta(delta, 10, true)
		assert.Equal(t, delta, sp.Owner+sp.Referrer, "дельта %d", delta)
		assert.GreaterOrEqual(t, sp.Referrer, int64(0))
		assert.GreaterOrEqual(t, sp.Owner, int64(0))
	}
}

func TestSplitDelta_SmallDelta(t *testing.T) {
	// Меньше копейки комиссии — всё владельцу
	sp := SplitDelta(5, 10, true)
	assert.Equal(t, int64(5), sp.Owner)
	assert.Equal(t, int64(0), sp.Referrer)
}

func TestSplitDelta_NonPositive(t *testing.T) {
	assert.Equal(t, Split{}, SplitDelta(0, 10, true))
	assert.Equal(t, Split{}, SplitDelta(-100, 10, true))
}

func TestSplitDelta_FullPercent(t *testing.T) {
	sp := SplitDelta(10000, 100, true)
	assert.Equal(t, int64(0), sp.Owner)
	assert.Equal(t, int64(10000), sp.Referrer)
}
