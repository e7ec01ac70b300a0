package referral

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBonusAvailable_BelowUnlockTier(t *testing.T) {
	// До 10-го уровня доступен только 1% бонусного баланса
	assert.Equal(t, int64(1000), BonusAvailable(100000, 1, 10, 1))
	assert.Equal(t, int64(1000), BonusAvailable(100000, 9, 10, 1))

	// Доля округляется вниз до копейки
	assert.Equal(t, int64(0), BonusAvailable(50, 5, 10, 1))
}

func TestBonusAvailable_AtUnlockTier(t *testing.T) {
	assert.Equal(t, int64(100000), BonusAvailable(100000, 10, 10, 1))
	assert.Equal(t, int64(100000), BonusAvailable(100000, 20, 10, 1))
}

func TestBonusAvailable_EmptyBalance(t *testing.T) {
	assert.Equal(t, int64(0), BonusAvailable(0, 15, 10, 1))
	assert.Equal(t, int64(0), BonusAvailable(-500, 1, 10, 1))
}
