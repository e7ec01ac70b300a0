package levels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkladpro.ru/accrual-engine/internal/common"
	"vkladpro.ru/accrual-engine/internal/features/accounts"
)

func testMachine() Machine {
	return Machine{
		MaxTier:          20,
		Multiplier:       5,
		WindowTier1Weeks: 3,
		WindowWeeks:      2,
	}
}

func challengeAccount(tier int, pot, target int64, deadline time.Time, blocked bool) *accounts.Account {
	started := deadline.Add(-common.WeeksToDuration(2))
	return &accounts.Account{
		ID:                 1,
		Tier:               tier,
		ChallengePot:       pot,
		ChallengeTarget:    target,
		ChallengeStartedAt: &started,
		ChallengeDeadline:  &deadline,
		BenefitsBlocked:    blocked,
	}
}

func TestMachine_Window(t *testing.T) {
	m := testMachine()

	assert.Equal(t, common.WeeksToDuration(3), m.Window(1))
	assert.Equal(t, common.WeeksToDuration(2), m.Window(2))
	assert.Equal(t, common.WeeksToDuration(2), m.Window(19))
}

func TestMachine_Target(t *testing.T) {
	m := testMachine()

	// Цель = 5 × первый депозит (500,00 ₽ → 2 500,00 ₽)
	assert.Equal(t, int64(250000), m.Target(50000))
}

func TestMachine_NextChallenge(t *testing.T) {
	m := testMachine()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	start, deadline := m.NextChallenge(2, now)
	require.NotNil(t, start)
	require.NotNil(t, deadline)
	assert.Equal(t, now, *start)
	assert.Equal(t, now.Add(common.WeeksToDuration(2)), *deadline)

	// Терминальный уровень — челленджей больше нет
	start, deadline = m.NextChallenge(20, now)
	assert.Nil(t, start)
	assert.Nil(t, deadline)
}

func TestMachine_Evaluate_NoChallenge(t *testing.T) {
	m := testMachine()
	now := time.Now()

	// До первого депозита решение всегда «ничего»
	a := &accounts.Account{ID: 1, Tier: 1}
	assert.Equal(t, ActionNone, m.Evaluate(a, now))
}

func TestMachine_Evaluate_Advance(t *testing.T) {
	m := testMachine()
	now := time.Now()

	a := challengeAccount(1, 250000, 250000, now.Add(time.Hour), false)
	assert.Equal(t, ActionAdvance, m.Evaluate(a, now))
}

func TestMachine_Evaluate_AdvanceWinsOverExpiredDeadline(t *testing.T) {
	m := testMachine()
	now := time.Now()

	// Цель набрана уже после дедлайна — всё равно повышение
	a := challengeAccount(3, 300000, 250000, now.Add(-time.Hour), true)
	assert.Equal(t, ActionAdvance, m.Evaluate(a, now))
}

func TestMachine_Evaluate_Block(t *testing.T) {
	m := testMachine()
	now := time.Now()

	a := challengeAccount(1, 100000, 250000, now.Add(-time.Minute), false)
	assert.Equal(t, ActionBlock, m.Evaluate(a, now))
}

func TestMachine_Evaluate_BlockIsIdempotent(t *testing.T) {
	m := testMachine()
	now := time.Now()

	// Уже заблокирован — повторной блокировки нет
	a := challengeAccount(1, 100000, 250000, now.Add(-time.Minute), true)
	assert.Equal(t, ActionNone, m.Evaluate(a, now))
}

func TestMachine_Evaluate_InProgress(t *testing.T) {
	m := testMachine()
	now := time.Now()

	a := challengeAccount(5, 100000, 250000, now.Add(time.Hour), false)
	assert.Equal(t, ActionNone, m.Evaluate(a, now))
}

func TestMachine_Evaluate_TerminalTier(t *testing.T) {
	m := testMachine()
	now := time.Now()

	// 20-й уровень — неподвижная точка: ни челленджей, ни блокировок
	a := challengeAccount(20, 0, 250000, now.Add(-time.Hour), false)
	assert.Equal(t, ActionNone, m.Evaluate(a, now))
}
