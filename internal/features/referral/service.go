// Package referral — service.go содержит правила доступности бонусов
// и сборку витрины сети.
package referral

import (
	"context"
	"math"
)

// Показываемые проценты уровней витрины. Выплачивается только уровень 1
// (см. журнал комиссий); глубже — ориентировочные цифры для кабинета.
var displayPercents = map[int]float64{
	1: 10,
	2: 5,
	3: 1,
}

// NetworkDepth — сколько уровней сети показываем в кабинете.
const NetworkDepth = 3

// BonusAvailable возвращает доступную к выводу часть бонусного баланса.
// До уровня unlockTier доступен только lockedPercent процентов баланса,
// с уровня unlockTier — весь баланс. Считается при каждом запросе
// от текущего уровня, ничего не кешируется.
func BonusAvailable(balance int64, tier, unlockTier int, lockedPercent float64) int64 {
	if balance <= 0 {
		return 0
	}
	if tier >= unlockTier {
		return balance
	}
	return int64(math.Floor(float64(balance) * lockedPercent / 100))
}

// Service собирает витрину реферальной сети.
type Service struct {
	repo *Repository
}

// NewService создаёт сервис рефералов.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// NetworkOverview возвращает уровни сети аккаунта с витринными цифрами.
// Пустые уровни включаются с нулями, чтобы кабинет всегда видел все три.
func (s *Service) NetworkOverview(ctx context.Context, accountID int64) ([]*NetworkLevel, error) {
	byLevel, err := s.repo.NetworkByLevel(ctx, accountID, NetworkDepth)
	if err != nil {
		return nil, err
	}

	out := make([]*NetworkLevel, 0, NetworkDepth)
	for level := 1; level <= NetworkDepth; level++ {
		lvl, ok := byLevel[level]
		if !ok {
			lvl = &NetworkLevel{Level: level}
		}
		lvl.DisplayPercent = displayPercents[level]
		lvl.DisplayAmount = int64(math.Floor(float64(lvl.EarningsGross) * lvl.DisplayPercent / 100))
		out = append(out, lvl)
	}
	return out, nil
}

// Bonuses возвращает историю разовых бонусов реферера.
func (s *Service) Bonuses(ctx context.Context, referrerID int64) ([]*ReferralBonus, error) {
	return s.repo.ListBonuses(ctx, referrerID)
}
