// Package levels — service.go применяет решения машины состояний к базе
// и рассылает уведомления о переходах.
package levels

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/features/accounts"
	"vkladpro.ru/accrual-engine/internal/metrics"
)

// Store — операции с леджером, нужные для применения решений.
// Реализуется пакетом ledger.
type Store interface {
	AccountByID(ctx context.Context, id int64) (*accounts.Account, error)
	// SetTierAndChallenge атомарно: ставит уровень, снимает блокировку,
	// переводит удержанные начисления в доступные, обнуляет котёл
	// и открывает новое окно (nil-окно для терминального уровня).
	SetTierAndChallenge(ctx context.Context, accountID int64, newTier int, start, deadline *time.Time) error
	SetBlocked(ctx context.Context, accountID int64, blocked bool) error
}

// Notifier получает события переходов. Реализация может слать их
// в Telegram; ошибки доставки не влияют на движок.
type Notifier interface {
	TierAdvanced(accountID int64, newTier int)
	BenefitsBlocked(accountID int64)
	BenefitsUnblocked(accountID int64)
}

// NopNotifier — заглушка, когда уведомления отключены.
type NopNotifier struct{}

func (NopNotifier) TierAdvanced(int64, int) {}
func (NopNotifier) BenefitsBlocked(int64)   {}
func (NopNotifier) BenefitsUnblocked(int64) {}

// Service применяет решения машины состояний.
type Service struct {
	store    Store
	machine  Machine
	notifier Notifier
}

// NewService создаёт сервис уровней.
func NewService(store Store, machine Machine, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{store: store, machine: machine, notifier: notifier}
}

// Machine возвращает машину состояний (для инициализации челленджей).
func (s *Service) Machine() Machine {
	return s.machine
}

// Apply перечитывает аккаунт и применяет решение машины состояний.
// Вызывается после каждого пополнения котла и при проверке дедлайнов.
// Идемпотентно: повторный вызов на том же состоянии ничего не меняет.
func (s *Service) Apply(ctx context.Context, accountID int64, now time.Time) error {
	a, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("уровни: чтение аккаунта %d: %w", accountID, err)
	}

	// Уровень вне [1, MaxTier] — повреждённые данные. Не трогаем,
	// только сигналим в observability.
	if a.Tier < 1 || a.Tier > s.machine.MaxTier {
		metrics.InvariantViolations.Inc()
		log.WithFields(log.Fields{
			"account_id": a.ID,
			"tier":       a.Tier,
		}).Error("Уровень аккаунта вне допустимого диапазона — пропускаем")
		return nil
	}

	switch s.machine.Evaluate(a, now) {
	case ActionAdvance:
		newTier := a.Tier + 1
		if newTier > s.machine.MaxTier {
			newTier = s.machine.MaxTier
		}
		start, deadline := s.machine.NextChallenge(newTier, now)
		if err := s.store.SetTierAndChallenge(ctx, a.ID, newTier, start, deadline); err != nil {
			return fmt.Errorf("уровни: повышение аккаунта %d: %w", a.ID, err)
		}

		metrics.TierAdvancesTotal.Inc()
		log.WithFields(log.Fields{
			"account_id": a.ID,
			"tier":       newTier,
			"pot":        a.ChallengePot,
			"target":     a.ChallengeTarget,
		}).Info("Челлендж выполнен — уровень повышен")

		s.notifier.TierAdvanced(a.ID, newTier)
		if a.BenefitsBlocked {
			s.notifier.BenefitsUnblocked(a.ID)
		}

	case ActionBlock:
		if err := s.store.SetBlocked(ctx, a.ID, true); err != nil {
			return fmt.Errorf("уровни: блокировка аккаунта %d: %w", a.ID, err)
		}

		metrics.AccountsBlockedTotal.Inc()
		log.WithFields(log.Fields{
			"account_id": a.ID,
			"pot":        a.ChallengePot,
			"target":     a.ChallengeTarget,
		}).Info("Дедлайн челленджа прошёл — личные начисления заблокированы")

		s.notifier.BenefitsBlocked(a.ID)
	}

	return nil
}
