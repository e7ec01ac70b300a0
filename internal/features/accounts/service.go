// Package accounts — service.go содержит бизнес-логику регистрации.
package accounts

import (
	"context"

	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/common"
)

// Service управляет аккаунтами инвесторов.
type Service struct {
	repo *Repository
}

// NewService создаёт новый сервис аккаунтов.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Register создаёт аккаунт. Реферер опционален и проверяется на существование;
// после регистрации связь не меняется.
func (s *Service) Register(ctx context.Context, telegramID, referrerID *int64) (*Account, error) {
	if referrerID != nil {
		exists, err := s.repo.Exists(ctx, *referrerID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, common.ErrReferrerNotFound
		}
	}

	acc, err := s.repo.Create(ctx, telegramID, referrerID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": acc.ID,
		"referrer":   referrerID,
	}).Info("Аккаунт зарегистрирован")

	return acc, nil
}

// Get возвращает аккаунт по ID.
func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// Affiliates возвращает прямых партнёров аккаунта.
func (s *Service) Affiliates(ctx context.Context, id int64) ([]*Account, error) {
	return s.repo.DirectAffiliates(ctx, id)
}
