// Package httpapi — handlers.go: обработчики запросов.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/common"
	"vkladpro.ru/accrual-engine/internal/engine"
	"vkladpro.ru/accrual-engine/internal/features/positions"
)

type registerAccountRequest struct {
	TelegramID *int64 `json:"telegram_id"`
	ReferrerID *int64 `json:"referrer_id"`
}

type depositRequest struct {
	AccountID int64   `json:"account_id" binding:"required"`
	OrderID   string  `json:"order_id" binding:"required"`
	Amount    int64   `json:"amount" binding:"required"`
	BaseRate  float64 `json:"base_rate" binding:"required"`
	TermWeeks int     `json:"term_weeks"`
}

// handleRegisterAccount регистрирует аккаунт, опционально — под реферером.
func (s *Server) handleRegisterAccount(c *gin.Context) {
	var req registerAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	a, err := s.accountService.Register(c.Request.Context(), req.TelegramID, req.ReferrerID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// handleDeposit принимает подтверждённый депозит от платёжной системы.
// Повтор того же order_id — не дубль, а идемпотентный повтор: 409.
func (s *Server) handleDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный order_id"})
		return
	}

	res, err := s.engine.RegisterDeposit(c.Request.Context(), engine.NewDeposit{
		AccountID: req.AccountID,
		OrderID:   orderID,
		Amount:    req.Amount,
		BaseRate:  req.BaseRate,
		TermWeeks: req.TermWeeks,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"position_id":   res.Position.ID,
		"first_deposit": res.FirstDeposit,
	})
}

// handleDashboard возвращает снимок кабинета: аккаунт, позиции,
// доступные средства и витрину сети.
func (s *Server) handleDashboard(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}

	d, err := s.engine.Dashboard(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	network, err := s.referralSvc.NetworkOverview(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":      d.Account,
		"positions":    d.Positions,
		"withdrawable": d.Withdrawable,
		"network":      network,
	})
}

// handleWithdrawable возвращает расклад доступных к выводу средств.
func (s *Server) handleWithdrawable(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}

	w, err := s.engine.Withdrawable(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// handleCommissions возвращает последние комиссии аккаунта.
func (s *Server) handleCommissions(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	list, err := s.commissionRepo.ListByPayee(c.Request.Context(), id, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	total, err := s.commissionRepo.TotalByPayee(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"commissions": list, "total": total})
}

// handleNetwork возвращает витрину партнёрской сети (3 уровня).
func (s *Server) handleNetwork(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}

	levels, err := s.referralSvc.NetworkOverview(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"levels": levels})
}

// handleBonuses возвращает историю разовых бонусов за партнёров.
func (s *Server) handleBonuses(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}

	bonuses, err := s.referralSvc.Bonuses(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bonuses": bonuses})
}

// handleGetAccount возвращает аккаунт как есть, без синхронизации.
func (s *Server) handleGetAccount(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}

	a, err := s.accountService.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// handlePositions возвращает все позиции аккаунта, включая закрытые.
func (s *Server) handlePositions(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}

	poss, err := s.positionsRepo.GetByAccount(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": poss})
}

// handleAffiliates возвращает прямых партнёров аккаунта.
func (s *Server) handleAffiliates(c *gin.Context) {
	id, ok := s.accountID(c)
	if !ok {
		return
	}

	affs, err := s.accountService.Affiliates(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affiliates": affs})
}

// handleHealth проверяет доступность БД.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db недоступна"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAdminSweep запускает внеплановый обход позиций.
func (s *Server) handleAdminSweep(c *gin.Context) {
	if err := s.engine.SweepOnce(c.Request.Context()); err != nil {
		log.WithError(err).Error("Ошибка ручного обхода позиций")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка обхода"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAdminDeadlines запускает внеплановую проверку дедлайнов.
func (s *Server) handleAdminDeadlines(c *gin.Context) {
	if err := s.engine.CheckDeadlines(c.Request.Context()); err != nil {
		log.WithError(err).Error("Ошибка ручной проверки дедлайнов")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка проверки"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type closePositionRequest struct {
	Status string `json:"status" binding:"required"`
}

// handleClosePosition переводит позицию из active в закрытый статус.
// Перед закрытием позиция синхронизируется: накопленная дельта
// дозачисляется, потом начисления останавливаются.
func (s *Server) handleClosePosition(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор позиции"})
		return
	}

	var req closePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}
	switch req.Status {
	case positions.StatusMatured, positions.StatusWithdrawn, positions.StatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "недопустимый статус"})
		return
	}

	p, err := s.positionsRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if _, err := s.engine.SyncPosition(c.Request.Context(), p); err != nil {
		s.respondError(c, err)
		return
	}

	if err := s.positionsRepo.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		s.respondError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"position_id": id,
		"status":      req.Status,
	}).Info("Позиция закрыта")
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// accountID извлекает идентификатор аккаунта из пути.
func (s *Server) accountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор аккаунта"})
		return 0, false
	}
	return id, true
}

// respondError переводит доменные ошибки в HTTP-статусы.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrAccountNotFound),
		errors.Is(err, common.ErrPositionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrReferrerNotFound),
		errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrInvalidRate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrDuplicateOrder):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("Внутренняя ошибка обработки запроса")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
	}
}
