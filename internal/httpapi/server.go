// Package httpapi — HTTP-поверхность движка: приём депозитов от платёжки,
// кабинет партнёра и административные ручки.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"vkladpro.ru/accrual-engine/internal/config"
	"vkladpro.ru/accrual-engine/internal/engine"
	"vkladpro.ru/accrual-engine/internal/features/accounts"
	"vkladpro.ru/accrual-engine/internal/features/commission"
	"vkladpro.ru/accrual-engine/internal/features/positions"
	"vkladpro.ru/accrual-engine/internal/features/referral"
)

// Server — HTTP-сервер движка.
type Server struct {
	cfg            *config.Config
	engine         *engine.Engine
	accountService *accounts.Service
	referralSvc    *referral.Service
	commissionRepo *commission.Repository
	positionsRepo  *positions.Repository
	db             *pgxpool.Pool

	http *http.Server
}

// NewServer собирает роутер и возвращает готовый к запуску сервер.
func NewServer(
	cfg *config.Config,
	eng *engine.Engine,
	accountService *accounts.Service,
	referralSvc *referral.Service,
	commissionRepo *commission.Repository,
	positionsRepo *positions.Repository,
	db *pgxpool.Pool,
) *Server {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:            cfg,
		engine:         eng,
		accountService: accountService,
		referralSvc:    referralSvc,
		commissionRepo: commissionRepo,
		positionsRepo:  positionsRepo,
		db:             db,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), requestMetrics())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/accounts", s.handleRegisterAccount)
		api.POST("/deposits", s.handleDeposit)
		api.GET("/accounts/:id", s.handleGetAccount)
		api.GET("/accounts/:id/dashboard", s.handleDashboard)
		api.GET("/accounts/:id/positions", s.handlePositions)
		api.GET("/accounts/:id/affiliates", s.handleAffiliates)
		api.GET("/accounts/:id/withdrawable", s.handleWithdrawable)
		api.GET("/accounts/:id/commissions", s.handleCommissions)
		api.GET("/accounts/:id/network", s.handleNetwork)
		api.GET("/accounts/:id/bonuses", s.handleBonuses)
	}

	admin := api.Group("/admin", adminAuth(cfg.AdminTokenHash))
	{
		admin.POST("/sweep", s.handleAdminSweep)
		admin.POST("/deadlines", s.handleAdminDeadlines)
		admin.POST("/positions/:id/status", s.handleClosePosition)
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start запускает сервер и блокируется до его остановки.
func (s *Server) Start() error {
	log.WithField("addr", s.http.Addr).Info("HTTP-сервер запущен")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ошибка HTTP-сервера: %w", err)
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
