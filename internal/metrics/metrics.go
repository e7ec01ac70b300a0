// Package metrics содержит Prometheus-метрики движка.
// Метрики регистрируются через promauto в дефолтном реестре
// и отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncCreditedTotal — сумма зачисленных дельт в копейках
	SyncCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_sync_credited_kopecks_total",
		Help: "Total credited accrual delta across all positions, in kopecks",
	})

	// CommissionsPaidTotal — сумма выплаченных комиссий в копейках
	CommissionsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_commissions_paid_kopecks_total",
		Help: "Total referral commissions paid, in kopecks",
	})

	// StaleSyncRetries — конфликты версий при синхронизации
	StaleSyncRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_stale_sync_retries_total",
		Help: "Number of optimistic-concurrency conflicts during sync",
	})

	// InvariantViolations — отрицательные дельты, уровни вне диапазона
	InvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_invariant_violations_total",
		Help: "Number of skipped operations due to invariant violations",
	})

	// SweepErrorsTotal — позиции, пропущенные в обходе из-за ошибок
	SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_sweep_position_errors_total",
		Help: "Number of positions skipped during sweep due to errors",
	})

	// SweepDuration — длительность полного обхода активных позиций
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_sweep_duration_seconds",
		Help:    "Duration of a full sweep over active positions",
		Buckets: prometheus.DefBuckets,
	})

	// DepositsTotal — зарегистрированные депозиты
	DepositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_deposits_total",
		Help: "Number of confirmed deposits registered",
	})

	// TierAdvancesTotal — повышения уровней
	TierAdvancesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_tier_advances_total",
		Help: "Number of tier advancements",
	})

	// AccountsBlockedTotal — блокировки личных начислений
	AccountsBlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_accounts_blocked_total",
		Help: "Number of benefit-blocking transitions",
	})

	// BonusesPaidTotal — разовые реферальные бонусы
	BonusesPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_referral_bonuses_total",
		Help: "Number of one-time referral bonuses credited",
	})

	// HTTPRequestsTotal — счётчик HTTP-запросов
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
