package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"points-service/internal/config"
	"points-service/internal/services"
)

// App holds the ledger services shared by the API, the worker and the CLI.
type App struct {
	Ledger    *services.LedgerService
	Content   *services.ContentLinkageService
	Expiry    *services.ExpiryService
	Reporting *services.ReportingService
	Reconcile *services.ReconcileService
	Users     *services.UserService
	Metrics   *services.Metrics

	redis *redis.Client
}

// New wires the services on db. reg may be nil when metrics are not exported.
func New(cfg *config.Config, db *gorm.DB, log logrus.FieldLogger, reg prometheus.Registerer) *App {
	a := &App{}
	if reg != nil {
		a.Metrics = services.MustNewMetrics(reg)
	}

	var locker services.Locker = services.NoopLocker{}
	if cfg.Sweep.Lock == "redis" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		locker = services.NewRedisLocker(a.redis)
	}

	a.Ledger = services.NewLedgerService(db, a.Metrics, log.WithField("component", "ledger"))
	a.Content = services.NewContentLinkageService(db, a.Ledger, log.WithField("component", "content"))
	a.Expiry = services.NewExpiryService(db, a.Ledger, locker, cfg.Sweep.MaxAgeDays, cfg.Sweep.LockTTL, a.Metrics, log.WithField("component", "expiry"))
	a.Reporting = services.NewReportingService(db)
	a.Reconcile = services.NewReconcileService(db, log.WithField("component", "reconcile"))
	a.Users = services.NewUserService(db, log.WithField("component", "users"))
	return a
}

func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
