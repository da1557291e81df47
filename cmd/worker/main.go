package main

import (
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"points-service/internal/app"
	"points-service/internal/config"
	"points-service/internal/database"
	"points-service/internal/logger"
	"points-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	ledger := app.New(cfg, db, log, nil)
	defer ledger.Close()

	w := worker.NewWorker(ledger.Content, ledger.Expiry, log.WithField("component", "worker"))

	log.Infof("Starting Asynq Worker on %s", cfg.Redis.Addr)
	if err := worker.StartWorker(asynq.RedisClientOpt{Addr: cfg.Redis.Addr}, w, 10); err != nil {
		log.Fatalf("could not run worker: %v", err)
	}
}
