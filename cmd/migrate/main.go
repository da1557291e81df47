package main

import (
	"errors"
	"flag"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/sirupsen/logrus"

	"points-service/internal/config"
	"points-service/internal/database"
	"points-service/internal/logger"
)

// Usage: migrate [up|down|version|force N]
func main() {
	flag.Parse()
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	m, err := database.NewMigrator(db, cfg.Database.Driver)
	if err != nil {
		log.Fatalf("init migrator: %v", err)
	}

	switch cmd {
	case "up":
		log.Info("Running database migrations...")
		err = m.Up()
	case "down":
		log.Info("Rolling back one migration...")
		err = m.Steps(-1)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatalf("read version: %v", verr)
		}
		log.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("schema version")
		return
	case "force":
		v, perr := strconv.Atoi(flag.Arg(1))
		if perr != nil {
			log.Fatalf("force needs a version number")
		}
		err = m.Force(v)
	default:
		log.Fatalf("unknown command %q", cmd)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration failed: %v", err)
	}
	log.Info("Migrations completed successfully!")
}
