package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"points-service/internal/app"
	"points-service/internal/config"
	"points-service/internal/database"
	grpcServer "points-service/internal/grpc"
	"points-service/internal/handlers"
	"points-service/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db, cfg.Database.Driver); err != nil {
			log.Fatalf("auto migrate: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ledger := app.New(cfg, db, log, reg)
	defer ledger.Close()

	h := &handlers.Handler{
		Ledger:    ledger.Ledger,
		Content:   ledger.Content,
		Expiry:    ledger.Expiry,
		Reporting: ledger.Reporting,
		Reconcile: ledger.Reconcile,
		Users:     ledger.Users,
		Log:       log.WithField("component", "http"),
	}
	if cfg.Redis.QueueEnabled {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr})
		defer asynqClient.Close()
		h.Queue = asynqClient
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(log), cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome To Points Ledger service"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	h.RegisterRoutes(r, cfg.JWT.Secret)

	g := grpcServer.NewGRPCServer(&grpcServer.Server{
		Ledger:    ledger.Ledger,
		Content:   ledger.Content,
		Expiry:    ledger.Expiry,
		Reporting: ledger.Reporting,
		Log:       log.WithField("component", "grpc"),
	}, cfg.JWT.Secret)
	go func() {
		log.Infof("gRPC server starting on port %s", cfg.GRPCPort)
		if err := grpcServer.StartGRPCServer(cfg.GRPCPort, g); err != nil {
			log.Fatalf("gRPC server: %v", err)
		}
	}()

	if cfg.Sweep.Enabled {
		scheduler, err := ledger.Expiry.StartScheduler(cfg.Sweep.Cron)
		if err != nil {
			log.Fatalf("start expiry scheduler: %v", err)
		}
		defer scheduler.Stop()
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infof("HTTP Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP shutdown")
	}
	g.GracefulStop()
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
