package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"purchases/internal/commons"
	"purchases/internal/infrastructure/logger"
	"purchases/internal/infrastructure/metrics"
	"purchases/internal/infrastructure/mysql"
	"purchases/internal/infrastructure/rabbitmq"
	"purchases/internal/infrastructure/tracing"
	"purchases/internal/order"
	"purchases/internal/order/usecase"
	"purchases/internal/server"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "internal/config/config.yaml"
	}

	cfg, err := commons.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Services.Name)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Services.Name, zapLogger)
	if err != nil {
		zapLogger.Fatal("initializing tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			zapLogger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected")

	if cfg.Database.AutoMigrate {
		if err := mysql.Migrate(ctx, db); err != nil {
			zapLogger.Fatal("migrating database", zap.Error(err))
		}
		zapLogger.Info("database schema up to date")
	}

	var publisher usecase.EventPublisher = rabbitmq.NoopPublisher{}
	if cfg.Messaging.URL != "" {
		mq := rabbitmq.NewClient(cfg.Messaging, zapLogger)
		if err := mq.Connect(); err != nil {
			zapLogger.Warn("rabbitmq unavailable, order events will not be published", zap.Error(err))
		} else {
			defer mq.Close()
			publisher = rabbitmq.NewPublisher(mq, cfg.Messaging.Exchange, cfg.Services.Name, zapLogger)
		}
	}

	m := metrics.New()
	orders := order.NewModule(db, cfg, publisher, m, zapLogger)

	breakers := make([]server.BreakerState, len(orders.Breakers))
	for i, b := range orders.Breakers {
		breakers[i] = b
	}

	router := server.NewRouter(server.RouterDeps{
		Orders:        orders.Controller,
		Authenticator: orders.Authenticator,
		Health:        server.HealthHandler(cfg.Services.Name, db, breakers, zapLogger),
		Metrics:       m,
		Logger:        zapLogger,
	})

	srv := server.New(cfg.Server, router, zapLogger)
	if err := srv.Run(ctx); err != nil {
		zapLogger.Error("server error", zap.Error(err))
		return
	}

	zapLogger.Info("server stopped gracefully")
}
