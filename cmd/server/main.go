// Package main is the entry point for the billing server. It wires the
// persistence layer, the domain services, the scheduler and webhook delivery
// loops, and the HTTP API.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"payflow/internal/config"
	"payflow/internal/metrics"
	"payflow/internal/repositories"
	"payflow/internal/repositories/cache"
	"payflow/internal/routes"
	"payflow/internal/services/charge"
	"payflow/internal/services/orders"
	"payflow/internal/services/processor"
	"payflow/internal/services/scheduler"
	"payflow/internal/services/wallet"
	"payflow/internal/services/webhook"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	db := repositories.DB

	// Redis is optional; wallet reads fall back to the database when the
	// cache is unavailable.
	var walletCache wallet.CacheOperator
	redisClient, err := cache.NewRedisClient(&cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	})
	if err != nil {
		log.Printf("redis unavailable, running without wallet cache: %v", err)
	} else {
		walletCache = cache.NewWalletCache(redisClient, config.GetDurationEnv("WALLET_CACHE_TTL", 5*time.Minute))
		defer redisClient.Close()
	}

	walletRepo := repositories.NewWalletRepository(db)
	installmentRepo := repositories.NewInstallmentRepository(db)
	chargeRepo := repositories.NewChargeRepository(db)
	webhookRepo := repositories.NewWebhookLogRepository(db)

	walletService := wallet.NewService(walletRepo, walletCache, metrics.NewWalletMetrics())
	orderService := orders.NewService(installmentRepo)

	dispatcher := webhook.NewDispatcher(webhookRepo, webhook.Config{
		Targets:       config.GetListEnv("WEBHOOK_URLS"),
		PollInterval:  config.GetDurationEnv("DISPATCHER_POLL_INTERVAL", webhook.DefaultPollInterval),
		LeaseDuration: config.GetDurationEnv("WEBHOOK_LEASE_DURATION", webhook.DefaultLeaseDuration),
		MaxAttempts:   config.GetIntEnv("WEBHOOK_MAX_ATTEMPTS", webhook.DefaultMaxAttempts),
		BackoffBase:   config.GetDurationEnv("WEBHOOK_BACKOFF_BASE", webhook.DefaultBackoffBase),
		BackoffCap:    config.GetDurationEnv("WEBHOOK_BACKOFF_CAP", webhook.DefaultBackoffCap),
		SigningSecret: config.GetEnv("WEBHOOK_SIGNING_SECRET", ""),
	}, metrics.NewWebhookMetrics())

	external := processor.NewStripeProcessor(config.GetEnv("STRIPE_SECRET_KEY", ""))

	chargeService := charge.NewService(chargeRepo, installmentRepo, walletService, external, dispatcher, charge.Config{
		MaxAttempts: config.GetIntEnv("CHARGE_MAX_ATTEMPTS", charge.DefaultMaxAttempts),
		BackoffBase: config.GetDurationEnv("CHARGE_BACKOFF_BASE", charge.DefaultBackoffBase),
		BackoffCap:  config.GetDurationEnv("CHARGE_BACKOFF_CAP", charge.DefaultBackoffCap),
	}, metrics.NewChargeMetrics())

	sched := scheduler.New(installmentRepo, chargeService, scheduler.Config{
		PollInterval:  config.GetDurationEnv("SCHEDULER_POLL_INTERVAL", scheduler.DefaultPollInterval),
		LeaseDuration: config.GetDurationEnv("LEASE_DURATION", scheduler.DefaultLeaseDuration),
		BatchSize:     config.GetIntEnv("SCHEDULER_BATCH_SIZE", scheduler.DefaultBatchSize),
		Concurrency:   config.GetIntEnv("SCHEDULER_CONCURRENCY", scheduler.DefaultConcurrency),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sched.Run(ctx)
	go dispatcher.Run(ctx)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Deps{
		Wallets:  walletService,
		Orders:   orderService,
		Charges:  chargeService,
		Webhooks: dispatcher,
	})

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("server shutdown failed: %v", err)
		}
	}()

	if err := app.Listen(":" + config.GetEnv("PORT", "3000")); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
