// Order Fulfillment Service — точка входа. Единый процесс, обслуживающий
// storefront REST API, webhook приём платежей, saga-оркестрацию заказа и
// ревизор брошенных корзин — саги этой системы не пересекают границы
// сервисов, поэтому всё живёт в одном процессе с общим graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/orderfulfillment/internal/httpapi"
	"example.com/orderfulfillment/internal/idempotency"
	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/notification"
	"example.com/orderfulfillment/internal/payment"
	"example.com/orderfulfillment/internal/reaper"
	"example.com/orderfulfillment/internal/saga"
	"example.com/orderfulfillment/internal/session"
	"example.com/orderfulfillment/internal/store"
	"example.com/orderfulfillment/internal/webhook"
	"example.com/orderfulfillment/pkg/circuitbreaker"
	"example.com/orderfulfillment/pkg/config"
	dbpkg "example.com/orderfulfillment/pkg/db"
	"example.com/orderfulfillment/pkg/healthcheck"
	"example.com/orderfulfillment/pkg/kafka"
	"example.com/orderfulfillment/pkg/logger"
	"example.com/orderfulfillment/pkg/metrics"
	"example.com/orderfulfillment/pkg/middleware"
	outboxpkg "example.com/orderfulfillment/pkg/outbox"
	"example.com/orderfulfillment/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	log := logger.With().Str("service", cfg.App.Name).Logger()
	log.Info().Str("env", cfg.App.Env).Int("port", cfg.App.HTTPPort).Msg("Запуск Order Fulfillment Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	redisClient := dbpkg.ConnectRedis(cfg.Redis)
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()
	log.Info().Str("addr", cfg.Redis.Addr()).Msg("Подключено к Redis")

	// === Репозитории и движок инвентаря ===

	orderRepo := store.NewOrderRepository(db)
	productRepo := store.NewProductRepository(db)
	inventoryRepo := store.NewInventoryRepository(db)
	engine := inventoryengine.New(inventoryRepo)

	idemStore := idempotency.NewStore(redisClient, idempotency.DefaultTTL)
	idemService := idempotency.NewService(idemStore)

	sessionStore := session.NewStore(redisClient)

	// === Платёжный адаптер ===

	secrets := payment.NewSecretProvider(cfg.Payment.WebhookSecretRef)
	breaker := circuitbreaker.New("payment-provider")
	paymentAdapter := payment.NewHTTPAdapter(cfg.Payment.BaseURL, cfg.Payment.RequestTimeout, breaker)

	// === Outbox и уведомления ===

	outboxRepo := outboxpkg.NewOutboxRepository(db, "notification")
	notifyService := notification.NewService(outboxRepo, kafka.TopicNotifications, notification.Config{
		SenderAddress: cfg.Notification.SenderAddress,
		Enabled:       cfg.Notification.Enabled,
	})

	var kafkaProducer *kafka.Producer
	var outboxWorker *outboxpkg.OutboxWorker
	var notificationConsumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka для доставки уведомлений")

		if err := kafka.EnsureTopics(cfg.Kafka.Brokers, kafka.DefaultTopics()); err != nil {
			log.Warn().Err(err).Msg("Не удалось создать топики (возможно Kafka недоступна)")
		}

		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		outboxWorker = outboxpkg.NewOutboxWorker(outboxRepo, kafkaProducer, outboxpkg.DefaultWorkerConfig(), "notification")

		notificationConsumer, err = kafka.NewConsumer(
			kafka.Config{Brokers: cfg.Kafka.Brokers, ConsumerGroup: cfg.Kafka.ConsumerGroup},
			kafka.TopicNotifications,
			cfg.Kafka.ConsumerGroup,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Consumer")
		}
		notificationConsumer.SetDLQProducer(kafkaProducer)
	} else {
		log.Warn().Msg("Kafka не настроена — уведомления останутся в outbox не отправленными")
	}

	sender := notification.NewLoggingSender(cfg.Notification.SenderAddress)

	// === Сага ===

	steps := saga.NewSteps(orderRepo, engine, idemService, paymentAdapter, notifyService)
	compensator := saga.NewCompensator(orderRepo, engine, paymentAdapter)
	orchestrator := saga.NewOrchestrator(steps, compensator)

	webhookHandler := webhook.NewHandler(orderRepo, secrets, orchestrator, cfg.Payment.AllowUnverifiedWebhooks)

	// === Ревизор брошенных корзин ===

	reaperWorker := reaper.New(orderRepo, engine, notifyService, reaper.Config{
		PollInterval:    cfg.AbandonedCart.PollInterval,
		Timeout:         cfg.AbandonedCart.Timeout(),
		ReminderEnabled: cfg.AbandonedCart.ReminderEnabled,
		ReminderAge:     cfg.AbandonedCart.ReminderThreshold(),
		BatchSize:       cfg.AbandonedCart.BatchSize,
	})

	// === HTTP слой ===

	rateLimitMW := middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
		Redis:  redisClient,
		Limit:  100,
		Window: time.Minute,
	})

	readinessCheck := func(ctx context.Context) error {
		return healthcheck.Composite(
			func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, db) },
			func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, redisClient) },
		)(ctx)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Orders:         httpapi.NewOrdersHandler(orderRepo, productRepo, engine, paymentAdapter),
		Inventory:      httpapi.NewInventoryHandler(engine, productRepo),
		Admin:          httpapi.NewAdminHandler(compensator),
		Webhook:        webhookHandler,
		Sessions:       sessionStore,
		RateLimit:      rateLimitMW,
		ReadinessCheck: readinessCheck,
		Debug:          cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), cfg.App.Name, metrics.WithReadinessCheck(readinessCheck))
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Запуск фоновых воркеров ===

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workersWg sync.WaitGroup

	if outboxWorker != nil {
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Outbox Worker")
				}
			}()
			log.Info().Msg("Запуск Outbox Worker")
			outboxWorker.Run(ctx)
		}()
	}

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в ревизоре брошенных корзин")
			}
		}()
		log.Info().Msg("Запуск ревизора брошенных корзин")
		reaperWorker.Run(ctx)
	}()

	if notificationConsumer != nil {
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Notification Consumer")
				}
			}()
			log.Info().Msg("Запуск Notification Consumer")
			if err := notificationConsumer.Consume(ctx, notification.ConsumerHandler(sender)); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Ошибка Notification Consumer")
			}
		}()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в HTTP сервере")
			}
		}()
		log.Info().Str("addr", srv.Addr).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Graceful shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	cancel()
	workersWg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка при остановке HTTP сервера")
	}

	if notificationConsumer != nil {
		if err := notificationConsumer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Notification Consumer")
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
		}
	}

	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Order Fulfillment Service остановлен")
}
