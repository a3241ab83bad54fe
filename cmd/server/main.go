package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/kafka"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/notifications"
	"storefront/internal/redis"
	"storefront/internal/repository"
	"storefront/internal/services"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	runMigrations    = database.Migrate
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	redis      *redis.Client
	producer   *kafka.Producer
	consumer   *kafka.Consumer
	reconciler *services.Reconciler
	server     *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting storefront server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx); err != nil {
		app.log.WithError(err).Error("Server stopped with error")
		os.Exit(1)
	}
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := runMigrations(db, log); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	reportRepo := repository.NewReportRepository(db)

	couponService := services.NewCouponService(couponRepo, redisClient, producer, log)
	orderService := services.NewOrderService(orderRepo, redisClient, producer, log, &cfg.Orders)
	reportService := services.NewReportService(reportRepo, redisClient, log, &cfg.Report)
	reconciler := services.NewReconciler(orderRepo, redisClient, log, &cfg.Reconcile)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	notifier := notifications.NewNotifier(notifications.NewLogSender(log), log)
	registerEventHandlers(consumer, notifier, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	router := handlers.NewRouter(handlers.Router{
		Coupons:     handlers.NewCouponHandler(couponService, log),
		Orders:      handlers.NewOrderHandler(orderService, log),
		Reports:     handlers.NewReportHandler(reportService, log, &cfg.Report),
		Health:      handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck),
		RateLimit:   handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit),
		RateLimiter: rateLimiter,
		Log:         log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:        cfg,
		log:        log,
		db:         db,
		redis:      redisClient,
		producer:   producer,
		consumer:   consumer,
		reconciler: reconciler,
		server:     server,
	}, nil
}

// run обслуживает HTTP и сверку истории до отмены ctx, затем корректно останавливается.
func (a *application) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.WithField("address", a.server.Addr).Info("HTTP server starting")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.reconciler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Error("Server forced to shutdown")
		}
		return nil
	})

	err := g.Wait()
	a.close()
	return err
}

func (a *application) close() {
	_ = a.consumer.Stop()
	_ = a.producer.Close()
	_ = a.redis.Close()
	_ = a.db.Close()
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, notifier *notifications.Notifier, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeOrderStatusChanged, notifier.HandleOrderStatusChanged)

	consumer.RegisterHandler(models.EventTypeCouponRedeemed, func(ctx context.Context, event *models.Event) error {
		var data models.CouponRedeemedData
		if err := kafka.DecodeData(event, &data); err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{
			"event_id": event.ID,
			"code":     data.Code,
			"discount": data.DiscountAmount,
		}).Info("Coupon redeemed")
		return nil
	})
}
