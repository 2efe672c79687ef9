package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/pkacci/FlashDeal/internal/app"
	"github.com/pkacci/FlashDeal/internal/clock"
	"github.com/pkacci/FlashDeal/internal/config"
	"github.com/pkacci/FlashDeal/internal/notify"
	"github.com/pkacci/FlashDeal/internal/payments"
	"github.com/pkacci/FlashDeal/internal/storage/postgres"
	transporthttp "github.com/pkacci/FlashDeal/internal/transport/http"
	"github.com/pkacci/FlashDeal/internal/voucher"
	"github.com/pkacci/FlashDeal/internal/worker"
	"github.com/pkacci/FlashDeal/migrations"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Webhook.Secret == "" {
		logger.Warn("PIX_WEBHOOK_SECRET not set, webhook requests will be rejected")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		logger.Fatal("init notifier", zap.Error(err))
	}
	defer closeNotifier()

	clk := clock.NewSystem()
	gateway := payments.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.AddressKey, cfg.Gateway.Timeout)

	resvRepo := postgres.NewReservationRepository(pool)
	offerRepo := postgres.NewOfferRepository(pool)
	issuer := voucher.NewIssuer()

	resvSvc := app.NewReservationService(resvRepo, gateway, clk, logger, app.WithPaymentWindow(cfg.Booking.PaymentWindow))
	webhookSvc := app.NewWebhookService(resvRepo, issuer, notifier, clk, logger)
	cancelSvc := app.NewCancellationService(resvRepo, notifier, clk, logger, app.WithCancelCutoff(cfg.Booking.CancelCutoff))
	redeemSvc := app.NewRedemptionService(resvRepo, clk)
	offerSvc := app.NewOfferService(offerRepo, clk)

	handler := transporthttp.NewRouter(transporthttp.RouterDeps{
		Reservations:  resvSvc,
		Cancellations: cancelSvc,
		Webhooks:      webhookSvc,
		Redemptions:   redeemSvc,
		Offers:        offerSvc,
		WebhookSecret: cfg.Webhook.Secret,
		CORSOrigins:   cfg.CORSOrigins(),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: handler,
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	reclaimer := worker.NewReclaimer(resvRepo, clk, logger, cfg.Booking.PaymentWindow, cfg.Workers.ReclaimInterval, cfg.Workers.BatchSize)
	sweeper := worker.NewOfferSweeper(offerRepo, clk, logger, cfg.Workers.SweepInterval)
	voucherNotifier := worker.NewVoucherNotifier(resvRepo, notifier, clk, logger, cfg.Workers.VoucherNotifyInterval)
	go reclaimer.Start(workerCtx)
	go sweeper.Start(workerCtx)
	go voucherNotifier.Start(workerCtx)

	logger.Info("api listening", zap.String("port", cfg.HTTP.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, func(), error) {
	brokers := cfg.KafkaBrokers()
	if len(brokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, notifications disabled")
		return notify.Noop{}, func() {}, nil
	}

	kafkaNotifier, err := notify.NewKafkaNotifier(brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	return kafkaNotifier, func() { _ = kafkaNotifier.Close() }, nil
}
