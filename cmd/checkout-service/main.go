package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
	"github.com/vasiliy-maslov/storefront-checkout/internal/config"
	"github.com/vasiliy-maslov/storefront-checkout/internal/db"
	checkoutHttp "github.com/vasiliy-maslov/storefront-checkout/internal/handler/http"
	"github.com/vasiliy-maslov/storefront-checkout/internal/messaging"
	"github.com/vasiliy-maslov/storefront-checkout/internal/messaging/kafka"
	"github.com/vasiliy-maslov/storefront-checkout/internal/notify"
	"github.com/vasiliy-maslov/storefront-checkout/internal/order"
	"github.com/vasiliy-maslov/storefront-checkout/internal/payment"
	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
	"github.com/vasiliy-maslov/storefront-checkout/internal/storefront"
	"github.com/vasiliy-maslov/storefront-checkout/internal/tracking"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "checkout-service").Logger()

	log.Info().Msg("Checkout service starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.App.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Info().Str("env", cfg.App.Env).Bool("production", cfg.IsProduction()).Str("store_backend", cfg.StoreBackend).Msg("Configuration loaded")

	ctx := context.Background()

	kv, ledger, closeStore := openStore(ctx, cfg)
	defer closeStore()

	var publisher messaging.Publisher = messaging.NewNoop()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close kafka publisher")
			}
		}()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing domain events to kafka")
	}

	manager := checkout.NewManager(storefront.NewClient(cfg.Storefront, nil), kv, checkout.AttributeLimits{
		Default: cfg.Checkout.MaxAttributeLength,
		PerKey:  cfg.Checkout.AttributeLimits,
	})
	postal := address.NewPostalLookup(cfg.PostalLookup.BaseURL, nil)

	coordinator := payment.NewCoordinator(payment.NewRazorpayClient(cfg.Gateway, nil), cfg.Gateway)
	if payment.IsLiveKey(cfg.Gateway.KeyID) && cfg.Gateway.KeySecret == "" {
		log.Warn().Msg("Live gateway key without a secret: payment signatures will not be verified")
	}

	orderSvc := order.NewService(order.NewAdminClient(cfg.Admin, nil), ledger, publisher)

	trackingSvc := tracking.NewService(
		kv,
		tracking.NewCarrierClient(cfg.Tracking, nil),
		orderSvc,
		notify.NewEmailClient(cfg.Notify.Endpoint, cfg.Notify.AccessKey, nil),
		publisher,
		tracking.Options{
			TTL:          cfg.Tracking.CacheTTL,
			PollInterval: cfg.Tracking.PollInterval,
			SellerEmail:  cfg.Notify.SellerEmail,
			FromName:     cfg.Notify.FromName,
		},
	)

	router := checkoutHttp.NewRouter(
		checkoutHttp.NewCheckoutHandler(manager, postal),
		checkoutHttp.NewPaymentHandler(manager, coordinator, payment.NewIntentStore(kv), orderSvc),
		checkoutHttp.NewTrackingHandler(trackingSvc),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

// openStore builds the shared key/value store and the idempotency ledger for
// the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, order.Ledger, func()) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pg, err := db.New(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		return store.NewPostgres(pg.Pool), order.NewPostgresLedger(pg.Pool), pg.Close

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		kv := store.NewRedis(client, cfg.Redis.Prefix)
		return kv, order.NewStoreLedger(kv), func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis client")
			}
		}

	default:
		log.Warn().Msg("Using in-memory store: sessions and ledgers are lost on restart")
		kv := store.NewMemory()
		return kv, order.NewStoreLedger(kv), func() {}
	}
}
